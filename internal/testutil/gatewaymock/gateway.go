// Package gatewaymock provides function-backed doubles for the
// transfer gateway and notification dispatcher.
package gatewaymock

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Gateway satisfies gateway.TransferGateway. Only set the fields a
// test needs; the default accepts every transfer with a generated ref.
type Gateway struct {
	mu         sync.Mutex
	calls      int
	InitiateFn func(ctx context.Context, accountRef string, amount decimal.Decimal, description string) (string, error)
}

func (g *Gateway) InitiateTransfer(ctx context.Context, accountRef string, amount decimal.Decimal, description string) (string, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	if g.InitiateFn != nil {
		return g.InitiateFn(ctx, accountRef, amount, description)
	}
	return fmt.Sprintf("tr_%04d", n), nil
}

// Calls reports how many initiations were attempted.
func (g *Gateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Notifier records emitted events.
type Notifier struct {
	mu     sync.Mutex
	Events []string
}

func (n *Notifier) Notify(_ context.Context, event, loanID, paymentID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Events = append(n.Events, event)
}

func (n *Notifier) Count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.Events {
		if e == event {
			c++
		}
	}
	return c
}
