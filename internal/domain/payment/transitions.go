package payment

import "time"

// Change is a conditional ledger transition: the repository applies
// Set only if the payment's current status is one of Expect, in a
// single atomic update. A zero-row update surfaces as ErrStateConflict.
type Change struct {
	Expect []Status
	To     Status
	Set    map[string]any
	// Action labels the transition for the audit log.
	Action string
}

// ClaimChange moves a due scheduled (or retry-due failed) payment into
// processing. The compare-and-swap here is the exactly-one-in-flight
// guarantee: a second sweep claiming the same payment gets a conflict.
func ClaimChange() Change {
	return Change{
		Expect: []Status{StatusScheduled, StatusFailed},
		To:     StatusProcessing,
		Set:    map[string]any{"status": StatusProcessing},
		Action: "payment.claimed",
	}
}

// AttachTransferChange records the gateway reference after a
// successful initiation, while the payment stays in processing.
func AttachTransferChange(transferRef string) Change {
	return Change{
		Expect: []Status{StatusProcessing},
		To:     StatusProcessing,
		Set:    map[string]any{"transfer_ref": transferRef},
		Action: "payment.transfer_initiated",
	}
}

// SettleChange applies a confirmed gateway settlement.
func SettleChange(transferRef string, at time.Time) Change {
	return Change{
		Expect: []Status{StatusProcessing},
		To:     StatusCompleted,
		Set: map[string]any{
			"status":         StatusCompleted,
			"transfer_ref":   transferRef,
			"completed_at":   at,
			"retry_count":    0,
			"next_retry_at":  nil,
			"failure_reason": "",
			"failure_code":   "",
		},
		Action: "payment.settled",
	}
}

// FailChange records a transfer failure and schedules the next
// automatic attempt.
func FailChange(reason, code string, retryCount int, nextRetryAt time.Time) Change {
	return Change{
		Expect: []Status{StatusProcessing},
		To:     StatusFailed,
		Set: map[string]any{
			"status":         StatusFailed,
			"transfer_ref":   nil,
			"failure_reason": reason,
			"failure_code":   code,
			"retry_count":    retryCount,
			"next_retry_at":  nextRetryAt,
		},
		Action: "payment.failed",
	}
}

// RequiresActionChange parks a payment for manual remediation, either
// because the failure is terminal or because retries are exhausted.
func RequiresActionChange(reason, code string) Change {
	return Change{
		Expect: []Status{StatusProcessing, StatusFailed},
		To:     StatusRequiresAction,
		Set: map[string]any{
			"status":         StatusRequiresAction,
			"transfer_ref":   nil,
			"next_retry_at":  nil,
			"failure_reason": reason,
			"failure_code":   code,
		},
		Action: "payment.requires_action",
	}
}

// OverdueChange is applied by the delinquency sweep to payments past
// their due date plus grace that never completed.
func OverdueChange() Change {
	return Change{
		Expect: []Status{StatusScheduled, StatusFailed},
		To:     StatusOverdue,
		Set:    map[string]any{"status": StatusOverdue},
		Action: "payment.overdue",
	}
}

// ManualRetryChange resets any non-settled payment back to scheduled,
// clearing retry bookkeeping and the stale gateway reference.
func ManualRetryChange() Change {
	return Change{
		Expect: []Status{StatusScheduled, StatusProcessing, StatusFailed, StatusOverdue, StatusRequiresAction},
		To:     StatusScheduled,
		Set: map[string]any{
			"status":         StatusScheduled,
			"transfer_ref":   nil,
			"retry_count":    0,
			"next_retry_at":  nil,
			"failure_reason": "",
			"failure_code":   "",
		},
		Action: "payment.retried",
	}
}

// ManualSettleChange records an out-of-band settlement (check, cash).
// It bypasses the gateway, so no transfer ref is attached.
func ManualSettleChange(at time.Time) Change {
	return Change{
		Expect: []Status{StatusFailed, StatusOverdue, StatusRequiresAction},
		To:     StatusCompleted,
		Set: map[string]any{
			"status":         StatusCompleted,
			"completed_at":   at,
			"next_retry_at":  nil,
			"failure_reason": "",
			"failure_code":   "",
		},
		Action: "payment.marked_paid",
	}
}

// SupersedeChange closes a remaining payment after the loan's payoff
// payment completed.
func SupersedeChange() Change {
	return Change{
		Expect: []Status{StatusScheduled, StatusProcessing, StatusFailed, StatusOverdue, StatusRequiresAction},
		To:     StatusSuperseded,
		Set:    map[string]any{"status": StatusSuperseded, "next_retry_at": nil},
		Action: "payment.superseded",
	}
}
