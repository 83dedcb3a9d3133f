package loan

import "errors"

var (
	ErrNotFound          = errors.New("loan not found")
	ErrAlreadyEscalated  = errors.New("loan already sent to collections")
	ErrPayoffExists      = errors.New("loan already has a payoff payment")
	ErrNothingToPayOff   = errors.New("loan has no remaining principal")
	ErrUnknownBand       = errors.New("unknown collections band")
	ErrInvalidOfferTerms = errors.New("invalid offer terms")
)
