package domain

import "errors"

var (
	// ErrOrderRejected is returned when the broker resolves a deal as rejected.
	ErrOrderRejected = errors.New("order rejected by broker")
	// ErrConfirmationTimeout is returned when a deal never leaves the pending state.
	ErrConfirmationTimeout = errors.New("deal confirmation timed out")
	// ErrMalformedConfirmation is returned when a confirmation carries no deal identifier.
	ErrMalformedConfirmation = errors.New("malformed deal confirmation")
	// ErrInvalidRisk aborts an order whose ATR or R is undefined or non-positive.
	ErrInvalidRisk = errors.New("invalid risk distance")
	// ErrRiskLimit marks a daily risk gate refusal.
	ErrRiskLimit = errors.New("risk limit")
)

// IsBrokerRejection reports whether err is a rejection or confirmation timeout rather than a transport failure.
func IsBrokerRejection(err error) bool {
	return errors.Is(err, ErrOrderRejected) || errors.Is(err, ErrConfirmationTimeout)
}
