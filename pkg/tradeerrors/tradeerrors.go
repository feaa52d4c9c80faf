// Package tradeerrors defines the single typed error shape used across MDG,
// SE, OEG, and DGW. Every failure is tagged with one of the nine
// ErrorKinds so callers can branch on category without parsing message
// strings.
package tradeerrors

import (
	"errors"
	"fmt"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
)

// TradeError wraps an underlying error with the operation that failed and
// the kind under which it should be handled.
type TradeError struct {
	Kind model.ErrorKind
	Op   string
	Err  error
}

func (e *TradeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

// New wraps err with op and kind. Returns nil if err is nil.
func New(kind model.ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &TradeError{Kind: kind, Op: op, Err: err}
}

// Newf constructs a TradeError from a format string instead of a wrapped err.
func Newf(kind model.ErrorKind, op, format string, args ...interface{}) error {
	return &TradeError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the ErrorKind from err, walking its Unwrap chain. Returns
// ok=false if no TradeError is found anywhere in the chain.
func KindOf(err error) (model.ErrorKind, bool) {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}

// Is reports whether err's kind (anywhere in its chain) equals kind.
func Is(err error, kind model.ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Retryable reports whether an error kind represents a transient condition
// (TRANSPORT, BROKER_TRANSIENT, BUSY) that a retry may recover from. OEG's
// order retry does not consult it: it retries TRANSPORT failures only.
func Retryable(kind model.ErrorKind) bool {
	switch kind {
	case model.ErrorKindTransport, model.ErrorKindBrokerTransient, model.ErrorKindBusy:
		return true
	default:
		return false
	}
}
