package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind classifies failures so callers branch on kind, never on message text.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindValidation
	KindAvailability
	KindIntegrity
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindAvailability:
		return "availability"
	case KindIntegrity:
		return "integrity"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrValidation    = &Error{Kind: KindValidation}
	ErrAvailability  = &Error{Kind: KindAvailability}
	ErrIntegrity     = &Error{Kind: KindIntegrity}
	ErrUpstream      = &Error{Kind: KindUpstream}
)

// BoundSide tells which exchange limit an implied deposit violated.
type BoundSide string

const (
	BelowMinimum BoundSide = "below-minimum"
	AboveMaximum BoundSide = "above-maximum"
)

// BoundViolation carries the computed deposit amount and the limit it broke.
type BoundViolation struct {
	Side   BoundSide
	Amount decimal.Decimal
	Limit  decimal.Decimal
	Coin   string
}

// Mismatch is one field the exchange returned differently from the request.
type Mismatch struct {
	Field    string
	Expected string
	Actual   string
}

// Error is the single error type of the engine.
type Error struct {
	Kind  Kind
	Op    string
	Msg   string
	Cause error

	// Set on integrity failures. The order is kept for inspection only.
	Shift    *Shift
	Checkout *Checkout
	Mismatch *Mismatch

	// Set when an implied deposit falls outside the pair's min/max.
	Bound *BoundViolation
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else {
		b.WriteString(e.Kind.String() + " error")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches sentinels (kind only) and otherwise falls back to identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" && t.Msg == "" && t.Cause == nil {
		return t.Kind == e.Kind
	}
	return t == e
}

// Errorf builds an *Error with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that keeps cause in the chain.
func Wrap(kind Kind, op string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Rewrap adds context to err. The kind of an existing *Error is kept;
// anything else becomes an upstream error.
func Rewrap(op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	if kind == KindUnknown {
		kind = KindUpstream
	}
	w := Wrap(kind, op, err, format, args...)
	var inner *Error
	if errors.As(err, &inner) {
		w.Shift, w.Checkout, w.Mismatch, w.Bound = inner.Shift, inner.Checkout, inner.Mismatch, inner.Bound
	}
	return w
}
