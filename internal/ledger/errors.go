package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies ledger failures for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindProvider
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindProvider:
		return "provider"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, KindInternal
// when there is none.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindInternal
}

func validationError(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

func providerError(op string, err error) error {
	return &Error{Kind: KindProvider, Op: op, Message: "provider request failed", Err: err}
}

func notFoundError(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: msg}
}

func internalError(op string, err error) error {
	return &Error{Kind: KindInternal, Op: op, Message: "internal error", Err: err}
}
