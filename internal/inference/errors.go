package inference

import (
	"errors"
	"fmt"
)

var (
	// ErrInference matches every failure surfaced by the gateway or the parser.
	ErrInference = errors.New("inference failed")

	// ErrEmptyResponse is returned when the gateway answered with nothing but whitespace.
	ErrEmptyResponse = errors.New("empty inference response")
)

// Error wraps a gateway or parse failure. errors.Is(err, ErrInference) is always true.
type Error struct {
	Op  string // complete, parse, describe_image
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("inference %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes every *Error match ErrInference.
func (e *Error) Is(target error) bool {
	return target == ErrInference
}

// Wrap returns err as an *Error tagged with op. Existing *Error values are returned unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ie *Error
	if errors.As(err, &ie) {
		return err
	}
	return &Error{Op: op, Err: err}
}
