package domain

import (
	"errors"
	"fmt"
)

// ErrorKind tags where in a pipeline an error happened.
type ErrorKind string

const (
	KindConfig        ErrorKind = "config"
	KindDownload      ErrorKind = "download"
	KindTranscription ErrorKind = "transcription"
	KindChat          ErrorKind = "chat"
	KindSynthesis     ErrorKind = "synthesis"
	KindValidation    ErrorKind = "validation"
	KindDelivery      ErrorKind = "delivery"
	KindInternal      ErrorKind = "internal"
)

type Error struct {
	Kind ErrorKind
	Err  error
}

func NewError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the outermost domain error in the chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ErrNotConfigured is returned by collaborators whose endpoint or credentials are missing.
var ErrNotConfigured = errors.New("collaborator not configured")

// Wrap tags err with kind unless it already carries a kind.
func Wrap(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}
