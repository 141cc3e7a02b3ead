package domain

import "errors"

// Error kinds. Transport layers map these to status codes.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrBadRequest      = errors.New("bad request")
	ErrConflict        = errors.New("conflict")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// NewError returns an error carrying a user-facing message that matches kind under errors.Is.
func NewError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// PublicMessage returns the user-facing message of the innermost kinded error in err's chain.
func PublicMessage(err error) string {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg
	}
	return ""
}
