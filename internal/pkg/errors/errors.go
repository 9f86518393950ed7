package errors

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalid     = errors.New("invalid")
	ErrConflict    = errors.New("conflict")
	ErrInternal    = errors.New("internal")
	ErrUnavailable = errors.New("provider unavailable")
	// ErrDimensionMismatch means new rows do not match the vector dimension
	// of the existing chunk table; the caller must rebuild the table.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func IsDimensionMismatch(err error) bool {
	return errors.Is(err, ErrDimensionMismatch)
}
