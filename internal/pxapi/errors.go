package pxapi

import (
	"fmt"

	"github.com/pscheid92/pxsession/internal/domain"
)

// StatusError is a non-2xx response. The body is kept for logging; it is
// treated like an undecodable response, so callers match domain.ErrDecode.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return domain.ErrDecode }
