package domain

import "context"

// Request is a single JSON API call relative to the API base URL.
type Request struct {
	Method string
	Path   string
	Body   any
}

// Requester executes API requests. It returns the raw response body for
// 2xx responses. Connectivity problems wrap ErrTransport; non-2xx responses
// wrap ErrDecode.
type Requester interface {
	Do(ctx context.Context, req Request) ([]byte, error)
}
