// Package correlation tags one unit of background work (a registrar call, a
// scheduler tick, an event report, a control request) so its log lines can be
// grouped.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Header carries a caller-supplied correlation id on control requests.
const Header = "X-Correlation-ID"

const maxIDLen = 64

type contextKey struct{}

type scope struct {
	id string
	op string
}

// NewID returns 8 random hex characters.
func NewID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Start returns ctx tagged with a fresh id for operation op.
func Start(ctx context.Context, op string) context.Context {
	return With(ctx, NewID(), op)
}

// With tags ctx with id and op. An empty or oversized id is replaced by a fresh one.
func With(ctx context.Context, id, op string) context.Context {
	if id == "" || len(id) > maxIDLen {
		id = NewID()
	}
	return context.WithValue(ctx, contextKey{}, scope{id: id, op: op})
}

// ID returns the correlation id carried by ctx.
func ID(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(contextKey{}).(scope)
	return s.id, ok
}

// Operation returns the operation ctx was started for, or "".
func Operation(ctx context.Context) string {
	s, _ := ctx.Value(contextKey{}).(scope)
	return s.op
}

// Handler adds correlation_id and op attributes to records logged with a
// tagged context.
type Handler struct {
	inner slog.Handler
}

func NewHandler(inner slog.Handler) *Handler {
	return &Handler{inner: inner}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if s, ok := ctx.Value(contextKey{}).(scope); ok {
		r.AddAttrs(slog.String("correlation_id", s.id))
		if s.op != "" {
			r.AddAttrs(slog.String("op", s.op))
		}
	}
	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("correlation handler: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}
