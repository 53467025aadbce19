// Package resty implements domain.Requester over HTTP with a circuit breaker
// in front of the push service.
package resty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pscheid92/pxsession/internal/domain"
	"github.com/pscheid92/pxsession/internal/pxapi"
	"github.com/sony/gobreaker"
)

const (
	breakerName             = "pxapi"
	breakerConsecutiveFails = 5
	breakerOpenTimeout      = 30 * time.Second
	breakerHalfOpenRequests = 1
)

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string

	// OnBreakerChange is called on every circuit state change. Optional.
	OnBreakerChange func(from, to gobreaker.State)
}

// Requester sends JSON requests relative to the API base URL. Retrying is
// left to the caller; the client itself never retries.
type Requester struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
}

var _ domain.Requester = (*Requester)(nil)

func NewRequester(cfg Config) *Requester {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: breakerHalfOpenRequests,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFails
		},
		// Client errors and caller cancellations say nothing about the service's health.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			if se, ok := errors.AsType[*pxapi.StatusError](err); ok {
				return se.Status < http.StatusInternalServerError
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			if cfg.OnBreakerChange != nil {
				cfg.OnBreakerChange(from, to)
			}
		},
	})

	return &Requester{client: client, breaker: breaker}
}

func (r *Requester) Do(ctx context.Context, req domain.Request) ([]byte, error) {
	out, err := r.breaker.Execute(func() (any, error) {
		return r.send(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s %s: %w: %w", req.Method, req.Path, domain.ErrTransport, err)
	}
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func (r *Requester) send(ctx context.Context, req domain.Request) ([]byte, error) {
	rr := r.client.R().SetContext(ctx)
	if req.Body != nil {
		rr.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}

	resp, err := rr.Execute(req.Method, req.Path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", req.Method, req.Path, domain.ErrTransport, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, &pxapi.StatusError{
			Status: resp.StatusCode(),
			Body:   resp.String(),
		})
	}
	return resp.Body(), nil
}

// State reports the circuit breaker state.
func (r *Requester) State() gobreaker.State {
	return r.breaker.State()
}
