package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/pxsession/internal/adapter/metrics"
	"github.com/pscheid92/pxsession/internal/domain"
	"github.com/pscheid92/pxsession/internal/platform/retry"
	"github.com/pscheid92/pxsession/internal/pxapi"
)

const (
	retryInitialBackoff = 1 * time.Second
	retryInitialJitter  = 4 * time.Second
	retryMaxBackoff     = 120 * time.Second
)

const (
	opCreate     = "create"
	opUpdate     = "update"
	opDeactivate = "deactivate"
)

// ticket captures the identity a network call was issued for.
type ticket struct {
	epoch   uint64
	appID   string
	icToken string
	icID    string
	extID   string
}

// registrar runs the instance create/update/deactivate calls. Create and
// deactivate retry until they succeed or the ticket goes stale; update never
// retries, the scheduler's next tick is the retry.
type registrar struct {
	api     *pxapi.Client
	clock   clockwork.Clock
	metrics *metrics.SessionMetrics
}

func (r *registrar) policy(ctx context.Context, op string) retry.Policy {
	return retry.Policy{
		InitialBackoff: retryInitialBackoff,
		InitialJitter:  retryInitialJitter,
		MaxBackoff:     retryMaxBackoff,
		Clock:          r.clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			r.metrics.RegistrarRetries.WithLabelValues(op).Inc()
			slog.WarnContext(ctx, "Registrar call failed, retrying", "operation", op, "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
}

func classify(err error) retry.Action {
	if errors.Is(err, domain.ErrStaleSession) || errors.Is(err, context.Canceled) {
		return retry.Stop
	}
	return retry.Retry
}

func (r *registrar) record(op string, err error) {
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDecode):
		status = "decode_error"
	case errors.Is(err, domain.ErrStaleSession):
		status = "stale"
	default:
		status = "transport_error"
	}
	r.metrics.RegistrarCalls.WithLabelValues(op, status).Inc()
}

// createOrReuse registers the install token and returns the instance id.
// current is consulted before every attempt.
func (r *registrar) createOrReuse(ctx context.Context, t ticket, current func(ticket) bool) (string, error) {
	return retry.Do(ctx, r.policy(ctx, opCreate), classify, func() (string, error) {
		if !current(t) {
			r.record(opCreate, domain.ErrStaleSession)
			return "", domain.ErrStaleSession
		}
		id, err := r.api.CreateInstance(ctx, t.appID, t.icToken, t.extID)
		r.record(opCreate, err)
		return id, err
	})
}

func (r *registrar) update(ctx context.Context, t ticket, info pxapi.InstanceInfo) (int, error) {
	interval, err := r.api.UpdateInstance(ctx, t.appID, t.icID, info)
	r.record(opUpdate, err)
	return interval, err
}

func (r *registrar) deactivate(ctx context.Context, t ticket, current func(ticket) bool) (string, error) {
	return retry.Do(ctx, r.policy(ctx, opDeactivate), classify, func() (string, error) {
		if !current(t) {
			r.record(opDeactivate, domain.ErrStaleSession)
			return "", domain.ErrStaleSession
		}
		id, err := r.api.DeactivateInstance(ctx, t.appID, t.icID, t.icToken, t.extID)
		r.record(opDeactivate, err)
		return id, err
	})
}
