package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/pscheid92/pxsession/internal/domain"
	"github.com/pscheid92/pxsession/internal/platform/correlation"
)

const eventTimeout = 30 * time.Second

// ReportNotificationEvent sends a delivered/clicked report in the background.
// Reports are dropped unless the session is activated; they are never retried.
func (s *Session) ReportNotificationEvent(msgID string, event domain.NotificationEvent) {
	kind := string(event)
	if msgID == "" || !event.Valid() {
		slog.Warn("Ignoring invalid notification event", "msg_id", msgID, "event", kind)
		return
	}

	s.sendEvent(kind, func(ctx context.Context, t ticket) error {
		return s.api.SendNotificationEvent(ctx, t.appID, t.icID, msgID, event)
	}, "msg_id", msgID)
}

// ReportLifecycleEvent sends an onscreen/background/closed report in the background.
func (s *Session) ReportLifecycleEvent(event domain.LifecycleState) {
	if !event.Valid() {
		slog.Warn("Ignoring invalid lifecycle event", "event", string(event))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportLifecycleLocked(event)
}

func (s *Session) reportLifecycleLocked(event domain.LifecycleState) {
	s.sendEventLocked(string(event), func(ctx context.Context, t ticket) error {
		return s.api.SendLifecycleEvent(ctx, t.appID, t.icID, event)
	})
}

func (s *Session) sendEvent(kind string, send func(context.Context, ticket) error, attrs ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendEventLocked(kind, send, attrs...)
}

func (s *Session) sendEventLocked(kind string, send func(context.Context, ticket) error, attrs ...any) {
	if s.rec.State != domain.StateActivated {
		s.metrics.Events.WithLabelValues(kind, "dropped").Inc()
		slog.Info("Session not activated, dropping event", append([]any{"event", kind, "state", s.rec.State.String()}, attrs...)...)
		return
	}
	if !s.limiter.Allow() {
		s.metrics.Events.WithLabelValues(kind, "dropped").Inc()
		slog.Warn("Event rate exceeded, dropping event", append([]any{"event", kind}, attrs...)...)
		return
	}

	t := s.ticketLocked()
	spawned := s.spawnLocked(func(ctx context.Context) {
		ctx = correlation.Start(ctx, "event:"+kind)
		ctx, cancel := context.WithTimeout(ctx, eventTimeout)
		defer cancel()

		if err := send(ctx, t); err != nil {
			s.metrics.Events.WithLabelValues(kind, "failed").Inc()
			slog.WarnContext(ctx, "Failed to send event", append([]any{"event", kind, "error", err}, attrs...)...)
			return
		}
		s.metrics.Events.WithLabelValues(kind, "sent").Inc()
		slog.DebugContext(ctx, "Event sent", append([]any{"event", kind}, attrs...)...)
	})
	if !spawned {
		s.metrics.Events.WithLabelValues(kind, "dropped").Inc()
	}
}
