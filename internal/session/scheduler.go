package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/pscheid92/pxsession/internal/domain"
	"github.com/pscheid92/pxsession/internal/platform/correlation"
	"github.com/pscheid92/pxsession/internal/pxapi"
)

// startSchedulerLocked starts the periodic update loop for an activated ticket.
// The first update is sent immediately.
func (s *Session) startSchedulerLocked(t ticket) {
	s.stopSchedulerLocked()

	ctx, cancel := context.WithCancel(s.ctx)
	if !s.spawnLocked(func(context.Context) { s.runScheduler(ctx, t) }) {
		cancel()
		return
	}
	s.stopScheduler = cancel
}

func (s *Session) stopSchedulerLocked() {
	if s.stopScheduler != nil {
		s.stopScheduler()
		s.stopScheduler = nil
	}
}

// runScheduler ticks until the ticket goes stale. Every tick re-checks the
// session, so a loop started for an older activation stops on its next wake-up
// even if its cancellation was missed.
func (s *Session) runScheduler(ctx context.Context, t ticket) {
	for {
		if !s.tick(ctx, t) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.updateInterval()):
		}
	}
}

func (s *Session) updateInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.rec.UpdateIntervalSec) * time.Second
}

// tick runs one update cycle and reports whether the loop should continue.
func (s *Session) tick(ctx context.Context, t ticket) bool {
	ctx = correlation.Start(ctx, opUpdate)

	s.mu.Lock()
	if ctx.Err() != nil || !s.isCurrentLocked(t) || s.rec.State != domain.StateActivated {
		s.mu.Unlock()
		slog.DebugContext(ctx, "Scheduler stopping, session no longer activated", "app_id", t.appID)
		return false
	}
	s.trackPresenceLocked(s.rec.Lifecycle, s.rec.Lifecycle)
	info := s.instanceInfoLocked()
	s.mu.Unlock()

	interval, err := s.registrar.update(ctx, t, info)
	if err != nil {
		slog.WarnContext(ctx, "Instance update failed, waiting for next tick", "ic_id", t.icID, "error", err)
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isCurrentLocked(t) || s.rec.State != domain.StateActivated {
		s.discardLocked(ctx, opUpdate, t)
		return false
	}
	if interval != s.rec.UpdateIntervalSec {
		slog.InfoContext(ctx, "Update interval changed", "from", s.rec.UpdateIntervalSec, "to", interval)
		s.rec.UpdateIntervalSec = interval
		s.persistLocked(fieldUpdateInterval(&s.rec))
		s.metrics.UpdateInterval.Set(float64(interval))
	}
	slog.DebugContext(ctx, "Instance updated", "ic_id", t.icID, "next_in_sec", interval)
	return true
}

func (s *Session) instanceInfoLocked() pxapi.InstanceInfo {
	r := &s.rec
	return pxapi.InstanceInfo{
		TransportType:   r.TransportType,
		TransportToken:  r.TransportToken,
		PlatformType:    s.device.PlatformType,
		PlatformName:    s.device.PlatformName,
		AgentName:       s.device.AgentName,
		ExtID:           r.ExtID,
		Lang:            s.device.Lang,
		Country:         s.device.Country,
		TimezoneSec:     s.device.TimezoneOffset,
		TimezoneName:    s.device.TimezoneName,
		OnscreenCount:   r.Presence.Count,
		OnscreenSec:     r.Presence.Seconds,
		OnscreenStartTs: r.Presence.StartTs,
		OnscreenStopTs:  r.Presence.StopTs,
		NotifPermission: r.NotifPermission,
		Tags:            r.clone().Tags,
	}
}
