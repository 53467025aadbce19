package session

import "github.com/pscheid92/pxsession/internal/domain"

// Presence holds the onscreen counters. Timestamps are epoch seconds.
type Presence struct {
	Count   int64
	Seconds int64
	StartTs int64
	StopTs  int64
}

// TrackPresence applies one observed lifecycle transition (or a periodic tick,
// where prev == next) at time now and reports whether any counter changed.
// Elapsed time is only accumulated when now >= StartTs.
func TrackPresence(p Presence, prev, next domain.LifecycleState, now int64) (Presence, bool) {
	switch {
	case !prev.Active() && next.Active():
		p.Count++
		p.StartTs = now
		return p, true

	case prev.Active() && next.Active():
		if now < p.StartTs {
			return p, false
		}
		p.Seconds += now - p.StartTs
		p.StartTs = now
		return p, true

	case prev.Active() && !next.Active():
		if now < p.StartTs {
			return p, false
		}
		p.Seconds += now - p.StartTs
		p.StopTs = now
		return p, true
	}
	return p, false
}

// clockRegressed reports whether a transition at now would be skipped because
// the wall clock went backwards relative to the open interval.
func clockRegressed(p Presence, prev domain.LifecycleState, now int64) bool {
	return prev.Active() && now < p.StartTs
}

// clampPresence pulls persisted timestamps that lie in the future back to now.
func clampPresence(p Presence, now int64) Presence {
	if p.StartTs > now {
		p.StartTs = now
	}
	if p.StopTs > now {
		p.StopTs = now
	}
	return p
}
