package session

import (
	"math/rand/v2"
	"testing"

	"github.com/pscheid92/pxsession/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestTrackPresence_Transitions(t *testing.T) {
	tests := []struct {
		name        string
		start       Presence
		prev, next  domain.LifecycleState
		now         int64
		want        Presence
		wantChanged bool
	}{
		{
			name: "enter foreground", start: Presence{Count: 2, Seconds: 10},
			prev: domain.LifecycleBackground, next: domain.LifecycleOnscreen, now: 100,
			want: Presence{Count: 3, Seconds: 10, StartTs: 100}, wantChanged: true,
		},
		{
			name: "tick while foreground", start: Presence{Count: 1, StartTs: 100},
			prev: domain.LifecycleOnscreen, next: domain.LifecycleOnscreen, now: 130,
			want: Presence{Count: 1, Seconds: 30, StartTs: 130}, wantChanged: true,
		},
		{
			name: "leave foreground", start: Presence{Count: 1, Seconds: 5, StartTs: 100},
			prev: domain.LifecycleOnscreen, next: domain.LifecycleClosed, now: 160,
			want: Presence{Count: 1, Seconds: 65, StartTs: 100, StopTs: 160}, wantChanged: true,
		},
		{
			name: "background to closed", start: Presence{Count: 1, Seconds: 5},
			prev: domain.LifecycleBackground, next: domain.LifecycleClosed, now: 160,
			want: Presence{Count: 1, Seconds: 5}, wantChanged: false,
		},
		{
			name: "clock regression while foreground", start: Presence{Count: 1, Seconds: 50, StartTs: 200},
			prev: domain.LifecycleOnscreen, next: domain.LifecycleBackground, now: 150,
			want: Presence{Count: 1, Seconds: 50, StartTs: 200}, wantChanged: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := TrackPresence(tt.start, tt.prev, tt.next, tt.now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}
}

func TestTrackPresence_SumsClosedIntervals(t *testing.T) {
	states := []domain.LifecycleState{domain.LifecycleOnscreen, domain.LifecycleBackground, domain.LifecycleClosed}
	rng := rand.New(rand.NewPCG(1, 2))

	for run := 0; run < 50; run++ {
		var p Presence
		prev := domain.LifecycleClosed
		now := int64(1_000)
		var openedAt, want, entries int64

		for step := 0; step < 100; step++ {
			now += rng.Int64N(60)
			next := states[rng.IntN(len(states))]

			if !prev.Active() && next.Active() {
				openedAt = now
				entries++
			}
			if prev.Active() && !next.Active() {
				want += now - openedAt
			}

			p, _ = TrackPresence(p, prev, next, now)
			prev = next
		}
		if prev.Active() {
			// close the final interval
			now += 5
			want += now - openedAt
			p, _ = TrackPresence(p, prev, domain.LifecycleBackground, now)
		}

		assert.Equal(t, want, p.Seconds, "run %d", run)
		assert.Equal(t, entries, p.Count, "run %d", run)
	}
}

func TestTrackPresence_RegressionNeverDecreasesSeconds(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	states := []domain.LifecycleState{domain.LifecycleOnscreen, domain.LifecycleBackground}

	var p Presence
	prev := domain.LifecycleBackground
	now := int64(10_000)
	for i := 0; i < 500; i++ {
		now += rng.Int64N(100) - 50 // clock jitters both ways
		next := states[rng.IntN(len(states))]

		before := p.Seconds
		p, _ = TrackPresence(p, prev, next, now)
		assert.GreaterOrEqual(t, p.Seconds, before)
		prev = next
	}
}

func TestClampPresence(t *testing.T) {
	p := clampPresence(Presence{Count: 1, StartTs: 500, StopTs: 400}, 450)
	assert.Equal(t, Presence{Count: 1, StartTs: 450, StopTs: 400}, p)
}
