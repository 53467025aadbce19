package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/pxsession/internal/adapter/metrics"
	"github.com/pscheid92/pxsession/internal/domain"
	"github.com/pscheid92/pxsession/internal/platform/correlation"
	"github.com/pscheid92/pxsession/internal/pxapi"
	"golang.org/x/time/rate"
)

const storeTimeout = 5 * time.Second

var ErrInvalidAppID = errors.New("app id must not be empty")

// Deps are the host capabilities a Session is built on.
// Lifecycle and Metrics are optional.
type Deps struct {
	Store     domain.Store
	Requester domain.Requester
	Lifecycle domain.LifecycleObserver
	Clock     clockwork.Clock
	Device    domain.DeviceInfo
	Metrics   *metrics.SessionMetrics
}

type Options struct {
	TransportType domain.TransportType
	MaxTags       int
	EventRate     rate.Limit
	EventBurst    int
}

func (o Options) withDefaults() Options {
	if o.TransportType == "" {
		o.TransportType = domain.TransportFCM
	}
	if o.MaxTags <= 0 {
		o.MaxTags = DefaultMaxTags
	}
	if o.EventRate <= 0 {
		o.EventRate = 20
	}
	if o.EventBurst <= 0 {
		o.EventBurst = 50
	}
	return o
}

// Session is the process-wide app-instance session.
type Session struct {
	persist   *persister
	clock     clockwork.Clock
	device    domain.DeviceInfo
	metrics   *metrics.SessionMetrics
	api       *pxapi.Client
	registrar *registrar
	limiter   *rate.Limiter
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	rec           Snapshot
	epoch         uint64
	closed        bool
	stopScheduler context.CancelFunc
	unobserve     func()
}

// New loads the persisted record and returns the session for this process.
func New(ctx context.Context, deps Deps, opts Options) (*Session, error) {
	if deps.Store == nil || deps.Requester == nil {
		return nil, errors.New("session: store and requester are required")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewSessionMetrics(prometheus.NewRegistry())
	}
	opts = opts.withDefaults()

	loadCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	rec, err := loadRecord(loadCtx, deps.Store, deps.Clock.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if rec.TransportType == "" {
		rec.TransportType = opts.TransportType
	}
	if rec.ICID != "" {
		// A fresh process is never activated; the instance is re-resolved by install token.
		slog.InfoContext(ctx, "Discarding persisted instance id until reactivation", "ic_id", rec.ICID)
		rec.ICID = ""
		saveFields(loadCtx, deps.Store, fieldICID(&rec))
	}
	if kept, dropped := truncateTags(rec.Tags, opts.MaxTags); len(dropped) > 0 {
		deps.Metrics.TagsTruncatedTotal.Inc()
		slog.WarnContext(ctx, "Persisted tags exceed key limit, dropping largest keys", "max", opts.MaxTags, "dropped", dropped)
		rec.Tags = kept
		saveFields(loadCtx, deps.Store, fieldTags(&rec))
	}

	api := pxapi.NewClient(deps.Requester)
	rootCtx, rootCancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		persist: newPersister(deps.Store),
		clock:   deps.Clock,
		device:  deps.Device,
		metrics: deps.Metrics,
		api:     api,
		registrar: &registrar{
			api:     api,
			clock:   deps.Clock,
			metrics: deps.Metrics,
		},
		limiter: rate.NewLimiter(opts.EventRate, opts.EventBurst),
		opts:    opts,
		ctx:     rootCtx,
		cancel:  rootCancel,
		rec:     rec,
	}
	s.syncMetrics()

	if deps.Lifecycle != nil {
		s.unobserve = deps.Lifecycle.OnTransition(s.HandleLifecycle)
	}

	slog.InfoContext(ctx, "Session loaded", "state", rec.State.String(), "app_id", rec.AppID)
	return s, nil
}

// Close stops the scheduler and every in-flight network flow and waits for them.
// Completions arriving afterwards are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.epoch++
	s.stopSchedulerLocked()
	unobserve := s.unobserve
	s.mu.Unlock()

	if unobserve != nil {
		unobserve()
	}
	s.cancel()
	s.wg.Wait()
	s.persist.stop()
}

// Initialize binds the session to appID. A new install token is generated
// when appID differs from the stored one or no token exists yet.
func (s *Session) Initialize(appID string) error {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return ErrInvalidAppID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.rec.State
	if !from.CanInitialize() {
		return &domain.TransitionError{Op: "initialize", From: from}
	}

	if appID == s.rec.AppID && s.rec.ICToken != "" {
		if from == domain.StateInitialized {
			slog.Debug("Session already initialized", "app_id", appID)
			return nil
		}
		s.setStateLocked(domain.StateInitialized)
		slog.Info("Session reinitialized", "app_id", appID, "from", from.String())
		return nil
	}

	s.epoch++
	s.rec.AppID = appID
	s.rec.ICToken = newInstallToken()
	s.rec.ICID = ""
	s.rec.ExtID = ""
	s.persistLocked(fieldAppID(&s.rec), fieldICToken(&s.rec), fieldICID(&s.rec), fieldExtID(&s.rec))
	s.setStateLocked(domain.StateInitialized)

	slog.Info("Session initialized with new install token", "app_id", appID, "from", from.String())
	return nil
}

// Activate registers the instance for extID. From activating or activated it
// is a no-op unless force is set or extID differs from the current one.
func (s *Session) Activate(extID string, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.rec.State
	if !from.CanActivate() {
		return &domain.TransitionError{Op: "activate", From: from}
	}

	if (from == domain.StateActivated || from == domain.StateActivating) && !force && extID == s.rec.ExtID {
		slog.Info("Session already active, ignoring activate", "state", from.String(), "ext_id", extID)
		return nil
	}

	s.stopSchedulerLocked()
	s.epoch++
	s.rec.ICID = ""
	s.rec.ExtID = extID
	s.persistLocked(fieldICID(&s.rec), fieldExtID(&s.rec))
	s.setStateLocked(domain.StateActivating)

	t := s.ticketLocked()
	s.spawnLocked(func(ctx context.Context) { s.register(ctx, t) })

	slog.Info("Session activating", "app_id", t.appID, "ext_id", extID, "from", from.String(), "force", force)
	return nil
}

// Deactivate deactivates the registered instance. The install token is kept
// so a later activation reuses it.
func (s *Session) Deactivate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.rec.State
	switch from {
	case domain.StateDeactivating, domain.StateDeactivated:
		slog.Info("Session already deactivating or deactivated", "state", from.String())
		return nil
	case domain.StateActivated:
	default:
		return &domain.TransitionError{Op: "deactivate", From: from}
	}

	s.stopSchedulerLocked()
	s.epoch++
	s.setStateLocked(domain.StateDeactivating)

	t := s.ticketLocked()
	s.spawnLocked(func(ctx context.Context) { s.unregister(ctx, t) })

	slog.Info("Session deactivating", "app_id", t.appID, "ic_id", t.icID)
	return nil
}

func (s *Session) register(ctx context.Context, t ticket) {
	ctx = correlation.Start(ctx, opCreate)

	icID, err := s.registrar.createOrReuse(ctx, t, s.isCurrent)
	if err != nil {
		slog.InfoContext(ctx, "Instance registration abandoned", "app_id", t.appID, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isCurrentLocked(t) || s.rec.State != domain.StateActivating {
		s.discardLocked(ctx, opCreate, t)
		return
	}

	s.rec.ICID = icID
	s.persistLocked(fieldICID(&s.rec))
	s.setStateLocked(domain.StateActivated)

	t.icID = icID
	s.startSchedulerLocked(t)

	slog.InfoContext(ctx, "Instance registered", "app_id", t.appID, "ic_id", icID)

	// foreground transitions seen while activating were dropped; report the current one
	if s.rec.Lifecycle == domain.LifecycleOnscreen {
		s.reportLifecycleLocked(domain.LifecycleOnscreen)
	}
}

func (s *Session) unregister(ctx context.Context, t ticket) {
	ctx = correlation.Start(ctx, opDeactivate)

	if _, err := s.registrar.deactivate(ctx, t, s.isCurrent); err != nil {
		slog.InfoContext(ctx, "Instance deactivation abandoned", "app_id", t.appID, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isCurrentLocked(t) || s.rec.State != domain.StateDeactivating {
		s.discardLocked(ctx, opDeactivate, t)
		return
	}

	s.rec.ICID = ""
	s.rec.ExtID = ""
	s.persistLocked(fieldICID(&s.rec), fieldExtID(&s.rec))
	s.setStateLocked(domain.StateDeactivated)

	slog.InfoContext(ctx, "Instance deactivated", "app_id", t.appID, "ic_id", t.icID)
}

// SetTransportToken stores the push transport token sent with the next update.
func (s *Session) SetTransportToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec.TransportToken == token {
		return
	}
	s.rec.TransportToken = token
	s.persistLocked(fieldTransportToken(&s.rec))
	slog.Info("Transport token updated", "transport_type", string(s.rec.TransportType))
}

func (s *Session) SetTransportType(t domain.TransportType) error {
	if !t.Valid() {
		return fmt.Errorf("unknown transport type %q", t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.TransportType = t
	s.persistLocked(fieldTransportType(&s.rec))
	return nil
}

// SetTags replaces the tags. Maps larger than the configured maximum keep the
// lexicographically smallest keys.
func (s *Session) SetTags(tags map[string]string) {
	kept, dropped := truncateTags(tags, s.opts.MaxTags)
	if len(dropped) > 0 {
		s.metrics.TagsTruncatedTotal.Inc()
		slog.Warn("Tags exceed key limit, dropping largest keys", "max", s.opts.MaxTags, "dropped", dropped)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Tags = kept
	s.persistLocked(fieldTags(&s.rec))
}

func (s *Session) SetNotificationsPermission(granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.NotifPermission = granted
	s.persistLocked(fieldNotifPerm(&s.rec))
}

// ExternalID returns the external id bound to the current activation.
func (s *Session) ExternalID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.ExtID
}

func (s *Session) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.State
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.clone()
}

// HandleLifecycle records a host lifecycle transition, updates the onscreen
// counters, and reports the transition when it changes the visible state.
func (s *Session) HandleLifecycle(to domain.LifecycleState) {
	if !to.Valid() {
		slog.Warn("Ignoring unknown lifecycle state", "state", string(to))
		return
	}

	s.mu.Lock()
	prev := s.rec.Lifecycle
	s.trackPresenceLocked(prev, to)
	s.rec.Lifecycle = to
	s.mu.Unlock()

	if prev != to {
		s.ReportLifecycleEvent(to)
	}
}

func (s *Session) trackPresenceLocked(prev, next domain.LifecycleState) {
	now := s.clock.Now().Unix()
	if clockRegressed(s.rec.Presence, prev, now) {
		slog.Warn("Clock moved backwards, skipping onscreen accounting", "now", now, "onscreen_start_ts", s.rec.Presence.StartTs)
		return
	}

	p, changed := TrackPresence(s.rec.Presence, prev, next, now)
	if !changed {
		return
	}
	s.rec.Presence = p
	s.persistLocked(presenceFields(&s.rec)...)
	s.metrics.OnscreenSeconds.Set(float64(p.Seconds))
}

func (s *Session) ticketLocked() ticket {
	return ticket{
		epoch:   s.epoch,
		appID:   s.rec.AppID,
		icToken: s.rec.ICToken,
		icID:    s.rec.ICID,
		extID:   s.rec.ExtID,
	}
}

func (s *Session) isCurrent(t ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isCurrentLocked(t)
}

func (s *Session) isCurrentLocked(t ticket) bool {
	return !s.closed && s.epoch == t.epoch && s.rec.AppID == t.appID && s.rec.ICToken == t.icToken
}

func (s *Session) discardLocked(ctx context.Context, op string, t ticket) {
	s.metrics.StaleCompletions.Inc()
	slog.InfoContext(ctx, "Discarding stale completion", "operation", op, "app_id", t.appID, "state", s.rec.State.String())
}

func (s *Session) setStateLocked(st domain.State) {
	s.rec.State = st
	s.metrics.State.Set(float64(st))
}

func (s *Session) syncMetrics() {
	s.metrics.State.Set(float64(s.rec.State))
	s.metrics.UpdateInterval.Set(float64(s.rec.UpdateIntervalSec))
	s.metrics.OnscreenSeconds.Set(float64(s.rec.Presence.Seconds))
}

// persistLocked queues fields for writing; the store call happens off the lock.
func (s *Session) persistLocked(fields ...field) {
	s.persist.enqueue(fields...)
}

// spawnLocked runs fn on a background goroutine tied to the session lifetime.
func (s *Session) spawnLocked(fn func(ctx context.Context)) bool {
	if s.closed {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
	return true
}

func newInstallToken() string {
	return strings.ToLower(uuid.NewString())
}
