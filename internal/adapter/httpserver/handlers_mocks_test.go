package httpserver

import (
	"maps"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/pxsession/internal/domain"
	"github.com/pscheid92/pxsession/internal/session"
)

// --- Mock implementations ---

type reportedEvent struct {
	msgID string
	event domain.NotificationEvent
}

type mockSession struct {
	mu sync.Mutex

	snap        session.Snapshot
	initErr     error
	activateErr error
	deactErr    error

	activateCalls []activateRequest
	lifecycle     []domain.LifecycleState
	events        []reportedEvent
	clicked       []map[string]any
}

func newMockSession() *mockSession {
	return &mockSession{snap: session.Snapshot{
		State:             domain.StateEmpty,
		TransportType:     domain.TransportFCM,
		Tags:              map[string]string{},
		UpdateIntervalSec: 120,
		Lifecycle:         domain.LifecycleClosed,
	}}
}

func (m *mockSession) Initialize(appID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initErr != nil {
		return m.initErr
	}
	if strings.TrimSpace(appID) == "" {
		return session.ErrInvalidAppID
	}
	m.snap.AppID = appID
	m.snap.ICToken = "tok-1"
	m.snap.State = domain.StateInitialized
	return nil
}

func (m *mockSession) Activate(extID string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activateCalls = append(m.activateCalls, activateRequest{ExtID: extID, Force: force})
	if m.activateErr != nil {
		return m.activateErr
	}
	m.snap.ExtID = extID
	m.snap.State = domain.StateActivating
	return nil
}

func (m *mockSession) Deactivate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deactErr != nil {
		return m.deactErr
	}
	m.snap.State = domain.StateDeactivating
	return nil
}

func (m *mockSession) SetTransportToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.TransportToken = token
}

func (m *mockSession) SetTransportType(t domain.TransportType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !t.Valid() {
		return domain.ErrDecode
	}
	m.snap.TransportType = t
	return nil
}

func (m *mockSession) SetTags(tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.Tags = maps.Clone(tags)
}

func (m *mockSession) SetNotificationsPermission(granted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.NotifPermission = granted
}

func (m *mockSession) Snapshot() session.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snap
	snap.Tags = maps.Clone(m.snap.Tags)
	return snap
}

func (m *mockSession) HandleLifecycle(to domain.LifecycleState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lifecycle = append(m.lifecycle, to)
	m.snap.Lifecycle = to
}

func (m *mockSession) ReportNotificationEvent(msgID string, event domain.NotificationEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, reportedEvent{msgID, event})
}

func (m *mockSession) HandleNotification(payload map[string]any) (session.Notification, bool) {
	n, ok := session.ParseNotification(payload)
	if ok {
		m.ReportNotificationEvent(n.MsgID, domain.NotificationDelivered)
	}
	return n, ok
}

func (m *mockSession) HandleNotificationClick(payload map[string]any) bool {
	msgID, _ := payload["px.msg_id"].(string)
	if msgID == "" {
		return false
	}
	m.mu.Lock()
	m.clicked = append(m.clicked, payload)
	m.mu.Unlock()
	m.ReportNotificationEvent(msgID, domain.NotificationClicked)
	return true
}

func (m *mockSession) getEvents() []reportedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]reportedEvent(nil), m.events...)
}

// --- Helpers ---

func newTestServer(t *testing.T, sess sessionService, checks ...HealthCheck) *Server {
	t.Helper()
	return NewServer("0", sess, prometheus.NewRegistry(), checks)
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = testRemoteAddr
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
