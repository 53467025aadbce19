// Package httpserver is the local control and observability surface of the
// host daemon.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/pxsession/internal/adapter/metrics"
	"github.com/pscheid92/pxsession/internal/domain"
	"github.com/pscheid92/pxsession/internal/session"
)

// sessionService is the part of *session.Session the control API drives.
type sessionService interface {
	Initialize(appID string) error
	Activate(extID string, force bool) error
	Deactivate() error
	SetTransportToken(token string)
	SetTransportType(t domain.TransportType) error
	SetTags(tags map[string]string)
	SetNotificationsPermission(granted bool)
	Snapshot() session.Snapshot
	HandleLifecycle(to domain.LifecycleState)
	ReportNotificationEvent(msgID string, event domain.NotificationEvent)
	HandleNotification(payload map[string]any) (session.Notification, bool)
	HandleNotificationClick(payload map[string]any) bool
}

type Server struct {
	echo *echo.Echo
	port string

	session      sessionService
	registry     *prometheus.Registry
	httpMetrics  *metrics.HTTPMetrics
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(port string, sess sessionService, reg *prometheus.Registry, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		port:         port,
		session:      sess,
		registry:     reg,
		httpMetrics:  metrics.NewHTTPMetrics(reg),
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting control server", "port", s.port)
	if err := s.echo.Start(":" + s.port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router, mainly for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
