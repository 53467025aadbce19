package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/pxsession/internal/domain"
	apperrors "github.com/pscheid92/pxsession/internal/errors"
	"github.com/pscheid92/pxsession/internal/session"
)

func (s *Server) registerSessionRoutes(g *echo.Group) {
	g.GET("/session", s.handleGetSession)
	g.POST("/initialize", s.handleInitialize)
	g.POST("/activate", s.handleActivate)
	g.POST("/deactivate", s.handleDeactivate)

	g.PUT("/transport-token", s.handleSetTransportToken)
	g.PUT("/tags", s.handleSetTags)
	g.PUT("/permission", s.handleSetPermission)

	g.POST("/lifecycle/:state", s.handleLifecycle)
	g.POST("/events/notification", s.handleNotificationEvent)
	g.POST("/notifications/received", s.handleNotificationReceived)
	g.POST("/notifications/clicked", s.handleNotificationClicked)
}

type sessionView struct {
	State             string            `json:"state"`
	AppID             string            `json:"app_id"`
	ICToken           string            `json:"ic_token"`
	ICID              string            `json:"ic_id"`
	ExtID             string            `json:"ext_id"`
	TransportType     string            `json:"transport_type"`
	HasTransportToken bool              `json:"has_transport_token"`
	Tags              map[string]string `json:"tags"`
	UpdateIntervalSec int               `json:"update_interval_sec"`
	Lifecycle         string            `json:"lifecycle"`
	NotifPermission   bool              `json:"notif_perm_granted"`
	OnscreenCount     int64             `json:"onscreen_count"`
	OnscreenSec       int64             `json:"onscreen_sec"`
}

func newSessionView(snap session.Snapshot) sessionView {
	return sessionView{
		State:             snap.State.String(),
		AppID:             snap.AppID,
		ICToken:           snap.ICToken,
		ICID:              snap.ICID,
		ExtID:             snap.ExtID,
		TransportType:     string(snap.TransportType),
		HasTransportToken: snap.TransportToken != "",
		Tags:              snap.Tags,
		UpdateIntervalSec: snap.UpdateIntervalSec,
		Lifecycle:         string(snap.Lifecycle),
		NotifPermission:   snap.NotifPermission,
		OnscreenCount:     snap.Presence.Count,
		OnscreenSec:       snap.Presence.Seconds,
	}
}

func (s *Server) respondSession(c echo.Context, status int) error {
	if err := c.JSON(status, newSessionView(s.session.Snapshot())); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetSession(c echo.Context) error {
	return s.respondSession(c, http.StatusOK)
}

type initializeRequest struct {
	AppID string `json:"app_id"`
}

func (s *Server) handleInitialize(c echo.Context) error {
	var req initializeRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	if err := s.session.Initialize(req.AppID); err != nil {
		if errors.Is(err, session.ErrInvalidAppID) {
			return apperrors.ValidationError("app_id is required")
		}
		return err
	}
	return s.respondSession(c, http.StatusOK)
}

type activateRequest struct {
	ExtID string `json:"ext_id"`
	Force bool   `json:"force"`
}

// handleActivate answers 202: registration completes in the background.
func (s *Server) handleActivate(c echo.Context) error {
	var req activateRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	if err := s.session.Activate(req.ExtID, req.Force); err != nil {
		return err
	}
	return s.respondSession(c, http.StatusAccepted)
}

func (s *Server) handleDeactivate(c echo.Context) error {
	if err := s.session.Deactivate(); err != nil {
		return err
	}
	return s.respondSession(c, http.StatusAccepted)
}

type transportTokenRequest struct {
	Token         string `json:"token"`
	TransportType string `json:"transport_type"`
}

func (s *Server) handleSetTransportToken(c echo.Context) error {
	var req transportTokenRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	if req.TransportType != "" {
		if err := s.session.SetTransportType(domain.TransportType(req.TransportType)); err != nil {
			return apperrors.ValidationError("unknown transport_type").WithField("transport_type", req.TransportType)
		}
	}
	s.session.SetTransportToken(req.Token)
	return s.respondSession(c, http.StatusOK)
}

func (s *Server) handleSetTags(c echo.Context) error {
	var tags map[string]string
	if err := c.Bind(&tags); err != nil {
		return err
	}

	s.session.SetTags(tags)
	return s.respondSession(c, http.StatusOK)
}

type permissionRequest struct {
	Granted bool `json:"granted"`
}

func (s *Server) handleSetPermission(c echo.Context) error {
	var req permissionRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	s.session.SetNotificationsPermission(req.Granted)
	return s.respondSession(c, http.StatusOK)
}

func (s *Server) handleLifecycle(c echo.Context) error {
	state := domain.LifecycleState(c.Param("state"))
	if !state.Valid() {
		return apperrors.ValidationError("unknown lifecycle state").WithField("state", string(state))
	}

	s.session.HandleLifecycle(state)
	return s.respondSession(c, http.StatusOK)
}

type notificationEventRequest struct {
	MsgID string `json:"msg_id"`
	Event string `json:"event"`
}

func (s *Server) handleNotificationEvent(c echo.Context) error {
	var req notificationEventRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	event := domain.NotificationEvent(req.Event)
	if req.MsgID == "" {
		return apperrors.ValidationError("msg_id is required")
	}
	if !event.Valid() {
		return apperrors.ValidationError("event must be delivered or clicked").WithField("event", req.Event)
	}

	s.session.ReportNotificationEvent(req.MsgID, event)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleNotificationReceived(c echo.Context) error {
	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		return err
	}

	n, ok := s.session.HandleNotification(payload)
	if !ok {
		return apperrors.ValidationError("payload is not a push express notification")
	}
	if err := c.JSON(http.StatusAccepted, map[string]string{
		"msg_id": n.MsgID,
		"title":  n.Title,
		"body":   n.Body,
		"image":  n.ImageURL,
	}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleNotificationClicked(c echo.Context) error {
	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		return err
	}

	if !s.session.HandleNotificationClick(payload) {
		return apperrors.ValidationError("payload has no message id")
	}
	return c.NoContent(http.StatusAccepted)
}
