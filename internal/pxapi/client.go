package pxapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pscheid92/pxsession/internal/domain"
)

// Client issues instance and event calls for one API base.
type Client struct {
	req domain.Requester
}

func NewClient(req domain.Requester) *Client {
	return &Client{req: req}
}

type instanceRequest struct {
	ICToken string `json:"ic_token"`
	ExtID   string `json:"ext_id"`
}

type instanceResponse struct {
	ID *string `json:"id"`
}

// InstanceInfo is the full device/session snapshot sent on every update.
type InstanceInfo struct {
	TransportType   domain.TransportType `json:"transport_type"`
	TransportToken  string               `json:"transport_token"`
	PlatformType    string               `json:"platform_type"`
	PlatformName    string               `json:"platform_name"`
	AgentName       string               `json:"agent_name"`
	ExtID           string               `json:"ext_id"`
	Lang            string               `json:"lang"`
	Country         string               `json:"country"`
	TimezoneSec     int                  `json:"tz_sec"`
	TimezoneName    string               `json:"tz_name"`
	OnscreenCount   int64                `json:"onscreen_count"`
	OnscreenSec     int64                `json:"onscreen_sec"`
	OnscreenStartTs int64                `json:"onscreen_start_ts"`
	OnscreenStopTs  int64                `json:"onscreen_stop_ts"`
	NotifPermission bool                 `json:"notif_perm_granted"`
	Tags            map[string]string    `json:"tags"`
}

// MaxUpdateIntervalSec is the longest update interval a server response may request.
const MaxUpdateIntervalSec = 24 * 60 * 60

type updateResponse struct {
	UpdateIntervalSec *float64 `json:"update_interval_sec"`
}

type notificationEventRequest struct {
	MsgID string                   `json:"msg_id"`
	Event domain.NotificationEvent `json:"event"`
}

type lifecycleEventRequest struct {
	Event domain.LifecycleState `json:"event"`
}

func instancesPath(appID string) string {
	return "/apps/" + url.PathEscape(appID) + "/instances"
}

func instancePath(appID, icID string) string {
	return instancesPath(appID) + "/" + url.PathEscape(icID)
}

// CreateInstance creates the instance for icToken, or returns the existing one.
func (c *Client) CreateInstance(ctx context.Context, appID, icToken, extID string) (string, error) {
	body, err := c.req.Do(ctx, domain.Request{
		Method: http.MethodPost,
		Path:   instancesPath(appID),
		Body:   instanceRequest{ICToken: icToken, ExtID: extID},
	})
	if err != nil {
		return "", fmt.Errorf("create instance: %w", err)
	}
	return decodeID(body, "create instance")
}

// UpdateInstance sends the info snapshot and returns the server-requested update interval in seconds.
func (c *Client) UpdateInstance(ctx context.Context, appID, icID string, info InstanceInfo) (int, error) {
	body, err := c.req.Do(ctx, domain.Request{
		Method: http.MethodPut,
		Path:   instancePath(appID, icID) + "/info",
		Body:   info,
	})
	if err != nil {
		return 0, fmt.Errorf("update instance: %w", err)
	}

	var resp updateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("update instance: %w: %v", domain.ErrDecode, err)
	}
	if resp.UpdateIntervalSec == nil || *resp.UpdateIntervalSec < 1 || *resp.UpdateIntervalSec > MaxUpdateIntervalSec {
		return 0, fmt.Errorf("update instance: %w: missing or out of range update_interval_sec", domain.ErrDecode)
	}
	return int(*resp.UpdateIntervalSec), nil
}

// DeactivateInstance deactivates icID and returns the confirmed instance id.
func (c *Client) DeactivateInstance(ctx context.Context, appID, icID, icToken, extID string) (string, error) {
	body, err := c.req.Do(ctx, domain.Request{
		Method: http.MethodPost,
		Path:   instancePath(appID, icID) + "/deactivate",
		Body:   instanceRequest{ICToken: icToken, ExtID: extID},
	})
	if err != nil {
		return "", fmt.Errorf("deactivate instance: %w", err)
	}
	return decodeID(body, "deactivate instance")
}

func (c *Client) SendNotificationEvent(ctx context.Context, appID, icID, msgID string, event domain.NotificationEvent) error {
	_, err := c.req.Do(ctx, domain.Request{
		Method: http.MethodPost,
		Path:   instancePath(appID, icID) + "/events/notification",
		Body:   notificationEventRequest{MsgID: msgID, Event: event},
	})
	if err != nil {
		return fmt.Errorf("send notification event: %w", err)
	}
	return nil
}

func (c *Client) SendLifecycleEvent(ctx context.Context, appID, icID string, event domain.LifecycleState) error {
	_, err := c.req.Do(ctx, domain.Request{
		Method: http.MethodPost,
		Path:   instancePath(appID, icID) + "/events/lifecycle",
		Body:   lifecycleEventRequest{Event: event},
	})
	if err != nil {
		return fmt.Errorf("send lifecycle event: %w", err)
	}
	return nil
}

func decodeID(body []byte, op string) (string, error) {
	var resp instanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, domain.ErrDecode, err)
	}
	if resp.ID == nil || *resp.ID == "" {
		return "", fmt.Errorf("%s: %w: missing id", op, domain.ErrDecode)
	}
	return *resp.ID, nil
}
