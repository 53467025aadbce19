package session

import (
	"log/slog"

	"github.com/pscheid92/pxsession/internal/domain"
)

// Push payload keys set by the server on every notification it sends.
const (
	payloadMsgID = "px.msg_id"
	payloadTitle = "px.title"
	payloadBody  = "px.body"
	payloadImage = "px.image"
)

// Notification is a recognised push payload.
type Notification struct {
	MsgID    string
	Title    string
	Body     string
	ImageURL string
}

// ParseNotification extracts a Notification from a raw push payload. ok is
// false when the payload was not sent by this service.
func ParseNotification(payload map[string]any) (n Notification, ok bool) {
	str := func(key string) (string, bool) {
		v, ok := payload[key].(string)
		return v, ok
	}

	var hasTitle, hasBody bool
	n.MsgID, ok = str(payloadMsgID)
	n.Title, hasTitle = str(payloadTitle)
	n.Body, hasBody = str(payloadBody)
	n.ImageURL, _ = str(payloadImage)
	if !ok || n.MsgID == "" || !hasTitle || !hasBody {
		return Notification{}, false
	}
	return n, true
}

// HandleNotification reports a received push payload as delivered.
func (s *Session) HandleNotification(payload map[string]any) (Notification, bool) {
	n, ok := ParseNotification(payload)
	if !ok {
		slog.Debug("Received unknown notification, not reporting")
		return Notification{}, false
	}
	s.ReportNotificationEvent(n.MsgID, domain.NotificationDelivered)
	return n, true
}

// HandleNotificationClick reports a tapped push payload as clicked. Only the
// message id is required.
func (s *Session) HandleNotificationClick(payload map[string]any) bool {
	msgID, _ := payload[payloadMsgID].(string)
	if msgID == "" {
		slog.Debug("Clicked notification has no message id, not reporting")
		return false
	}
	s.ReportNotificationEvent(msgID, domain.NotificationClicked)
	return true
}
