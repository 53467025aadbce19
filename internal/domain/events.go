package domain

// NotificationEvent is the kind of a notification event report.
type NotificationEvent string

const (
	NotificationDelivered NotificationEvent = "delivered"
	NotificationClicked   NotificationEvent = "clicked"
)

func (e NotificationEvent) Valid() bool {
	return e == NotificationDelivered || e == NotificationClicked
}

// TransportType identifies the push transport the token belongs to.
type TransportType string

const (
	TransportFCM       TransportType = "fcm"
	TransportFCMData   TransportType = "fcm.data"
	TransportOneSignal TransportType = "onesignal"
	TransportAPNS      TransportType = "apns"
)

func (t TransportType) Valid() bool {
	switch t {
	case TransportFCM, TransportFCMData, TransportOneSignal, TransportAPNS:
		return true
	}
	return false
}
