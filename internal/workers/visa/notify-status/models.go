// internal/workers/visa/notify-status/models.go
package notifystatus

type Input struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"notificationStatus"` // "sent", "disabled"
	EmailID        string `json:"emailMessageId,omitempty"`
	SMSID          string `json:"smsMessageId,omitempty"`
	SentAt         string `json:"sentAt"` // ISO 8601
}

// Statuses
const (
	StatusSent     = "sent"
	StatusDisabled = "disabled"
)
