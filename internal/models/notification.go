// internal/models/notification.go
package models

// OwnerNotification records one attempt to tell the site owner about an inquiry.
type OwnerNotification struct {
	ID       string   `json:"id"`
	Channels []string `json:"channels"` // "email", "sms"
	Status   string   `json:"status"`   // "sent", "partial", "failed", "disabled"
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	SentAt   string   `json:"sentAt"`
}
