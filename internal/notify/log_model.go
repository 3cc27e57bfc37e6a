package notify

import "time"

// Status represents the delivery status of a log entry.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// DeliveryLog is one persisted delivery lineage: the original send attempt
// plus all of its retries, tracked in a single row that is updated in place.
//
// Subject and Content hold the rendered text that was actually sent (or
// attempted), never the raw template. RetryAfter is set only while the entry
// is retry-eligible: the last failure was transient and RetryCount is still
// under the configured ceiling.
//
// DeliveredAt, ClickedAt, CampaignID, CampaignSendID, TrackingID and
// CostCents belong to the marketing-analytics side of the platform. The core
// never writes them; its partial updates leave them untouched.
type DeliveryLog struct {
	ID             string            `json:"id"`
	CustomerID     string            `json:"customer_id,omitempty"`
	Type           string            `json:"type"`
	Channel        string            `json:"channel"`
	Recipient      string            `json:"recipient"`
	Subject        string            `json:"subject,omitempty"`
	Content        string            `json:"content"`
	Status         Status            `json:"status"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	SentAt         *time.Time        `json:"sent_at,omitempty"`
	DeliveredAt    *time.Time        `json:"delivered_at,omitempty"`
	ClickedAt      *time.Time        `json:"clicked_at,omitempty"`
	CampaignID     string            `json:"campaign_id,omitempty"`
	CampaignSendID string            `json:"campaign_send_id,omitempty"`
	TrackingID     string            `json:"tracking_id,omitempty"`
	CostCents      *int              `json:"cost_cents,omitempty"`
	TemplateID     string            `json:"template_id,omitempty"`
	TemplateData   map[string]string `json:"template_data,omitempty"`
	RetryCount     int               `json:"retry_count"`
	RetryAfter     *time.Time        `json:"retry_after,omitempty"`
	IsTest         bool              `json:"is_test"`
	MessageID      string            `json:"message_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Message rebuilds the send request this lineage originated from, so a
// retry re-enters the same send path with the same inputs.
func (l *DeliveryLog) Message() *NotificationMessage {
	return &NotificationMessage{
		Type:         NotificationType(l.Type),
		Channel:      Channel(l.Channel),
		Recipient:    l.Recipient,
		CustomerID:   l.CustomerID,
		TemplateData: l.TemplateData,
		IsTest:       l.IsTest,
	}
}

// ListFilter defines pagination and filtering options for delivery log queries.
type ListFilter struct {
	Page       int
	PageSize   int
	Status     string
	Recipient  string
	Channel    string
	CustomerID string
}
