package notify

// Channel represents a notification delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// IsValid checks whether the channel is one the core can deliver on.
func (c Channel) IsValid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// NotificationType identifies the business event behind a notification.
type NotificationType string

const (
	TypeBookingConfirmation NotificationType = "booking_confirmation"
	TypeBookingReminder     NotificationType = "booking_reminder"
	TypeBookingCancelled    NotificationType = "booking_cancelled"
	TypeBookingRescheduled  NotificationType = "booking_rescheduled"
	TypePickupReady         NotificationType = "pickup_ready"
	TypeCustomerWelcome     NotificationType = "customer_welcome"
	TypeVaccinationExpiry   NotificationType = "vaccination_expiry"
)

// validTypes is the set of all recognized notification types.
var validTypes = map[NotificationType]bool{
	TypeBookingConfirmation: true,
	TypeBookingReminder:     true,
	TypeBookingCancelled:    true,
	TypeBookingRescheduled:  true,
	TypePickupReady:         true,
	TypeCustomerWelcome:     true,
	TypeVaccinationExpiry:   true,
}

// IsValidType checks whether a notification type is recognized.
func IsValidType(t NotificationType) bool {
	return validTypes[t]
}

// NotificationMessage is a single send request, constructed per attempt by
// the caller (booking event, admin test action) or rebuilt from the delivery
// log by the retry scheduler.
type NotificationMessage struct {
	Type         NotificationType  `json:"type"`
	Channel      Channel           `json:"channel"`
	Recipient    string            `json:"recipient"`
	CustomerID   string            `json:"customer_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	IsTest       bool              `json:"is_test,omitempty"`
}

// SendResult is the outcome of one delivery attempt. Send never returns an
// error value; every failure is captured here and in the delivery log.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	LogID     string `json:"log_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Message is the fully-rendered content handed to a channel provider.
// Email providers read Subject/HTML/Text, SMS providers read Body.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
	Body    string
}
