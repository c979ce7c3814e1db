package models

import "time"

// Delivery channels recorded on an outcome.
const (
	ChannelPush     = "push"
	ChannelFallback = "fallback_store"
)

// Content is the composed notification for one alert. Exactly one Content is
// built per alert and reused for every recipient; only the delivery target
// (and, for authorities, the distance annotation) varies.
type Content struct {
	AlertType  string            `json:"alert_type"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Priority   string            `json:"priority"`
	ChannelID  string            `json:"channel_id"`
	Sound      string            `json:"sound"`
	TTLSeconds int               `json:"ttl_seconds"`
	Data       map[string]string `json:"data"`
}

// DeliveryOutcome records the result of one (recipient, device token) send.
// Never mutated after creation.
type DeliveryOutcome struct {
	RecipientID   string `json:"recipient_id"`
	RecipientName string `json:"recipient,omitempty"`
	Channel       string `json:"channel"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

// DispatchSummary aggregates per-recipient outcomes for the response body.
type DispatchSummary struct {
	Sent    int               `json:"sent"`
	Failed  int               `json:"failed"`
	Total   int               `json:"total"`
	Results []DeliveryOutcome `json:"results"`
}

// FallbackNotification is the durable row written when a push send fails, so
// the client's live subscription can still surface the alert.
type FallbackNotification struct {
	ID          string            `json:"id"`
	RecipientID string            `json:"recipient_id"`
	SubjectID   string            `json:"subject_id"`
	AlertID     string            `json:"alert_id"`
	AlertType   string            `json:"alert_type"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data"`
	CreatedAt   time.Time         `json:"created_at"`
}
