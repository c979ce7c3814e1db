package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jussrz/SOSit/internal/models"
)

const defaultV1BaseURL = "https://fcm.googleapis.com"

// V1Transport sends through the FCM HTTP v1 API using an OAuth2 bearer token
// from the credential broker.
type V1Transport struct {
	projectID string
	baseURL   string
	client    *http.Client
}

func NewV1Transport(projectID string, client *http.Client) *V1Transport {
	return &V1Transport{projectID: projectID, baseURL: defaultV1BaseURL, client: client}
}

type v1Envelope struct {
	Message v1Message `json:"message"`
}

type v1Message struct {
	Token        string            `json:"token"`
	Notification v1Notification    `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      v1Android         `json:"android"`
	APNS         v1APNS            `json:"apns"`
}

type v1Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type v1Android struct {
	Priority     string                `json:"priority"`
	TTL          string                `json:"ttl,omitempty"`
	Notification v1AndroidNotification `json:"notification"`
}

type v1AndroidNotification struct {
	ChannelID             string `json:"channel_id"`
	Sound                 string `json:"sound"`
	NotificationPriority  string `json:"notification_priority"`
	DefaultVibrateTimings bool   `json:"default_vibrate_timings,omitempty"`
}

type v1APNS struct {
	Payload v1APNSPayload `json:"payload"`
}

type v1APNSPayload struct {
	APS v1APS `json:"aps"`
}

type v1APS struct {
	Sound             string `json:"sound"`
	Badge             int    `json:"badge"`
	InterruptionLevel string `json:"interruption-level"`
}

// Send posts one message envelope to the per-message send endpoint.
func (t *V1Transport) Send(ctx context.Context, cred AccessCredential, deviceToken string, content models.Content) error {
	msg := v1Message{
		Token: deviceToken,
		Notification: v1Notification{
			Title: content.Title,
			Body:  content.Body,
		},
		Data: content.Data,
		Android: v1Android{
			Priority: content.Priority,
			Notification: v1AndroidNotification{
				ChannelID:             content.ChannelID,
				Sound:                 content.Sound,
				NotificationPriority:  androidNotificationPriority(content.AlertType),
				DefaultVibrateTimings: content.AlertType == models.AlertCritical,
			},
		},
		APNS: v1APNS{
			Payload: v1APNSPayload{
				APS: v1APS{
					Sound:             content.Sound,
					Badge:             1,
					InterruptionLevel: interruptionLevel(content.AlertType),
				},
			},
		},
	}
	if content.TTLSeconds > 0 {
		msg.Android.TTL = fmt.Sprintf("%ds", content.TTLSeconds)
	}

	payload, err := json.Marshal(v1Envelope{Message: msg})
	if err != nil {
		return fmt.Errorf("marshal fcm v1 message: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", t.baseURL, t.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build fcm v1 request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.Token)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("fcm v1 send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return statusError("fcm v1 API", resp.StatusCode, body)
	}
	return nil
}
