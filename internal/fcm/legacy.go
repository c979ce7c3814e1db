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

const defaultLegacySendURL = "https://fcm.googleapis.com/fcm/send"

// LegacyTransport sends through the deprecated key-based FCM API. Kept as a
// configuration escape hatch for projects still on a server key.
type LegacyTransport struct {
	serverKey string
	sendURL   string
	client    *http.Client
}

func NewLegacyTransport(serverKey string, client *http.Client) *LegacyTransport {
	return &LegacyTransport{serverKey: serverKey, sendURL: defaultLegacySendURL, client: client}
}

type legacyMessage struct {
	To           string             `json:"to"`
	Priority     string             `json:"priority"`
	TimeToLive   int                `json:"time_to_live"`
	Notification legacyNotification `json:"notification"`
	Data         map[string]string  `json:"data,omitempty"`
	Android      v1Android          `json:"android"`
	APNS         v1APNS             `json:"apns"`
}

type legacyNotification struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	Sound       string `json:"sound"`
	Badge       string `json:"badge"`
	ClickAction string `json:"click_action"`
}

// Send posts one legacy-format message authorized by the server key.
func (t *LegacyTransport) Send(ctx context.Context, _ AccessCredential, deviceToken string, content models.Content) error {
	msg := legacyMessage{
		To:         deviceToken,
		Priority:   content.Priority,
		TimeToLive: content.TTLSeconds,
		Notification: legacyNotification{
			Title:       content.Title,
			Body:        content.Body,
			Sound:       content.Sound,
			Badge:       "1",
			ClickAction: content.Data["click_action"],
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

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal legacy fcm message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.sendURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build legacy fcm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+t.serverKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("legacy fcm send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return statusError("legacy fcm API", resp.StatusCode, body)
	}
	return nil
}
