package fcm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jussrz/SOSit/internal/config"
	"github.com/jussrz/SOSit/internal/models"
)

// Transport delivers one composed notification to a single device token.
// Implementations wrap the two generations of the FCM send API.
type Transport interface {
	Send(ctx context.Context, cred AccessCredential, deviceToken string, content models.Content) error
}

// TokenSource yields the bearer credential a Transport expects, if any.
type TokenSource interface {
	AcquireToken(ctx context.Context) (AccessCredential, error)
}

// Setup builds the transport and its token source from configuration.
func Setup(cfg config.Config) (Transport, TokenSource, error) {
	client := &http.Client{Timeout: cfg.Dispatch.SendTimeout}

	switch cfg.Firebase.Transport {
	case "legacy":
		return NewLegacyTransport(cfg.Firebase.LegacyServerKey, client), StaticSource{}, nil
	default:
		broker, err := NewBroker(cfg.Firebase.ServiceAccountJSON, &http.Client{Timeout: 15 * time.Second})
		if err != nil {
			return nil, nil, err
		}
		return NewV1Transport(cfg.Firebase.ProjectID, client), broker, nil
	}
}

// interruptionLevel maps the alert type to the APNs interruption level.
func interruptionLevel(alertType string) string {
	if alertType == models.AlertCritical {
		return "critical"
	}
	return "active"
}

// androidNotificationPriority maps the alert type to the Android notification
// priority enum.
func androidNotificationPriority(alertType string) string {
	if alertType == models.AlertCritical {
		return "PRIORITY_MAX"
	}
	return "PRIORITY_HIGH"
}

func statusError(api string, status int, body []byte) error {
	msg := string(body)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return fmt.Errorf("%s returned status %d: %s", api, status, msg)
}
