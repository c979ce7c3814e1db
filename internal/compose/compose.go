// Package compose maps an alert's type and payload to the notification content
// delivered to every recipient of that alert.
package compose

import (
	"fmt"
	"strconv"

	"github.com/jussrz/SOSit/internal/models"
)

const (
	fallbackAddress = "Location updating..."
	clickAction     = "FLUTTER_NOTIFICATION_CLICK"
)

// Compose builds the single notification content value for an alert. The
// returned content is shared across all recipients of the alert; per-recipient
// distance annotation is layered on with WithDistance.
func Compose(alert models.PanicAlert, subject models.SubjectProfile) models.Content {
	date := alert.Timestamp.Format("Jan 2, 2006")
	clock := alert.Timestamp.Format("3:04 PM")

	address := alert.Address
	if address == "" {
		address = fallbackAddress
	}

	var c models.Content
	c.AlertType = alert.AlertType
	switch alert.AlertType {
	case models.AlertCritical:
		c.Title = fmt.Sprintf("🚨 CRITICAL: %s Needs Help!", subject.Name)
		c.Body = fmt.Sprintf("%s at %s\n%s", date, clock, address)
		c.Priority = "high"
		c.TTLSeconds = 0 // no expiry
		c.Sound = "emergency_alert"
		c.ChannelID = "critical_alerts"
	case models.AlertRegular:
		c.Title = fmt.Sprintf("⚠️ Alert: %s Pressed Panic Button", subject.Name)
		c.Body = fmt.Sprintf("%s at %s\n%s", date, clock, address)
		c.Priority = "high"
		c.TTLSeconds = 60
		c.Sound = "default"
		c.ChannelID = "regular_alerts"
	case models.AlertCancel:
		c.Title = fmt.Sprintf("✅ %s Cancelled Alert", subject.Name)
		c.Body = fmt.Sprintf("Emergency cancelled at %s", clock)
		c.Priority = "normal"
		c.TTLSeconds = 120
		c.Sound = "default"
		c.ChannelID = "cancel_alerts"
	default:
		c.Title = fmt.Sprintf("📱 Alert from %s", subject.Name)
		c.Body = fmt.Sprintf("%s at %s", date, clock)
		c.Priority = "normal"
		c.TTLSeconds = 60
		c.Sound = "default"
		c.ChannelID = "regular_alerts"
	}

	status := alert.Status
	if status == "" {
		status = "ACTIVE"
	}

	// Everything a client needs to render or act on the alert without a second
	// fetch. The same map is what ends up in the fallback store.
	c.Data = map[string]string{
		"alert_id":        alert.ID,
		"alert_type":      alert.AlertType,
		"subject_user_id": subject.ID,
		"subject_name":    subject.Name,
		"subject_phone":   subject.Phone,
		"subject_email":   subject.Email,
		"address":         address,
		"timestamp":       alert.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
		"formatted_date":  date,
		"formatted_time":  clock,
		"status":          status,
		"click_action":    clickAction,
	}
	if alert.Latitude != nil {
		c.Data["latitude"] = strconv.FormatFloat(*alert.Latitude, 'f', -1, 64)
	}
	if alert.Longitude != nil {
		c.Data["longitude"] = strconv.FormatFloat(*alert.Longitude, 'f', -1, 64)
	}
	// Battery is always present; the alert's reading wins over the profile's.
	if alert.BatteryLevel != nil {
		c.Data["battery_level"] = strconv.Itoa(*alert.BatteryLevel)
	} else {
		c.Data["battery_level"] = strconv.Itoa(subject.BatteryLevel)
	}

	return c
}

// WithDistance returns a copy of content annotated with how far the recipient
// is from the incident. Used for authority recipients only.
func WithDistance(c models.Content, km float64) models.Content {
	annotated := c
	annotated.Body = fmt.Sprintf("%s\n~%.1f km away", c.Body, km)
	annotated.Data = make(map[string]string, len(c.Data)+1)
	for k, v := range c.Data {
		annotated.Data[k] = v
	}
	annotated.Data["distance_km"] = fmt.Sprintf("%.1f", km)
	return annotated
}
