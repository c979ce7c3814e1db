package models

import "time"

// Alert levels raised by the mobile client.
const (
	AlertCritical = "CRITICAL"
	AlertRegular  = "REGULAR"
	AlertCancel   = "CANCEL"
)

// PanicAlert is an emergency event raised by a subject user. It is produced by
// the alert-creation flow and consumed read-only here.
type PanicAlert struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	AlertType    string    `json:"alert_type"`
	Status       string    `json:"status,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	Address      string    `json:"address,omitempty"`
	BatteryLevel *int      `json:"battery_level,omitempty"`
}

// HasCoordinates reports whether the alert carries a usable incident location.
func (a PanicAlert) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// SubjectProfile is the resolved identity of the alert's subject, fetched once
// per alert.
type SubjectProfile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	BatteryLevel int    `json:"battery_level,omitempty"`
}
