package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jussrz/SOSit/internal/models"
)

// GetPanicAlert fetches a full alert record by id.
func (d *DB) GetPanicAlert(ctx context.Context, alertID string) (models.PanicAlert, error) {
	var a models.PanicAlert
	var status, address *string

	query := `
        SELECT id, user_id, alert_level, status, timestamp, latitude, longitude, location, battery_level
        FROM panic_alerts
        WHERE id = $1`
	err := d.Pool.QueryRow(ctx, query, alertID).Scan(
		&a.ID, &a.UserID, &a.AlertType, &status, &a.Timestamp,
		&a.Latitude, &a.Longitude, &address, &a.BatteryLevel,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.PanicAlert{}, fmt.Errorf("no panic alert found for id %s", alertID)
		}
		return models.PanicAlert{}, fmt.Errorf("failed to get panic alert %s: %w", alertID, err)
	}

	if status != nil {
		a.Status = *status
	}
	if address != nil {
		a.Address = *address
	}
	if a.AlertType == "" {
		a.AlertType = models.AlertRegular
	}
	return a, nil
}
