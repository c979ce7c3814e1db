package db

import (
	"context"
	"fmt"

	"github.com/jussrz/SOSit/internal/models"
)

// SaveFallbackNotification appends a durable notification row so the client's
// live subscription can surface an alert whose push delivery failed.
// Append-only; re-invocations for the same alert produce additional rows.
func (d *DB) SaveFallbackNotification(ctx context.Context, n models.FallbackNotification) error {
	query := `
        INSERT INTO notifications (
            id, recipient_id, subject_id, alert_id, alert_type,
            title, body, data, created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := d.Pool.Exec(ctx, query,
		n.ID, n.RecipientID, n.SubjectID, n.AlertID, n.AlertType,
		n.Title, n.Body, n.Data, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save fallback notification: %w", err)
	}
	return nil
}

// GetNotificationsByRecipient returns stored notifications for a user, newest
// first.
func (d *DB) GetNotificationsByRecipient(ctx context.Context, recipientID string, limit int) ([]models.FallbackNotification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
        SELECT id, recipient_id, subject_id, alert_id, alert_type, title, body, data, created_at
        FROM notifications
        WHERE recipient_id = $1
        ORDER BY created_at DESC
        LIMIT $2`
	rows, err := d.Pool.Query(ctx, query, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications for %s: %w", recipientID, err)
	}
	defer rows.Close()

	var list []models.FallbackNotification
	for rows.Next() {
		var n models.FallbackNotification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.SubjectID, &n.AlertID, &n.AlertType,
			&n.Title, &n.Body, &n.Data, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notification rows: %w", err)
	}
	return list, nil
}
