package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jussrz/SOSit/internal/models"
)

// GetSubjectProfile fetches the alert subject's identity.
func (d *DB) GetSubjectProfile(ctx context.Context, userID string) (models.SubjectProfile, error) {
	var p models.SubjectProfile
	var firstName, lastName, email, phone *string
	var battery *int

	query := `
        SELECT id, first_name, last_name, email, phone, battery_level
        FROM "user"
        WHERE id = $1`
	err := d.Pool.QueryRow(ctx, query, userID).Scan(&p.ID, &firstName, &lastName, &email, &phone, &battery)
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.SubjectProfile{}, fmt.Errorf("no user found for id %s", userID)
		}
		return models.SubjectProfile{}, fmt.Errorf("failed to get subject profile for %s: %w", userID, err)
	}

	p.Name = joinName(firstName, lastName)
	if email != nil {
		p.Email = *email
	}
	if phone != nil {
		p.Phone = *phone
	}
	if battery != nil {
		p.BatteryLevel = *battery
	}
	return p, nil
}

// GetGuardianRecipients returns the subject's guardians with their registered
// device tokens. Guardians without any token still appear, with an empty
// token list.
func (d *DB) GetGuardianRecipients(ctx context.Context, subjectID string) ([]models.Recipient, error) {
	query := `
        SELECT u.id, u.first_name, u.last_name, u.platform, t.fcm_token
        FROM guardian_links gl
        JOIN "user" u ON u.id = gl.guardian_user_id
        LEFT JOIN user_fcm_tokens t ON t.user_id = u.id
        WHERE gl.child_user_id = $1
        ORDER BY u.id`
	rows, err := d.Pool.Query(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guardians for %s: %w", subjectID, err)
	}
	defer rows.Close()

	var list []models.Recipient
	index := map[string]int{}
	for rows.Next() {
		var id string
		var firstName, lastName, platform, token *string
		if err := rows.Scan(&id, &firstName, &lastName, &platform, &token); err != nil {
			return nil, fmt.Errorf("failed to scan guardian row: %w", err)
		}

		i, seen := index[id]
		if !seen {
			rec := models.Recipient{ID: id, Name: joinName(firstName, lastName), Kind: models.KindGuardian}
			if platform != nil {
				rec.Platform = *platform
			}
			list = append(list, rec)
			i = len(list) - 1
			index[id] = i
		}
		if token != nil && *token != "" {
			list[i].Tokens = append(list[i].Tokens, *token)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read guardian rows: %w", err)
	}
	return list, nil
}

// GetAuthorityCandidates returns every police/tanod account with its
// last-known position and device tokens. Geofencing happens in the caller.
func (d *DB) GetAuthorityCandidates(ctx context.Context) ([]models.AuthorityCandidate, error) {
	query := `
        SELECT u.id, u.first_name, u.last_name, u.role, u.current_latitude, u.current_longitude, t.fcm_token
        FROM "user" u
        LEFT JOIN user_fcm_tokens t ON t.user_id = u.id
        WHERE u.role IN ('police', 'tanod')
        ORDER BY u.id`
	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get authority candidates: %w", err)
	}
	defer rows.Close()

	var list []models.AuthorityCandidate
	index := map[string]int{}
	for rows.Next() {
		var id, role string
		var firstName, lastName, token *string
		var lat, lon *float64
		if err := rows.Scan(&id, &firstName, &lastName, &role, &lat, &lon, &token); err != nil {
			return nil, fmt.Errorf("failed to scan authority row: %w", err)
		}

		i, seen := index[id]
		if !seen {
			list = append(list, models.AuthorityCandidate{
				ID:        id,
				Name:      joinName(firstName, lastName),
				Role:      role,
				Latitude:  lat,
				Longitude: lon,
			})
			i = len(list) - 1
			index[id] = i
		}
		if token != nil && *token != "" {
			list[i].Tokens = append(list[i].Tokens, *token)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read authority rows: %w", err)
	}
	return list, nil
}

// GetParentNames returns a display string of the subject's guardians for the
// authority-side modal.
func (d *DB) GetParentNames(ctx context.Context, subjectID string) (string, error) {
	var names *string
	query := `
        SELECT string_agg(trim(concat(u.first_name, ' ', u.last_name)), ', ')
        FROM guardian_links gl
        JOIN "user" u ON u.id = gl.guardian_user_id
        WHERE gl.child_user_id = $1`
	if err := d.Pool.QueryRow(ctx, query, subjectID).Scan(&names); err != nil {
		return "", fmt.Errorf("failed to get parent names for %s: %w", subjectID, err)
	}
	if names == nil {
		return "", nil
	}
	return *names, nil
}

func joinName(first, last *string) string {
	var name string
	if first != nil {
		name = *first
	}
	if last != nil && *last != "" {
		if name != "" {
			name += " "
		}
		name += *last
	}
	return name
}
