// Package alerts orchestrates one alert-handling invocation: resolve the
// recipients, compose the notification once, acquire a push credential, fan
// the deliveries out, and aggregate the outcomes.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jussrz/SOSit/internal/compose"
	"github.com/jussrz/SOSit/internal/fcm"
	"github.com/jussrz/SOSit/internal/geo"
	"github.com/jussrz/SOSit/internal/metrics"
	"github.com/jussrz/SOSit/internal/models"
)

// ErrResolution means a data-store read failed while resolving the subject or
// the recipient set. Fatal for the invocation.
var ErrResolution = errors.New("alerts: recipient resolution failed")

// Store is the read/write surface the service needs from the data store.
type Store interface {
	GetSubjectProfile(ctx context.Context, userID string) (models.SubjectProfile, error)
	GetGuardianRecipients(ctx context.Context, subjectID string) ([]models.Recipient, error)
	GetAuthorityCandidates(ctx context.Context) ([]models.AuthorityCandidate, error)
	GetParentNames(ctx context.Context, subjectID string) (string, error)
	GetPanicAlert(ctx context.Context, alertID string) (models.PanicAlert, error)
}

// Dispatcher fans one composed notification out to all recipients.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert models.PanicAlert, content models.Content, recipients []models.Recipient, cred fcm.AccessCredential) models.DispatchSummary
}

// Service implements the guardian and authority notification flows.
type Service struct {
	store      Store
	tokens     fcm.TokenSource
	dispatcher Dispatcher
	logger     *logrus.Logger
	radiusKm   float64
	opsNotify  func(msg string) // optional operator paging hook
}

func New(store Store, tokens fcm.TokenSource, dispatcher Dispatcher, logger *logrus.Logger, radiusKm float64) *Service {
	if radiusKm <= 0 {
		radiusKm = 5.0
	}
	return &Service{
		store:      store,
		tokens:     tokens,
		dispatcher: dispatcher,
		logger:     logger,
		radiusKm:   radiusKm,
	}
}

// SetOpsNotifier installs a hook paged on invocation-fatal credential or
// configuration failures.
func (s *Service) SetOpsNotifier(fn func(msg string)) { s.opsNotify = fn }

// NotifyGuardians notifies every guardian of the alert's subject.
func (s *Service) NotifyGuardians(ctx context.Context, alert models.PanicAlert) (models.DispatchSummary, error) {
	metrics.AlertsProcessed.WithLabelValues("guardians", alert.AlertType).Inc()
	started := time.Now()
	defer func() { metrics.DispatchDuration.Observe(time.Since(started).Seconds()) }()

	subject, err := s.store.GetSubjectProfile(ctx, alert.UserID)
	if err != nil {
		return models.DispatchSummary{}, fmt.Errorf("%w: subject %s: %v", ErrResolution, alert.UserID, err)
	}

	guardians, err := s.store.GetGuardianRecipients(ctx, alert.UserID)
	if err != nil {
		return models.DispatchSummary{}, fmt.Errorf("%w: guardians of %s: %v", ErrResolution, alert.UserID, err)
	}

	recipients := withTokens(guardians)
	if len(recipients) == 0 {
		s.logger.Warnf("No guardian devices registered for subject %s, nothing to send", alert.UserID)
		return models.DispatchSummary{Results: []models.DeliveryOutcome{}}, nil
	}

	content := compose.Compose(alert, subject)
	// Flow marker the client routes payloads on.
	content.Data["type"] = "parent_alert"
	return s.deliver(ctx, alert, content, recipients)
}

// NotifyAuthorities loads the alert by id and notifies authority users within
// the configured radius of the incident.
func (s *Service) NotifyAuthorities(ctx context.Context, alertID string) (models.DispatchSummary, error) {
	alert, err := s.store.GetPanicAlert(ctx, alertID)
	if err != nil {
		return models.DispatchSummary{}, fmt.Errorf("%w: alert %s: %v", ErrResolution, alertID, err)
	}

	metrics.AlertsProcessed.WithLabelValues("authorities", alert.AlertType).Inc()
	started := time.Now()
	defer func() { metrics.DispatchDuration.Observe(time.Since(started).Seconds()) }()

	if !alert.HasCoordinates() {
		s.logger.Warnf("Alert %s has no coordinates, skipping authority notification", alertID)
		return models.DispatchSummary{Results: []models.DeliveryOutcome{}}, nil
	}

	subject, err := s.store.GetSubjectProfile(ctx, alert.UserID)
	if err != nil {
		return models.DispatchSummary{}, fmt.Errorf("%w: subject %s: %v", ErrResolution, alert.UserID, err)
	}

	candidates, err := s.store.GetAuthorityCandidates(ctx)
	if err != nil {
		return models.DispatchSummary{}, fmt.Errorf("%w: authority candidates: %v", ErrResolution, err)
	}

	recipients := s.nearbyAuthorities(candidates, *alert.Latitude, *alert.Longitude)
	if len(recipients) == 0 {
		s.logger.Infof("No authority devices within %.1f km of alert %s", s.radiusKm, alertID)
		return models.DispatchSummary{Results: []models.DeliveryOutcome{}}, nil
	}

	content := compose.Compose(alert, subject)
	content.Data["type"] = "station_alert"
	// Guardian names help the responding officer reach the family.
	if parents, perr := s.store.GetParentNames(ctx, alert.UserID); perr != nil {
		s.logger.Warnf("Could not fetch parent names for %s: %v", alert.UserID, perr)
	} else if parents != "" {
		content.Data["parent_names"] = parents
	}

	return s.deliver(ctx, alert, content, recipients)
}

// nearbyAuthorities geofences the candidate set. Candidates with no last-known
// position are never included; inclusion at exactly the radius boundary is.
func (s *Service) nearbyAuthorities(candidates []models.AuthorityCandidate, lat, lon float64) []models.Recipient {
	var recipients []models.Recipient
	for _, c := range candidates {
		if c.Latitude == nil || c.Longitude == nil {
			continue
		}
		d := geo.HaversineKm(lat, lon, *c.Latitude, *c.Longitude)
		if d > s.radiusKm {
			continue
		}
		if len(c.Tokens) == 0 {
			s.logger.Debugf("Authority %s is %.1f km away but has no device tokens", c.ID, d)
			continue
		}
		dist := d
		recipients = append(recipients, models.Recipient{
			ID:         c.ID,
			Name:       c.Name,
			Kind:       models.KindAuthority,
			Role:       c.Role,
			Tokens:     c.Tokens,
			DistanceKm: &dist,
		})
	}
	return recipients
}

func (s *Service) deliver(ctx context.Context, alert models.PanicAlert, content models.Content, recipients []models.Recipient) (models.DispatchSummary, error) {
	cred, err := s.tokens.AcquireToken(ctx)
	if err != nil {
		s.page(fmt.Sprintf("SOSit alert %s: push credential acquisition failed: %v", alert.ID, err))
		return models.DispatchSummary{}, err
	}

	summary := s.dispatcher.Dispatch(ctx, alert, content, recipients, cred)
	s.logger.Infof("Alert %s dispatched: %d sent, %d failed of %d", alert.ID, summary.Sent, summary.Failed, summary.Total)
	return summary, nil
}

func (s *Service) page(msg string) {
	if s.opsNotify == nil {
		return
	}
	s.opsNotify(msg)
}

// withTokens filters out recipients with no registered device.
func withTokens(recipients []models.Recipient) []models.Recipient {
	var out []models.Recipient
	for _, r := range recipients {
		if len(r.Tokens) > 0 {
			out = append(out, r)
		}
	}
	return out
}
