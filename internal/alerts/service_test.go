package alerts

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jussrz/SOSit/internal/dispatch"
	"github.com/jussrz/SOSit/internal/fcm"
	"github.com/jussrz/SOSit/internal/geo"
	"github.com/jussrz/SOSit/internal/models"
)

type fakeStore struct {
	subject    models.SubjectProfile
	subjectErr error

	guardians    []models.Recipient
	guardiansErr error

	candidates    []models.AuthorityCandidate
	candidatesErr error

	parentNames string

	alert    models.PanicAlert
	alertErr error

	mu   sync.Mutex
	rows []models.FallbackNotification
}

func (f *fakeStore) GetSubjectProfile(context.Context, string) (models.SubjectProfile, error) {
	return f.subject, f.subjectErr
}

func (f *fakeStore) GetGuardianRecipients(context.Context, string) ([]models.Recipient, error) {
	return f.guardians, f.guardiansErr
}

func (f *fakeStore) GetAuthorityCandidates(context.Context) ([]models.AuthorityCandidate, error) {
	return f.candidates, f.candidatesErr
}

func (f *fakeStore) GetParentNames(context.Context, string) (string, error) {
	return f.parentNames, nil
}

func (f *fakeStore) GetPanicAlert(context.Context, string) (models.PanicAlert, error) {
	return f.alert, f.alertErr
}

func (f *fakeStore) SaveFallbackNotification(_ context.Context, n models.FallbackNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, n)
	return nil
}

type fakeTokens struct {
	calls int
	err   error
}

func (f *fakeTokens) AcquireToken(context.Context) (fcm.AccessCredential, error) {
	f.calls++
	if f.err != nil {
		return fcm.AccessCredential{}, f.err
	}
	return fcm.AccessCredential{Token: "tok", Expiry: time.Now().Add(time.Hour)}, nil
}

type fakeTransport struct {
	mu   sync.Mutex
	fail map[string]error
	seen []models.Content
}

func (f *fakeTransport) Send(_ context.Context, _ fcm.AccessCredential, deviceToken string, content models.Content) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, content)
	if err, ok := f.fail[deviceToken]; ok {
		return err
	}
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func ptr(f float64) *float64 { return &f }

func criticalAlert() models.PanicAlert {
	return models.PanicAlert{
		ID:        "alert-1",
		UserID:    "child-1",
		AlertType: models.AlertCritical,
		Timestamp: time.Date(2025, time.March, 7, 14, 30, 0, 0, time.UTC),
		Latitude:  ptr(14.6),
		Longitude: ptr(121.0),
		Address:   "Katipunan Ave",
	}
}

func newService(store *fakeStore, tokens *fakeTokens, transport *fakeTransport) *Service {
	d := dispatch.New(transport, store, quietLogger(), dispatch.Options{MaxConcurrent: 4, RatePerSecond: 1000, SendTimeout: time.Second}, nil)
	return New(store, tokens, d, quietLogger(), 5.0)
}

func TestNotifyGuardians_SingleGuardianDelivered(t *testing.T) {
	store := &fakeStore{
		subject:   models.SubjectProfile{ID: "child-1", Name: "Ana Reyes"},
		guardians: []models.Recipient{{ID: "g1", Name: "Mom", Kind: models.KindGuardian, Tokens: []string{"tok-1"}}},
	}
	tokens := &fakeTokens{}
	transport := &fakeTransport{}

	summary, err := newService(store, tokens, transport).NotifyGuardians(context.Background(), criticalAlert())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, tokens.calls)
	require.Len(t, transport.seen, 1)
	assert.True(t, strings.HasPrefix(transport.seen[0].Title, "🚨 CRITICAL:"))
	assert.Equal(t, "parent_alert", transport.seen[0].Data["type"])
}

func TestNotifyGuardians_ZeroGuardiansSkipsCredentialExchange(t *testing.T) {
	store := &fakeStore{subject: models.SubjectProfile{ID: "child-1", Name: "Ana Reyes"}}
	tokens := &fakeTokens{}

	summary, err := newService(store, tokens, &fakeTransport{}).NotifyGuardians(context.Background(), criticalAlert())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Sent)
	assert.Equal(t, 0, summary.Total)
	assert.Zero(t, tokens.calls)
}

func TestNotifyGuardians_TokenlessGuardiansExcluded(t *testing.T) {
	store := &fakeStore{
		subject: models.SubjectProfile{ID: "child-1", Name: "Ana Reyes"},
		guardians: []models.Recipient{
			{ID: "g1", Name: "Mom", Tokens: nil},
			{ID: "g2", Name: "Dad", Tokens: []string{"tok-2"}},
		},
	}
	tokens := &fakeTokens{}

	summary, err := newService(store, tokens, &fakeTransport{}).NotifyGuardians(context.Background(), criticalAlert())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, "g2", summary.Results[0].RecipientID)
}

func TestNotifyGuardians_ResolutionFailure(t *testing.T) {
	store := &fakeStore{subjectErr: errors.New("connection refused")}

	_, err := newService(store, &fakeTokens{}, &fakeTransport{}).NotifyGuardians(context.Background(), criticalAlert())
	require.ErrorIs(t, err, ErrResolution)
}

func TestNotifyGuardians_CredentialFailurePagesOps(t *testing.T) {
	store := &fakeStore{
		subject:   models.SubjectProfile{ID: "child-1", Name: "Ana Reyes"},
		guardians: []models.Recipient{{ID: "g1", Name: "Mom", Tokens: []string{"tok-1"}}},
	}
	tokens := &fakeTokens{err: fcm.ErrCredential}

	svc := newService(store, tokens, &fakeTransport{})
	var paged []string
	svc.SetOpsNotifier(func(msg string) { paged = append(paged, msg) })

	_, err := svc.NotifyGuardians(context.Background(), criticalAlert())
	require.ErrorIs(t, err, fcm.ErrCredential)
	require.Len(t, paged, 1)
	assert.Contains(t, paged[0], "alert-1")
}

func TestNotifyGuardians_PushFailureFallsBackAndStaysPartial(t *testing.T) {
	store := &fakeStore{
		subject: models.SubjectProfile{ID: "child-1", Name: "Ana Reyes"},
		guardians: []models.Recipient{
			{ID: "g1", Name: "Mom", Tokens: []string{"tok-ok"}},
			{ID: "g2", Name: "Dad", Tokens: []string{"tok-bad"}},
		},
	}
	transport := &fakeTransport{fail: map[string]error{"tok-bad": errors.New("status 404")}}

	summary, err := newService(store, &fakeTokens{}, transport).NotifyGuardians(context.Background(), criticalAlert())
	require.NoError(t, err) // partial failure is not an invocation failure

	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, store.rows, 1)
	assert.Equal(t, "g2", store.rows[0].RecipientID)
	assert.Equal(t, "alert-1", store.rows[0].AlertID)
}

func TestNotifyAuthorities_GeofenceFiltersByRadius(t *testing.T) {
	// Two candidates due north of the incident: ~3.3 km and ~7.8 km.
	store := &fakeStore{
		alert:   criticalAlert(),
		subject: models.SubjectProfile{ID: "child-1", Name: "Ana Reyes"},
		candidates: []models.AuthorityCandidate{
			{ID: "s-near", Name: "Patrol Near", Role: "tanod", Latitude: ptr(14.63), Longitude: ptr(121.0), Tokens: []string{"tok-near"}},
			{ID: "s-far", Name: "Patrol Far", Role: "police", Latitude: ptr(14.67), Longitude: ptr(121.0), Tokens: []string{"tok-far"}},
		},
	}
	transport := &fakeTransport{}

	summary, err := newService(store, &fakeTokens{}, transport).NotifyAuthorities(context.Background(), "alert-1")
	require.NoError(t, err)

	require.Equal(t, 1, summary.Total)
	assert.Equal(t, "s-near", summary.Results[0].RecipientID)
	require.Len(t, transport.seen, 1)
	assert.Contains(t, transport.seen[0].Body, "km away")
	assert.NotEmpty(t, transport.seen[0].Data["distance_km"])
	assert.Equal(t, "station_alert", transport.seen[0].Data["type"])
}

func TestNotifyAuthorities_BoundaryIsInclusive(t *testing.T) {
	alert := criticalAlert()
	candLat, candLon := 14.63, 121.0
	d := geo.HaversineKm(*alert.Latitude, *alert.Longitude, candLat, candLon)

	store := &fakeStore{
		alert:   alert,
		subject: models.SubjectProfile{ID: "child-1", Name: "Ana Reyes"},
		candidates: []models.AuthorityCandidate{
			{ID: "s1", Name: "Patrol", Role: "tanod", Latitude: ptr(candLat), Longitude: ptr(candLon), Tokens: []string{"tok-1"}},
		},
	}
	transport := &fakeTransport{}
	dispatcher := dispatch.New(transport, store, quietLogger(), dispatch.Options{MaxConcurrent: 4, RatePerSecond: 1000, SendTimeout: time.Second}, nil)

	// A candidate at exactly the configured radius is still in range.
	svc := New(store, &fakeTokens{}, dispatcher, quietLogger(), d)
	summary, err := svc.NotifyAuthorities(context.Background(), "alert-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)

	// Anything tighter excludes it.
	svc = New(store, &fakeTokens{}, dispatcher, quietLogger(), d-0.001)
	summary, err = svc.NotifyAuthorities(context.Background(), "alert-1")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
}

func TestNotifyAuthorities_NoCoordinatesShortCircuits(t *testing.T) {
	alert := criticalAlert()
	alert.Latitude = nil
	alert.Longitude = nil
	store := &fakeStore{alert: alert}
	tokens := &fakeTokens{}

	summary, err := newService(store, tokens, &fakeTransport{}).NotifyAuthorities(context.Background(), "alert-1")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.Zero(t, tokens.calls)
}

func TestNotifyAuthorities_CandidatesWithoutPositionExcluded(t *testing.T) {
	store := &fakeStore{
		alert:   criticalAlert(),
		subject: models.SubjectProfile{ID: "child-1", Name: "Ana Reyes"},
		candidates: []models.AuthorityCandidate{
			{ID: "s1", Name: "No Position", Role: "police", Tokens: []string{"tok-1"}},
		},
	}

	summary, err := newService(store, &fakeTokens{}, &fakeTransport{}).NotifyAuthorities(context.Background(), "alert-1")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
}

func TestNotifyAuthorities_ParentNamesInData(t *testing.T) {
	store := &fakeStore{
		alert:       criticalAlert(),
		subject:     models.SubjectProfile{ID: "child-1", Name: "Ana Reyes"},
		parentNames: "Maria Reyes, Jose Reyes",
		candidates: []models.AuthorityCandidate{
			{ID: "s1", Name: "Patrol", Role: "tanod", Latitude: ptr(14.61), Longitude: ptr(121.0), Tokens: []string{"tok-1"}},
		},
	}
	transport := &fakeTransport{}

	_, err := newService(store, &fakeTokens{}, transport).NotifyAuthorities(context.Background(), "alert-1")
	require.NoError(t, err)
	require.Len(t, transport.seen, 1)
	assert.Equal(t, "Maria Reyes, Jose Reyes", transport.seen[0].Data["parent_names"])
}

func TestNotifyAuthorities_AlertLookupFailure(t *testing.T) {
	store := &fakeStore{alertErr: errors.New("no panic alert found for id x")}

	_, err := newService(store, &fakeTokens{}, &fakeTransport{}).NotifyAuthorities(context.Background(), "x")
	require.ErrorIs(t, err, ErrResolution)
}
