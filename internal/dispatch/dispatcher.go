// Package dispatch fans a composed notification out to every resolved
// recipient device and collects per-device outcomes. Failures are isolated:
// a recipient whose push fails gets a durable fallback row instead, and no
// failure ever aborts delivery to the others.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jussrz/SOSit/internal/compose"
	"github.com/jussrz/SOSit/internal/fcm"
	"github.com/jussrz/SOSit/internal/metrics"
	"github.com/jussrz/SOSit/internal/models"
)

// FallbackStore persists notifications that could not be pushed so the
// client's live subscription can still surface them.
type FallbackStore interface {
	SaveFallbackNotification(ctx context.Context, n models.FallbackNotification) error
}

// Options bound the fan-out.
type Options struct {
	MaxConcurrent int
	RatePerSecond int
	SendTimeout   time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 20
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 50
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 10 * time.Second
	}
}

// Dispatcher sends one alert's notification to N recipients concurrently.
type Dispatcher struct {
	transport  fcm.Transport
	store      FallbackStore
	logger     *logrus.Logger
	limiter    *rate.Limiter
	opts       Options
	onFallback func(models.FallbackNotification)
}

// New constructs a Dispatcher. onFallback, if non-nil, is invoked after every
// successfully persisted fallback row (the WebSocket hub hangs off this).
func New(transport fcm.Transport, store FallbackStore, logger *logrus.Logger, opts Options, onFallback func(models.FallbackNotification)) *Dispatcher {
	opts.applyDefaults()
	return &Dispatcher{
		transport:  transport,
		store:      store,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(float64(opts.RatePerSecond)), opts.RatePerSecond),
		opts:       opts,
		onFallback: onFallback,
	}
}

// Dispatch delivers content to every (recipient, device token) pair and
// returns the aggregated summary. Recipients without any registered token are
// skipped. No ordering between recipients is guaranteed.
func (d *Dispatcher) Dispatch(ctx context.Context, alert models.PanicAlert, content models.Content, recipients []models.Recipient, cred fcm.AccessCredential) models.DispatchSummary {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []models.DeliveryOutcome
	)
	sem := make(chan struct{}, d.opts.MaxConcurrent)

	for _, rec := range recipients {
		if len(rec.Tokens) == 0 {
			d.logger.Warnf("Recipient %s (%s) has no registered device tokens, skipping", rec.ID, rec.Name)
			continue
		}
		for _, token := range rec.Tokens {
			wg.Add(1)
			go func(rec models.Recipient, deviceToken string) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				outcome := d.sendOne(ctx, alert, content, rec, deviceToken, cred)
				mu.Lock()
				outcomes = append(outcomes, outcome)
				mu.Unlock()
			}(rec, token)
		}
	}
	wg.Wait()

	return Aggregate(outcomes)
}

func (d *Dispatcher) sendOne(ctx context.Context, alert models.PanicAlert, content models.Content, rec models.Recipient, deviceToken string, cred fcm.AccessCredential) models.DeliveryOutcome {
	// Authority recipients get the distance annotation in the body.
	personalized := content
	if rec.DistanceKm != nil {
		personalized = compose.WithDistance(content, *rec.DistanceKm)
	}

	outcome := models.DeliveryOutcome{
		RecipientID:   rec.ID,
		RecipientName: rec.Name,
		Channel:       models.ChannelPush,
	}

	if err := d.limiter.Wait(ctx); err != nil {
		outcome.Error = fmt.Sprintf("rate limiter: %v", err)
		metrics.DeliveriesTotal.WithLabelValues(models.ChannelPush, "failed").Inc()
		return outcome
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	defer cancel()

	err := d.transport.Send(sendCtx, cred, deviceToken, personalized)
	if err == nil {
		outcome.Success = true
		metrics.DeliveriesTotal.WithLabelValues(models.ChannelPush, "success").Inc()
		d.logger.Infof("Push delivered to %s (%s)", rec.Name, rec.ID)
		return outcome
	}

	d.logger.Errorf("Push to %s (%s) failed: %v", rec.Name, rec.ID, err)
	metrics.DeliveriesTotal.WithLabelValues(models.ChannelPush, "failed").Inc()
	outcome.Error = err.Error()

	fb := models.FallbackNotification{
		ID:          uuid.NewString(),
		RecipientID: rec.ID,
		SubjectID:   alert.UserID,
		AlertID:     alert.ID,
		AlertType:   alert.AlertType,
		Title:       personalized.Title,
		Body:        personalized.Body,
		Data:        personalized.Data,
		CreatedAt:   time.Now(),
	}
	if perr := d.store.SaveFallbackNotification(ctx, fb); perr != nil {
		// Recorded on the outcome, never escalated past this recipient.
		d.logger.Errorf("Fallback write for %s failed: %v", rec.ID, perr)
		metrics.DeliveriesTotal.WithLabelValues(models.ChannelFallback, "failed").Inc()
		outcome.Error = fmt.Sprintf("%v; fallback store: %v", err, perr)
		return outcome
	}

	outcome.Channel = models.ChannelFallback
	metrics.DeliveriesTotal.WithLabelValues(models.ChannelFallback, "stored").Inc()
	if d.onFallback != nil {
		d.onFallback(fb)
	}
	return outcome
}

// Aggregate reduces per-device outcomes into the response summary. Pure; no
// I/O and no failure modes.
func Aggregate(outcomes []models.DeliveryOutcome) models.DispatchSummary {
	summary := models.DispatchSummary{
		Total:   len(outcomes),
		Results: outcomes,
	}
	for _, o := range outcomes {
		if o.Success {
			summary.Sent++
		} else {
			summary.Failed++
		}
	}
	return summary
}
