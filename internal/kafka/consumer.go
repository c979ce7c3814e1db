// Package kafka ingests panic-alert events so the authority flow also runs for
// alerts created outside the HTTP surface.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/jussrz/SOSit/internal/config"
	"github.com/jussrz/SOSit/internal/models"
)

// AlertNotifier is the slice of the alert service the consumer drives.
type AlertNotifier interface {
	NotifyAuthorities(ctx context.Context, alertID string) (models.DispatchSummary, error)
}

type Consumer struct {
	reader *kafka.Reader
	svc    AlertNotifier
	logger *logrus.Logger
}

func NewConsumer(cfg config.Config, svc AlertNotifier, logger *logrus.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Kafka.Broker},
		Topic:    cfg.Kafka.Topic,
		GroupID:  cfg.Kafka.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, svc: svc, logger: logger}
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Info("Kafka consumer started")

		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					c.logger.Info("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}
			c.handle(ctx, msg)
		}
	}()
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var event struct {
		PanicAlertID string `json:"panic_alert_id"`
	}
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Errorf("Unmarshal message failed: %v", err)
		return
	}
	if event.PanicAlertID == "" {
		c.logger.Error("Invalid message: missing panic_alert_id")
		return
	}

	summary, err := c.svc.NotifyAuthorities(ctx, event.PanicAlertID)
	if err != nil {
		c.logger.Errorf("Station alert %s from Kafka failed: %v", event.PanicAlertID, err)
		return
	}
	c.logger.Infof("Processed Kafka alert %s: %d sent, %d failed", event.PanicAlertID, summary.Sent, summary.Failed)
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Failed to close Kafka reader: %v", err)
	}
}
