package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/adflow-systems/showads-connector/internal/metrics"
	"github.com/adflow-systems/showads-connector/pkg/logger"
)

// Envelope is the canonical event wrapper published to NATS.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// DeliveryEvent is the payload for delivery.completed / delivery.failed events.
type DeliveryEvent struct {
	Batch   int       `json:"batch"`
	Records int       `json:"records"`
	Error   string    `json:"error,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// Publisher wraps a NATS connection and provides helpers for publishing delivery events.
type Publisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	service string
}

// New creates a new Publisher with JetStream enabled if available.
func New(nc *nats.Conn, subject, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		nc:      nc,
		js:      js,
		subject: subject,
		service: service,
	}, nil
}

// PublishEnvelope serializes and publishes an event envelope to NATS.
func (p *Publisher) PublishEnvelope(ctx context.Context, subject string, env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		logger.S().Errorw("publisher.marshal_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		return err
	}

	if subject == "" {
		subject = p.subject
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
		},
	}

	if _, err := p.js.PublishMsg(msg); err != nil {
		logger.S().Errorw("publisher.publish_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncNATSPublishError(subject)
		return err
	}

	logger.S().Debugw("publisher.publish_success",
		"subject", subject,
		"event_type", env.EventType,
	)
	return nil
}

// PublishDeliveryCompleted emits a delivery.completed event for a confirmed batch.
func (p *Publisher) PublishDeliveryCompleted(ctx context.Context, batch, records int) error {
	return p.publishDelivery(ctx, "delivery.completed", DeliveryEvent{
		Batch:   batch,
		Records: records,
		SentAt:  time.Now().UTC(),
	})
}

// PublishDeliveryFailed emits a delivery.failed event for a batch that
// exhausted its retries or hit a fatal failure.
func (p *Publisher) PublishDeliveryFailed(ctx context.Context, batch, records int, cause error) error {
	ev := DeliveryEvent{
		Batch:   batch,
		Records: records,
		SentAt:  time.Now().UTC(),
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	return p.publishDelivery(ctx, "delivery.failed", ev)
}

func (p *Publisher) publishDelivery(ctx context.Context, eventType string, ev DeliveryEvent) error {
	env := &Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		Topic:         p.subject,
		EventType:     eventType,
		Version:       "1.0.0",
		Timestamp:     time.Now().UTC(),
	}

	data, _ := json.Marshal(ev)
	env.Payload = data

	return p.PublishEnvelope(ctx, p.subject, env)
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
