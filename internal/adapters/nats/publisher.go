package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/transiteye/tracker/internal/core/domain"
	"github.com/transiteye/tracker/internal/pkg/telemetry"
)

const (
	// EventSubjectPrefix prefixes every broadcast channel subject.
	EventSubjectPrefix = "tracker.events."
	// PositionSubjectPrefix prefixes position feed subjects; the last token is the source.
	PositionSubjectPrefix = "tracker.positions."

	positionStream = "VEHICLE_POSITIONS"
)

// Subject maps a broadcast channel to its NATS subject.
func Subject(channel string) string {
	return EventSubjectPrefix + channel
}

// Envelope wraps every broadcast event.
type Envelope struct {
	ID        string          `json:"id"`
	Channel   string          `json:"channel"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// publishConn is the subset of *nats.Conn used for core publishes.
type publishConn interface {
	Publish(subj string, data []byte) error
}

// Publisher implements ports.EventPublisher over core NATS (at-most-once),
// and publishes position batches into JetStream.
type Publisher struct {
	conn publishConn
	raw  *nats.Conn
	js   nats.JetStreamContext
	now  func() time.Time
}

// NewPublisher connects to NATS and ensures the position stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := openJetStream(conn)
	if err != nil {
		return nil, err
	}

	return &Publisher{conn: conn, raw: conn, js: js, now: time.Now}, nil
}

// streamConn is the subset of *nats.Conn needed to set up JetStream.
type streamConn interface {
	JetStream(opts ...nats.JSOpt) (nats.JetStreamContext, error)
	Close()
}

// openJetStream ensures the streams exist. The connection is closed on failure
// so its reconnect loop does not outlive the caller.
func openJetStream(conn streamConn) (nats.JetStreamContext, error) {
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStreams(js); err != nil {
		conn.Close()
		return nil, err
	}
	return js, nil
}

func ensureStreams(js nats.JetStreamContext) error {
	streams := []nats.StreamConfig{
		{
			Name:      positionStream,
			Subjects:  []string{PositionSubjectPrefix + ">"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// Publish sends one event on channel. Delivery is best effort: no ack, no retry.
func (p *Publisher) Publish(ctx context.Context, channel, eventType string, payload any) error {
	_, span := telemetry.Tracer().Start(ctx, telemetry.SpanPublishEvent)
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrChannel, channel),
		attribute.String(telemetry.AttrEventType, eventType),
	)

	data, err := p.encode(channel, eventType, payload)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := p.conn.Publish(Subject(channel), data); err != nil {
		span.RecordError(err)
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

func (p *Publisher) encode(channel, eventType string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return json.Marshal(Envelope{
		ID:        uuid.NewString(),
		Channel:   channel,
		Type:      eventType,
		Payload:   body,
		EmittedAt: p.now().UTC(),
	})
}

// PublishPositions writes a batch to the position stream under source.
func (p *Publisher) PublishPositions(ctx context.Context, source string, updates []domain.PositionUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	data, err := EncodePositions(updates)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(PositionSubjectPrefix+source, data, nats.Context(ctx))
	return err
}

// Ping reports whether the connection is up.
func (p *Publisher) Ping() error {
	if p.raw == nil || !p.raw.IsConnected() {
		return fmt.Errorf("nats disconnected")
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.raw != nil {
		_ = p.raw.Drain()
	}
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
