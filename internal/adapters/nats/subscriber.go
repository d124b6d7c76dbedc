package natsadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/transiteye/tracker/internal/core/domain"
)

// PositionHandler processes one decoded batch; source is the last subject token.
type PositionHandler func(ctx context.Context, source string, updates []domain.PositionUpdate) error

// Subscriber consumes the position stream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := openJetStream(conn)
	if err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribePositions attaches a durable consumer. Undecodable messages are
// terminated; handler errors are redelivered up to three times.
func (s *Subscriber) SubscribePositions(ctx context.Context, handler PositionHandler) error {
	sub, err := s.js.Subscribe(PositionSubjectPrefix+">", func(msg *nats.Msg) {
		updates, err := DecodePositions(msg.Data)
		if err != nil {
			slog.Warn("dropping malformed position message", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, sourceOf(msg.Subject), updates); err != nil {
			slog.Error("position batch failed", "subject", msg.Subject, "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("position-processor"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func sourceOf(subject string) string {
	return strings.TrimPrefix(subject, PositionSubjectPrefix)
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
