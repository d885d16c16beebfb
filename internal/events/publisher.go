package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"role-service/internal/models"
)

const (
	streamName     = "ROLE_EVENTS"
	subjectPattern = "roles.>"
)

// RoleSwitchedEvent is the payload published on the bus after a committed
// role switch.
type RoleSwitchedEvent struct {
	EventType    string      `json:"event_type"`
	UserID       uuid.UUID   `json:"user_id"`
	PreviousRole models.Role `json:"previous_role"`
	NewRole      models.Role `json:"new_role"`
	SwitchedAt   time.Time   `json:"switched_at"`
}

// Publisher publishes role events to NATS JetStream.
type Publisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry
}

// NewPublisher connects to NATS and ensures the role events stream exists.
func NewPublisher(url string, logger *logrus.Logger) (*Publisher, error) {
	entry := logger.WithField("component", "events.publisher")

	opts := []nats.Option{
		nats.Name("role-service"),
		nats.Timeout(10 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				entry.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			entry.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream(nats.PublishAsyncMaxPending(256))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &Publisher{conn: conn, js: js, logger: entry}
	if err := p.ensureStream(); err != nil {
		entry.WithError(err).Warn("Failed to ensure role events stream")
	}

	entry.WithField("url", url).Info("NATS events publisher initialized")
	return p, nil
}

func (p *Publisher) ensureStream() error {
	_, err := p.js.StreamInfo(streamName)
	if err == nil {
		return nil
	}

	_, err = p.js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPattern},
		Retention: nats.LimitsPolicy,
		MaxAge:    30 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	})
	return err
}

// PublishRoleSwitched publishes a role switch event.
func (p *Publisher) PublishRoleSwitched(ctx context.Context, userID uuid.UUID, previousRole, newRole models.Role, at time.Time) error {
	event := RoleSwitchedEvent{
		EventType:    "roles.switched",
		UserID:       userID,
		PreviousRole: previousRole,
		NewRole:      newRole,
		SwitchedAt:   at,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal role event: %w", err)
	}

	subject := fmt.Sprintf("roles.switched.%s", newRole)
	ack, err := p.js.Publish(subject, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish role event: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"subject":  subject,
		"sequence": ack.Sequence,
	}).Debug("Published role switch event")
	return nil
}

// IsConnected returns true if connected to NATS
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains and closes the NATS connection
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
		p.conn.Close()
	}
}
