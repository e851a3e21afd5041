package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"iep-rehearsal/internal/domain"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// ExchangeSessionEvents is the fanout exchange for session lifecycle events.
	ExchangeSessionEvents = "iep.session_events"

	EventSessionCompleted = "session.completed"
)

// SessionCompletedEvent is published once per ended session.
type SessionCompletedEvent struct {
	Type          string                `json:"type"`
	OccurredAt    time.Time             `json:"occurredAt"`
	LogID         int64                 `json:"logId,omitempty"`
	Summary       domain.SessionSummary `json:"summary"`
	LikelyOutcome *domain.OutcomeScore  `json:"likelyOutcome,omitempty"`
}

// SessionEventPublisher delivers session events to downstream consumers.
type SessionEventPublisher interface {
	PublishSessionCompleted(ctx context.Context, event SessionCompletedEvent) error
	Close() error
}

var _ SessionEventPublisher = (*RabbitMQSessionPublisher)(nil)

// RabbitMQSessionPublisher publishes to ExchangeSessionEvents. The
// connection is owned by the caller.
type RabbitMQSessionPublisher struct {
	mu     sync.Mutex
	ch     *amqp091.Channel
	logger *zap.Logger
}

func NewRabbitMQSessionPublisher(conn *amqp091.Connection, logger *zap.Logger) (*RabbitMQSessionPublisher, error) {
	if conn == nil {
		return nil, errors.New("rabbitmq connection is nil")
	}
	log := logger.Named("SessionPublisher")

	ch, err := conn.Channel()
	if err != nil {
		log.Error("Failed to open a channel", zap.Error(err))
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeSessionEvents, // name
		"fanout",              // type
		true,                  // durable
		false,                 // auto-deleted
		false,                 // internal
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		_ = ch.Close()
		log.Error("Failed to declare exchange", zap.String("exchange", ExchangeSessionEvents), zap.Error(err))
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", ExchangeSessionEvents, err)
	}

	log.Info("Session events exchange declared", zap.String("exchange", ExchangeSessionEvents))
	return &RabbitMQSessionPublisher{ch: ch, logger: log}, nil
}

func (p *RabbitMQSessionPublisher) PublishSessionCompleted(ctx context.Context, event SessionCompletedEvent) error {
	if event.Type == "" {
		event.Type = EventSessionCompleted
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx,
		ExchangeSessionEvents, // exchange
		event.Type,            // routing key, ignored by fanout
		false,                 // mandatory
		false,                 // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.Summary.SessionID,
			Type:         event.Type,
			Body:         body,
			Timestamp:    event.OccurredAt,
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish session event", zap.String("sessionID", event.Summary.SessionID), zap.Error(err))
		return fmt.Errorf("failed to publish session event: %w", err)
	}
	p.logger.Debug("Session event published", zap.String("sessionID", event.Summary.SessionID))
	return nil
}

// Close closes the channel.
func (p *RabbitMQSessionPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}

// Connect dials RabbitMQ, retrying a few times while the broker starts.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*amqp091.Connection, error) {
	const maxRetries = 5
	retryDelay := 2 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		conn, err := amqp091.Dial(url)
		if err == nil {
			logger.Info("Connected to RabbitMQ")
			return conn, nil
		}
		lastErr = err
		logger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, lastErr)
}
