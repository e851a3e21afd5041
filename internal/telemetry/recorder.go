// Package telemetry persists finished session summaries off the request path.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"iep-rehearsal/internal/domain"
	"iep-rehearsal/internal/messaging"
	"iep-rehearsal/internal/repository"
	"iep-rehearsal/internal/scoring"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	DefaultQueueSize    = 128
	DefaultWriteTimeout = 5 * time.Second
)

var recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "iep_telemetry_records_total",
	Help: "Session summaries by result (saved, dropped, failed, published, publish_failed).",
}, []string{"result"})

// TelemetryWriteError reports a summary that could not be persisted.
type TelemetryWriteError struct {
	SessionID string
	Err       error
}

func (e *TelemetryWriteError) Error() string {
	return fmt.Sprintf("telemetry write for session %s: %v", e.SessionID, e.Err)
}

func (e *TelemetryWriteError) Unwrap() []error {
	return []error{domain.ErrTelemetryWrite, e.Err}
}

// Sink is what the dialogue flow sees of the recorder.
type Sink interface {
	Record(summary domain.SessionSummary) bool
}

var _ Sink = (*Recorder)(nil)

// Recorder queues summaries and writes them from a single worker, so a slow
// or failing store never stalls a session.
type Recorder struct {
	logs         repository.SimulationLogRepository
	publisher    messaging.SessionEventPublisher
	queue        chan domain.SessionSummary
	writeTimeout time.Duration
	logger       *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewRecorder starts the worker. publisher may be nil.
func NewRecorder(logs repository.SimulationLogRepository, publisher messaging.SessionEventPublisher, queueSize int, logger *zap.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	r := &Recorder{
		logs:         logs,
		publisher:    publisher,
		queue:        make(chan domain.SessionSummary, queueSize),
		writeTimeout: DefaultWriteTimeout,
		logger:       logger.Named("TelemetryRecorder"),
		done:         make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues summary. It reports false when the summary was dropped
// because the queue is full or the recorder is closed.
func (r *Recorder) Record(summary domain.SessionSummary) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		recordsTotal.WithLabelValues("dropped").Inc()
		r.logger.Warn("Recorder closed, summary dropped", zap.String("sessionID", summary.SessionID))
		return false
	}
	select {
	case r.queue <- summary:
		return true
	default:
		recordsTotal.WithLabelValues("dropped").Inc()
		r.logger.Warn("Telemetry queue full, summary dropped",
			zap.String("sessionID", summary.SessionID),
			zap.Int("capacity", cap(r.queue)),
		)
		return false
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for summary := range r.queue {
		r.write(summary)
	}
}

func (r *Recorder) write(summary domain.SessionSummary) {
	log := r.logger.With(zap.String("sessionID", summary.SessionID), zap.String("scenarioID", summary.ScenarioID))

	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	id, err := r.logs.Save(ctx, summary)
	if err != nil {
		werr := &TelemetryWriteError{SessionID: summary.SessionID, Err: err}
		recordsTotal.WithLabelValues("failed").Inc()
		log.Error("Failed to persist session summary", zap.Error(werr))
		return
	}
	recordsTotal.WithLabelValues("saved").Inc()
	log.Info("Session summary saved", zap.Int64("logID", id))

	if r.publisher == nil {
		return
	}
	event := messaging.SessionCompletedEvent{
		Type:       messaging.EventSessionCompleted,
		OccurredAt: summary.EndTime,
		LogID:      id,
		Summary:    summary,
	}
	if likely, ok := scoring.LikelyOutcome(summary.OutcomeScores); ok {
		event.LikelyOutcome = &likely
	}
	if err := r.publisher.PublishSessionCompleted(ctx, event); err != nil {
		recordsTotal.WithLabelValues("publish_failed").Inc()
		log.Warn("Failed to publish session event", zap.Error(err))
		return
	}
	recordsTotal.WithLabelValues("published").Inc()
}

// Close stops accepting summaries and waits until the queue is drained or
// ctx ends.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errors.New("recorder already closed")
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	select {
	case <-r.done:
		r.logger.Info("Telemetry queue drained")
		return nil
	case <-ctx.Done():
		r.logger.Warn("Telemetry queue not drained before shutdown", zap.Int("pending", len(r.queue)))
		return fmt.Errorf("telemetry drain: %w", ctx.Err())
	}
}
