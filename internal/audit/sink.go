package audit

import (
	"sync"

	"transaction-core-go/internal/models"

	"go.uber.org/zap"
)

// Sink is an append-only, bounded audit stream. Record never blocks the
// engine: when the buffer is full the oldest buffered non-terminal event is
// evicted to make room. Terminal events are never dropped; if every buffered
// event is terminal the buffer grows past its nominal capacity rather than
// lose one.
type Sink struct {
	capacity int

	mu      sync.Mutex
	queue   []models.AuditEvent
	emitted int64
	dropped int64
	closed  bool

	notify   chan struct{}
	stopChan chan struct{}
	doneChan chan struct{}
}

// Stats reports sink throughput for observability and tests.
type Stats struct {
	Emitted  int64
	Dropped  int64
	Buffered int
}

func NewSink(cfg models.AuditConfig) *Sink {
	capacity := cfg.BufferSize
	if capacity <= 0 {
		capacity = 1024
	}

	s := &Sink{
		capacity: capacity,
		queue:    make([]models.AuditEvent, 0, capacity),
		notify:   make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// Record enqueues one audit event. Safe for concurrent use; never blocks.
func (s *Sink) Record(event models.AuditEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		zap.L().Warn("Audit event recorded after sink close",
			zap.String("transaction_id", event.TransactionId),
			zap.String("outcome", event.Outcome))
		return
	}

	if len(s.queue) >= s.capacity {
		if !s.evictOldestNonTerminal() {
			if !event.Terminal() {
				// Full of terminal events; the newcomer is droppable.
				s.dropped++
				s.mu.Unlock()
				return
			}
			// Terminal events always land, even over capacity.
		}
	}
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// evictOldestNonTerminal removes the oldest buffered non-terminal event.
// Caller holds s.mu.
func (s *Sink) evictOldestNonTerminal() bool {
	for i, e := range s.queue {
		if !e.Terminal() {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			s.dropped++
			return true
		}
	}
	return false
}

func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Emitted: s.emitted, Dropped: s.dropped, Buffered: len(s.queue)}
}

// Close drains the buffer, then stops the writer. Idempotent calls after the
// first are not supported; callers own the sink lifecycle.
func (s *Sink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	close(s.stopChan)
	<-s.doneChan
}

func (s *Sink) writeLoop() {
	defer close(s.doneChan)

	for {
		select {
		case <-s.notify:
			s.flush()
		case <-s.stopChan:
			s.flush()
			return
		}
	}
}

func (s *Sink) flush() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		event := s.queue[0]
		s.queue = s.queue[1:]
		s.emitted++
		s.mu.Unlock()

		s.write(event)
	}
}

func (s *Sink) write(event models.AuditEvent) {
	fields := []zap.Field{
		zap.Time("event_time", event.Time),
		zap.String("correlation_id", event.CorrelationId),
		zap.String("transaction_id", event.TransactionId),
		zap.String("caller", event.Caller),
		zap.String("kind", string(event.Kind)),
		zap.String("from_account_id", event.FromAccountId),
		zap.String("to_account_id", event.ToAccountId),
		zap.String("amount", event.Amount.String()),
		zap.String("currency", event.Currency),
		zap.String("status", event.Status),
		zap.String("outcome", event.Outcome),
		zap.String("severity", event.Severity),
	}
	if event.ReasonCode != "" {
		fields = append(fields, zap.String("reason_code", event.ReasonCode))
	}

	switch event.Severity {
	case models.AuditSeverityCritical:
		zap.L().Error("AUDIT", fields...)
	case models.AuditSeverityWarn:
		zap.L().Warn("AUDIT", fields...)
	default:
		zap.L().Info("AUDIT", fields...)
	}
}
