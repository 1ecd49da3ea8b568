package sweeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"transaction-core-go/internal/audit"
	"transaction-core-go/internal/models"
	"transaction-core-go/internal/store"

	"go.uber.org/zap"
)

// Sweeper fails transactions stuck in PROCESSING beyond the configured
// cutoff. It protects against engine crashes between the intent insert and
// the terminal update: those rows would otherwise block their idempotency
// keys and reversal slots forever.
type Sweeper struct {
	ledger store.LedgerStore
	audit  *audit.Sink

	interval time.Duration
	cutoff   time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

func New(ledger store.LedgerStore, sink *audit.Sink, cfg models.SweeperConfig) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	cutoff := cfg.PendingCutoff
	if cutoff <= 0 {
		cutoff = 10 * time.Minute
	}

	return &Sweeper{
		ledger:   ledger,
		audit:    sink,
		interval: interval,
		cutoff:   cutoff,
		now:      time.Now,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start launches the sweep loop. One initial sweep runs immediately.
func (s *Sweeper) Start(ctx context.Context) {
	zap.L().Info("Starting stuck-transaction sweeper",
		zap.Duration("interval", s.interval),
		zap.Duration("pending_cutoff", s.cutoff))
	go s.loop(ctx)
}

// Stop shuts the loop down and waits for the in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		zap.L().Info("Stopping sweeper")
		close(s.stopChan)
	})
	<-s.doneChan
	zap.L().Info("Sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweepOnce(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sweepOnce fails every PROCESSING row older than the cutoff. Rows that
// reached a terminal status between the query and the update are skipped
// silently; their owning request won.
func (s *Sweeper) sweepOnce(ctx context.Context) int {
	cutoff := s.now().Add(-s.cutoff)

	stuck, err := s.ledger.FindPendingOlderThan(ctx, cutoff)
	if err != nil {
		zap.L().Error("Sweep query failed", zap.Error(err))
		return 0
	}
	if len(stuck) == 0 {
		return 0
	}

	swept := 0
	for _, tx := range stuck {
		processedAt := s.now().UTC()
		err := s.ledger.UpdateStatus(ctx, store.UpdateStatusParams{
			Id:            tx.Id,
			Status:        models.StatusFailed,
			ProcessedAt:   processedAt,
			FailureReason: models.ReasonStuckTimeout,
		})
		if errors.Is(err, store.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			zap.L().Error("Failed to fail stuck transaction",
				zap.String("transaction_id", tx.Id),
				zap.Error(err))
			continue
		}
		swept++

		zap.L().Warn("Failed stuck transaction",
			zap.String("transaction_id", tx.Id),
			zap.String("kind", string(tx.Kind)),
			zap.Time("created_at", tx.CreatedAt))

		s.audit.Record(models.AuditEvent{
			Time:          processedAt,
			TransactionId: tx.Id,
			Caller:        tx.CreatedBy,
			Kind:          tx.Kind,
			FromAccountId: tx.FromAccountId,
			ToAccountId:   tx.ToAccountId,
			Amount:        tx.Amount,
			Currency:      tx.Currency,
			Status:        string(models.StatusFailed),
			Outcome:       models.AuditOutcomeFailed,
			ReasonCode:    models.ReasonStuckTimeout,
			Severity:      models.AuditSeverityWarn,
		})
	}

	zap.L().Info("Sweep completed",
		zap.Int("stuck_found", len(stuck)),
		zap.Int("swept", swept))
	return swept
}
