package connector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/adflow-systems/showads-connector/internal/customer"
	"github.com/adflow-systems/showads-connector/internal/journal"
)

// Sender delivers validated customer records to the ShowAds API.
type Sender interface {
	SendCustomers(ctx context.Context, customers []customer.Customer) error
}

// BatchProvider streams validated customer batches from the data source.
type BatchProvider interface {
	ForEachBatch(ctx context.Context, fn func(batch []customer.Customer) error) error
}

// EventPublisher emits delivery outcome events.
type EventPublisher interface {
	PublishDeliveryCompleted(ctx context.Context, batch, records int) error
	PublishDeliveryFailed(ctx context.Context, batch, records int, cause error) error
}

// Stats is a point-in-time snapshot of the connector's run counters.
type Stats struct {
	Running       bool       `json:"running"`
	Batches       int64      `json:"batches"`
	RecordsSent   int64      `json:"records_sent"`
	RecordsFailed int64      `json:"records_failed"`
	Deduped       int64      `json:"deduped"`
	FailedBatches int64      `json:"failed_batches"`
	LastRunStart  *time.Time `json:"last_run_started_at,omitempty"`
	LastRunEnd    *time.Time `json:"last_run_finished_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// Service drives one end-to-end delivery run: stream batches from the
// provider, drop already-delivered cookies, push the rest through the
// sender, and record each batch outcome.
type Service struct {
	logger    *zap.Logger
	provider  BatchProvider
	sender    Sender
	journal   journal.Journal
	publisher EventPublisher // optional

	running       atomic.Bool
	batches       atomic.Int64
	recordsSent   atomic.Int64
	recordsFailed atomic.Int64
	deduped       atomic.Int64
	failedBatches atomic.Int64

	mu           sync.Mutex
	lastRunStart time.Time
	lastRunEnd   time.Time
	lastError    string
}

// New creates a connector Service. publisher may be nil when no event bus
// is configured.
func New(logger *zap.Logger, provider BatchProvider, sender Sender, jrnl journal.Journal, publisher EventPublisher) *Service {
	return &Service{
		logger:    logger,
		provider:  provider,
		sender:    sender,
		journal:   jrnl,
		publisher: publisher,
	}
}

// Run processes the whole data source once. A batch that fails delivery is
// recorded and the run moves on to the next batch; the error returned at the
// end reports how many batches were left unconfirmed.
func (s *Service) Run(ctx context.Context) error {
	s.running.Store(true)
	s.mu.Lock()
	s.lastRunStart = time.Now().UTC()
	s.lastError = ""
	s.mu.Unlock()

	defer func() {
		s.running.Store(false)
		s.mu.Lock()
		s.lastRunEnd = time.Now().UTC()
		s.mu.Unlock()
	}()

	s.logger.Info("connector.run_start")

	err := s.provider.ForEachBatch(ctx, func(batch []customer.Customer) error {
		return s.deliverBatch(ctx, batch)
	})
	if err != nil {
		s.setLastError(err)
		s.logger.Error("connector.run_aborted", zap.Error(err))
		return err
	}

	if failed := s.failedBatches.Load(); failed > 0 {
		err := fmt.Errorf("%d of %d batches not confirmed delivered", failed, s.batches.Load())
		s.setLastError(err)
		s.logger.Error("connector.run_incomplete", zap.Error(err))
		return err
	}

	s.logger.Info("connector.run_complete",
		zap.Int64("batches", s.batches.Load()),
		zap.Int64("records_sent", s.recordsSent.Load()),
		zap.Int64("deduped", s.deduped.Load()))
	return nil
}

// deliverBatch returns an error only for cancellation; delivery failures are
// recorded and swallowed so the remaining batches still get their chance.
func (s *Service) deliverBatch(ctx context.Context, batch []customer.Customer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batchNo := int(s.batches.Add(1))

	fresh, err := s.journal.FilterNew(ctx, batch)
	if err != nil {
		// A dedup outage must not block delivery; worst case is a re-send.
		s.logger.Warn("connector.dedup_unavailable", zap.Int("batch", batchNo), zap.Error(err))
		fresh = batch
	}
	s.deduped.Add(int64(len(batch) - len(fresh)))

	if len(fresh) == 0 {
		s.logger.Info("connector.batch_all_duplicates", zap.Int("batch", batchNo))
		return nil
	}

	sendErr := s.sender.SendCustomers(ctx, fresh)
	rec := journal.BatchRecord{
		Batch:     batchNo,
		Records:   len(fresh),
		Delivered: sendErr == nil,
		SentAt:    time.Now().UTC(),
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	if err := s.journal.RecordBatch(ctx, rec); err != nil {
		s.logger.Warn("connector.record_batch_failed", zap.Int("batch", batchNo), zap.Error(err))
	}

	if sendErr != nil {
		s.failedBatches.Add(1)
		s.recordsFailed.Add(int64(len(fresh)))
		s.setLastError(sendErr)
		s.logger.Error("connector.batch_failed",
			zap.Int("batch", batchNo),
			zap.Int("records", len(fresh)),
			zap.Error(sendErr))
		if s.publisher != nil {
			if err := s.publisher.PublishDeliveryFailed(ctx, batchNo, len(fresh), sendErr); err != nil {
				s.logger.Warn("connector.publish_failed", zap.Int("batch", batchNo), zap.Error(err))
			}
		}
		return ctx.Err()
	}

	s.recordsSent.Add(int64(len(fresh)))
	if err := s.journal.MarkDelivered(ctx, fresh); err != nil {
		s.logger.Warn("connector.mark_delivered_failed", zap.Int("batch", batchNo), zap.Error(err))
	}
	if s.publisher != nil {
		if err := s.publisher.PublishDeliveryCompleted(ctx, batchNo, len(fresh)); err != nil {
			s.logger.Warn("connector.publish_failed", zap.Int("batch", batchNo), zap.Error(err))
		}
	}

	return nil
}

func (s *Service) setLastError(err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

// Snapshot returns the current run counters for the status API.
func (s *Service) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Running:       s.running.Load(),
		Batches:       s.batches.Load(),
		RecordsSent:   s.recordsSent.Load(),
		RecordsFailed: s.recordsFailed.Load(),
		Deduped:       s.deduped.Load(),
		FailedBatches: s.failedBatches.Load(),
		LastError:     s.lastError,
	}
	if !s.lastRunStart.IsZero() {
		t := s.lastRunStart
		st.LastRunStart = &t
	}
	if !s.lastRunEnd.IsZero() {
		t := s.lastRunEnd
		st.LastRunEnd = &t
	}
	return st
}
