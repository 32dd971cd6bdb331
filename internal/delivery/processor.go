package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/hivecrm/hivecrm-backend/pkg/config"
	"github.com/hivecrm/hivecrm-backend/pkg/db/models"
	"github.com/hivecrm/hivecrm-backend/pkg/logger"
	"github.com/hivecrm/hivecrm-backend/pkg/metrics"
)

const (
	defaultBatchSize   = 10
	defaultWorkers     = 4
	defaultMaxRetries  = 3
	defaultSendTimeout = 5 * time.Second
	defaultBackoffBase = 30 * time.Second
	defaultBackoffCap  = 15 * time.Minute
)

// Processor drains due queue items through the transport with bounded
// parallelism and bounded retries.
type Processor struct {
	repo      Repository
	transport Transport
	logg      *logger.Logger
	metrics   *metrics.DeliveryMetrics

	batchSize   int
	workers     int
	maxRetries  int
	sendTimeout time.Duration
	backoffBase time.Duration
	backoffCap  time.Duration
	now         func() time.Time
}

// ProcessorParams collects Processor dependencies.
type ProcessorParams struct {
	Config    config.DeliveryConfig
	Repo      Repository
	Transport Transport
	Logger    *logger.Logger
	Metrics   *metrics.DeliveryMetrics
}

// NewProcessor builds a queue processor.
func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.Repo == nil {
		return nil, errors.New("queue repository is required")
	}
	if params.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}

	p := &Processor{
		repo:        params.Repo,
		transport:   params.Transport,
		logg:        params.Logger,
		metrics:     params.Metrics,
		batchSize:   params.Config.BatchSize,
		workers:     params.Config.Workers,
		maxRetries:  params.Config.MaxRetries,
		sendTimeout: params.Config.SendTimeout,
		backoffBase: params.Config.BackoffBase,
		backoffCap:  params.Config.BackoffCap,
		now:         time.Now,
	}
	if p.batchSize <= 0 {
		p.batchSize = defaultBatchSize
	}
	if p.workers <= 0 {
		p.workers = defaultWorkers
	}
	if p.maxRetries <= 0 {
		p.maxRetries = defaultMaxRetries
	}
	if p.sendTimeout <= 0 {
		p.sendTimeout = defaultSendTimeout
	}
	if p.backoffBase <= 0 {
		p.backoffBase = defaultBackoffBase
	}
	if p.backoffCap <= 0 {
		p.backoffCap = defaultBackoffCap
	}
	return p, nil
}

// ProcessBatch claims due items and sends them through the worker pool. It
// returns how many items were claimed; persistence errors are aggregated.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	items, err := p.repo.ClaimDue(ctx, p.batchSize, p.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("claim due items: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}
	p.metrics.AddClaimed(len(items))

	var (
		mu     sync.Mutex
		errs   error
		wg     sync.WaitGroup
		jobs   = make(chan models.EmailQueueItem)
		record = func(err error) {
			if err == nil {
				return
			}
			mu.Lock()
			errs = multierr.Append(errs, err)
			mu.Unlock()
		}
	)

	workers := p.workers
	if workers > len(items) {
		workers = len(items)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				record(p.ProcessOne(ctx, item))
			}
		}()
	}
	for _, item := range items {
		jobs <- item
	}
	close(jobs)
	wg.Wait()

	return len(items), errs
}

// ProcessOne sends a single claimed item and persists exactly one outcome:
// sent, pending-with-backoff, or failed.
func (p *Processor) ProcessOne(ctx context.Context, item models.EmailQueueItem) error {
	fields := map[string]any{
		"queue_item_id": item.ID.String(),
		"retry_count":   item.RetryCount,
	}
	itemCtx := p.logg.WithFields(ctx, fields)

	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	start := p.now()
	_, sendErr := p.transport.Send(sendCtx, item)
	elapsed := p.now().Sub(start)
	cancel()

	if sendErr == nil {
		p.metrics.IncAttempt("sent")
		p.metrics.ObserveSendDuration("sent", elapsed)
		if err := p.repo.MarkSent(ctx, item.ID, p.now().UTC()); err != nil {
			return fmt.Errorf("mark sent %s: %w", item.ID, err)
		}
		p.logg.Info(itemCtx, "email delivered")
		return nil
	}

	var rejected *RejectedError
	if errors.As(sendErr, &rejected) {
		p.metrics.IncAttempt("rejected")
		p.metrics.ObserveSendDuration("rejected", elapsed)
		p.logg.Warn(p.logg.WithField(itemCtx, "error", sendErr.Error()), "email rejected by transport")
		if err := p.repo.MarkFailed(ctx, item.ID, item.RetryCount, sendErr.Error()); err != nil {
			return fmt.Errorf("mark rejected %s: %w", item.ID, err)
		}
		return nil
	}

	// each item carries its own retry budget; the config value only backstops
	// rows enqueued without one
	maxRetries := item.MaxRetries
	if maxRetries <= 0 {
		maxRetries = p.maxRetries
	}
	nextRetry := item.RetryCount + 1
	if nextRetry >= maxRetries {
		p.metrics.IncAttempt("failed")
		p.metrics.ObserveSendDuration("failed", elapsed)
		p.logg.Warn(p.logg.WithField(itemCtx, "error", sendErr.Error()), "email delivery exhausted retries")
		if err := p.repo.MarkFailed(ctx, item.ID, maxRetries, sendErr.Error()); err != nil {
			return fmt.Errorf("mark failed %s: %w", item.ID, err)
		}
		return nil
	}

	p.metrics.IncAttempt("retry")
	p.metrics.ObserveSendDuration("retry", elapsed)
	scheduledFor := p.now().UTC().Add(p.retryBackoff(nextRetry))
	p.logg.Warn(p.logg.WithFields(itemCtx, map[string]any{
		"error":         sendErr.Error(),
		"scheduled_for": scheduledFor,
	}), "email delivery failed, will retry")
	if err := p.repo.MarkRetry(ctx, item.ID, nextRetry, scheduledFor, sendErr.Error()); err != nil {
		return fmt.Errorf("mark retry %s: %w", item.ID, err)
	}
	return nil
}

// retryBackoff doubles per attempt from the base, capped.
func (p *Processor) retryBackoff(retryCount int) time.Duration {
	backoff := p.backoffBase
	for i := 1; i < retryCount; i++ {
		backoff *= 2
		if backoff >= p.backoffCap {
			return p.backoffCap
		}
	}
	if backoff > p.backoffCap {
		return p.backoffCap
	}
	return backoff
}
