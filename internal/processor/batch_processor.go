package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"estate/server/config"
	"estate/server/internal/estate"
	"estate/server/internal/queue"
)

// Importer stores one batch of listings atomically.
type Importer interface {
	ImportProperties(ctx context.Context, rows []estate.PropertyInput) error
}

// Stats counts the batches handled since start.
type Stats struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Pending   int   `json:"pending"`
}

// BatchProcessor handles the processing of import batches
type BatchProcessor struct {
	importer   Importer
	logger     *logrus.Logger
	config     *config.Config
	queue      *queue.ImportQueue
	retryDelay time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	startOnce  sync.Once

	processed atomic.Int64
	failed    atomic.Int64
}

// NewBatchProcessor creates a new batch processor instance
func NewBatchProcessor(importer Importer, queue *queue.ImportQueue, config *config.Config, logger *logrus.Logger) *BatchProcessor {
	if logger == nil {
		logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchProcessor{
		importer:   importer,
		queue:      queue,
		config:     config,
		logger:     logger,
		retryDelay: time.Duration(config.Import.RetryDelay) * time.Second,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to the queue and starts its workers
func (p *BatchProcessor) Start() {
	p.startOnce.Do(func() {
		p.queue.Subscribe(p.processBatch)
		p.queue.Start(p.config.Import.Workers)
	})
}

// Stop gracefully shuts down the processor. Batches waiting for a retry
// give up immediately.
func (p *BatchProcessor) Stop() {
	p.cancel()
	p.queue.Close()
}

func (p *BatchProcessor) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
		Pending:   p.queue.Len(),
	}
}

// processBatch imports a single batch with retry logic. Invalid rows are
// not retried.
func (p *BatchProcessor) processBatch(batch queue.Batch) error {
	ctx := p.ctx
	if batch.ActorID != nil {
		ctx = estate.WithActor(ctx, *batch.ActorID)
	}
	log := p.logger.WithField("batch_id", batch.ID)

	var err error
	for attempt := 0; attempt <= p.config.Import.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Infof("Retrying batch processing, attempt %d of %d", attempt, p.config.Import.MaxRetries)
			select {
			case <-ctx.Done():
				p.failed.Add(1)
				return fmt.Errorf("batch %s abandoned: %w", batch.ID, ctx.Err())
			case <-time.After(p.retryDelay):
			}
		}

		err = p.importer.ImportProperties(ctx, batch.Rows)
		if err == nil {
			p.processed.Add(1)
			log.Infof("Successfully processed batch of %d properties", len(batch.Rows))
			return nil
		}

		var verr *estate.ValidationError
		if errors.As(err, &verr) {
			p.failed.Add(1)
			return fmt.Errorf("batch %s rejected: %w", batch.ID, err)
		}
		log.Errorf("Batch processing failed: %v", err)
	}

	p.failed.Add(1)
	return fmt.Errorf("failed to process batch after %d attempts: %w", p.config.Import.MaxRetries, err)
}
