package queue

import (
	"errors"
	"sync"

	"estate/server/internal/estate"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Batch is a group of listings imported in one transaction.
type Batch struct {
	ID string
	// ActorID is the user who submitted the import, if known
	ActorID *uint
	Rows    []estate.PropertyInput
}

// ImportQueue is an in-memory queue of import batches
type ImportQueue struct {
	items    chan Batch
	done     chan struct{}
	maxSize  int
	closed   bool
	started  bool
	mu       sync.RWMutex
	workers  sync.WaitGroup
	logger   *logrus.Logger
	handlers []func(Batch) error
}

// NewImportQueue creates a new import queue with the specified buffer size
func NewImportQueue(bufferSize int, logger *logrus.Logger) *ImportQueue {
	if logger == nil {
		logger = logrus.New()
	}
	return &ImportQueue{
		items:    make(chan Batch, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func(Batch) error, 0),
	}
}

// Push adds a batch to the queue without blocking
func (q *ImportQueue) Push(batch Batch) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- batch:
		q.logger.WithFields(logrus.Fields{
			"batch_id":   batch.ID,
			"batch_size": len(batch.Rows),
		}).Debug("Pushed batch to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each batch
func (q *ImportQueue) Subscribe(handler func(Batch) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start launches the given number of workers. Calling it again is a no-op.
func (q *ImportQueue) Start(workers int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.workers.Add(1)
		go q.process()
	}
}

func (q *ImportQueue) process() {
	defer q.workers.Done()
	for {
		select {
		case <-q.done:
			return
		case batch, ok := <-q.items:
			if !ok {
				return
			}
			q.processBatch(batch)
		}
	}
}

// processBatch sends the batch to all subscribed handlers
func (q *ImportQueue) processBatch(batch Batch) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).WithField("batch_id", batch.ID).Error("Handler failed to process batch")
		}
	}
}

// Close stops the queue and waits for the batches in progress. Batches
// still buffered are dropped.
func (q *ImportQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	close(q.items)
	q.mu.Unlock()

	q.workers.Wait()
	if dropped := len(q.items); dropped > 0 {
		q.logger.WithField("dropped", dropped).Warn("Import queue closed with pending batches")
	}
	return nil
}

// Len returns the current number of batches in the queue
func (q *ImportQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *ImportQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
