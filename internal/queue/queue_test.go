package queue

import (
	"sync"
	"testing"
	"time"

	"estate/server/internal/estate"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func batchOf(names ...string) Batch {
	rows := make([]estate.PropertyInput, 0, len(names))
	for _, n := range names {
		rows = append(rows, estate.PropertyInput{Name: n})
	}
	return Batch{ID: names[0], Rows: rows}
}

func TestNewImportQueue(t *testing.T) {
	logger := logrus.New()
	q := NewImportQueue(10, logger)
	assert.NotNil(t, q)
	assert.Equal(t, 10, q.maxSize)
	assert.False(t, q.IsClosed())
}

func TestImportQueue_Push(t *testing.T) {
	logger := logrus.New()
	q := NewImportQueue(2, logger)

	// Test successful push
	err := q.Push(batchOf("test1"))
	assert.NoError(t, err)
	assert.Equal(t, 1, q.Len())

	// Test queue full
	_ = q.Push(batchOf("test2"))
	err = q.Push(batchOf("test3"))
	assert.Equal(t, ErrQueueFull, err)

	// Test closed queue
	q.Close()
	err = q.Push(batchOf("test4"))
	assert.Equal(t, ErrQueueClosed, err)
}

func TestImportQueue_Subscribe(t *testing.T) {
	logger := logrus.New()
	q := NewImportQueue(10, logger)
	defer q.Close()

	var processed []estate.PropertyInput
	var mu sync.Mutex

	q.Subscribe(func(b Batch) error {
		mu.Lock()
		processed = append(processed, b.Rows...)
		mu.Unlock()
		return nil
	})
	q.Start(1)

	err := q.Push(batchOf("test1", "test2"))
	assert.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(processed) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "test1", processed[0].Name)
	assert.Equal(t, "test2", processed[1].Name)
	mu.Unlock()
}

func TestImportQueue_Close(t *testing.T) {
	logger := logrus.New()
	q := NewImportQueue(10, logger)
	q.Start(2)

	// Test first close
	err := q.Close()
	assert.NoError(t, err)
	assert.True(t, q.IsClosed())

	// Test second close (should be no-op)
	err = q.Close()
	assert.NoError(t, err)
}

func TestImportQueue_CloseWaitsForRunningHandler(t *testing.T) {
	q := NewImportQueue(10, logrus.New())

	started := make(chan struct{})
	var finished bool
	var mu sync.Mutex
	q.Subscribe(func(b Batch) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		finished = true
		mu.Unlock()
		return nil
	})
	q.Start(1)
	assert.NoError(t, q.Push(batchOf("slow")))

	<-started
	assert.NoError(t, q.Close())

	mu.Lock()
	assert.True(t, finished)
	mu.Unlock()
}

func TestImportQueue_ProcessBatch(t *testing.T) {
	logger := logrus.New()
	q := NewImportQueue(10, logger)
	defer q.Close()

	var wg sync.WaitGroup
	processedBatches := 0
	var mu sync.Mutex

	// Add multiple handlers
	for i := 0; i < 3; i++ {
		wg.Add(1)
		q.Subscribe(func(b Batch) error {
			mu.Lock()
			processedBatches++
			mu.Unlock()
			wg.Done()
			return nil
		})
	}

	q.Start(2)

	err := q.Push(batchOf("test"))
	assert.NoError(t, err)

	// Wait for all handlers
	wg.Wait()

	mu.Lock()
	assert.Equal(t, 3, processedBatches)
	mu.Unlock()
}
