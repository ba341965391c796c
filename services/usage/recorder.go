package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/repositories"
	"go.uber.org/zap"
)

// Recorder persists usage records asynchronously. Record never blocks the
// caller: entries go through a buffered channel to background workers, and
// when the buffer is full the entry is dropped with a warning rather than
// stalling the request path.
type Recorder struct {
	repo        repositories.UsageRepository
	logger      *zap.Logger
	recordChan  chan *models.UsageRecord
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	started     bool
	mu          sync.Mutex
}

// RecorderConfig holds tuning knobs for the Recorder.
type RecorderConfig struct {
	BufferSize  int
	WorkerCount int
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		BufferSize:  10000,
		WorkerCount: 5,
	}
}

// NewRecorder creates a new Recorder instance.
func NewRecorder(repo repositories.UsageRepository, logger *zap.Logger, config RecorderConfig) *Recorder {
	return &Recorder{
		repo:        repo,
		logger:      logger,
		recordChan:  make(chan *models.UsageRecord, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Start starts the background workers.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("usage recorder already started")
	}

	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.started = true
	r.logger.Info("started usage recorder",
		zap.Int("worker_count", r.workerCount),
		zap.Int("buffer_size", r.bufferSize))
	return nil
}

// Stop drains the buffer and stops the workers, waiting up to timeout for
// pending records to be written.
func (r *Recorder) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return fmt.Errorf("usage recorder not started")
	}
	r.started = false
	r.mu.Unlock()

	r.logger.Info("stopping usage recorder", zap.Int("pending_records", len(r.recordChan)))
	close(r.recordChan)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("usage recorder stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("usage recorder stop timeout after %v", timeout)
	}
}

// Record enqueues a usage record for background persistence. It never
// blocks; a full buffer drops the record and returns an error the caller
// may log but must not fail the request on.
func (r *Recorder) Record(record *models.UsageRecord) error {
	// Hold the lock across the send so Stop cannot close the channel
	// between the started check and the enqueue.
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return fmt.Errorf("usage recorder not started")
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	// Image records carry a flat token charge with no input/output split,
	// so a caller-supplied total is kept as-is.
	if record.TotalTokens == 0 {
		record.TotalTokens = record.InputTokens + record.OutputTokens
	}

	select {
	case r.recordChan <- record:
		return nil
	default:
		r.logger.Warn("usage record buffer full, dropping record",
			zap.String("org_id", record.OrgID.String()),
			zap.String("provider", string(record.Provider)))
		return fmt.Errorf("usage record buffer full")
	}
}

// Pending returns the number of records waiting to be written.
func (r *Recorder) Pending() int {
	return len(r.recordChan)
}

func (r *Recorder) worker(id int) {
	defer r.wg.Done()

	for record := range r.recordChan {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.repo.Insert(ctx, record); err != nil {
			r.logger.Error("failed to persist usage record",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("org_id", record.OrgID.String()),
				zap.String("provider", string(record.Provider)))
		} else {
			r.logger.Debug("usage record persisted",
				zap.String("provider", string(record.Provider)),
				zap.String("task_type", string(record.TaskType)),
				zap.Int64("total_tokens", record.TotalTokens))
		}
		cancel()
	}
}
