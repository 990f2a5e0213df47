// Package recorder provides the write path for correction events. Recording
// is asynchronous and best-effort: a storage failure never blocks or
// surfaces in the category-override flow that triggered it.
package recorder

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloverfin/clover/internal/common"
	"github.com/cloverfin/clover/internal/model"
	"github.com/cloverfin/clover/internal/service"
)

// DefaultQueueSize is the default pending-correction buffer.
const DefaultQueueSize = 256

// Input is one user override of an assigned category.
type Input struct {
	OriginalCategoryID  *int64
	OriginalSource      *model.CorrectionSource
	ImportSessionID     *string
	Description         string
	CorrectedCategoryID int64
}

// Options configures a Recorder.
type Options struct {
	// OnRecorded runs after a correction lands in storage, outside any
	// lock. Used to trigger a suggestion refresh fire-and-forget.
	OnRecorded func(id string)
	Retry      service.RetryOptions
	QueueSize  int
}

// Recorder buffers corrections and writes them in the background with
// retry. Corrections carry client-generated IDs and the store ignores
// duplicate inserts, so delivery is at-least-once with idempotent writes.
type Recorder struct {
	store      service.CorrectionStore
	queue      chan model.Correction
	onRecorded func(id string)
	done       chan struct{}
	retry      service.RetryOptions
	pending    sync.WaitGroup
	closeOnce  sync.Once
}

// New creates a Recorder and starts its background worker.
func New(store service.CorrectionStore, opts Options) *Recorder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	r := &Recorder{
		store:      store,
		queue:      make(chan model.Correction, opts.QueueSize),
		retry:      opts.Retry,
		onRecorded: opts.OnRecorded,
		done:       make(chan struct{}),
	}

	go r.run()

	return r
}

// Record validates the input, assigns a client ID, and enqueues the write.
// It returns the correction ID immediately; the empty string means the
// input was invalid or the recorder is saturated, and the correction was
// dropped. Callers never see storage failures.
func (r *Recorder) Record(_ context.Context, input Input) string {
	if strings.TrimSpace(input.Description) == "" || input.CorrectedCategoryID <= 0 {
		slog.Warn("dropping invalid correction",
			"description", input.Description,
			"category_id", input.CorrectedCategoryID)
		return ""
	}

	correction := model.Correction{
		ID:                  uuid.NewString(),
		Description:         input.Description,
		OriginalCategoryID:  input.OriginalCategoryID,
		CorrectedCategoryID: input.CorrectedCategoryID,
		OriginalSource:      input.OriginalSource,
		ImportSessionID:     input.ImportSessionID,
		CreatedAt:           time.Now().UTC(),
	}

	r.pending.Add(1)
	select {
	case r.queue <- correction:
		return correction.ID
	default:
		r.pending.Done()
		slog.Error("correction queue full, dropping correction", "id", correction.ID)
		return ""
	}
}

// RecordBatch writes a batch synchronously. Whatever the storage layer did
// not confirm is counted as failed, regardless of cause; errors are logged
// and swallowed.
func (r *Recorder) RecordBatch(ctx context.Context, inputs []Input) service.BatchResult {
	corrections := make([]model.Correction, 0, len(inputs))
	invalid := 0
	for _, input := range inputs {
		if strings.TrimSpace(input.Description) == "" || input.CorrectedCategoryID <= 0 {
			invalid++
			continue
		}
		corrections = append(corrections, model.Correction{
			ID:                  uuid.NewString(),
			Description:         input.Description,
			OriginalCategoryID:  input.OriginalCategoryID,
			CorrectedCategoryID: input.CorrectedCategoryID,
			OriginalSource:      input.OriginalSource,
			ImportSessionID:     input.ImportSessionID,
			CreatedAt:           time.Now().UTC(),
		})
	}

	result, err := r.store.RecordCorrectionsBatch(ctx, corrections)
	if err != nil {
		slog.Error("failed to record correction batch", "error", err, "count", len(inputs))
		return service.BatchResult{Failed: len(inputs)}
	}

	result.Failed += invalid
	return result
}

// Flush blocks until all enqueued corrections have been written or dropped,
// or the context ends.
func (r *Recorder) Flush(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker after draining the queue.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.queue)
		<-r.done
	})
}

func (r *Recorder) run() {
	defer close(r.done)

	for correction := range r.queue {
		c := correction
		err := common.WithRetry(context.Background(), func() error {
			return r.store.RecordCorrection(context.Background(), &c)
		}, r.retry)

		if err != nil {
			// Swallowed: the learning loop is an enhancement, losing one
			// correction only weakens future suggestions.
			slog.Error("failed to record correction after retries",
				"id", c.ID, "error", err)
		} else if r.onRecorded != nil {
			r.onRecorded(c.ID)
		}
		r.pending.Done()
	}
}
