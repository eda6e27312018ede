package workflow

import (
	"context"
	"fmt"

	"github.com/kbukum/batchkit/batch"
	"github.com/kbukum/batchkit/errors"
	"github.com/kbukum/batchkit/logger"
	"github.com/kbukum/batchkit/observability"
	"github.com/kbukum/batchkit/progress"
	"github.com/kbukum/batchkit/stream"
)

// StageRunner binds batch runs to one session's stream and tracker.
type StageRunner struct {
	// Stream receives progress, error and result events.
	Stream *stream.Stream
	// Tracker records stage state and item counts.
	Tracker *progress.Tracker
	// Metrics is optional; when set, chunk and item counts are recorded.
	Metrics *observability.Metrics
	// Logger is optional and defaults to the global logger.
	Logger *logger.Logger
}

func (r *StageRunner) validate() error {
	if r == nil {
		return errors.InvalidInput("runner", "stage runner is required")
	}
	if r.Stream == nil {
		return errors.InvalidInput("stream", "stage runner needs a stream")
	}
	if r.Tracker == nil {
		return errors.InvalidInput("tracker", "stage runner needs a tracker")
	}
	return nil
}

func (r *StageRunner) log() *logger.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logger.WithComponent("workflow")
}

// StageResult summarizes one stage's item outcomes.
type StageResult struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Outcome tallies a batch result set into a StageResult.
func Outcome[O any](results []batch.Result[O]) StageResult {
	succeeded, failed := batch.Tally(results)
	return StageResult{Total: len(results), Succeeded: succeeded, Failed: failed}
}

// RunStage executes a per-item batch run as one tracked stage of the
// session. Chunk completions update the tracker and emit progress events;
// item failures become an error event but never abort the stage. A stage
// where every item fails is marked failed, otherwise it completes with a
// result event.
func RunStage[I, O any](ctx context.Context, r *StageRunner, stage progress.Stage, items []I, opts batch.Options, fn batch.ItemFunc[I, O]) ([]batch.Result[O], error) {
	return runStage(ctx, r, stage, len(items), func(onChunk batch.ChunkFunc) ([]batch.Result[O], error) {
		return batch.Run(ctx, items, opts, fn, onChunk)
	})
}

// RunStageBulk is RunStage for bulk mode: chunks are issued as single
// bulk calls with retry-then-degrade semantics.
func RunStageBulk[I, O any](ctx context.Context, r *StageRunner, stage progress.Stage, items []I, opts batch.Options, bulk batch.BulkFunc[I, O], fallback batch.ItemFunc[I, O]) ([]batch.Result[O], error) {
	return runStage(ctx, r, stage, len(items), func(onChunk batch.ChunkFunc) ([]batch.Result[O], error) {
		return batch.RunBulk(ctx, items, opts, bulk, fallback, onChunk)
	})
}

func runStage[O any](ctx context.Context, r *StageRunner, stage progress.Stage, total int, run func(batch.ChunkFunc) ([]batch.Result[O], error)) ([]batch.Result[O], error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	log := r.log().WithFields(logger.Fields(
		logger.FieldSessionID, r.Stream.SessionID(),
		logger.FieldStage, string(stage),
	))

	if err := r.Tracker.StartStage(stage, total, ""); err != nil {
		return nil, err
	}

	onChunk := func(completed, total int) {
		if err := r.Tracker.UpdateProgress(stage, completed, ""); err != nil {
			log.Warn("progress update rejected", logger.Fields(logger.FieldError, err.Error()))
		}
		if err := r.Stream.EmitProgress(completed, total, string(stage)); err != nil {
			log.Warn("progress event dropped", logger.Fields(logger.FieldError, err.Error()))
		}
		if r.Metrics != nil {
			r.Metrics.RecordChunk(ctx, string(stage))
		}
	}

	results, err := run(onChunk)
	succeeded, failed := batch.Tally(results)
	if r.Metrics != nil {
		r.Metrics.RecordItems(ctx, string(stage), succeeded, failed)
	}

	if err != nil {
		// Cancellation or a programmer error aborted the run.
		_ = r.Tracker.FailStage(stage, err.Error())
		_ = r.Stream.EmitError(fmt.Sprintf("stage %s aborted", stage), err)
		return results, err
	}

	if failed > 0 {
		_ = r.Stream.EmitError(fmt.Sprintf("%d of %d items failed during %s", failed, total, stage), nil)
		if r.Metrics != nil {
			r.Metrics.RecordError(ctx, "item_failure", string(stage))
		}
	}

	if succeeded == 0 && total > 0 {
		_ = r.Tracker.FailStage(stage, "no items processed successfully")
		return results, nil
	}

	_ = r.Tracker.CompleteStage(stage, "")
	_ = r.Stream.EmitResult(string(stage), map[string]any{
		"total":     total,
		"succeeded": succeeded,
		"failed":    failed,
	})
	return results, nil
}
