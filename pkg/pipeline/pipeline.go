package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/trellis-kg/trellis/pkg/chunker"
	"github.com/trellis-kg/trellis/pkg/datapoint"
	"github.com/trellis-kg/trellis/pkg/logger"
	"github.com/trellis-kg/trellis/pkg/store"
	"github.com/trellis-kg/trellis/pkg/summary"

	"golang.org/x/sync/errgroup"
)

// DocumentInput is one raw document handed to a run.
type DocumentInput struct {
	Name     string
	MimeType string
	Content  []byte
}

// Unit is the per-document working state threaded through the tasks of a
// run. Tasks populate it in order: chunks first, then whatever the later
// stages derive from them.
type Unit struct {
	Document datapoint.Document
	Content  []byte
	Chunks   []datapoint.Chunk
}

// Task is one named stage of a pipeline. Run is invoked once per document
// unit and returns the batch delta to persist when the stage completes.
type Task struct {
	Name string
	Run  func(ctx context.Context, unit *Unit) (store.Batch, error)
}

// RunSpec describes one pipeline execution. RunID is optional: when a run
// record was already created by whoever enqueued the work, the executor
// adopts that id instead of minting a fresh one.
type RunSpec struct {
	RunID     string
	Dataset   string
	Pipeline  string
	Documents []DocumentInput
	Tasks     []Task
}

// Executor drives pipeline runs: status transitions, bounded per-document
// concurrency inside each task, and a writer flush at every task boundary
// so later stages read committed state.
type Executor struct {
	relational  store.Relational
	writer      *store.Writer
	concurrency int
}

// NewExecutor creates an executor. Concurrency bounds how many document
// units a task processes in parallel; zero means 4.
func NewExecutor(relational store.Relational, writer *store.Writer, concurrency int) *Executor {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Executor{
		relational:  relational,
		writer:      writer,
		concurrency: concurrency,
	}
}

// Run executes the tasks in declared order and returns the final
// run record. The record is also persisted through the relational store at
// every transition, so callers can poll it by id. A unit whose own input is
// bad (undecodable document, unsummarizable chunk) is dropped from the run
// and the remaining units continue; any other unit error fails the run
// after its task finishes, keeping the count of units that succeeded.
// Already persisted writes stay, because re-running converges instead of
// rolling back.
func (e *Executor) Run(ctx context.Context, spec RunSpec) (*datapoint.PipelineRun, error) {
	run, err := datapoint.NewPipelineRun(spec.Dataset, spec.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	if spec.RunID != "" {
		run.ID = spec.RunID
	}
	if err := e.relational.SaveRun(ctx, *run); err != nil {
		return nil, fmt.Errorf("saving run: %w", err)
	}

	units, skipped, err := e.admitUnits(ctx, spec)
	if err != nil {
		return e.fail(ctx, run, "admit", err)
	}
	if skipped > 0 {
		logger.Info("skipping already ingested documents",
			"run", run.ID,
			"dataset", spec.Dataset,
			"skipped", skipped,
		)
	}

	for _, task := range spec.Tasks {
		if ctx.Err() != nil {
			return e.fail(ctx, run, task.Name, fmt.Errorf("run canceled: %w", ctx.Err()))
		}

		run.Status = datapoint.RunRunning
		run.CurrentTask = task.Name
		if err := e.relational.SaveRun(ctx, *run); err != nil {
			return e.fail(ctx, run, task.Name, fmt.Errorf("saving run: %w", err))
		}

		out, err := e.runTask(ctx, task, units)
		run.Tasks = append(run.Tasks, datapoint.TaskCompletion{
			Task:        task.Name,
			Units:       out.succeeded,
			Dropped:     out.dropped,
			CompletedAt: time.Now().UTC(),
		})
		if err != nil {
			return e.fail(ctx, run, task.Name, err)
		}
		units = out.survivors
	}

	for _, unit := range units {
		if err := e.relational.MarkCompleted(ctx, spec.Dataset, spec.Pipeline, unit.Document.ContentHash); err != nil {
			return e.fail(ctx, run, "complete", fmt.Errorf("marking document complete: %w", err))
		}
	}

	now := time.Now().UTC()
	run.Status = datapoint.RunCompleted
	run.CurrentTask = ""
	run.FinishedAt = &now
	if err := e.relational.SaveRun(ctx, *run); err != nil {
		return run, fmt.Errorf("saving completed run: %w", err)
	}

	logger.Info("pipeline run completed",
		"run", run.ID,
		"dataset", spec.Dataset,
		"pipeline", spec.Pipeline,
		"documents", len(units),
	)
	return run, nil
}

// admitUnits registers incoming documents and drops the ones whose content
// hash already completed this pipeline, so re-runs only advance the
// frontier.
func (e *Executor) admitUnits(ctx context.Context, spec RunSpec) ([]*Unit, int, error) {
	var units []*Unit
	skipped := 0
	for _, input := range spec.Documents {
		doc := datapoint.NewDocument(spec.Dataset, input.Name, input.MimeType, input.Content)
		done, err := e.relational.HasCompleted(ctx, spec.Dataset, spec.Pipeline, doc.ContentHash)
		if err != nil {
			return nil, 0, fmt.Errorf("checking ingest progress: %w", err)
		}
		if done {
			skipped++
			continue
		}
		units = append(units, &Unit{Document: doc, Content: input.Content})
	}
	return units, skipped, nil
}

// taskOutcome is what one task left behind: how many units succeeded, how
// many were dropped for bad input, and the units the next task still runs
// over.
type taskOutcome struct {
	succeeded int
	dropped   int
	survivors []*Unit
}

// runTask applies one task to every unit with bounded concurrency, merges
// the deltas, and flushes them through the writer before returning. Units
// whose error is an input error are dropped from the survivors and the task
// is still considered done; the first non-input unit error is returned
// after the flush so completed work is never discarded.
func (e *Executor) runTask(ctx context.Context, task Task, units []*Unit) (taskOutcome, error) {
	var (
		mergeMu sync.Mutex
		merged  store.Batch
	)
	out := taskOutcome{survivors: make([]*Unit, 0, len(units))}
	unitErrs := make([]error, len(units))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, unit := range units {
		i, u := i, unit
		g.Go(func() error {
			if gCtx.Err() != nil {
				return nil
			}
			delta, err := task.Run(gCtx, u)

			mergeMu.Lock()
			defer mergeMu.Unlock()
			if err != nil {
				unitErrs[i] = err
				return nil
			}
			out.succeeded++
			mergeBatch(&merged, delta)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	merged.Dataset = datasetOf(units)
	if err := e.writer.Persist(ctx, merged); err != nil {
		return out, fmt.Errorf("flushing task %s: %w", task.Name, err)
	}

	var unitErr error
	for i, u := range units {
		err := unitErrs[i]
		if err == nil {
			out.survivors = append(out.survivors, u)
			continue
		}
		if isInputError(err) {
			out.dropped++
			logger.Warn("dropping document with bad input",
				"task", task.Name,
				"document", u.Document.ID,
				"err", err,
			)
			continue
		}
		logger.Error("task failed for document",
			"task", task.Name,
			"document", u.Document.ID,
			"err", err,
		)
		if unitErr == nil {
			unitErr = fmt.Errorf("task %s failed for document %s: %w", task.Name, u.Document.ID, err)
		}
	}
	return out, unitErr
}

// isInputError reports whether err stems from the unit's own content
// rather than from the pipeline's infrastructure. Such units cannot ever
// succeed, so they are dropped instead of failing the run.
func isInputError(err error) bool {
	var decodeErr *chunker.DecodingError
	var summaryErr *summary.InvalidSummaryInputsError
	return errors.As(err, &decodeErr) || errors.As(err, &summaryErr)
}

func (e *Executor) fail(ctx context.Context, run *datapoint.PipelineRun, task string, cause error) (*datapoint.PipelineRun, error) {
	now := time.Now().UTC()
	run.Status = datapoint.RunFailed
	run.CurrentTask = ""
	run.FailedTask = task
	run.Failure = cause.Error()
	run.FinishedAt = &now

	// bookkeeping must outlive a canceled run context
	if err := e.relational.SaveRun(context.WithoutCancel(ctx), *run); err != nil {
		logger.Error("failed to save failed run", "run", run.ID, "err", err)
	}

	logger.Error("pipeline run failed",
		"run", run.ID,
		"task", task,
		"completed_units", run.CompletedUnits(),
		"err", cause,
	)
	return run, cause
}

func mergeBatch(dst *store.Batch, src store.Batch) {
	dst.Documents = append(dst.Documents, src.Documents...)
	dst.Chunks = append(dst.Chunks, src.Chunks...)
	dst.Types = append(dst.Types, src.Types...)
	dst.Entities = append(dst.Entities, src.Entities...)
	dst.Edges = append(dst.Edges, src.Edges...)
	dst.Summaries = append(dst.Summaries, src.Summaries...)
	dst.Code = append(dst.Code, src.Code...)
}

func datasetOf(units []*Unit) string {
	if len(units) == 0 {
		return ""
	}
	return units[0].Document.Dataset
}
