package datapoint

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStarted   RunStatus = "started"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// TaskCompletion is one entry in a run's monotonic task-completion log.
type TaskCompletion struct {
	Task        string    `json:"task"`
	Units       int       `json:"units"`
	Dropped     int       `json:"dropped,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// PipelineRun records one execution of the cognification DAG for a
// (dataset, pipeline) pair. It is created at run start, mutated only by the
// executor, and retained for audit and idempotency checks.
type PipelineRun struct {
	ID          string           `json:"id"`
	Dataset     string           `json:"dataset"`
	Pipeline    string           `json:"pipeline"`
	Status      RunStatus        `json:"status"`
	CurrentTask string           `json:"current_task,omitempty"`
	Tasks       []TaskCompletion `json:"tasks,omitempty"`
	FailedTask  string           `json:"failed_task,omitempty"`
	Failure     string           `json:"failure,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
}

// NewPipelineRun creates a run record in the Started state. Run ids are
// nanoids, not content-derived: two runs over the same dataset are distinct
// events.
func NewPipelineRun(dataset, pipeline string) (*PipelineRun, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	return &PipelineRun{
		ID:        id,
		Dataset:   dataset,
		Pipeline:  pipeline,
		Status:    RunStarted,
		StartedAt: time.Now().UTC(),
	}, nil
}

// CompletedUnits sums the unit counts across the completion log.
func (r *PipelineRun) CompletedUnits() int {
	total := 0
	for _, t := range r.Tasks {
		total += t.Units
	}
	return total
}
