package domain

import "time"

// RunState is the per-run pipeline state machine.
type RunState string

const (
	RunStateInit       RunState = "INIT"
	RunStateFetching   RunState = "FETCHING"
	RunStateFlattened  RunState = "FLATTENED"
	RunStateWritten    RunState = "WRITTEN"
	RunStateEvaluated  RunState = "EVALUATED"
	RunStateDispatched RunState = "DISPATCHED"
	RunStateDone       RunState = "DONE"
	RunStateFailed     RunState = "FAILED"
)

// PipelineRun is the bookkeeping record of one export run.
type PipelineRun struct {
	ID            string
	ReportDate    string
	State         RunState
	RowCount      int
	DroppedChunks int
	AlertsSent    int
	AlertsFailed  int
	Error         string
	StartedAt     time.Time
	FinishedAt    *time.Time
}
