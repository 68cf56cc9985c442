package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stage names a pipeline stage addressable as an operation.
type Stage string

// Pipeline stages in cascade order.
const (
	StageDiscover     Stage = "discover"
	StageProcessQueue Stage = "process-queue"
	StageCrawl        Stage = "crawl"
	StageRender       Stage = "render"
	StageExtract      Stage = "extract"
	StageNormalize    Stage = "normalize-persist"
)

// NextStage returns the stage started when a run completes with the cascade
// flag set, or "" at the end of the chain.
func NextStage(s Stage) Stage {
	switch s {
	case StageDiscover:
		return StageProcessQueue
	case StageProcessQueue:
		return StageCrawl
	case StageCrawl:
		return StageRender
	case StageRender:
		return StageExtract
	case StageExtract:
		return StageNormalize
	default:
		return ""
	}
}

// ParseStage maps an external stage name onto a known Stage.
func ParseStage(s string) (Stage, bool) {
	switch Stage(s) {
	case StageDiscover, StageProcessQueue, StageCrawl, StageRender, StageExtract, StageNormalize:
		return Stage(s), true
	}
	return "", false
}

// RunStatus is the lifecycle state of a pipeline run. Terminal states are
// final; no run re-enters running.
type RunStatus string

// Run statuses persisted in pipeline_runs.status.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// RunLogEntry is one append-only structured log line on a run.
type RunLogEntry struct {
	TS    time.Time      `json:"ts"`
	Level string         `json:"level"`
	Msg   string         `json:"msg"`
	Data  map[string]any `json:"data,omitempty"`
}

// StageParams carries the typed parameters of a stage invocation.
type StageParams struct {
	Sources    []string    `json:"sources,omitempty"`
	CompanyIDs []uuid.UUID `json:"company_ids,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Cascade    bool        `json:"cascade,omitempty"`
}

// PipelineRun is one execution of a named stage. Only the owning stage (or
// the restart sweep) mutates it.
type PipelineRun struct {
	ID          uuid.UUID     `json:"id"`
	Stage       Stage         `json:"stage"`
	Status      RunStatus     `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	CurrentStep string        `json:"current_step,omitempty"`
	Processed   int           `json:"processed"`
	Failed      int           `json:"failed"`
	Error       string        `json:"error,omitempty"`
	Cascade     bool          `json:"cascade"`
	Logs        []RunLogEntry `json:"logs"`
}
