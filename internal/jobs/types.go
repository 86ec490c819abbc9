package jobs

import (
	"time"

	"golang.org/x/text/language"

	"github.com/vaakya-labs/anuvadam/internal/engine"
)

type State string

const (
	StatePending     State = "pending"
	StateTranslating State = "translating"
	StateCompleted   State = "completed"
	StateError       State = "error"
)

// Terminal reports whether a run has finished, successfully or not.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// StartRequest describes a translation job to fan out. Engines lists
// the adapter names to run; every requested engine translates the same
// segments independently.
type StartRequest struct {
	Segments []string
	Engines  []string
	Source   language.Tag
	Target   language.Tag
}

// EngineRun tracks one engine's progress within a job.
type EngineRun struct {
	Engine     string         `json:"engine"`
	State      State          `json:"state"`
	Texts      []string       `json:"texts,omitempty"`
	Quality    engine.Quality `json:"quality,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at,omitempty"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
}

// Job is the mutable record behind a job ID. All access goes through
// the store; callers only ever see clones.
type Job struct {
	ID        string                `json:"id"`
	Segments  []string              `json:"segments"`
	Source    language.Tag          `json:"source"`
	Target    language.Tag          `json:"target"`
	Runs      map[string]*EngineRun `json:"runs"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// AllComplete reports whether every engine run has reached a terminal
// state. A job with no runs is complete by definition.
func (j *Job) AllComplete() bool {
	for _, run := range j.Runs {
		if !run.State.Terminal() {
			return false
		}
	}
	return true
}

func cloneRun(run *EngineRun) *EngineRun {
	if run == nil {
		return nil
	}
	tmp := *run
	if run.Texts != nil {
		tmp.Texts = make([]string, len(run.Texts))
		copy(tmp.Texts, run.Texts)
	}
	if run.Warnings != nil {
		tmp.Warnings = make([]string, len(run.Warnings))
		copy(tmp.Warnings, run.Warnings)
	}
	return &tmp
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	if job.Segments != nil {
		tmp.Segments = make([]string, len(job.Segments))
		copy(tmp.Segments, job.Segments)
	}
	tmp.Runs = make(map[string]*EngineRun, len(job.Runs))
	for name, run := range job.Runs {
		tmp.Runs[name] = cloneRun(run)
	}
	return &tmp
}
