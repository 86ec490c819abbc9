package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vaakya-labs/anuvadam/internal/engine"
	"github.com/vaakya-labs/anuvadam/internal/glossary"
	"github.com/vaakya-labs/anuvadam/pkg/log"
)

// RunRecord is the durable trace of one finished engine run.
type RunRecord struct {
	JobID      string
	Engine     string
	Source     string
	Target     string
	Segments   int
	State      State
	Quality    engine.Quality
	Error      string
	DurationMS int64
}

// Recorder persists finished runs. Recording is best effort; a failed
// write never changes job state.
type Recorder interface {
	RecordRun(ctx context.Context, rec RunRecord) error
}

// Orchestrator fans a job out to every requested engine and tracks the
// runs in the store. Each engine gets its own goroutine so a slow or
// failing engine never holds up the others.
type Orchestrator struct {
	registry *engine.Registry
	store    *Store
	table    *glossary.Table
	recorder Recorder
}

func NewOrchestrator(registry *engine.Registry, store *Store, table *glossary.Table, recorder Recorder) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		store:    store,
		table:    table,
		recorder: recorder,
	}
}

// Start validates the request, creates the job record and launches one
// goroutine per engine. It returns a snapshot immediately; progress is
// observed through Status.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (*Job, error) {
	if len(req.Segments) == 0 {
		return nil, fmt.Errorf("no segments to translate")
	}

	adapters := make([]engine.Adapter, 0, len(req.Engines))
	for _, name := range req.Engines {
		adapter, ok := o.registry.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown engine %q", name)
		}
		adapters = append(adapters, adapter)
	}

	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		Segments:  req.Segments,
		Source:    req.Source,
		Target:    req.Target,
		Runs:      make(map[string]*EngineRun, len(adapters)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, adapter := range adapters {
		job.Runs[adapter.Name()] = &EngineRun{Engine: adapter.Name(), State: StatePending}
	}
	o.store.Put(job)
	log.Info("Job %s started with %d engines over %d segments", job.ID, len(adapters), len(req.Segments))

	// Snapshot before any run goroutine exists; once they start, the
	// stored record is only safe to read through the store's lock.
	snapshot := cloneJob(job)

	// Runs outlive the request that started them.
	runCtx := context.WithoutCancel(ctx)
	for _, adapter := range adapters {
		go o.run(runCtx, job.ID, adapter)
	}
	return snapshot, nil
}

// Status returns a point-in-time snapshot of the job. It never blocks
// on in-flight runs.
func (o *Orchestrator) Status(id string) (*Job, bool) {
	return o.store.Get(id)
}

// IsComplete reports whether the job exists and every run is terminal.
func (o *Orchestrator) IsComplete(id string) bool {
	job, ok := o.store.Get(id)
	return ok && job.AllComplete()
}

func (o *Orchestrator) List() []*Job {
	return o.store.List()
}

func (o *Orchestrator) Delete(id string) bool {
	return o.store.Delete(id)
}

func (o *Orchestrator) run(ctx context.Context, jobID string, adapter engine.Adapter) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Engine %s panicked on job %s: %v", adapter.Name(), jobID, r)
			o.finishRun(ctx, jobID, adapter.Name(), started, func(run *EngineRun) {
				run.State = StateError
				run.Error = fmt.Sprintf("engine panicked: %v", r)
			})
		}
	}()

	job, ok := o.store.Get(jobID)
	if !ok {
		return
	}

	o.store.mutateRun(jobID, adapter.Name(), func(run *EngineRun) {
		run.State = StateTranslating
		run.StartedAt = started
	})

	result, err := adapter.TranslateBatch(ctx, job.Segments, o.table)
	if err != nil {
		log.Error("Engine %s failed on job %s: %v", adapter.Name(), jobID, err)
		o.finishRun(ctx, jobID, adapter.Name(), started, func(run *EngineRun) {
			run.State = StateError
			run.Error = err.Error()
		})
		return
	}

	log.Info("Engine %s finished job %s, quality %s", adapter.Name(), jobID, result.Quality)
	o.finishRun(ctx, jobID, adapter.Name(), started, func(run *EngineRun) {
		run.State = StateCompleted
		run.Texts = result.Texts
		run.Quality = result.Quality
		run.Warnings = result.Warnings
	})
}

func (o *Orchestrator) finishRun(ctx context.Context, jobID, engineName string, started time.Time, fn func(*EngineRun)) {
	snapshot, ok := o.store.mutateRun(jobID, engineName, func(run *EngineRun) {
		fn(run)
		run.FinishedAt = time.Now()
	})
	if !ok || o.recorder == nil {
		return
	}

	job, ok := o.store.Get(jobID)
	if !ok {
		return
	}
	rec := RunRecord{
		JobID:      jobID,
		Engine:     engineName,
		Source:     job.Source.String(),
		Target:     job.Target.String(),
		Segments:   len(job.Segments),
		State:      snapshot.State,
		Quality:    snapshot.Quality,
		Error:      snapshot.Error,
		DurationMS: snapshot.FinishedAt.Sub(started).Milliseconds(),
	}
	if err := o.recorder.RecordRun(ctx, rec); err != nil {
		log.Error("Failed to record run %s/%s: %v", jobID, engineName, err)
	}
}
