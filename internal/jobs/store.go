package jobs

import (
	"sync"
	"time"
)

// Store keeps jobs in memory behind a read/write lock. Reads hand out
// clones so pollers never observe a record mid-mutation; writes to a
// given run only ever come from that run's own goroutine.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

func (s *Store) Put(job *Job) {
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
}

func (s *Store) Get(id string) (*Job, bool) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

func (s *Store) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		ret = append(ret, cloneJob(job))
	}
	return ret
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Prune removes completed jobs whose last update is older than ttl.
// Jobs with runs still in flight are never pruned. Returns the IDs
// removed.
func (s *Store) Prune(ttl time.Duration) []string {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned []string
	for id, job := range s.jobs {
		if !job.AllComplete() {
			continue
		}
		if job.UpdatedAt.After(cutoff) {
			continue
		}
		delete(s.jobs, id)
		pruned = append(pruned, id)
	}
	return pruned
}

// mutateRun applies fn to a single engine run under the write lock and
// returns a clone of the updated run.
func (s *Store) mutateRun(jobID, engineName string, fn func(*EngineRun)) (*EngineRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	run, ok := job.Runs[engineName]
	if !ok {
		return nil, false
	}
	fn(run)
	job.UpdatedAt = time.Now()
	return cloneRun(run), true
}
