package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vaakya-labs/anuvadam/pkg/log"
)

// Cleaner prunes finished jobs from the store on a cron schedule so
// abandoned poll targets do not accumulate forever.
type Cleaner struct {
	cron *cron.Cron
}

// NewCleaner schedules Prune(ttl) at the given cron spec, for example
// "*/10 * * * *". The schedule does not run until Start is called.
func NewCleaner(store *Store, spec string, ttl time.Duration) (*Cleaner, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		pruned := store.Prune(ttl)
		if len(pruned) > 0 {
			log.Info("Pruned %d expired jobs", len(pruned))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	return &Cleaner{cron: c}, nil
}

func (c *Cleaner) Start() { c.cron.Start() }

func (c *Cleaner) Stop() { c.cron.Stop() }
