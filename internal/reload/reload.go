// Package reload rebuilds the rules datastore from its source and swaps
// the result into the serving engine.
//
// A rebuild happens entirely on the side: the serving snapshot keeps
// answering matches until the replacement has activated, and a failed
// rebuild leaves it untouched.
package reload

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"email-router/internal/common/logging"
	"email-router/internal/routing"
)

// Reloader rebuilds the rules datastore on demand or on a cron schedule.
type Reloader struct {
	source   routing.SourceConfig
	instance routing.InstanceType
	engine   *routing.Engine

	// mu serializes rebuilds so swaps happen in load order
	mu        sync.Mutex
	scheduler *cron.Cron
}

// New creates a Reloader that rebuilds from source for the given instance
// and installs successful rebuilds into engine.
func New(source routing.SourceConfig, instance routing.InstanceType, engine *routing.Engine) *Reloader {
	return &Reloader{
		source:   source,
		instance: instance,
		engine:   engine,
	}
}

// ReloadNow rebuilds the datastore from the source. On success the new
// snapshot replaces the serving one and is returned; on failure the
// serving snapshot stays in place and the load error is returned.
func (r *Reloader) ReloadNow() (*routing.RulesDatastore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ds, err := routing.LoadFromSource(r.source, r.instance)
	if err != nil {
		logging.Error("rules reload failed, keeping active datastore", err,
			logging.String("source", r.source.URI),
		)
		return nil, err
	}

	previous := r.engine.Current()
	r.engine.Swap(ds)

	fields := []logging.Field{
		logging.String("source", r.source.URI),
		logging.Int("revision", ds.RevisionNumber()),
		logging.Int("targets", ds.TargetCount()),
	}
	if previous != nil {
		fields = append(fields, logging.Int("previous_revision", previous.RevisionNumber()))
	}
	logging.Info("rules datastore swapped", fields...)

	return ds, nil
}

// StartSchedule begins periodic reloads following a cron expression
// (standard five fields or a @descriptor). The schedule runs until Stop.
func (r *Reloader) StartSchedule(schedule string) error {
	if r.scheduler != nil {
		return fmt.Errorf("reload schedule already running")
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(schedule, func() {
		if _, err := r.ReloadNow(); err != nil {
			logging.Warn("scheduled rules reload skipped", logging.Err(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid reload schedule %q: %w", schedule, err)
	}

	scheduler.Start()
	r.scheduler = scheduler

	logging.Info("rules reload schedule started", logging.String("schedule", schedule))
	return nil
}

// Stop halts the schedule and waits for an in-flight reload to finish.
// A Reloader without a running schedule tolerates Stop.
func (r *Reloader) Stop() {
	if r.scheduler == nil {
		return
	}

	ctx := r.scheduler.Stop()
	<-ctx.Done()
	r.scheduler = nil
}
