// Package scheduler registers recurring batch invocations on a cron
// timetable.
package scheduler

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/conwaychriscosmo/feedbackforge/pkg/logging"
)

// DefaultSpec runs a job daily at 18:00.
const DefaultSpec = "0 18 * * *"

// Job is a scheduled unit of work. Errors are logged; they never unregister
// the schedule.
type Job func(ctx context.Context) error

// SchedulingError reports a registration that could not be installed,
// usually because of an unparseable cadence expression.
type SchedulingError struct {
	Label string
	Spec  string
	Err   error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("invalid schedule %q for %s: %v", e.Spec, e.Label, e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}

// Registrar owns a cron runner and the jobs registered on it. Registration
// is keyed by label: registering an existing label replaces its schedule
// instead of stacking a second one.
type Registrar struct {
	logger zerolog.Logger
	parser cron.Parser

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	runCtx  context.Context
	started bool
}

// New creates a registrar. Specs use the standard 5-field cron syntax plus
// descriptors like @daily and @every 1h.
func New() *Registrar {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Registrar{
		logger:  logging.NewLogger("scheduler"),
		parser:  parser,
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
	}
}

// Register installs job under label with the given cadence. An empty spec
// falls back to DefaultSpec. Registering a label twice replaces the earlier
// schedule; the label never fires more than one schedule.
func (r *Registrar) Register(label, spec string, job Job) error {
	if strings.TrimSpace(label) == "" {
		return &SchedulingError{Label: label, Spec: spec, Err: fmt.Errorf("label is required")}
	}
	if job == nil {
		return &SchedulingError{Label: label, Spec: spec, Err: fmt.Errorf("job is required")}
	}
	if spec == "" {
		spec = DefaultSpec
	}

	// Validate before touching an existing registration, so a bad spec
	// leaves the previous schedule running.
	if _, err := r.parser.Parse(spec); err != nil {
		return &SchedulingError{Label: label, Spec: spec, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[label]; ok {
		r.cron.Remove(old)
		r.logger.Debug().
			Str("label", label).
			Msg("Replacing existing schedule")
	}

	id, err := r.cron.AddFunc(spec, r.wrap(label, job))
	if err != nil {
		return &SchedulingError{Label: label, Spec: spec, Err: err}
	}
	r.entries[label] = id

	r.logger.Info().
		Str("label", label).
		Str("spec", spec).
		Msg("Schedule registered")

	return nil
}

// Unregister removes a schedule by label, reporting whether it existed.
func (r *Registrar) Unregister(label string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.entries[label]
	if !ok {
		return false
	}

	r.cron.Remove(id)
	delete(r.entries, label)

	r.logger.Info().
		Str("label", label).
		Msg("Schedule removed")

	return true
}

// Labels returns the registered labels, sorted.
func (r *Registrar) Labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	labels := make([]string, 0, len(r.entries))
	for label := range r.entries {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Next returns the next fire time for a label. The time is zero until the
// registrar has started.
func (r *Registrar) Next(label string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.entries[label]
	if !ok {
		return time.Time{}, false
	}
	return r.cron.Entry(id).Next, true
}

// Start begins firing schedules. Jobs receive ctx; cancelling it drains
// running batches while the cron runner keeps firing until Stop.
func (r *Registrar) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return
	}
	r.runCtx = ctx
	r.started = true
	r.cron.Start()

	r.logger.Info().
		Int("schedules", len(r.entries)).
		Msg("Scheduler started")
}

// Stop prevents further firings and waits for running jobs to finish, or
// for ctx to expire.
func (r *Registrar) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	stopCtx := r.cron.Stop()
	r.mu.Unlock()

	select {
	case <-stopCtx.Done():
		r.logger.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop aborted: %w", ctx.Err())
	}
}

// wrap adapts a Job to the cron runner, attaching the run context and
// logging each firing.
func (r *Registrar) wrap(label string, job Job) func() {
	return func() {
		logger := r.logger.With().Str("label", label).Logger()
		logger.Info().Msg("Scheduled run starting")

		start := time.Now()
		if err := job(r.jobContext()); err != nil {
			logger.Error().
				Err(err).
				Dur("duration", time.Since(start)).
				Msg("Scheduled run failed")
			return
		}

		logger.Info().
			Dur("duration", time.Since(start)).
			Msg("Scheduled run complete")
	}
}

func (r *Registrar) jobContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runCtx != nil {
		return r.runCtx
	}
	return context.Background()
}

// CommandJob adapts a shell command to a Job, for deployments that trigger
// a CLI run instead of an in-process batch.
func CommandJob(command string) Job {
	return func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("command %q: %w (output: %s)", command, err, strings.TrimSpace(string(out)))
		}
		return nil
	}
}
