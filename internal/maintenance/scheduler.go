package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jengzang/traffic-backend-go/internal/metrics"
	"github.com/jengzang/traffic-backend-go/internal/repository"
)

// ErrUnknownTask is returned by RunNow for a name that was never added
var ErrUnknownTask = errors.New("unknown maintenance task")

type scheduled struct {
	task     Task
	interval time.Duration
	mu       sync.Mutex // one run of a task at a time
}

// Scheduler runs every task in its own loop: run once, sleep, repeat
type Scheduler struct {
	store *repository.Store
	now   func() time.Time
	tasks map[string]*scheduled
	order []string
}

// NewScheduler creates a scheduler recording runs in store
func NewScheduler(store *repository.Store) *Scheduler {
	return &Scheduler{store: store, now: time.Now, tasks: make(map[string]*scheduled)}
}

// Add schedules task every interval. A non-positive interval registers the
// task for on-demand runs only.
func (s *Scheduler) Add(task Task, interval time.Duration) {
	if _, exists := s.tasks[task.Name()]; exists {
		slog.Warn("duplicate maintenance task ignored", "task", task.Name())
		return
	}
	s.tasks[task.Name()] = &scheduled{task: task, interval: interval}
	s.order = append(s.order, task.Name())
}

// Tasks returns the scheduled task names in insertion order.
func (s *Scheduler) Tasks() []string {
	return append([]string(nil), s.order...)
}

// Run starts every periodic task and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, name := range s.order {
		st := s.tasks[name]
		if st.interval <= 0 {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, st)
		}()
	}
	slog.Info("maintenance scheduler started", "tasks", len(s.order))

	wg.Wait()
	return nil
}

func (s *Scheduler) loop(ctx context.Context, st *scheduled) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// failures are recorded and logged; the loop goes on
		_, _ = s.run(ctx, st)
		timer.Reset(st.interval)
	}
}

// RunNow runs the named task once, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (int, error) {
	st, ok := s.tasks[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return s.run(ctx, st)
}

func (s *Scheduler) run(ctx context.Context, st *scheduled) (affected int, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	name := st.task.Name()
	log := slog.With("task", name)
	start := s.now()

	runID, markErr := s.store.Runs.MarkRunning(ctx, name, start.UnixMilli())
	if markErr != nil {
		log.Warn("failed to record run start", "error", markErr)
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}

		finished := s.now()
		metrics.MaintenanceDuration.WithLabelValues(name).Observe(finished.Sub(start).Seconds())

		if err != nil {
			metrics.MaintenanceRuns.WithLabelValues(name, metrics.OutcomeError).Inc()
			log.Error("maintenance run failed", "error", err)
			if markErr == nil {
				if e := s.store.Runs.MarkFailed(context.WithoutCancel(ctx), runID, err.Error(), finished.UnixMilli()); e != nil {
					log.Warn("failed to record run failure", "error", e)
				}
			}
			return
		}

		metrics.MaintenanceRuns.WithLabelValues(name, metrics.OutcomeOK).Inc()
		metrics.MaintenanceAffected.WithLabelValues(name).Add(float64(affected))
		log.Info("maintenance run completed", "affected", affected, "duration", finished.Sub(start))
		if markErr == nil {
			if e := s.store.Runs.MarkCompleted(context.WithoutCancel(ctx), runID, affected, finished.UnixMilli()); e != nil {
				log.Warn("failed to record run completion", "error", e)
			}
		}
	}()

	return st.task.Run(ctx)
}
