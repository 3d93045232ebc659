package maintenance

import (
	"context"
	"fmt"

	"github.com/jengzang/traffic-backend-go/internal/repository"
)

// TaskCleanUp is the name of the cleanup task
const TaskCleanUp = "cleanup"

func init() {
	RegisterTask(TaskCleanUp, NewCleanUpTask)
}

// CleanUpTask removes unsnapped samples, stale congestions, expired clients
// and the routes they owned.
type CleanUpTask struct {
	deps Deps
}

// NewCleanUpTask creates the cleanup task
func NewCleanUpTask(deps Deps) Task {
	return &CleanUpTask{deps: deps}
}

func (t *CleanUpTask) Name() string { return TaskCleanUp }

func (t *CleanUpTask) Run(ctx context.Context) (int, error) {
	now := t.deps.Now()
	cutoff := now.Add(-t.deps.CongestionMaxAge).UnixMilli()

	var total int64
	err := t.deps.Store.InTx(ctx, func(r repository.Repos) error {
		samples, err := r.UserData.DeleteUnsnapped(ctx)
		if err != nil {
			return err
		}
		congestions, err := r.Congestions.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return err
		}
		clients, err := r.Clients.DeleteExpired(ctx, now.UnixMilli())
		if err != nil {
			return err
		}
		// after clients: an expired client's route becomes an orphan
		routes, err := r.Routes.DeleteOrphans(ctx)
		if err != nil {
			return err
		}
		total = samples + congestions + clients + routes
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clean up: %w", err)
	}
	return int(total), nil
}
