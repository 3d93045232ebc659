package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jengzang/traffic-backend-go/internal/protocol"
)

// TaskRefreshRoutes is the name of the rerouting task
const TaskRefreshRoutes = "refresh_routes"

func init() {
	RegisterTask(TaskRefreshRoutes, NewRefreshRoutesTask)
}

// RefreshRoutesTask recalculates every owned route against current jams
type RefreshRoutesTask struct {
	deps Deps
}

// NewRefreshRoutesTask creates the rerouting task
func NewRefreshRoutesTask(deps Deps) Task {
	return &RefreshRoutesTask{deps: deps}
}

func (t *RefreshRoutesTask) Name() string { return TaskRefreshRoutes }

func (t *RefreshRoutesTask) Run(ctx context.Context) (int, error) {
	if t.deps.Routes == nil {
		return 0, errors.New("route service not configured")
	}

	routes, err := t.deps.Store.Routes.ListOwned(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list routes: %w", err)
	}

	changed := 0
	for i := range routes {
		if err := ctx.Err(); err != nil {
			return changed, err
		}

		rerouted, err := t.deps.Routes.Reroute(ctx, &routes[i])
		if err != nil {
			// a router outage would otherwise be logged once per route
			if errors.Is(err, protocol.ErrUpstream) {
				return changed, fmt.Errorf("route %d: %w", routes[i].ID, err)
			}
			slog.Warn("skipping route", "task", TaskRefreshRoutes, "id", routes[i].ID, "error", err)
			continue
		}
		if rerouted {
			changed++
		}
	}
	return changed, nil
}
