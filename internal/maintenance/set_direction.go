package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jengzang/traffic-backend-go/internal/analysis"
	"github.com/jengzang/traffic-backend-go/internal/models"
)

// TaskSetDirection is the name of the direction inference task
const TaskSetDirection = "set_direction"

func init() {
	RegisterTask(TaskSetDirection, NewSetDirectionTask)
}

// SetDirectionTask fills the direction flags of snapped samples from the
// session's previous sample.
type SetDirectionTask struct {
	deps Deps
}

// NewSetDirectionTask creates the direction inference task
func NewSetDirectionTask(deps Deps) Task {
	return &SetDirectionTask{deps: deps}
}

func (t *SetDirectionTask) Name() string { return TaskSetDirection }

func (t *SetDirectionTask) Run(ctx context.Context) (int, error) {
	samples, err := t.deps.Store.UserData.ListUndirected(ctx, t.deps.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list undirected samples: %w", err)
	}

	strips := make(map[int64]*models.RoadStrip)
	done := 0
	for i := range samples {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		u := &samples[i]
		dir, err := t.infer(ctx, u, strips)
		if err != nil {
			slog.Warn("skipping sample", "task", TaskSetDirection, "id", u.ID, "error", err)
			continue
		}
		if err := t.deps.Store.UserData.SetDirection(ctx, u.ID, dir); err != nil {
			slog.Warn("skipping sample", "task", TaskSetDirection, "id", u.ID, "error", err)
			continue
		}
		done++
	}
	return done, nil
}

func (t *SetDirectionTask) infer(ctx context.Context, u *models.UserData, cache map[int64]*models.RoadStrip) (models.Direction, error) {
	if u.StripID == nil {
		return models.DirectionUnknown, nil
	}

	strip, ok := cache[*u.StripID]
	if !ok {
		var err error
		if strip, err = t.deps.Store.Roads.GetStrip(ctx, *u.StripID); err != nil {
			return 0, err
		}
		cache[*u.StripID] = strip
	}
	if strip == nil {
		return models.DirectionUnknown, nil
	}

	prev, err := t.deps.Store.UserData.Previous(ctx, u.Token, u.TimeMs)
	if err != nil {
		return 0, err
	}
	return analysis.InferDirection(prev, u.Position(), strip), nil
}
