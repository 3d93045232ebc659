package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jengzang/traffic-backend-go/internal/analysis"
	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/spatial"
)

// TaskUpdateSpeed is the name of the speed-limit inference task
const TaskUpdateSpeed = "update_speed"

func init() {
	RegisterTask(TaskUpdateSpeed, NewUpdateSpeedTask)
}

// UpdateSpeedTask infers road speed limits from observed speeds. Limits an
// operator fixed are never touched.
type UpdateSpeedTask struct {
	deps Deps
}

// NewUpdateSpeedTask creates the speed-limit inference task
func NewUpdateSpeedTask(deps Deps) Task {
	return &UpdateSpeedTask{deps: deps}
}

func (t *UpdateSpeedTask) Name() string { return TaskUpdateSpeed }

func (t *UpdateSpeedTask) Run(ctx context.Context) (int, error) {
	ids, err := t.deps.Store.UserData.StripsWithSamples(ctx, analysis.MinTotalSamples)
	if err != nil {
		return 0, fmt.Errorf("failed to list strips: %w", err)
	}
	strips, err := t.deps.Store.Roads.StripsByID(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to load strips: %w", err)
	}

	updated := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		strip := strips[id]
		if strip == nil || strip.Road == nil || !strip.Road.LimitInferable() {
			continue
		}

		samples, err := t.deps.Store.UserData.ForStrip(ctx, id)
		if err != nil {
			slog.Warn("skipping strip", "task", TaskUpdateSpeed, "strip", id, "error", err)
			continue
		}
		limit, ok := analysis.InferSpeedLimit(interiorSpeeds(strip, samples))
		if !ok {
			continue
		}

		changed, err := t.deps.Store.Roads.SetInferredMaxSpeed(ctx, strip.RoadID, limit)
		if err != nil {
			slog.Warn("skipping strip", "task", TaskUpdateSpeed, "strip", id, "error", err)
			continue
		}
		if changed {
			updated++
		}
	}
	return updated, nil
}

// interiorSpeeds keeps samples away from both strip endpoints, where
// vehicles slow down for the intersection.
func interiorSpeeds(strip *models.RoadStrip, samples []models.UserData) []float64 {
	start, end := strip.Start(), strip.End()
	out := make([]float64, 0, len(samples))
	for _, u := range samples {
		p := u.Position()
		if spatial.Distance(p, start) < analysis.MinEndpointDistance ||
			spatial.Distance(p, end) < analysis.MinEndpointDistance {
			continue
		}
		out = append(out, u.Speed)
	}
	return out
}
