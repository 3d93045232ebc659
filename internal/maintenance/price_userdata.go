package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jengzang/traffic-backend-go/internal/models"
)

// TaskPriceUserData is the name of the sample weighting task
const TaskPriceUserData = "price_userdata"

// Samples with fewer than minDenseStrips strips inside denseRadius meters
// are isolated and weigh more.
const (
	denseRadius    = 75.0
	minDenseStrips = 2
)

func init() {
	RegisterTask(TaskPriceUserData, NewPriceUserDataTask)
}

// PriceUserDataTask assigns each sample the weight used by aggregation
type PriceUserDataTask struct {
	deps Deps
}

// NewPriceUserDataTask creates the weighting task
func NewPriceUserDataTask(deps Deps) Task {
	return &PriceUserDataTask{deps: deps}
}

func (t *PriceUserDataTask) Name() string { return TaskPriceUserData }

func (t *PriceUserDataTask) Run(ctx context.Context) (int, error) {
	samples, err := t.deps.Store.UserData.ListUnpriced(ctx, t.deps.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list unpriced samples: %w", err)
	}

	priced := 0
	for _, u := range samples {
		if err := ctx.Err(); err != nil {
			return priced, err
		}

		n, err := t.deps.Store.Roads.CountWithin(ctx, u.Position(), denseRadius)
		if err != nil {
			slog.Warn("skipping sample", "task", TaskPriceUserData, "id", u.ID, "error", err)
			continue
		}
		if err := t.deps.Store.UserData.SetFactor(ctx, u.ID, PriceFactor(n)); err != nil {
			slog.Warn("skipping sample", "task", TaskPriceUserData, "id", u.ID, "error", err)
			continue
		}
		priced++
	}
	return priced, nil
}

// PriceFactor returns the weight of a sample with nearby strips around it.
func PriceFactor(nearby int) int {
	if nearby < minDenseStrips {
		return models.FactorIsolated
	}
	return models.FactorDense
}
