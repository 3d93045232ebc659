package maintenance

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/repository"
)

// TaskAggregateSpeed is the name of the reading aggregation task
const TaskAggregateSpeed = "aggregate_speed"

// upToDateWindow is how far back the freshest tier looks
const upToDateWindow = 15 * time.Minute

func init() {
	RegisterTask(TaskAggregateSpeed, NewAggregateSpeedTask)
}

// AggregateSpeedTask rebuilds the three reading tiers from directed, priced
// samples. Each tier is replaced in its own transaction.
type AggregateSpeedTask struct {
	deps Deps
}

// NewAggregateSpeedTask creates the aggregation task
func NewAggregateSpeedTask(deps Deps) Task {
	return &AggregateSpeedTask{deps: deps}
}

func (t *AggregateSpeedTask) Name() string { return TaskAggregateSpeed }

func (t *AggregateSpeedTask) Run(ctx context.Context) (int, error) {
	written := 0
	for q, w := range TierWindows(t.deps.Now()) {
		n, err := t.rebuild(ctx, q, w)
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

func (t *AggregateSpeedTask) rebuild(ctx context.Context, q models.Quality, w repository.Window) (int, error) {
	written := 0
	err := t.deps.Store.InTx(ctx, func(r repository.Repos) error {
		averages, err := r.UserData.Averages(ctx, w)
		if err != nil {
			return err
		}
		if _, err := r.Speeds.DeleteTier(ctx, q); err != nil {
			return err
		}
		for _, avg := range averages {
			if err := r.Speeds.Upsert(ctx, models.Speed{
				StripID:   avg.StripID,
				Direction: avg.Direction,
				Quality:   q,
				Value:     int(math.Round(avg.Speed)),
			}); err != nil {
				return err
			}
		}
		written = len(averages)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to rebuild tier %d: %w", q, err)
	}
	return written, nil
}

// TierWindows returns the sample window of each tier relative to now.
// Weekday and hour are taken in UTC.
func TierWindows(now time.Time) map[models.Quality]repository.Window {
	now = now.UTC()
	since := now.Add(-upToDateWindow).UnixMilli()
	weekday, hour := int(now.Weekday()), now.Hour()

	return map[models.Quality]repository.Window{
		models.QualityUpToDate:    {SinceMs: &since},
		models.QualitySameWeekday: {Weekday: &weekday, Hour: &hour},
		models.QualityAllHistory:  {Hour: &hour},
	}
}
