package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/jengzang/traffic-backend-go/internal/analysis"
	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/spatial"
	"github.com/paulmach/orb"
)

// TaskRecurringProblems is the name of the problem detection task
const TaskRecurringProblems = "recurring_problems"

func init() {
	RegisterTask(TaskRecurringProblems, NewRecurringProblemsTask)
}

// RecurringProblemsTask clusters repeated jams into problems shown to drivers
type RecurringProblemsTask struct {
	deps Deps
}

// NewRecurringProblemsTask creates the problem detection task
func NewRecurringProblemsTask(deps Deps) Task {
	return &RecurringProblemsTask{deps: deps}
}

func (t *RecurringProblemsTask) Name() string { return TaskRecurringProblems }

func (t *RecurringProblemsTask) Run(ctx context.Context) (int, error) {
	observations, err := t.deps.Store.UserData.JamObservations(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load jam observations: %w", err)
	}
	if len(observations) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(observations))
	seen := make(map[int64]bool)
	for _, o := range observations {
		if !seen[o.StripID] {
			seen[o.StripID] = true
			ids = append(ids, o.StripID)
		}
	}
	strips, err := t.deps.Store.Roads.StripsByID(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to load strips: %w", err)
	}

	near := func(a, b int64) bool {
		sa, sb := strips[a], strips[b]
		return sa != nil && sb != nil && StripGap(sa.Way, sb.Way) <= analysis.ProblemClusterRadiusM
	}

	inserted := 0
	for _, c := range analysis.ClusterProblems(observations, near) {
		p := ProblemFromCluster(c, strips)
		ok, err := t.deps.Store.Problems.InsertIfAbsent(ctx, p)
		if err != nil {
			slog.Warn("skipping problem", "task", TaskRecurringProblems, "hour", c.Hour, "strips", c.Strips, "error", err)
			continue
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

// StripGap returns the distance in meters between two strip geometries,
// measured from each vertex of one to the other polyline. Crossing strips
// are 0 apart.
func StripGap(a, b orb.LineString) float64 {
	if len(a) > 0 && len(b) > 0 && spatial.LinesIntersect(a, b) {
		return 0
	}
	gap := math.Inf(1)
	for _, v := range a {
		gap = math.Min(gap, spatial.DistanceToLine(spatial.FromOrb(v), b))
	}
	for _, v := range b {
		gap = math.Min(gap, spatial.DistanceToLine(spatial.FromOrb(v), a))
	}
	return gap
}

// ProblemFromCluster names the problem after the first named road among its
// strips. The weekday is kept only for a single-day pattern.
func ProblemFromCluster(c analysis.Cluster, strips map[int64]*models.RoadStrip) *models.Problem {
	street := ""
	for _, id := range c.Strips {
		if s := strips[id]; s != nil && s.Road != nil && s.Road.Name != nil && *s.Road.Name != "" {
			street = *s.Road.Name
			break
		}
	}

	p := &models.Problem{
		Hour:        c.Hour,
		Region:      c.Strips,
		Description: analysis.DescribeProblem(street, c.Weekdays, c.Hour),
	}
	if len(c.Weekdays) == 1 {
		d := c.Weekdays[0]
		p.DayOfWeek = &d
	}
	return p
}
