// Package maintenance runs the periodic passes over the road model.
package maintenance

import (
	"context"
	"sort"
	"time"

	"github.com/jengzang/traffic-backend-go/internal/repository"
	"github.com/jengzang/traffic-backend-go/internal/service"
)

// Task is one maintenance pass. Run returns the number of records changed.
type Task interface {
	Name() string
	Run(ctx context.Context) (int, error)
}

// Deps are shared by every task
type Deps struct {
	Store            *repository.Store
	Routes           *service.RouteService
	CongestionMaxAge time.Duration
	BatchSize        int
	Now              func() time.Time
}

// TaskFactory creates a task over deps
type TaskFactory func(deps Deps) Task

// TaskRegistry maps task names to factories
var TaskRegistry = make(map[string]TaskFactory)

// RegisterTask registers a task factory for a name
func RegisterTask(name string, factory TaskFactory) {
	TaskRegistry[name] = factory
}

// GetTask creates the task registered for name, nil if there is none
func GetTask(name string, deps Deps) Task {
	factory, ok := TaskRegistry[name]
	if !ok {
		return nil
	}
	return factory(deps.withDefaults())
}

// TaskNames returns the registered names in order
func TaskNames() []string {
	names := make([]string, 0, len(TaskRegistry))
	for name := range TaskRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const defaultBatchSize = 5000

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.BatchSize <= 0 {
		d.BatchSize = defaultBatchSize
	}
	if d.CongestionMaxAge <= 0 {
		d.CongestionMaxAge = 86399 * time.Second
	}
	return d
}
