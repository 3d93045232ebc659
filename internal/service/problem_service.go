package service

import (
	"context"

	"github.com/jengzang/traffic-backend-go/internal/models"
	"github.com/jengzang/traffic-backend-go/internal/protocol"
	"github.com/jengzang/traffic-backend-go/internal/repository"
)

// ProblemService reads the recurring problems found by maintenance
type ProblemService struct {
	store *repository.Store
}

// NewProblemService creates a new problem service
func NewProblemService(store *repository.Store) *ProblemService {
	return &ProblemService{store: store}
}

// List returns every recorded problem.
func (s *ProblemService) List(ctx context.Context) ([]models.Problem, error) {
	problems, err := s.store.Problems.List(ctx)
	if err != nil {
		return nil, protocol.Store(err)
	}
	if problems == nil {
		problems = []models.Problem{}
	}
	return problems, nil
}
