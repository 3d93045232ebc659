package handler

import (
	"context"

	"github.com/jengzang/traffic-backend-go/internal/service"
)

// ProblemItem is one recurring problem on the wire
type ProblemItem struct {
	Description string  `json:"description"`
	Region      []int64 `json:"region"`
}

// ProblemsReply lists the recurring problems
type ProblemsReply struct {
	Problems []ProblemItem `json:"problems"`
}

// ProblemsHandler lists the known recurring problems
type ProblemsHandler struct {
	problems *service.ProblemService
}

// NewProblemsHandler creates a new problems handler
func NewProblemsHandler(problems *service.ProblemService) *ProblemsHandler {
	return &ProblemsHandler{problems: problems}
}

// Handle replies {problems: [{description, region}]}
func (h *ProblemsHandler) Handle(ctx context.Context, _ *Request) (any, error) {
	problems, err := h.problems.List(ctx)
	if err != nil {
		return nil, err
	}

	reply := ProblemsReply{Problems: make([]ProblemItem, 0, len(problems))}
	for _, p := range problems {
		reply.Problems = append(reply.Problems, ProblemItem{Description: p.Description, Region: p.Region})
	}
	return reply, nil
}
