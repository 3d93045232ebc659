package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jengzang/traffic-backend-go/internal/service"
	"github.com/jengzang/traffic-backend-go/pkg/response"
)

// ProblemHandler handles HTTP requests for recurring problems
type ProblemHandler struct {
	problems *service.ProblemService
}

// NewProblemHandler creates a new problem handler
func NewProblemHandler(problems *service.ProblemService) *ProblemHandler {
	return &ProblemHandler{problems: problems}
}

// ListProblems handles GET /api/v1/problems
func (h *ProblemHandler) ListProblems(c *gin.Context) {
	problems, err := h.problems.List(c.Request.Context())
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, problems)
}
