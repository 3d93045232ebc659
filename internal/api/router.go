package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jengzang/traffic-backend-go/internal/maintenance"
	"github.com/jengzang/traffic-backend-go/internal/middleware"
	"github.com/jengzang/traffic-backend-go/internal/repository"
	"github.com/jengzang/traffic-backend-go/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps holds everything the operator API serves
type Deps struct {
	Store     *repository.Store
	Problems  *service.ProblemService
	Scheduler *maintenance.Scheduler
	Limiter   *middleware.RateLimiter
	JWTSecret []byte
}

// SetupRouter 设置路由
func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Traffic Backend API is running",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	roads := NewRoadHandler(d.Store)
	problems := NewProblemHandler(d.Problems)
	runs := NewMaintenanceHandler(d.Store, d.Scheduler)

	// API 路由组
	api := r.Group("/api/v1")
	if d.Limiter != nil {
		api.Use(middleware.RateLimit(d.Limiter))
	}
	{
		api.GET("/problems", problems.ListProblems)
		api.GET("/roads/:id", roads.GetRoad)

		// 运维接口
		operator := api.Group("", middleware.RequireRole(d.JWTSecret, middleware.RoleOperator))
		{
			operator.PUT("/roads/:id/maxspeed", roads.FixMaxSpeed)
			operator.DELETE("/roads/:id/maxspeed", roads.ReleaseMaxSpeed)
			operator.GET("/maintenance/runs", runs.ListRuns)
			operator.POST("/maintenance/:task/run", runs.RunTask)
		}
	}

	return r
}
