package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleDashboard 返回仪表盘的两个派生计数。
//
// 读路径走旁路缓存：命中直接返回，未命中从存储层重算并回填。
// "当日完成数"的缓存键内嵌日期，跨天自动失效。
func (s *Server) handleDashboard(c *gin.Context) {
	ctx := c.Request.Context()

	totalProjects, err := s.metrics.TotalProjects(ctx, func(ctx context.Context) (int64, error) {
		return s.projects.CountProjects(ctx)
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	completedToday, err := s.metrics.CompletedToday(ctx, func(ctx context.Context) (int64, error) {
		return s.tasks.CountCompletedOn(ctx, time.Now())
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_projects":             totalProjects,
		"total_tasks_completed_today": completedToday,
	})
}
