package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/damilarekoiki/project-management/internal/api/middleware"
	"github.com/damilarekoiki/project-management/internal/model"
	"github.com/damilarekoiki/project-management/internal/pkg/apperr"
	"github.com/damilarekoiki/project-management/internal/store"
)

// projectRequest 创建/更新项目的请求体。创建时可内嵌一批初始任务。
type projectRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Deadline    string            `json:"deadline"` // YYYY-MM-DD，可空
	Tasks       []taskSpecRequest `json:"tasks"`
}

// handleListProjects 列出与当前用户相关的项目（创建的或被指派任务的）。
func (s *Server) handleListProjects(c *gin.Context) {
	user := middleware.CurrentUser(c)

	page := 1
	if raw := c.Query("page"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			page = parsed
		}
	}

	result, err := s.projects.ListUserProjects(c.Request.Context(), user.ID, page)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleCreateProject 创建项目（仅管理员），创建者为当前用户本人。
//
// 载荷可内嵌初始任务，项目与任务在同一次请求内写入；
// 项目计数缓存随创建失效。
func (s *Server) handleCreateProject(c *gin.Context) {
	user := middleware.CurrentUser(c)

	if !s.policy.CanCreateProject(user) {
		s.respondError(c, apperr.ErrForbidden)
		return
	}

	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperr.NewValidation("body", "malformed request body"))
		return
	}

	fields, deadline := validateProjectFields(&req, true)
	if len(fields) > 0 {
		s.respondError(c, &apperr.ValidationError{Fields: fields})
		return
	}

	// 内嵌任务先校验，校验不过则不开启写事务
	var specs []store.TaskSpec
	if len(req.Tasks) > 0 {
		var verr *apperr.ValidationError
		specs, verr = s.validateTaskSpecs(req.Tasks, false)
		if verr != nil {
			s.respondError(c, verr)
			return
		}
		if err := s.checkAssignees(c, specs); err != nil {
			s.respondError(c, err)
			return
		}
	}

	project := &model.Project{
		CreatorID:   user.ID,
		Title:       req.Title,
		Description: req.Description,
		Deadline:    deadline,
	}

	// 项目和内嵌任务落在同一个事务里，任务写失败不会留下空项目
	if err := s.projects.CreateProject(c.Request.Context(), project, specs); err != nil {
		s.respondError(c, err)
		return
	}
	s.metrics.InvalidateTotalProjects(c.Request.Context())
	if len(specs) > 0 {
		s.metrics.InvalidateCompletedToday(c.Request.Context())
	}

	c.JSON(http.StatusOK, gin.H{"project": project})
}

// handleUpdateProject 更新项目（仅创建者本人且为管理员）。
func (s *Server) handleUpdateProject(c *gin.Context) {
	user := middleware.CurrentUser(c)
	project, ok := s.resolveProject(c)
	if !ok {
		return
	}

	if !s.policy.CanUpdateProject(user, project) {
		s.respondError(c, apperr.ErrForbidden)
		return
	}

	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperr.NewValidation("body", "malformed request body"))
		return
	}

	fields, deadline := validateProjectFields(&req, false)
	if len(fields) > 0 {
		s.respondError(c, &apperr.ValidationError{Fields: fields})
		return
	}

	updates := map[string]any{
		"title":       req.Title,
		"description": req.Description,
		"deadline":    deadline,
	}
	if err := s.projects.UpdateProject(c.Request.Context(), project, updates); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": project})
}

// handleDeleteProject 删除项目及其全部任务（仅创建者本人且为管理员）。
func (s *Server) handleDeleteProject(c *gin.Context) {
	user := middleware.CurrentUser(c)
	project, ok := s.resolveProject(c)
	if !ok {
		return
	}

	if !s.policy.CanDeleteProject(user, project) {
		s.respondError(c, apperr.ErrForbidden)
		return
	}

	if err := s.projects.DeleteProject(c.Request.Context(), project); err != nil {
		s.respondError(c, err)
		return
	}

	// 级联删了任务，两个计数一起失效
	s.metrics.InvalidateTotalProjects(c.Request.Context())
	s.metrics.InvalidateCompletedToday(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{})
}

// validateProjectFields 校验项目字段。创建时截止日期必须是今天或以后。
func validateProjectFields(req *projectRequest, creating bool) (map[string]string, *time.Time) {
	fields := map[string]string{}

	if req.Title == "" {
		fields["title"] = "is required"
	} else if len(req.Title) > 255 {
		fields["title"] = "must not exceed 255 characters"
	}

	var deadline *time.Time
	if req.Deadline != "" {
		day, err := time.ParseInLocation(dateLayout, req.Deadline, time.Local)
		if err != nil {
			fields["deadline"] = "must be a valid date (YYYY-MM-DD)"
		} else if creating && day.Before(startOfToday()) {
			fields["deadline"] = "must be today or later"
		} else {
			deadline = &day
		}
	}

	return fields, deadline
}
