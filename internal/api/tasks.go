package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/damilarekoiki/project-management/internal/api/middleware"
	"github.com/damilarekoiki/project-management/internal/model"
	"github.com/damilarekoiki/project-management/internal/pkg/apperr"
	"github.com/damilarekoiki/project-management/internal/store"
)

const dateLayout = "2006-01-02"

// taskSpecRequest 批量接口中单条任务的请求载荷。
type taskSpecRequest struct {
	ID         *uint  `json:"id"`
	AssigneeID *uint  `json:"assignee_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	DueDate    string `json:"due_date"` // YYYY-MM-DD，可空
}

// taskBatchRequest 批量创建/更新任务的请求体。
type taskBatchRequest struct {
	Tasks []taskSpecRequest `json:"tasks"`
}

// handleListTasks 列出项目内对当前用户可见的任务。
//
// 支持 status、due_date 过滤与游标分页，见 store.ListProjectTasks。
func (s *Server) handleListTasks(c *gin.Context) {
	user := middleware.CurrentUser(c)
	project, ok := s.resolveProject(c)
	if !ok {
		return
	}

	canView, err := s.policy.CanViewProject(c.Request.Context(), user, project)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !canView {
		s.respondError(c, apperr.ErrForbidden)
		return
	}

	filter := store.TaskFilter{}
	if status := c.Query("status"); status != "" {
		if !model.ValidStatus(status) {
			s.respondError(c, apperr.NewValidation("status", "must be one of pending, in_progress, done"))
			return
		}
		filter.Status = status
	}
	if raw := c.Query("due_date"); raw != "" {
		day, err := time.ParseInLocation(dateLayout, raw, time.Local)
		if err != nil {
			s.respondError(c, apperr.NewValidation("due_date", "must be a valid date (YYYY-MM-DD)"))
			return
		}
		filter.DueDate = &day
	}

	page, err := s.tasks.ListProjectTasks(c.Request.Context(), project, user.ID, filter, c.Query("cursor"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// handleCreateTasks 在项目下批量创建任务（PUT /api/projects/:project/tasks）。
//
// 仅项目创建者（管理员）可用。整批在一个事务内写入，任何一条校验
// 失败都不会产生部分写入。
func (s *Server) handleCreateTasks(c *gin.Context) {
	user := middleware.CurrentUser(c)
	project, ok := s.resolveProject(c)
	if !ok {
		return
	}

	if !s.policy.CanUpdateProject(user, project) {
		s.respondError(c, apperr.ErrForbidden)
		return
	}

	var req taskBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperr.NewValidation("tasks", "malformed request body"))
		return
	}

	specs, verr := s.validateTaskSpecs(req.Tasks, false)
	if verr != nil {
		s.respondError(c, verr)
		return
	}
	if err := s.checkAssignees(c, specs); err != nil {
		s.respondError(c, err)
		return
	}

	if err := s.tasks.CreateMany(c.Request.Context(), project, specs); err != nil {
		s.respondError(c, err)
		return
	}

	s.metrics.InvalidateCompletedToday(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{})
}

// handleUpdateTasks 批量更新/插入任务（PATCH /api/projects/:project/tasks）。
//
// 流程：先收集批次引用的任务 id；再校验它们全部属于 URL 中的项目
// （引用外部任务按 404 处理，范围问题不走策略层）；然后对整批做一次
// 门禁判定；通过"自有任务"路径授权的操作者只允许写 status 列。
func (s *Server) handleUpdateTasks(c *gin.Context) {
	user := middleware.CurrentUser(c)
	project, ok := s.resolveProject(c)
	if !ok {
		return
	}

	var req taskBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperr.NewValidation("tasks", "malformed request body"))
		return
	}

	specs, verr := s.validateTaskSpecs(req.Tasks, true)
	if verr != nil {
		s.respondError(c, verr)
		return
	}

	taskIDs := store.HarvestIDs(specs)
	if err := s.tasks.VerifyTaskIDs(c.Request.Context(), project.ID, taskIDs); err != nil {
		s.respondError(c, err)
		return
	}

	decision, err := s.policy.CanBulkUpdateTasks(c.Request.Context(), user, project, taskIDs)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !decision.Allowed {
		s.respondError(c, apperr.ErrForbidden)
		return
	}
	if len(decision.RestrictedFields) > 0 {
		// 自有任务路径只覆盖已存在的 id，不带 id 的插入不在授权范围内
		for _, spec := range specs {
			if spec.ID == nil {
				s.respondError(c, apperr.ErrForbidden)
				return
			}
		}
	}

	if len(decision.RestrictedFields) == 0 {
		if err := s.checkAssignees(c, specs); err != nil {
			s.respondError(c, err)
			return
		}
	}

	if err := s.tasks.UpsertMany(c.Request.Context(), project, specs, decision.RestrictedFields); err != nil {
		s.respondError(c, err)
		return
	}

	s.metrics.InvalidateCompletedToday(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{})
}

// handleDeleteTask 删除单个任务（DELETE /api/projects/:project/tasks/:task)。
//
// 任务按 (project, task) 解析，属于其他项目的 id 直接 404。
func (s *Server) handleDeleteTask(c *gin.Context) {
	user := middleware.CurrentUser(c)
	project, ok := s.resolveProject(c)
	if !ok {
		return
	}
	taskID, ok := parseUintParam(c, "task")
	if !ok {
		return
	}

	task, err := s.tasks.FindProjectTask(c.Request.Context(), project.ID, taskID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	task.Project = project
	allowed, err := s.policy.CanDeleteTask(c.Request.Context(), user, task)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !allowed {
		s.respondError(c, apperr.ErrForbidden)
		return
	}

	if err := s.tasks.DeleteTask(c.Request.Context(), task); err != nil {
		s.respondError(c, err)
		return
	}

	s.metrics.InvalidateCompletedToday(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"task": task, "project": project})
}

// resolveProject 解析 URL 中的项目，不存在时响应 404。
func (s *Server) resolveProject(c *gin.Context) (*model.Project, bool) {
	projectID, ok := parseUintParam(c, "project")
	if !ok {
		return nil, false
	}
	project, err := s.projects.FindProject(c.Request.Context(), projectID)
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return project, true
}

// validateTaskSpecs 校验批量载荷并转换为存储层的任务描述。
//
// allowIDs 为 false 时（创建接口）载荷不得携带 id。
func (s *Server) validateTaskSpecs(reqs []taskSpecRequest, allowIDs bool) ([]store.TaskSpec, *apperr.ValidationError) {
	fields := map[string]string{}
	if len(reqs) == 0 {
		fields["tasks"] = "must contain at least one task"
		return nil, &apperr.ValidationError{Fields: fields}
	}

	today := startOfToday()
	specs := make([]store.TaskSpec, 0, len(reqs))
	for i, req := range reqs {
		prefix := fmt.Sprintf("tasks.%d.", i)

		if !allowIDs && req.ID != nil {
			fields[prefix+"id"] = "is not allowed here"
		}
		if req.Title == "" {
			fields[prefix+"title"] = "is required"
		} else if len(req.Title) > 255 {
			fields[prefix+"title"] = "must not exceed 255 characters"
		}
		if req.Status != "" && !model.ValidStatus(req.Status) {
			fields[prefix+"status"] = "must be one of pending, in_progress, done"
		}

		spec := store.TaskSpec{
			ID:         req.ID,
			AssigneeID: req.AssigneeID,
			Title:      req.Title,
			Status:     req.Status,
		}
		if req.DueDate != "" {
			day, err := time.ParseInLocation(dateLayout, req.DueDate, time.Local)
			if err != nil {
				fields[prefix+"due_date"] = "must be a valid date (YYYY-MM-DD)"
			} else if day.Before(today) {
				fields[prefix+"due_date"] = "must be today or later"
			} else {
				spec.DueDate = &day
			}
		}
		specs = append(specs, spec)
	}

	if len(fields) > 0 {
		return nil, &apperr.ValidationError{Fields: fields}
	}
	return specs, nil
}

// checkAssignees 校验载荷引用的被指派用户全部存在。
func (s *Server) checkAssignees(c *gin.Context, specs []store.TaskSpec) error {
	ok, err := s.tasks.VerifyAssignees(c.Request.Context(), specs)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NewValidation("assignee_id", "referenced user does not exist")
	}
	return nil
}

func startOfToday() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
