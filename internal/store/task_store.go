package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/damilarekoiki/project-management/internal/model"
	"github.com/damilarekoiki/project-management/internal/pkg/apperr"
)

// TaskStore 负责任务的读写。所有查询都把"任务属于某个项目"作为
// 查询条件的一部分下推到存储层，而不是取回后再过滤。
type TaskStore struct {
	db *gorm.DB
}

// NewTaskStore 创建任务存储。
func NewTaskStore(db *gorm.DB) *TaskStore {
	return &TaskStore{db: db}
}

// TaskFilter 列表接口的可选过滤条件。
type TaskFilter struct {
	Status  string     // 精确匹配任务状态，空串表示不过滤
	DueDate *time.Time // 按日历日匹配 due_date，nil 表示不过滤
}

// HasFilters 是否携带任一过滤条件。
func (f TaskFilter) HasFilters() bool {
	return f.Status != "" || f.DueDate != nil
}

// TaskSpec 批量写入接口中单条任务的载荷。
type TaskSpec struct {
	ID         *uint      `json:"id"`
	AssigneeID *uint      `json:"assignee_id"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	DueDate    *time.Time `json:"due_date"`
}

// TaskPage 游标分页的一页任务。
type TaskPage struct {
	Data       []model.Task `json:"data"`
	NextCursor string       `json:"next_cursor"`
	HasMore    bool         `json:"has_more"`
}

// ListProjectTasks 返回项目内对指定用户可见的任务。
//
// 基础可见性条件始终生效：任务属于该项目，且（任务指派给该用户，或该
// 用户是项目创建者）。排序为 updated_at desc、id desc，游标分页，
// 每页固定 PageSize 条。
func (s *TaskStore) ListProjectTasks(ctx context.Context, project *model.Project, userID uint, filter TaskFilter, cursorStr string) (*TaskPage, error) {
	q := s.db.WithContext(ctx).Model(&model.Task{}).
		Where("project_id = ?", project.ID)

	if project.CreatorID != userID {
		q = q.Where("assignee_id = ?", userID)
	}

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.DueDate != nil {
		start, end := dayRange(*filter.DueDate)
		q = q.Where("due_date >= ? AND due_date < ?", start, end)
	}

	if after, afterID, ok := decodeCursor(cursorStr); ok {
		q = q.Where("updated_at < ? OR (updated_at = ? AND id < ?)", after, after, afterID)
	}

	var tasks []model.Task
	err := q.Order("updated_at DESC").Order("id DESC").
		Limit(PageSize + 1).
		Preload("Assignee").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	page := &TaskPage{Data: tasks}
	if len(tasks) > PageSize {
		page.Data = tasks[:PageSize]
		page.HasMore = true
		last := page.Data[PageSize-1]
		page.NextCursor = encodeCursor(last.UpdatedAt, last.ID)
	}
	if page.Data == nil {
		page.Data = []model.Task{}
	}
	return page, nil
}

// FindProjectTask 按 (projectID, taskID) 解析任务。
//
// 任务不存在或属于其他项目时一律返回 apperr.ErrNotFound，
// 范围校验在查询里完成，不区分"真不存在"与"不可见"。
func (s *TaskStore) FindProjectTask(ctx context.Context, projectID, taskID uint) (*model.Task, error) {
	var task model.Task
	err := s.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", taskID, projectID).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// HarvestIDs 收集整个批次引用的任务 id（去重，保持出现顺序）。
//
// 这是授权前的先导计算：结果交给策略引擎做自有任务检查。
func HarvestIDs(specs []TaskSpec) []uint {
	seen := make(map[uint]struct{}, len(specs))
	ids := make([]uint, 0, len(specs))
	for _, spec := range specs {
		if spec.ID == nil {
			continue
		}
		if _, dup := seen[*spec.ID]; dup {
			continue
		}
		seen[*spec.ID] = struct{}{}
		ids = append(ids, *spec.ID)
	}
	return ids
}

// VerifyTaskIDs 校验批次引用的 id 全部属于指定项目。
//
// 引用了其他项目的任务返回 apperr.ErrNotFound（见 FindProjectTask 的约定）。
func (s *TaskStore) VerifyTaskIDs(ctx context.Context, projectID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Task{}).
		Where("id IN ? AND project_id = ?", ids, projectID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count != int64(len(ids)) {
		return apperr.ErrNotFound
	}
	return nil
}

// newTaskRow 把单条载荷转换为行，不做状态推导。
func newTaskRow(projectID uint, spec TaskSpec, now time.Time) model.Task {
	task := model.Task{
		ProjectID:  projectID,
		AssigneeID: spec.AssigneeID,
		Title:      spec.Title,
		Status:     spec.Status,
		DueDate:    spec.DueDate,
		UpdatedAt:  now,
	}
	if spec.ID != nil {
		task.ID = *spec.ID
	}
	return task
}

// prepareInsertRows 把载荷转换为待插入的新行。
//
// 状态缺省落为 pending；写入 done 时盖 completed_at 时间戳。
func prepareInsertRows(projectID uint, specs []TaskSpec, now time.Time) []model.Task {
	rows := make([]model.Task, 0, len(specs))
	for _, spec := range specs {
		task := newTaskRow(projectID, spec, now)
		if task.Status == "" {
			task.Status = model.StatusPending
		}
		if task.Status == model.StatusDone {
			completed := now
			task.CompletedAt = &completed
		}
		rows = append(rows, task)
	}
	return rows
}

// CreateMany 在一个事务里插入整批新任务，整批成功或整批失败。
func (s *TaskStore) CreateMany(ctx context.Context, project *model.Project, specs []TaskSpec) error {
	rows := prepareInsertRows(project.ID, specs, time.Now())
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
}

// UpsertMany 批量更新/插入任务：带 id 的载荷更新既有行，不带 id 的插入新行。
//
// 更新行的 completed_at 跟随本次写入的状态：done 盖当前时间戳，
// 其他状态清空。载荷未携带状态的更新（纯改名/改派）不触碰
// status 和 completed_at 两列，已完成的任务改名后保持完成。
//
// restrictedFields 非空时（操作者走自有任务授权路径），冲突更新只覆盖
// 这些列，载荷携带的其他字段在落库前丢弃。调用方必须事先用
// VerifyTaskIDs 确认全部 id 属于该项目。
func (s *TaskStore) UpsertMany(ctx context.Context, project *model.Project, specs []TaskSpec, restrictedFields []string) error {
	now := time.Now()

	var insertSpecs []TaskSpec
	var updates, statusless []model.Task
	for _, spec := range specs {
		if spec.ID == nil {
			insertSpecs = append(insertSpecs, spec)
			continue
		}
		row := newTaskRow(project.ID, spec, now)
		if row.Status == "" {
			statusless = append(statusless, row)
			continue
		}
		if row.Status == model.StatusDone {
			completed := now
			row.CompletedAt = &completed
		}
		updates = append(updates, row)
	}

	assign := []string{"assignee_id", "title", "status", "due_date", "completed_at", "updated_at"}
	if len(restrictedFields) > 0 {
		assign = restrictedFields
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns(assign),
			}).Create(&updates).Error
			if err != nil {
				return err
			}
		}
		if len(statusless) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns(withoutColumns(assign, "status", "completed_at")),
			}).Create(&statusless).Error
			if err != nil {
				return err
			}
		}
		if len(insertSpecs) > 0 {
			rows := prepareInsertRows(project.ID, insertSpecs, now)
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// withoutColumns 返回去掉指定列后的赋值列表。
func withoutColumns(cols []string, drop ...string) []string {
	out := make([]string, 0, len(cols))
	for _, col := range cols {
		skip := false
		for _, d := range drop {
			if col == d {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, col)
		}
	}
	return out
}

// DeleteTask 硬删除任务。被指派者可能因此失去所属项目的访问权，
// 该关系是实时派生的，无需额外处理。
func (s *TaskStore) DeleteTask(ctx context.Context, task *model.Task) error {
	return s.db.WithContext(ctx).Delete(&model.Task{}, task.ID).Error
}

// CountCompletedOn 统计 completed_at 落在指定日历日内的任务数。
func (s *TaskStore) CountCompletedOn(ctx context.Context, day time.Time) (int64, error) {
	start, end := dayRange(day)
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Task{}).
		Where("completed_at >= ? AND completed_at < ?", start, end).
		Count(&count).Error
	return count, err
}

// VerifyAssignees 校验载荷引用的被指派用户全部存在。
func (s *TaskStore) VerifyAssignees(ctx context.Context, specs []TaskSpec) (bool, error) {
	seen := make(map[uint]struct{})
	ids := make([]uint, 0)
	for _, spec := range specs {
		if spec.AssigneeID == nil {
			continue
		}
		if _, dup := seen[*spec.AssigneeID]; dup {
			continue
		}
		seen[*spec.AssigneeID] = struct{}{}
		ids = append(ids, *spec.AssigneeID)
	}
	if len(ids) == 0 {
		return true, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id IN ?", ids).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == int64(len(ids)), nil
}

// dayRange 返回某个日历日的 [当日零点, 次日零点) 区间。
func dayRange(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}
