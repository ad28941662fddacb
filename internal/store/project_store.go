package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/damilarekoiki/project-management/internal/model"
	"github.com/damilarekoiki/project-management/internal/pkg/apperr"
)

// ProjectStore 负责项目的读写。
type ProjectStore struct {
	db *gorm.DB
}

// NewProjectStore 创建项目存储。
func NewProjectStore(db *gorm.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// ProjectPage 偏移分页的一页项目。
type ProjectPage struct {
	Data    []model.Project `json:"data"`
	Page    int             `json:"page"`
	Total   int64           `json:"total"`
	HasMore bool            `json:"has_more"`
}

// FindProject 按 id 解析项目，不存在返回 apperr.ErrNotFound。
func (s *ProjectStore) FindProject(ctx context.Context, id uint) (*model.Project, error) {
	var project model.Project
	err := s.db.WithContext(ctx).First(&project, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// ListUserProjects 返回与用户相关的项目：由其创建，或其中有任务指派给该用户。
//
// 按 updated_at 倒序，附带创建者与任务数，偏移分页（每页 PageSize 条）。
func (s *ProjectStore) ListUserProjects(ctx context.Context, userID uint, page int) (*ProjectPage, error) {
	if page < 1 {
		page = 1
	}

	visible := s.db.WithContext(ctx).Model(&model.Project{}).
		Where("creator_id = ? OR id IN (?)",
			userID,
			s.db.Model(&model.Task{}).Select("project_id").Where("assignee_id = ?", userID),
		).
		Session(&gorm.Session{}) // 同一组条件分别用于 Count 和 Find

	var total int64
	if err := visible.Count(&total).Error; err != nil {
		return nil, err
	}

	var projects []model.Project
	err := visible.
		Select("projects.*, (SELECT COUNT(*) FROM tasks WHERE tasks.project_id = projects.id) AS tasks_count").
		Preload("Creator").
		Order("updated_at DESC").
		Offset((page - 1) * PageSize).
		Limit(PageSize).
		Find(&projects).Error
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []model.Project{}
	}

	return &ProjectPage{
		Data:    projects,
		Page:    page,
		Total:   total,
		HasMore: int64(page*PageSize) < total,
	}, nil
}

// CreateProject 创建项目，并在同一事务里写入可选的初始任务，
// 整体成功或整体失败。标题撞唯一索引时返回冲突错误。
func (s *ProjectStore) CreateProject(ctx context.Context, project *model.Project, specs []TaskSpec) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return err
		}
		if len(specs) == 0 {
			return nil
		}
		rows := prepareInsertRows(project.ID, specs, time.Now())
		return tx.Create(&rows).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &apperr.ConflictError{Field: "title"}
	}
	return err
}

// UpdateProject 更新项目的标题/描述/截止日期。
func (s *ProjectStore) UpdateProject(ctx context.Context, project *model.Project, fields map[string]any) error {
	err := s.db.WithContext(ctx).Model(project).Updates(fields).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &apperr.ConflictError{Field: "title"}
	}
	return err
}

// DeleteProject 删除项目并级联删除其全部任务，单个事务内完成。
func (s *ProjectStore) DeleteProject(ctx context.Context, project *model.Project) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", project.ID).Delete(&model.Task{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Project{}, project.ID).Error
	})
}

// CountProjects 统计全部项目数（仪表盘用）。
func (s *ProjectStore) CountProjects(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Project{}).Count(&count).Error
	return count, err
}
