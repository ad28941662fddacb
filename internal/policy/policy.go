// Package policy 实现项目与任务的访问控制决策。
//
// 所有决策基于 (操作者, 对象) 即时计算。用户与项目之间的"可访问"关系
// 派生自当前的任务指派记录，不做物化、不做缓存：任务被删除或改派后，
// 下一次检查立即反映最新状态。
package policy

import (
	"context"

	"gorm.io/gorm"

	"github.com/damilarekoiki/project-management/internal/model"
)

// Engine 按实体与操作给出允许/拒绝决策。
//
// 范围校验（对象是否在调用者可见范围内）发生在查找阶段，不属于本层；
// Engine 拿到的对象一定是已解析出的真实记录。
type Engine struct {
	db *gorm.DB
}

// New 创建策略引擎。
func New(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// CanViewProject 判断用户能否查看项目：创建者，或项目内任一任务的被指派者。
func (e *Engine) CanViewProject(ctx context.Context, user *model.User, project *model.Project) (bool, error) {
	if user.IsCreatorOf(project) {
		return true, nil
	}
	var count int64
	err := e.db.WithContext(ctx).Model(&model.Task{}).
		Where("project_id = ? AND assignee_id = ?", project.ID, user.ID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CanCreateProject 只有管理员可以创建项目。
func (e *Engine) CanCreateProject(user *model.User) bool {
	return user.IsAdmin()
}

// CanUpdateProject 只有项目创建者本人（且为管理员）可以更新项目。
func (e *Engine) CanUpdateProject(user *model.User, project *model.Project) bool {
	return user.IsCreatorOf(project) && user.IsAdmin()
}

// CanDeleteProject 与更新同权：创建者 + 管理员。
func (e *Engine) CanDeleteProject(user *model.User, project *model.Project) bool {
	return user.IsCreatorOf(project) && user.IsAdmin()
}

// CanDeleteTask 删除任务的授权透传到所属项目：项目创建者 + 管理员。
func (e *Engine) CanDeleteTask(ctx context.Context, user *model.User, task *model.Task) (bool, error) {
	project := task.Project
	if project == nil {
		project = &model.Project{}
		if err := e.db.WithContext(ctx).First(project, task.ProjectID).Error; err != nil {
			return false, err
		}
	}
	return e.CanDeleteProject(user, project), nil
}

// BulkDecision 批量更新的决策结果。
type BulkDecision struct {
	Allowed bool
	// RestrictedFields 非空时表示操作者通过"自有任务"路径获得授权，
	// 写入必须限制在这些列内，载荷中的其他字段在落库前丢弃。
	RestrictedFields []string
}

// CanBulkUpdateTasks 批量更新任务的整批门禁，对整个提交数组一次性判定。
//
// 两条通过路径：
//  1. 项目创建者且为管理员 —— 无字段限制；
//  2. 批次引用的每一个任务都指派给操作者本人 —— 仅允许改 status。
func (e *Engine) CanBulkUpdateTasks(ctx context.Context, user *model.User, project *model.Project, taskIDs []uint) (BulkDecision, error) {
	if user.IsCreatorOf(project) && user.IsAdmin() {
		return BulkDecision{Allowed: true}, nil
	}
	if len(taskIDs) == 0 {
		return BulkDecision{}, nil
	}
	var count int64
	err := e.db.WithContext(ctx).Model(&model.Task{}).
		Where("id IN ? AND assignee_id = ?", taskIDs, user.ID).
		Count(&count).Error
	if err != nil {
		return BulkDecision{}, err
	}
	if count != int64(len(taskIDs)) {
		return BulkDecision{}, nil
	}
	return BulkDecision{
		Allowed:          true,
		RestrictedFields: []string{"status", "completed_at", "updated_at"},
	}, nil
}
