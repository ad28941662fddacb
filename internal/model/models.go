package model

import (
	"time"
)

// 任务状态枚举。
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// ValidStatus 判断给定字符串是否为合法的任务状态。
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Project 表示一个项目。
//
// 项目由管理员创建，创建者对项目拥有完整的更新/删除权限。
// 项目与任务是一对多关系，删除项目时级联删除其全部任务。
type Project struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"` // 列表按此字段倒序排列

	CreatorID   uint       `gorm:"not null;index" json:"creator_id"`                      // 创建者用户 ID
	Creator     *User      `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`         // 创建者
	Title       string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"title"`   // 标题（唯一）
	Description string     `gorm:"type:text" json:"description"`                          // 描述（可选）
	Deadline    *time.Time `json:"deadline"`                                              // 截止日期（可选，创建时须为今天或以后）

	Tasks []Task `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"tasks,omitempty"`

	TasksCount int64 `gorm:"-:migration;->" json:"tasks_count"` // 列表接口附带的任务数，由子查询填充，不建列
}

// Task 表示项目中的一条任务。
//
// 任务可指派给某个用户，被指派者因此获得其所属项目的查看权限。
// completed_at 仅在状态写入 done 时盖章，状态离开 done 时清空。
type Task struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectID  uint       `gorm:"not null;index" json:"project_id"`               // 所属项目 ID
	Project    *Project   `gorm:"foreignKey:ProjectID" json:"-"`                  // 所属项目
	AssigneeID *uint      `gorm:"index" json:"assignee_id"`                       // 被指派用户 ID（可空）
	Assignee   *User      `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	Title      string     `gorm:"type:varchar(255);not null" json:"title"`        // 标题（必填）
	Status     string     `gorm:"type:varchar(16);not null;default:pending;index" json:"status"` // pending / in_progress / done
	DueDate    *time.Time `gorm:"index" json:"due_date"`     // 截止时间（可选）
	CompletedAt *time.Time `json:"completed_at"`             // 完成时间（status=done 时非空）
}

// CacheKeyTotalProjects 项目总数的缓存键。
const CacheKeyTotalProjects = "project-management:total-projects"

// CacheKeyCompletedOn 返回某个日期"当日完成任务数"的缓存键。
//
// 键内嵌日期，跨天后旧键自然失效，读路径负责清理前一天的键。
func CacheKeyCompletedOn(day time.Time) string {
	return "project-management:total-tasks-completed-" + day.Format("2006-01-02")
}
