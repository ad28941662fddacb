package model

import "time"

// 用户角色。
const (
	RoleAdmin    = "admin"
	RoleNonAdmin = "non_admin"
)

// User 表示系统用户。
//
// 用户身份由外部身份服务签发的 JWT 提供，本服务只校验，不负责注册登录。
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(191);not null" json:"name"`                  // 用户名
	Email     string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"email"`     // 邮箱（唯一）
	Role      string    `gorm:"type:varchar(16);not null;default:non_admin" json:"role"` // 角色: admin / non_admin
	CreatedAt time.Time `json:"created_at"`

	CreatedProjects []Project `gorm:"foreignKey:CreatorID" json:"-"`  // 作为创建者拥有的项目
	AssignedTasks   []Task    `gorm:"foreignKey:AssigneeID" json:"-"` // 被指派的任务
}

// IsAdmin 判断用户是否为管理员。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsCreatorOf 判断用户是否为项目的创建者。
func (u *User) IsCreatorOf(p *Project) bool {
	return p != nil && u.ID == p.CreatorID
}
