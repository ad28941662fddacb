package api

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/damilarekoiki/project-management/internal/model"
)

// SeedDemoData 初始化演示数据：一个管理员、一个普通成员、
// 一个带任务的示例项目。重复执行是幂等的。
func (s *Server) SeedDemoData(ctx context.Context) error {
	admin, err := s.seedUser(ctx, "Demo Admin", "admin@demo.local", model.RoleAdmin)
	if err != nil {
		return err
	}
	member, err := s.seedUser(ctx, "Demo Member", "member@demo.local", model.RoleNonAdmin)
	if err != nil {
		return err
	}

	var project model.Project
	err = s.db.WithContext(ctx).Where("title = ?", "Demo Project").First(&project).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		deadline := time.Now().AddDate(0, 1, 0)
		project = model.Project{
			CreatorID:   admin.ID,
			Title:       "Demo Project",
			Description: "Seeded sample project",
			Deadline:    &deadline,
		}
		if err := s.db.WithContext(ctx).Create(&project).Error; err != nil {
			return err
		}

		due := time.Now().AddDate(0, 0, 7)
		tasks := []model.Task{
			{ProjectID: project.ID, Title: "Plan the kickoff", Status: model.StatusPending, AssigneeID: &member.ID, DueDate: &due},
			{ProjectID: project.ID, Title: "Draft the roadmap", Status: model.StatusInProgress, AssigneeID: &member.ID},
			{ProjectID: project.ID, Title: "Set up repository", Status: model.StatusPending},
		}
		if err := s.db.WithContext(ctx).Create(&tasks).Error; err != nil {
			return err
		}
	}

	return nil
}

// seedUser 按邮箱幂等创建用户。
func (s *Server) seedUser(ctx context.Context, name, email, role string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = model.User{Name: name, Email: email, Role: role}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
