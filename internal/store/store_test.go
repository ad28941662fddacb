package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/damilarekoiki/project-management/internal/model"
)

// newTestDB 打开一个临时 SQLite 库并完成迁移。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Project{}, &model.Task{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, name, role string) *model.User {
	t.Helper()
	user := &model.User{Name: name, Email: name + "@test.local", Role: role}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

func createProject(t *testing.T, db *gorm.DB, creator *model.User, title string) *model.Project {
	t.Helper()
	project := &model.Project{CreatorID: creator.ID, Title: title}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("create project %s: %v", title, err)
	}
	return project
}

func createTask(t *testing.T, db *gorm.DB, task *model.Task) *model.Task {
	t.Helper()
	if task.Status == "" {
		task.Status = model.StatusPending
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("create task %s: %v", task.Title, err)
	}
	return task
}

func reloadTask(t *testing.T, db *gorm.DB, id uint) *model.Task {
	t.Helper()
	var task model.Task
	if err := db.First(&task, id).Error; err != nil {
		t.Fatalf("reload task %d: %v", id, err)
	}
	return &task
}

func uintPtr(v uint) *uint { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func ctx() context.Context { return context.Background() }
