package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/damilarekoiki/project-management/internal/model"
)

func fetchDashboard(t *testing.T, s *Server, user *model.User) (int64, int64) {
	t.Helper()
	w := perform(t, s, user, http.MethodGet, "/api/dashboard", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard: %d %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	return int64(body["total_projects"].(float64)), int64(body["total_tasks_completed_today"].(float64))
}

func TestDashboard_Counts(t *testing.T) {
	s, db := newTestServer(t)
	admin := createUser(t, db, "admin", model.RoleAdmin)
	project := createProject(t, db, admin, "P1")
	now := time.Now()
	createTask(t, db, &model.Task{ProjectID: project.ID, Title: "done today", Status: model.StatusDone, CompletedAt: &now})
	createTask(t, db, &model.Task{ProjectID: project.ID, Title: "pending"})

	totalProjects, completedToday := fetchDashboard(t, s, admin)
	if totalProjects != 1 {
		t.Fatalf("expected 1 project, got %d", totalProjects)
	}
	if completedToday != 1 {
		t.Fatalf("expected 1 completed today, got %d", completedToday)
	}
}

func TestDashboard_InvalidatedByWrites(t *testing.T) {
	s, db := newTestServer(t)
	admin := createUser(t, db, "admin", model.RoleAdmin)
	project := createProject(t, db, admin, "P1")
	task := createTask(t, db, &model.Task{ProjectID: project.ID, Title: "t", AssigneeID: &admin.ID})

	// 预热缓存
	totalProjects, completedToday := fetchDashboard(t, s, admin)
	if totalProjects != 1 || completedToday != 0 {
		t.Fatalf("warm read: projects=%d completed=%d", totalProjects, completedToday)
	}

	// 把任务改成完成，写路径应当把当日完成数的缓存打掉
	w := perform(t, s, admin, http.MethodPatch, tasksURL(project.ID), taskBatch(
		map[string]any{"id": task.ID, "title": "t", "status": "done"},
	))
	if w.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", w.Code, w.Body.String())
	}

	_, completedToday = fetchDashboard(t, s, admin)
	if completedToday != 1 {
		t.Fatalf("completed count stale after write: %d", completedToday)
	}

	// 新建项目后项目总数缓存同样失效
	w = perform(t, s, admin, http.MethodPost, "/api/projects", map[string]any{"title": "P2"})
	if w.Code != http.StatusOK {
		t.Fatalf("create project: %d", w.Code)
	}
	totalProjects, _ = fetchDashboard(t, s, admin)
	if totalProjects != 2 {
		t.Fatalf("project count stale after create: %d", totalProjects)
	}
}
