package api

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/damilarekoiki/project-management/internal/model"
)

func taskBatch(tasks ...map[string]any) map[string]any {
	return map[string]any{"tasks": tasks}
}

func tasksURL(projectID uint) string {
	return fmt.Sprintf("/api/projects/%d/tasks", projectID)
}

func TestListTasks(t *testing.T) {
	s, db := newTestServer(t)
	creator := createUser(t, db, "creator", model.RoleAdmin)
	member := createUser(t, db, "member", model.RoleNonAdmin)
	outsider := createUser(t, db, "outsider", model.RoleNonAdmin)
	project := createProject(t, db, creator, "P1")
	createTask(t, db, &model.Task{ProjectID: project.ID, Title: "mine", AssigneeID: &member.ID})
	createTask(t, db, &model.Task{ProjectID: project.ID, Title: "other"})

	// 创建者看到全部任务
	w := perform(t, s, creator, http.MethodGet, tasksURL(project.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("creator list: %d %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if data := body["data"].([]any); len(data) != 2 {
		t.Fatalf("creator expected 2 tasks, got %d", len(data))
	}

	// 被指派成员只看到自己的任务
	w = perform(t, s, member, http.MethodGet, tasksURL(project.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("member list: %d", w.Code)
	}
	body = decodeBody(t, w)
	if data := body["data"].([]any); len(data) != 1 {
		t.Fatalf("member expected 1 task, got %d", len(data))
	}

	// 与项目无关的用户拿到 403
	w = perform(t, s, outsider, http.MethodGet, tasksURL(project.ID), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("outsider expected 403, got %d", w.Code)
	}

	// 不存在的项目 404
	w = perform(t, s, creator, http.MethodGet, tasksURL(9999), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing project expected 404, got %d", w.Code)
	}

	// 非法过滤参数 422
	w = perform(t, s, creator, http.MethodGet, tasksURL(project.ID)+"?status=bogus", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad status filter expected 422, got %d", w.Code)
	}
	w = perform(t, s, creator, http.MethodGet, tasksURL(project.ID)+"?due_date=June-1st", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad due_date filter expected 422, got %d", w.Code)
	}
}

func TestCreateTasks(t *testing.T) {
	s, db := newTestServer(t)
	creator := createUser(t, db, "creator", model.RoleAdmin)
	member := createUser(t, db, "member", model.RoleNonAdmin)
	project := createProject(t, db, creator, "P1")

	due := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	payload := taskBatch(
		map[string]any{"title": "first", "status": "pending", "due_date": due},
		map[string]any{"title": "second", "status": "done", "assignee_id": member.ID},
	)

	// 非创建者被拒
	w := perform(t, s, member, http.MethodPut, tasksURL(project.ID), payload)
	if w.Code != http.StatusForbidden {
		t.Fatalf("member create expected 403, got %d", w.Code)
	}

	w = perform(t, s, creator, http.MethodPut, tasksURL(project.ID), payload)
	if w.Code != http.StatusOK {
		t.Fatalf("creator create: %d %s", w.Code, w.Body.String())
	}

	var rows []model.Task
	if err := db.Where("project_id = ?", project.ID).Order("id").Find(&rows).Error; err != nil {
		t.Fatalf("load tasks: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(rows))
	}
	if rows[1].CompletedAt == nil {
		t.Fatalf("done task missing completed_at")
	}
	if rows[0].CompletedAt != nil {
		t.Fatalf("pending task has completed_at")
	}
}

func TestCreateTasks_Validation(t *testing.T) {
	s, db := newTestServer(t)
	creator := createUser(t, db, "creator", model.RoleAdmin)
	project := createProject(t, db, creator, "P1")

	cases := []struct {
		name    string
		payload map[string]any
		field   string
	}{
		{"empty batch", taskBatch(), "tasks"},
		{"missing title", taskBatch(map[string]any{"status": "pending"}), "tasks.0.title"},
		{"bad status", taskBatch(map[string]any{"title": "t", "status": "oops"}), "tasks.0.status"},
		{"past due date", taskBatch(map[string]any{"title": "t", "due_date": "2020-01-01"}), "tasks.0.due_date"},
		{"id on create", taskBatch(map[string]any{"id": 1, "title": "t"}), "tasks.0.id"},
		{"unknown assignee", taskBatch(map[string]any{"title": "t", "assignee_id": 999}), "assignee_id"},
	}
	for _, tc := range cases {
		w := perform(t, s, creator, http.MethodPut, tasksURL(project.ID), tc.payload)
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: expected 422, got %d %s", tc.name, w.Code, w.Body.String())
			continue
		}
		body := decodeBody(t, w)
		errs, _ := body["errors"].(map[string]any)
		if _, ok := errs[tc.field]; !ok {
			t.Errorf("%s: expected error on %q, got %v", tc.name, tc.field, errs)
		}
	}

	// 整批原子性：一条非法则全部不写入
	var count int64
	db.Model(&model.Task{}).Count(&count)
	if count != 0 {
		t.Fatalf("failed batches leaked %d rows", count)
	}
}

func TestUpdateTasks_CreatorUnrestricted(t *testing.T) {
	s, db := newTestServer(t)
	creator := createUser(t, db, "creator", model.RoleAdmin)
	member := createUser(t, db, "member", model.RoleNonAdmin)
	project := createProject(t, db, creator, "P1")
	existing := createTask(t, db, &model.Task{ProjectID: project.ID, Title: "old"})

	// 同一批里既更新又插入
	payload := taskBatch(
		map[string]any{"id": existing.ID, "title": "renamed", "status": "done", "assignee_id": member.ID},
		map[string]any{"title": "added", "status": "in_progress"},
	)
	w := perform(t, s, creator, http.MethodPatch, tasksURL(project.ID), payload)
	if w.Code != http.StatusOK {
		t.Fatalf("creator patch: %d %s", w.Code, w.Body.String())
	}

	got := reloadTask(t, db, existing.ID)
	if got.Title != "renamed" || got.Status != model.StatusDone {
		t.Fatalf("update not applied: %+v", got)
	}
	if got.AssigneeID == nil || *got.AssigneeID != member.ID {
		t.Fatalf("assignee not applied")
	}
	if got.CompletedAt == nil {
		t.Fatalf("completed_at not stamped")
	}

	var count int64
	db.Model(&model.Task{}).Where("project_id = ?", project.ID).Count(&count)
	if count != 2 {
		t.Fatalf("expected insert alongside update, count=%d", count)
	}
}

func TestUpdateTasks_RenameKeepsCompletion(t *testing.T) {
	s, db := newTestServer(t)
	creator := createUser(t, db, "creator", model.RoleAdmin)
	project := createProject(t, db, creator, "P1")
	now := time.Now()
	done := createTask(t, db, &model.Task{
		ProjectID: project.ID, Title: "shipped", Status: model.StatusDone,
		CompletedAt: &now,
	})

	// 不带 status 的改名不得把已完成任务打回 pending
	w := perform(t, s, creator, http.MethodPatch, tasksURL(project.ID), taskBatch(
		map[string]any{"id": done.ID, "title": "shipped v2"},
	))
	if w.Code != http.StatusOK {
		t.Fatalf("rename: %d %s", w.Code, w.Body.String())
	}

	got := reloadTask(t, db, done.ID)
	if got.Title != "shipped v2" {
		t.Fatalf("title not updated: %q", got.Title)
	}
	if got.Status != model.StatusDone {
		t.Fatalf("rename reset status: %q", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatalf("rename wiped completed_at")
	}
}

func TestUpdateTasks_AssigneeStatusOnly(t *testing.T) {
	s, db := newTestServer(t)
	creator := createUser(t, db, "creator", model.RoleAdmin)
	member := createUser(t, db, "member", model.RoleNonAdmin)
	project := createProject(t, db, creator, "P1")
	mine := createTask(t, db, &model.Task{ProjectID: project.ID, Title: "original", AssigneeID: &member.ID})

	// 被指派者改状态放行，载荷里的改名与改派被丢弃
	payload := taskBatch(map[string]any{
		"id":          mine.ID,
		"title":       "hijacked",
		"status":      "done",
		"assignee_id": creator.ID,
	})
	w := perform(t, s, member, http.MethodPatch, tasksURL(project.ID), payload)
	if w.Code != http.StatusOK {
		t.Fatalf("member patch: %d %s", w.Code, w.Body.String())
	}

	got := reloadTask(t, db, mine.ID)
	if got.Status != model.StatusDone {
		t.Fatalf("status not updated: %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatalf("completed_at not stamped")
	}
	if got.Title != "original" {
		t.Fatalf("title overwritten by restricted actor: %q", got.Title)
	}
	if got.AssigneeID == nil || *got.AssigneeID != member.ID {
		t.Fatalf("assignee overwritten by restricted actor")
	}
}

func TestUpdateTasks_AssigneeDeniedCases(t *testing.T) {
	s, db := newTestServer(t)
	creator := createUser(t, db, "creator", model.RoleAdmin)
	member := createUser(t, db, "member", model.RoleNonAdmin)
	project := createProject(t, db, creator, "P1")
	mine := createTask(t, db, &model.Task{ProjectID: project.ID, Title: "mine", AssigneeID: &member.ID})
	others := createTask(t, db, &model.Task{ProjectID: project.ID, Title: "others"})

	// 批次混入别人的任务：整批 403
	w := perform(t, s, member, http.MethodPatch, tasksURL(project.ID), taskBatch(
		map[string]any{"id": mine.ID, "title": "mine", "status": "done"},
		map[string]any{"id": others.ID, "title": "others", "status": "done"},
	))
	if w.Code != http.StatusForbidden {
		t.Fatalf("mixed batch expected 403, got %d", w.Code)
	}
	if got := reloadTask(t, db, mine.ID); got.Status != model.StatusPending {
		t.Fatalf("denied batch still wrote: %s", got.Status)
	}

	// 自有任务路径下不允许夹带无 id 的新任务
	w = perform(t, s, member, http.MethodPatch, tasksURL(project.ID), taskBatch(
		map[string]any{"id": mine.ID, "title": "mine", "status": "done"},
		map[string]any{"title": "smuggled insert"},
	))
	if w.Code != http.StatusForbidden {
		t.Fatalf("smuggled insert expected 403, got %d", w.Code)
	}

	// 完全无 id 的批次同样 403
	w = perform(t, s, member, http.MethodPatch, tasksURL(project.ID), taskBatch(
		map[string]any{"title": "new"},
	))
	if w.Code != http.StatusForbidden {
		t.Fatalf("id-less batch expected 403, got %d", w.Code)
	}
}

func TestUpdateTasks_ForeignTaskIs404(t *testing.T) {
	s, db := newTestServer(t)
	creator := createUser(t, db, "creator", model.RoleAdmin)
	other := createUser(t, db, "other", model.RoleAdmin)
	project := createProject(t, db, creator, "P1")
	foreignProject := createProject(t, db, other, "P2")
	local := createTask(t, db, &model.Task{ProjectID: project.ID, Title: "local"})
	foreign := createTask(t, db, &model.Task{ProjectID: foreignProject.ID, Title: "foreign"})

	// 范围校验先于授权：引用了别的项目的任务一律 404，
	// 即使操作者对 URL 中的项目有完整权限
	w := perform(t, s, creator, http.MethodPatch, tasksURL(project.ID), taskBatch(
		map[string]any{"id": local.ID, "title": "local", "status": "done"},
		map[string]any{"id": foreign.ID, "title": "foreign", "status": "done"},
	))
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign id expected 404, got %d %s", w.Code, w.Body.String())
	}
	if got := reloadTask(t, db, local.ID); got.Status != model.StatusPending {
		t.Fatalf("denied batch still wrote: %s", got.Status)
	}
	if got := reloadTask(t, db, foreign.ID); got.Status != model.StatusPending {
		t.Fatalf("foreign task touched: %s", got.Status)
	}
}

func TestDeleteTask(t *testing.T) {
	s, db := newTestServer(t)
	creator := createUser(t, db, "creator", model.RoleAdmin)
	member := createUser(t, db, "member", model.RoleNonAdmin)
	project := createProject(t, db, creator, "P1")
	otherProject := createProject(t, db, creator, "P2")
	task := createTask(t, db, &model.Task{ProjectID: project.ID, Title: "t", AssigneeID: &member.ID})

	url := fmt.Sprintf("%s/%d", tasksURL(project.ID), task.ID)

	// 被指派者不能删
	w := perform(t, s, member, http.MethodDelete, url, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("assignee delete expected 403, got %d", w.Code)
	}

	// 跨项目的 (project, task) 组合 404
	w = perform(t, s, creator, http.MethodDelete, fmt.Sprintf("%s/%d", tasksURL(otherProject.ID), task.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("cross-project delete expected 404, got %d", w.Code)
	}

	w = perform(t, s, creator, http.MethodDelete, url, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("creator delete: %d %s", w.Code, w.Body.String())
	}

	var count int64
	db.Model(&model.Task{}).Count(&count)
	if count != 0 {
		t.Fatalf("task not deleted")
	}

	// 唯一的指派任务没了，成员随之失去项目可见性
	w = perform(t, s, member, http.MethodGet, tasksURL(project.ID), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("member should lose access after task delete, got %d", w.Code)
	}
}
