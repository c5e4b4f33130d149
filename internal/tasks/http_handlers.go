package tasks

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"smart-scheduler/internal/analytics"
	"smart-scheduler/internal/httpx"
	"smart-scheduler/internal/scheduler"
	"smart-scheduler/internal/store"
)

// GET /api/tasks?project_id=&status=
func GetTasksHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}

		var f store.TaskFilter
		if raw := r.URL.Query().Get("project_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				http.Error(w, "invalid project_id", http.StatusBadRequest)
				return
			}
			f.ProjectID = id
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			f.Status = scheduler.Status(raw)
			if !f.Status.Valid() {
				http.Error(w, "invalid status", http.StatusBadRequest)
				return
			}
		}

		result, err := st.ListTasks(r.Context(), uid, f)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, result)
	}
}

func GetTaskHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		id, ok := httpx.ID(w, r)
		if !ok {
			return
		}
		t, err := st.GetTask(r.Context(), uid, id)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, t)
	}
}

func CreateTaskHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		var body store.TaskInput
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.Error(w, r, err)
			return
		}

		t, err := st.CreateTask(r.Context(), uid, body)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, t)
	}
}

// PUT /api/tasks/{id} replaces the task, dependencies included.
func UpdateTaskHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		id, ok := httpx.ID(w, r)
		if !ok {
			return
		}
		var body store.TaskInput
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.Error(w, r, err)
			return
		}

		t, err := st.UpdateTask(r.Context(), uid, id, body)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, t)
	}
}

func DeleteTaskHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		id, ok := httpx.ID(w, r)
		if !ok {
			return
		}
		if err := st.DeleteTask(r.Context(), uid, id); err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "task deleted"})
	}
}

// POST /api/tasks/{id}/status {"status":"Completed","notes":"..."}
func SetTaskStatusHandler(st *store.Store, events *analytics.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		id, ok := httpx.ID(w, r)
		if !ok {
			return
		}

		var body struct {
			Status scheduler.Status `json:"status"`
			Notes  string           `json:"notes"`
		}
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.Error(w, r, err)
			return
		}
		if !body.Status.Valid() {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}

		full, prevStatus, err := st.SetTaskStatus(r.Context(), uid, id, body.Status, body.Notes)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}

		// analytics: task_status_changed
		if prevStatus != body.Status {
			env := analytics.FromRequest(r)
			env.UserID = uid

			props := map[string]any{
				"task_id":     id,
				"project_id":  full.ProjectID,
				"from_status": prevStatus,
				"to_status":   body.Status,
				"has_notes":   body.Notes != "",
			}
			if full.StartedAt != nil && full.CompletedAt != nil {
				props["cycle_minutes"] = int(full.CompletedAt.Sub(*full.StartedAt).Minutes())
			}
			if err := events.Log(r.Context(), env, analytics.EventTaskStatusChanged, props, analytics.SourceEventKeyFromRequest(r)); err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Int64("task_id", id).Msg("analytics log failed")
			}
		}

		httpx.WriteJSON(w, http.StatusOK, full)
	}
}

// GET /api/tasks/{id}/history
func TaskHistoryHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		id, ok := httpx.ID(w, r)
		if !ok {
			return
		}
		hist, err := st.ListStatusUpdates(r.Context(), uid, id)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, hist)
	}
}
