package projects

import (
	"net/http"

	"smart-scheduler/internal/httpx"
	"smart-scheduler/internal/store"
)

func GetProjectsHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		list, err := st.ListProjects(r.Context(), uid)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, list)
	}
}

func GetProjectHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		id, ok := httpx.ID(w, r)
		if !ok {
			return
		}
		p, err := st.GetProject(r.Context(), uid, id)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, p)
	}
}

// POST /api/projects {"name":"...","priority":1,"color":"#..."}
func CreateProjectHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		var body store.ProjectInput
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.Error(w, r, err)
			return
		}
		p, err := st.CreateProject(r.Context(), uid, body)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, p)
	}
}

// PUT /api/projects/{id} updates only the fields present in the body.
func UpdateProjectHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		id, ok := httpx.ID(w, r)
		if !ok {
			return
		}
		var body store.ProjectInput
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.Error(w, r, err)
			return
		}
		p, err := st.UpdateProject(r.Context(), uid, id, body)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, p)
	}
}

func DeleteProjectHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		id, ok := httpx.ID(w, r)
		if !ok {
			return
		}
		if err := st.DeleteProject(r.Context(), uid, id); err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "project and associated tasks deleted"})
	}
}

// GET /api/projects/status
func ProjectStatusHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		rows, err := st.ProjectStatus(r.Context(), uid)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, rows)
	}
}
