package schedule

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"smart-scheduler/internal/analytics"
	"smart-scheduler/internal/httpx"
	"smart-scheduler/internal/store"
)

// GET /api/schedule/suggest?from=RFC3339&summary=1
func SuggestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		from, err := httpx.TimeParam(r, "from")
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		summary, _ := strconv.ParseBool(r.URL.Query().Get("summary"))

		run, err := svc.Suggest(r.Context(), uid, Options{From: from, Summary: summary})
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		if run.SummaryError != "" {
			w.Header().Set("X-AI-Error", "1")
		}

		// analytics: schedule_suggested
		{
			env := analytics.FromRequest(r)
			env.UserID = uid
			props := map[string]any{
				"task_count":        len(run.Result.Suggestions) + len(run.Result.Unscheduled),
				"placed":            len(run.Result.Suggestions),
				"unscheduled":       len(run.Result.Unscheduled),
				"rejected_busy":     len(run.Result.Rejected),
				"summary_requested": summary,
				"summary_ok":        summary && run.SummaryError == "",
			}
			if err := svc.Events().Log(r.Context(), env, analytics.EventScheduleSuggested, props, analytics.SourceEventKeyFromRequest(r)); err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Msg("analytics log failed")
			}
		}

		httpx.WriteJSON(w, http.StatusOK, run)
	}
}

// POST /api/schedule/approve {"task_id":1,"start":"...","end":"..."}
func ApproveHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		var body store.Approval
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.Error(w, r, err)
			return
		}
		if body.TaskID == 0 {
			http.Error(w, "task_id required", http.StatusBadRequest)
			return
		}

		ev, err := svc.Approve(r.Context(), uid, body)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}

		// analytics: suggestion_approved
		{
			env := analytics.FromRequest(r)
			env.UserID = uid
			lead := ev.Start.Sub(time.Now())
			props := map[string]any{
				"task_id":          body.TaskID,
				"event_id":         ev.ID,
				"duration_minutes": int(ev.End.Sub(ev.Start) / time.Minute),
				"lead_hours":       int(lead / time.Hour),
			}
			if err := svc.Events().Log(r.Context(), env, analytics.EventSuggestionApproved, props, analytics.SourceEventKeyFromRequest(r)); err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Int64("task_id", body.TaskID).Msg("analytics log failed")
			}
		}

		httpx.WriteJSON(w, http.StatusCreated, map[string]any{
			"message": "suggestion approved and added to calendar",
			"event":   ev,
		})
	}
}

// GET /api/schedule/latest
func LatestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		run, ok := svc.Latest(uid)
		if !ok {
			http.Error(w, "no schedule yet", http.StatusNotFound)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, run)
	}
}

// GET /api/schedule/policy
func PolicyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, svc.Policy())
	}
}
