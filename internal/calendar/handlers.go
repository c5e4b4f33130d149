package calendar

import (
	"net/http"

	"smart-scheduler/internal/httpx"
	"smart-scheduler/internal/store"
)

// GET /api/calendar?from=&to= lists events overlapping the range; both
// bounds are optional.
func GetEventsHandler(st *store.Store) http.HandlerFunc {
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
		to, err := httpx.TimeParam(r, "to")
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		if !from.IsZero() && !to.IsZero() && !from.Before(to) {
			http.Error(w, "from must be before to", http.StatusBadRequest)
			return
		}

		events, err := st.ListCalendarEvents(r.Context(), uid, from, to)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, events)
	}
}

func CreateEventHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		var body store.CalendarInput
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.Error(w, r, err)
			return
		}
		ev, err := st.CreateCalendarEvent(r.Context(), uid, body)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, ev)
	}
}

func UpdateEventHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		id, ok := httpx.ID(w, r)
		if !ok {
			return
		}
		var body store.CalendarInput
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.Error(w, r, err)
			return
		}
		ev, err := st.UpdateCalendarEvent(r.Context(), uid, id, body)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, ev)
	}
}

func DeleteEventHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := httpx.Owner(w, r)
		if !ok {
			return
		}
		id, ok := httpx.ID(w, r)
		if !ok {
			return
		}
		if err := st.DeleteCalendarEvent(r.Context(), uid, id); err != nil {
			httpx.Error(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"message": "event deleted"})
	}
}
