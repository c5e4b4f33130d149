package analytics

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// RecentHandler lists the caller's latest events, newest first.
func RecentHandler(l *Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		limit := defaultRecentLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxRecentLimit)
		}

		events := []Event{}
		if l != nil && l.db != nil {
			got, err := l.Recent(r.Context(), uid, limit)
			if err != nil {
				http.Error(w, "db query error", http.StatusInternalServerError)
				return
			}
			if got != nil {
				events = got
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(events)
	}
}
