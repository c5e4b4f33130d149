package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"smart-scheduler/internal/db"
)

type ctxKey string

const (
	ctxUserIDKey ctxKey = "analytics_user_id"
)

const (
	EventScheduleSuggested  = "schedule_suggested"
	EventSuggestionApproved = "suggestion_approved"
	EventTaskStatusChanged  = "task_status_changed"
	EventScheduleRefreshed  = "schedule_refreshed"
)

// Envelope is what we store with every event.
type Envelope struct {
	UserID       int
	SessionID    string
	Platform     string
	AppVersion   string
	DeviceLocale string
}

// FromRequest extracts event envelope fields from request.
// Backend-trustable fields only.
func FromRequest(r *http.Request) Envelope {
	platform := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Platform")))
	switch platform {
	case "ios", "android", "web", "cli":
	default:
		platform = "unknown"
	}

	locale := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if locale == "" {
		locale = strings.TrimSpace(r.Header.Get("X-Device-Locale"))
	}

	return Envelope{
		SessionID:    strings.TrimSpace(r.Header.Get("X-Session-Id")),
		Platform:     platform,
		AppVersion:   strings.TrimSpace(r.Header.Get("X-App-Version")),
		DeviceLocale: locale,
	}
}

// System is the envelope for events raised by the server itself (cron
// refresh), with no client request behind them.
func System(userID int) Envelope {
	return Envelope{UserID: userID, Platform: "server"}
}

func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(ctxUserIDKey)
	if v == nil {
		return 0, false
	}
	uid, ok := v.(int)
	return uid, ok
}

// SourceEventKeyFromRequest returns the client idempotency key. A duplicate
// key makes the insert a no-op.
func SourceEventKeyFromRequest(r *http.Request) string {
	k := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}

// NewSourceKey returns a fresh key for server-side events.
func NewSourceKey() string {
	return uuid.NewString()
}

// Logger records analytics events. A nil *Logger is valid and drops
// everything.
type Logger struct {
	db  *db.DB
	now func() time.Time
}

func New(d *db.DB) *Logger {
	return &Logger{db: d, now: func() time.Time { return time.Now().UTC() }}
}

// Log inserts one analytics event.
// Never logs sensitive raw text; caller passes sanitized props.
func (l *Logger) Log(ctx context.Context, env Envelope, eventName string, props any, sourceEventKey string) error {
	if l == nil || l.db == nil || eventName == "" {
		return nil
	}

	userID := env.UserID
	if userID == 0 {
		uid, ok := UserIDFromContext(ctx)
		if !ok {
			return nil
		}
		userID = uid
	}

	b, err := json.Marshal(props)
	if err != nil {
		return err
	}
	if env.Platform == "" {
		env.Platform = "unknown"
	}

	_, err = l.db.ExecContext(ctx, l.db.Rebind(`
		INSERT INTO analytics_events (
			event_name, event_time,
			user_id, session_id,
			platform, app_version, device_locale,
			source_event_key,
			properties
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_event_key) DO NOTHING
	`), eventName, db.FormatTime(l.now()),
		userID, nullIfEmpty(env.SessionID),
		env.Platform, env.AppVersion, nullIfEmpty(env.DeviceLocale),
		nullIfEmpty(sourceEventKey),
		string(b),
	)
	return err
}

// Event is one stored analytics row.
type Event struct {
	Name       string         `json:"event_name"`
	UserID     int            `json:"user_id"`
	Platform   string         `json:"platform"`
	Properties map[string]any `json:"properties"`
	Time       time.Time      `json:"event_time"`
}

// Recent returns the latest events of userID, newest first.
func (l *Logger) Recent(ctx context.Context, userID int, limit int) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx, l.db.Rebind(`
		SELECT event_name, user_id, platform, properties, event_time
		FROM analytics_events
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`), userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e     Event
			props string
			at    sql.NullString
		)
		if err := rows.Scan(&e.Name, &e.UserID, &e.Platform, &props, &at); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
			return nil, err
		}
		if e.Time, err = db.ParseTime(at); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
