package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"smart-scheduler/internal/analytics"
	"smart-scheduler/internal/auth"
	"smart-scheduler/internal/calendar"
	"smart-scheduler/internal/projects"
	"smart-scheduler/internal/schedule"
	"smart-scheduler/internal/store"
	"smart-scheduler/internal/tasks"
)

type Deps struct {
	Store       *store.Store
	Schedule    *schedule.Service
	Events      *analytics.Logger
	Auth        auth.Middleware
	CORSOrigins []string
	Logger      zerolog.Logger
}

// New builds the HTTP handler: chi routes under /api behind the bearer
// token middleware, wrapped in CORS.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestIDMiddleware(d.Logger.With().Str("component", "http").Logger()))
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := d.Store.DB().PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(d.Auth.Handler)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", projects.GetProjectsHandler(d.Store))
			r.Post("/", projects.CreateProjectHandler(d.Store))
			r.Get("/status", projects.ProjectStatusHandler(d.Store))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", projects.GetProjectHandler(d.Store))
				r.Put("/", projects.UpdateProjectHandler(d.Store))
				r.Delete("/", projects.DeleteProjectHandler(d.Store))
			})
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", tasks.GetTasksHandler(d.Store))
			r.Post("/", tasks.CreateTaskHandler(d.Store))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", tasks.GetTaskHandler(d.Store))
				r.Put("/", tasks.UpdateTaskHandler(d.Store))
				r.Delete("/", tasks.DeleteTaskHandler(d.Store))
				r.Post("/status", tasks.SetTaskStatusHandler(d.Store, d.Events))
				r.Get("/history", tasks.TaskHistoryHandler(d.Store))
			})
		})

		r.Route("/calendar", func(r chi.Router) {
			r.Get("/", calendar.GetEventsHandler(d.Store))
			r.Post("/", calendar.CreateEventHandler(d.Store))
			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", calendar.UpdateEventHandler(d.Store))
				r.Delete("/", calendar.DeleteEventHandler(d.Store))
			})
		})

		r.Route("/schedule", func(r chi.Router) {
			r.Get("/suggest", schedule.SuggestHandler(d.Schedule))
			r.Post("/approve", schedule.ApproveHandler(d.Schedule))
			r.Get("/latest", schedule.LatestHandler(d.Schedule))
			r.Get("/policy", schedule.PolicyHandler(d.Schedule))
		})

		r.Get("/events", analytics.RecentHandler(d.Events))
	})

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key", "X-Request-ID", "X-Platform", "X-App-Version", "X-Session-Id"},
		ExposedHeaders:   []string{"X-Request-ID", "X-AI-Error"},
		AllowCredentials: true,
	})

	return c.Handler(r)
}
