package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"talkinghead/internal/http/handlers"
)

func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)

	r.Get("/v1/healthz", app.Health)

	r.Post("/generate", app.Generate)

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/{job_id}", app.JobStatus)
	})

	r.Get("/videos/{video_id}", app.VideoStatus)

	return r
}
