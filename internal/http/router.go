package http

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"keyframe/server/internal/http/handlers"
	"keyframe/server/internal/infra"
	"keyframe/server/internal/middleware"
	"keyframe/server/internal/ratelimit"
)

// RouterOptions carries the cross-cutting pieces the router wires in front of
// the handlers.
type RouterOptions struct {
	Logger         infra.Logger
	Throttle       *ratelimit.Limiter
	ThrottlePerMin int
	AllowedOrigins []string
	StaticDir      string
	StaticPrefix   string
}

// NewRouter assembles the API surface.
func NewRouter(app *handlers.App, opts RouterOptions) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))
	if opts.Throttle != nil && opts.ThrottlePerMin > 0 {
		r.Use(middleware.Throttle(opts.Throttle, opts.ThrottlePerMin, time.Minute))
	}

	r.Get("/healthz", app.Health)

	if opts.StaticDir != "" {
		prefix := opts.StaticPrefix
		if prefix == "" {
			prefix = "/static"
		}
		fs := stdhttp.StripPrefix(prefix, stdhttp.FileServer(stdhttp.Dir(opts.StaticDir)))
		r.Get(prefix+"/*", fs.ServeHTTP)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Identity)
		r.Route("/generations", func(r chi.Router) {
			r.Post("/", app.GenerationsCreate)
			r.Get("/{job_id}", app.GenerationsStatus)
			r.Delete("/{job_id}", app.GenerationsCancel)
		})
		r.Get("/credits", app.CreditsBalance)
	})

	return r
}
