package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"chryso-hq/forms/pkg/telemetry/health"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// Recovery is outermost so panics in the other middleware are caught.
	r.Use(s.recoverer)
	r.Use(s.requestID)
	r.Use(s.clientIdentity)
	r.Use(s.traceRequests)
	r.Use(s.logRequests)
	if s.deps.Metrics != nil {
		r.Use(s.instrument)
	}

	r.Get("/health", s.deps.Health.LivenessHandler())
	r.Get("/ready", s.deps.Health.ReadinessHandler())
	r.Get("/version", health.VersionHandler(s.deps.Version))
	if s.deps.Metrics != nil {
		r.Handle(s.deps.MetricsPath, s.deps.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.rateLimit)
		}
		if s.auth.Enabled {
			r.Use(s.authenticate)
		}

		r.Route("/policies", func(r chi.Router) {
			r.Get("/", s.listPolicies)
			r.Post("/", s.createPolicy)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getPolicy)
				r.Put("/", s.updatePolicy)
				r.Delete("/", s.deactivatePolicy)
				r.Post("/run", s.runPolicy)
				r.Get("/preview", s.previewPolicy)
			})
		})

		r.Route("/holds", func(r chi.Router) {
			r.Get("/", s.listHolds)
			r.Post("/", s.placeHold)
			r.Delete("/{id}", s.releaseHold)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed on "+r.URL.Path)
	})

	return r
}
