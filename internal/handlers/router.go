package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/Billy-Davies-2/knockout-pool/internal/auth"
	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
)

// RequestObserver counts served requests by route pattern
type RequestObserver interface {
	ObserveRequest(route string, code int)
}

// RouterOptions wires the collaborators around the API
type RouterOptions struct {
	Auth    auth.AuthProvider
	Health  *Health
	Metrics http.Handler
	Observe RequestObserver

	// AdminRate and AdminBurst limit the write endpoints across all callers
	AdminRate  rate.Limit
	AdminBurst int
}

// NewRouter mounts the API, auth, health and metrics routes
func NewRouter(api *APIHandlers, opts RouterOptions) http.Handler {
	if opts.AdminRate == 0 {
		opts.AdminRate = rate.Every(time.Second)
	}
	if opts.AdminBurst == 0 {
		opts.AdminBurst = 5
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if opts.Observe != nil {
		r.Use(observe(opts.Observe))
	}

	if opts.Health != nil {
		r.Get("/healthz", opts.Health.Liveness)
		r.Get("/readyz", opts.Health.Readiness)
		r.Get("/api/health", opts.Health.Status)
	}
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	if opts.Auth != nil {
		r.Get("/auth/login", opts.Auth.LoginHandler)
		r.Get("/auth/callback", opts.Auth.CallbackHandler)
		r.Get("/auth/logout", opts.Auth.LogoutHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/standings", api.ListStandings)
		r.Get("/standings/{code}", api.GetStandings)
		r.Get("/leaderboard", api.GetLeaderboard)
		r.Get("/participants/{id}", api.GetParticipant)
		r.Get("/participants/{id}/history", api.GetParticipantHistory)
		r.Get("/teams", api.ListTeams)
		r.Get("/games", api.ListGames)
		r.Get("/slots", api.GetSlots)
		r.Get("/events", api.EventsSSE)

		r.Group(func(r chi.Router) {
			if opts.Auth != nil {
				r.Use(auth.RequireAdmin(opts.Auth))
			}
			r.Use(rateLimit(rate.NewLimiter(opts.AdminRate, opts.AdminBurst)))

			r.Put("/slots", api.ReplaceSlots)
			r.Post("/results", api.SubmitResults)
			r.Post("/recompute", api.Recompute)
		})
	})

	return r
}

// rateLimit answers 429 once the shared limiter runs dry
func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				logger.Warn("Admin request rate limited", "path", r.URL.Path, "user", userName(r))
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func observe(o RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			o.ObserveRequest(route, status)
		})
	}
}

func userName(r *http.Request) string {
	if u := auth.GetUser(r); u != nil {
		return u.Username
	}
	return ""
}
