package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/justbri/moviepicker/config"
	"github.com/justbri/moviepicker/middleware"
	"github.com/justbri/moviepicker/services"
	"github.com/justbri/moviepicker/store"
)

type Handler struct {
	cfg      *config.Config
	store    store.Store
	commands *services.Commands
	users    services.Users
	sessions *services.SessionManager
	validate *validator.Validate
}

func New(cfg *config.Config, st store.Store, commands *services.Commands, users services.Users, sessions *services.SessionManager) *Handler {
	return &Handler{
		cfg:      cfg,
		store:    st,
		commands: commands,
		users:    users,
		sessions: sessions,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes builds the service router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	// Without configured origins only same-origin pages may call the API.
	if origins := h.cfg.Security.CORSOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
	r.Handle("/metrics", promhttp.Handler())

	limit := h.rateLimit()
	requireAuth := middleware.RequireAuth(h.sessions, h.users)

	r.Route("/api", func(r chi.Router) {
		r.With(limit).Post("/register", h.Register)
		r.With(limit).Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/me", h.Me)
			r.Get("/movies/view", h.View)
			r.Get("/movies/{id}", h.GetMovie)
			r.Get("/trailer", h.Trailer)
			r.Get("/live", h.Live)

			r.Group(func(r chi.Router) {
				r.Use(limit)
				r.Post("/movies", h.AddMovie)
				r.Post("/movies/pick", h.Pick)
				r.Delete("/movies/{id}", h.DeleteMovie)
				r.Post("/movies/{id}/toggle", h.ToggleStatus)
			})
		})
	})

	return r
}

// rateLimit limits mutating routes per client IP. A zero request budget disables it.
func (h *Handler) rateLimit() func(http.Handler) http.Handler {
	sec := h.cfg.Security
	if sec.RateLimitRequests <= 0 || sec.RateLimitWindow <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(sec.RateLimitRequests, sec.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
		}))
}
