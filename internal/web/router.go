package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/spark200410/consultancy/internal/appointment"
	"github.com/spark200410/consultancy/internal/audit"
	"github.com/spark200410/consultancy/internal/chat"
	"github.com/spark200410/consultancy/internal/doctor"
	"github.com/spark200410/consultancy/internal/session"
)

type RouterConfig struct {
	Auth         AuthBackend
	Directory    *doctor.Directory
	Appointments *appointment.Service
	Chat         *chat.Registry
	Sessions     *session.Manager
	Renderer     *Renderer
	Audit        audit.Recorder
	Limiter      *RateLimiter // nil disables login rate limiting
	TrustProxy   bool         // only behind a proxy that overwrites X-Forwarded-For
	Checks       []Check
	Metrics      http.Handler // served on /metrics when set

	MaxPhotoBytes int64
	MaxAudioBytes int64
	RedirectDelay time.Duration

	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Audit == nil {
		cfg.Audit = audit.Nop()
	}
	if cfg.MaxPhotoBytes <= 0 {
		cfg.MaxPhotoBytes = 5 << 20
	}
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = 10 << 20
	}
	// a new login or a logout ends the session's chat
	cfg.Sessions.OnLogout(cfg.Chat.Teardown)

	r := chi.NewRouter()

	// Apply middleware
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	r.Handle("/static/*", staticHandler())

	rn, logger := cfg.Renderer, cfg.Logger

	r.Group(func(r chi.Router) {
		r.Use(cfg.Sessions.Middleware)
		r.Use(CredentialMiddleware)

		r.Get("/", landingHandler(rn))
		r.Post("/logout", logoutHandler(cfg.Sessions))

		// Auth forms
		r.Group(func(r chi.Router) {
			if cfg.Limiter != nil {
				r.Use(cfg.Limiter.Limit)
			}
			r.Get("/login", loginFormHandler(rn, false))
			r.Post("/login", loginHandler(rn, cfg.Auth, cfg.Sessions, logger, false))
			r.Get("/admin/login", loginFormHandler(rn, true))
			r.Post("/admin/login", loginHandler(rn, cfg.Auth, cfg.Sessions, logger, true))
			r.Get("/register", registerFormHandler(rn))
			r.Post("/register", registerHandler(rn, cfg.Auth, cfg.Audit, logger))
		})

		// Admin shell
		r.Group(func(r chi.Router) {
			r.Use(session.RequireRole("/admin/login", session.RoleAdmin))
			r.Get("/admin", addDoctorFormHandler(rn))
			r.Post("/admin", addDoctorHandler(rn, cfg.Directory, cfg.MaxPhotoBytes, cfg.RedirectDelay, logger))
			r.Get("/admin/doctors", listDoctorsHandler(rn, cfg.Directory, logger))
			r.Get("/admin/doctors/{id}/delete", confirmDeleteDoctorHandler(rn, cfg.Directory, logger))
			r.Post("/admin/doctors/{id}/delete", deleteDoctorHandler(rn, cfg.Directory, logger))
			r.Get("/admin/appointments", listingHandler(rn, cfg.Appointments, appointment.AdminListing, shellAdmin))
			r.Post("/admin/appointments/cancel", cancelHandler(rn, cfg.Appointments, appointment.AdminListing, shellAdmin))
		})

		// User shell
		r.Group(func(r chi.Router) {
			r.Use(session.RequireRole("/login", session.RoleUser))
			r.Get("/panel", panelHandler(rn))
			r.Get("/book", bookingPageHandler(rn, cfg.Directory, cfg.Appointments, logger))
			r.Post("/book", bookHandler(rn, cfg.Directory, cfg.Appointments, logger))
			for _, l := range []appointment.Listing{appointment.PatientListing, appointment.HomeListing} {
				r.Get(l.Path, listingHandler(rn, cfg.Appointments, l, shellUser))
				r.Post(l.Path+"/cancel", cancelHandler(rn, cfg.Appointments, l, shellUser))
			}
		})

		// Chat widget, available in both shells
		r.Route("/chat", func(r chi.Router) {
			r.Use(session.RequireRole("", session.RoleAdmin, session.RoleUser))
			r.Get("/", chatSnapshotHandler(cfg.Chat))
			r.Post("/toggle", chatToggleHandler(cfg.Chat))
			r.Post("/messages", chatMessageHandler(cfg.Chat))
			r.Post("/recording/start", chatStartRecordingHandler(cfg.Chat))
			r.Post("/recording/chunk", chatChunkHandler(cfg.Chat, cfg.MaxAudioBytes))
			r.Post("/recording/stop", chatStopRecordingHandler(cfg.Chat))
		})
	})

	return r
}
