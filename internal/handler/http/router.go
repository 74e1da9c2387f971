package http

import (
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-backend-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouterConfig carries everything NewRouter wires together
type RouterConfig struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	PublicDir      string
	JWTService     jwt.Service
	Metrics        *metrics.Metrics

	AuthHandler       AuthHandler
	UserHandler       UserHandler
	AttendanceHandler AttendanceHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	if cfg.Logger != nil {
		r.Use(httplog.RequestLogger(cfg.Logger, &httplog.Options{
			Level:  slog.LevelDebug,
			Schema: httplog.SchemaECS,
			// SSE streams stay open; logging them on close is noise
			Skip: func(req *http.Request, respStatus int) bool {
				return req.URL.Path == "/api/v1/attendance/stream"
			},
		}))
	}

	r.Use(cfg.Metrics.Middleware)
	r.Use(chiMiddleware.AllowContentType("application/json", "multipart/form-data"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	if cfg.PublicDir != "" {
		r.Handle("/public/*", http.StripPrefix("/public/", http.FileServer(http.Dir(cfg.PublicDir))))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", cfg.AuthHandler.Register)
			r.Post("/login", cfg.AuthHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(jwtauth.Verifier(cfg.JWTService.JWTAuth()))
				r.Use(middleware.AuthRequired(cfg.JWTService))
				r.Get("/me", cfg.AuthHandler.Me)
				r.Post("/logout", cfg.AuthHandler.Logout)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(jwtauth.Verifier(cfg.JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(cfg.JWTService))

			r.Get("/{id}", cfg.UserHandler.Get)

			// Admin only
			r.Group(func(r chi.Router) {
				r.Use(middleware.AdminOnly)
				r.Post("/", cfg.UserHandler.Create)
				r.Get("/employees", cfg.UserHandler.ListEmployees)
				r.Put("/{id}", cfg.UserHandler.Update)
				r.Delete("/{id}", cfg.UserHandler.Delete)
			})
		})

		r.Route("/attendance", func(r chi.Router) {
			// SSE authenticates with a short-lived query token
			r.Get("/stream", cfg.AttendanceHandler.Stream)

			// Requires authentication
			r.Group(func(r chi.Router) {
				r.Use(jwtauth.Verifier(cfg.JWTService.JWTAuth()))
				r.Use(middleware.AuthRequired(cfg.JWTService))

				r.Post("/check-in", cfg.AttendanceHandler.CheckIn)
				r.Get("/validate-check-in", cfg.AttendanceHandler.ValidateCheckIn)
				r.Post("/check-out/{id}", cfg.AttendanceHandler.CheckOut)
				r.Get("/validate-check-out/{id}", cfg.AttendanceHandler.ValidateCheckOut)
				r.Get("/incomplete", cfg.AttendanceHandler.GetIncomplete)
				r.Get("/today", cfg.AttendanceHandler.GetToday)
				r.Get("/history", cfg.AttendanceHandler.History)
				r.Get("/stream-token", cfg.AttendanceHandler.GetStreamToken)
				r.Get("/{id}", cfg.AttendanceHandler.Get)

				// Admin only
				r.Group(func(r chi.Router) {
					r.Use(middleware.AdminOnly)
					r.Get("/", cfg.AttendanceHandler.List)
					r.Get("/user/{userId}", cfg.AttendanceHandler.ListByUser)
					r.Delete("/{id}", cfg.AttendanceHandler.Delete)
				})
			})
		})
	})

	return otelhttp.NewHandler(r, "attendance-api",
		otelhttp.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/health" && req.URL.Path != "/metrics"
		}),
	)
}
