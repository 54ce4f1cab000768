package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/shipway/server/internal/account"
	"github.com/shipway/server/internal/auth"
	"github.com/shipway/server/internal/http/handlers"
	"github.com/shipway/server/internal/middleware"
	"github.com/shipway/server/internal/model"
)

// Deps holds everything the router needs to build its handlers.
type Deps struct {
	AuthService *auth.AuthService
	Accounts    *account.Manager
	Tokens      *auth.JWTService
	Health      *handlers.HealthHandler
	OTPLength   int
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	health := d.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil)
	}
	r.Get("/health", health.ServeHTTP)

	authHandler := handlers.NewAuthHandler(d.AuthService, d.OTPLength)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/send-otp", authHandler.HandleSendOTP)
		r.Post("/verify-otp", authHandler.HandleVerifyOTP)
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/reset-password", authHandler.HandleResetPassword)
	})

	userHandler := handlers.NewUserHandler(d.Accounts)
	r.Route("/users", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(d.Tokens, d.Accounts))
		r.Get("/me", userHandler.HandleMe)
		r.Put("/me", userHandler.HandleUpdateMe)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))
			r.Get("/", userHandler.HandleList)
			r.Get("/{id}", userHandler.HandleGet)
			r.Delete("/{id}", userHandler.HandleDelete)
		})
	})

	return r
}
