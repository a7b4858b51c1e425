package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carelink/healthcare-identity/internal/api/http/handlers"
	"github.com/carelink/healthcare-identity/internal/auth"
	"github.com/carelink/healthcare-identity/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Identity       *handlers.IdentityHandler
	Password       *handlers.PasswordHandler
	Verification   *handlers.VerificationHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/signup", cfg.Identity.Signup)
	app.Post("/login", cfg.Identity.Login)
	app.Post("/logout", cfg.Identity.Logout)

	password := app.Group("/password")
	password.Post("/otp/request", cfg.Password.RequestOTP)
	password.Post("/otp/verify", cfg.Password.VerifyOTP)
	password.Post("/reset", cfg.Password.ResetPassword)

	authenticated := cfg.AuthMiddleware.Handle

	me := app.Group("/me", authenticated, auth.RequireAnyKind())
	me.Get("", cfg.Identity.Me)
	me.Patch("/profile", cfg.Identity.UpdateProfile)

	doctor := app.Group("/doctor/credentials", authenticated)
	doctor.Post("", auth.RequireKind(domain.KindDoctor), cfg.Verification.Submit)
	doctor.Get("/status", auth.RequireAnyKind(), cfg.Verification.Status)
	doctor.Get("/history", auth.RequireKind(domain.KindDoctor, domain.KindAdmin), cfg.Verification.History)

	admin := app.Group("/admin/verification", authenticated, auth.RequireKind(domain.KindAdmin))
	admin.Get("/pending", cfg.Verification.Pending)
	admin.Post("/decide", cfg.Verification.Decide)
}
