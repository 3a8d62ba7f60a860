package routes

import (
	"net/http"

	"github.com/CodeWithJuber/ai-painting-generator/internal/app"
	"github.com/CodeWithJuber/ai-painting-generator/internal/handler"
	"github.com/CodeWithJuber/ai-painting-generator/internal/middleware"
	"github.com/CodeWithJuber/ai-painting-generator/internal/storage"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService)
	title := handler.NewTitleHandler(app.TitleService)
	reference := handler.NewReferenceHandler(app.ReferenceService)
	painting := handler.NewPaintingHandler(app.GenerationService, app.StatusService)
	health := handler.NewHealthHandler(app.DB)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /health", health.Health)

	// Rendered images, when stored on local disk
	if local, ok := app.Store.(*storage.LocalStore); ok {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(local.Dir()))))
	}

	// Auth (rate limited)
	rateLimiter := middleware.RateLimitAuth()
	mux.HandleFunc("POST /api/auth/register", rateLimiter(auth.Register))
	mux.HandleFunc("POST /api/auth/login", rateLimiter(auth.Login))

	// ============================================================================
	// PROTECTED ROUTES (/api/*)
	// ============================================================================

	mux.HandleFunc("GET /api/auth/me", middleware.RequireAuth(auth.Me))

	// Titles
	mux.HandleFunc("POST /api/titles", middleware.RequireAuth(title.Create))
	mux.HandleFunc("GET /api/titles", middleware.RequireAuth(title.List))
	mux.HandleFunc("GET /api/titles/{id}", middleware.RequireAuth(title.Get))
	mux.HandleFunc("PUT /api/titles/{id}", middleware.RequireAuth(title.Update))
	mux.HandleFunc("DELETE /api/titles/{id}", middleware.RequireAuth(title.Delete))

	// Reference images
	mux.HandleFunc("POST /api/references", middleware.RequireAuth(reference.Upload))
	mux.HandleFunc("GET /api/references/global", middleware.RequireAuth(reference.ListGlobal))
	mux.HandleFunc("GET /api/references/title/{titleId}", middleware.RequireAuth(reference.ListForTitle))
	mux.HandleFunc("DELETE /api/references/title/{titleId}", middleware.RequireAuth(reference.ClearForTitle))
	mux.HandleFunc("DELETE /api/references/{id}", middleware.RequireAuth(reference.Delete))

	// Paintings
	mux.HandleFunc("POST /api/paintings/generate", middleware.RequireAuth(painting.Generate))
	mux.HandleFunc("GET /api/paintings/{titleId}", middleware.RequireAuth(painting.Status))
	mux.HandleFunc("POST /api/paintings/{id}/regenerate", middleware.RequireAuth(painting.Regenerate))
	mux.HandleFunc("POST /api/paintings/{id}/retry-image", middleware.RequireAuth(painting.RetryImage))

	return middleware.Chain(mux,
		middleware.RequestLogging,
		middleware.AuthMiddleware(app.AuthService, app.UserRepository),
	)
}
