package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/middleware"
)

type Routes struct {
	JWTSecret string
	Auth      *AuthHandler
	Google    *GoogleOAuthHandler
	Catalog   *CatalogHandler
}

// ErrorHandler renders fiber errors (401 dari middleware JWT, 403 dari RequireRoles, dst)
// dengan envelope yang sama seperti handler.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "Terjadi kesalahan server"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			msg = fe.Message
		}
		if code == fiber.StatusUnauthorized {
			msg = "Silakan login terlebih dahulu"
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}

		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"message": msg,
		})
	}
}

func Register(app *fiber.App, r Routes) {
	api := app.Group("/api")

	// public
	api.Post("/auth/login", r.Auth.Login)
	api.Post("/auth/logout", r.Auth.Logout)
	if r.Google != nil {
		api.Get("/auth/google/start", r.Google.GoogleStart)
		api.Get("/auth/google/callback", r.Google.GoogleCallback)
	}

	// protected (JWT)
	protected := api.Group("/",
		middleware.JWTFromCookie(r.JWTSecret),
		middleware.AttachJWTLocals(),
	)
	admin := middleware.RequireRoles("admin")

	protected.Get("/me", r.Auth.Me)
	protected.Post("/admin/users", admin, r.Auth.CreateUser)

	cat := protected.Group("/catalog")
	h := r.Catalog

	cat.Get("/products", h.ListProducts)
	cat.Get("/products/:remoteId", h.GetProduct)
	cat.Post("/products", admin, h.CreateProduct)
	cat.Delete("/products/:remoteId", admin, h.DeleteProduct)
	cat.Patch("/products/:remoteId/notes", h.UpdateNotes)
	cat.Post("/products/:remoteId/purchase/toggle", h.TogglePurchase)
	cat.Put("/products/:remoteId/purchase", h.UpdatePurchase)

	syncLimit := middleware.RateLimit(middleware.ResCatalogSync)
	cat.Post("/sync", admin, syncLimit, h.SyncAll)
	cat.Post("/sync/:remoteId", syncLimit, h.SyncOne)
	cat.Get("/sync/runs", h.SyncRuns)

	cat.Get("/search", middleware.RateLimit(middleware.ResCatalogSearch), h.SearchProducts)
	cat.Get("/categories", h.Categories)

	// WebSocket: cookie JWT ikut terkirim saat handshake
	app.Get("/ws/catalog",
		middleware.JWTFromCookie(r.JWTSecret),
		middleware.AttachJWTLocals(),
		h.WebSocketUpgrade,
		websocket.New(h.WebSocketHandler),
	)
}
