// Package router wires every HTTP route to its handler and applies
// the auth and rate-limit middleware per group.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/wagate/wagate/internal/handler"
	"github.com/wagate/wagate/internal/middleware"
	"github.com/wagate/wagate/internal/model"
	"github.com/wagate/wagate/internal/repository"
)

// Handlers collects everything the router needs to register the full
// API surface. The struct keeps Register's signature stable as
// endpoints are added.
type Handlers struct {
	Auth     *handler.AuthHandler
	WhatsApp *handler.WhatsAppHandler
	Message  *handler.MessageHandler
	Keys     *handler.KeyHandler
	Admin    *handler.AdminHandler
	WS       *handler.WSHandler
	WSEvent  *handler.WSEventHandler
	Health   *handler.HealthHandler

	JWTSecret string
	Users     *repository.UserRepo
	Bucket    echo.MiddlewareFunc // global token-bucket limiter, may be nil
}

// Register attaches every route under /api. Three tiers:
//
//	public  – health, login/register, api-key send, websocket, engine callback
//	bearer  – everything a logged-in user may do
//	admin   – management surface, additionally gated by role
func Register(e *echo.Echo, h Handlers) {
	api := e.Group("/api")
	if h.Bucket != nil {
		api.Use(h.Bucket)
	}

	// Public surface.
	api.GET("/health", h.Health.Check)
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.GET("/send", h.Message.SendWithKey) // api_key in query
	api.GET("/ws", h.WS.Serve)
	api.POST("/internal/ws-event", h.WSEvent.Receive)

	// Bearer-token surface.
	auth := api.Group("", middleware.JWTAuth(h.JWTSecret, h.Users))
	auth.GET("/auth/me", h.Auth.Me)
	auth.POST("/auth/change-password", h.Auth.ChangePassword)

	auth.POST("/whatsapp/initialize", h.WhatsApp.Initialize)
	auth.GET("/whatsapp/status", h.WhatsApp.Status)
	auth.GET("/whatsapp/qr", h.WhatsApp.QR)
	auth.POST("/whatsapp/disconnect", h.WhatsApp.Disconnect)

	auth.POST("/messages/send", h.Message.Send)
	auth.GET("/messages/logs", h.Message.History)

	auth.POST("/keys/regenerate", h.Keys.Regenerate)

	// Admin surface.
	admin := auth.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	admin.GET("/users", h.Admin.ListUsers)
	admin.POST("/users", h.Admin.CreateUser)
	admin.PUT("/users/:id", h.Admin.UpdateUser)
	admin.DELETE("/users/:id", h.Admin.DeleteUser)
	admin.POST("/reset-password/:id", h.Admin.ResetPassword)

	admin.GET("/settings", h.Admin.GetSettings)
	admin.PUT("/settings", h.Admin.UpdateSettings)

	admin.GET("/logs", h.Admin.ListLogs)

	admin.GET("/analytics/overview", h.Admin.Overview)
	admin.GET("/analytics/messages", h.Admin.MessagesPerDay)
	admin.GET("/analytics/users-activity", h.Admin.UsersActivity)

	admin.GET("/system/status", h.Admin.SystemStatus)
	admin.GET("/whatsapp/sessions", h.Admin.Sessions)
}
