package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notesync/internal/middleware"
)

type RouterDeps struct {
	Transfer  *TransferHandler
	Settings  *SettingsHandler
	Events    *EventHandler
	Community string
	JWTSecret []byte
	// RateWindow throttles repeated transfer commands from one moderator.
	RateWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret, deps.Community))

	transfer := authGroup.Group("/transfer")
	transfer.Use(middleware.RateLimit(deps.RateWindow))
	transfer.POST("/start", deps.Transfer.Start)
	transfer.POST("/mapping", deps.Transfer.SubmitMapping)
	transfer.POST("/confirm", deps.Transfer.Confirm)
	authGroup.GET("/transfer/status", deps.Transfer.Status)

	authGroup.GET("/settings", deps.Settings.Get)
	authGroup.PUT("/settings", deps.Settings.Update)

	authGroup.POST("/events/install", deps.Events.Install)
	authGroup.POST("/events/upgrade", deps.Events.Upgrade)
	authGroup.POST("/events/modaction", deps.Events.ModAction)
}
