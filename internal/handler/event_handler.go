package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notesync/internal/model"
	"github.com/xxxsen/notesync/internal/pkg/errcode"
	"github.com/xxxsen/notesync/internal/pkg/response"
	"github.com/xxxsen/notesync/internal/service"
)

// EventHandler receives lifecycle and moderator-action triggers from the host.
type EventHandler struct {
	install *service.InstallService
	sync    *service.SyncService
}

func NewEventHandler(install *service.InstallService, sync *service.SyncService) *EventHandler {
	return &EventHandler{install: install, sync: sync}
}

func (h *EventHandler) Install(c *gin.Context) {
	if err := h.install.HandleInstall(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *EventHandler) Upgrade(c *gin.Context) {
	if err := h.install.HandleInstallOrUpgrade(c.Request.Context()); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *EventHandler) ModAction(c *gin.Context) {
	var ev model.ModAction
	if err := c.ShouldBindJSON(&ev); err != nil {
		response.Error(c, errcode.ErrEventRejected, "invalid event")
		return
	}
	if ev.Action == "" || ev.Community == "" {
		response.Error(c, errcode.ErrEventRejected, "action and community required")
		return
	}
	if err := h.sync.HandleModAction(c.Request.Context(), ev); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
