package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notesync/internal/model"
	"github.com/xxxsen/notesync/internal/pkg/errcode"
	"github.com/xxxsen/notesync/internal/pkg/response"
	"github.com/xxxsen/notesync/internal/service"
)

type TransferHandler struct {
	transfer *service.TransferService
}

func NewTransferHandler(transfer *service.TransferService) *TransferHandler {
	return &TransferHandler{transfer: transfer}
}

type mappingRequest struct {
	Mapping map[string]model.NativeLabel `json:"mapping"`
}

func (h *TransferHandler) Start(c *gin.Context) {
	prompt, err := h.transfer.Start(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, prompt)
}

func (h *TransferHandler) SubmitMapping(c *gin.Context) {
	var req mappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if len(req.Mapping) == 0 {
		response.Error(c, errcode.ErrInvalid, "mapping required")
		return
	}
	prompt, err := h.transfer.SubmitMapping(c.Request.Context(), req.Mapping)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, prompt)
}

func (h *TransferHandler) Confirm(c *gin.Context) {
	prompt, err := h.transfer.Confirm(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, prompt)
}

func (h *TransferHandler) Status(c *gin.Context) {
	status, err := h.transfer.Status(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, status)
}
