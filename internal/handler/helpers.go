package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/middleware"
	"github.com/xxxsen/notesync/internal/pkg/errcode"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
	"github.com/xxxsen/notesync/internal/pkg/response"
)

func getUsername(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUsernameKey)
	username, _ := value.(string)
	return username
}

// errorTable is checked in order; the first sentinel found in the chain wins.
var errorTable = []struct {
	err  error
	code int
	msg  string
}{
	{appErr.ErrTransferInProgress, errcode.ErrTransferInProgress, ""},
	{appErr.ErrSyncMode, errcode.ErrSyncMode, "Transfer is complete and sync mode is active. Disable sync in settings to run a manual transfer."},
	{appErr.ErrMappingIncomplete, errcode.ErrMappingIncomplete, ""},
	{appErr.ErrNothingToTransfer, errcode.ErrNothingToTransfer, "There are no Toolbox usernotes to transfer."},
	{appErr.ErrUnauthorized, errcode.ErrUnauthorized, "unauthorized"},
	{appErr.ErrForbidden, errcode.ErrForbidden, "forbidden"},
	{appErr.ErrNotFound, errcode.ErrNotFound, "not found"},
	{appErr.ErrUserUnavailable, errcode.ErrNotFound, "user unavailable"},
	{appErr.ErrInvalid, errcode.ErrInvalid, ""},
	{appErr.ErrConflict, errcode.ErrConflict, "conflict"},
	{appErr.ErrTooMany, errcode.ErrTooMany, "too many requests"},
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("username", getUsername(c)),
		zap.Error(err),
	)
	for _, item := range errorTable {
		if !errors.Is(err, item.err) {
			continue
		}
		msg := item.msg
		if msg == "" {
			msg = err.Error()
		}
		response.Error(c, item.code, msg)
		return
	}
	response.Error(c, errcode.ErrInternal, "internal error")
}
