package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/DekelUsach/Proyecto-final-de-seminario/internal/pkg/errcode"
	pkgErr "github.com/DekelUsach/Proyecto-final-de-seminario/internal/pkg/errors"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get("request_id")
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	switch {
	case errors.Is(err, pkgErr.ErrNotFound):
		response.Error(c, appErr.ErrNotFound, "not found")
	case errors.Is(err, pkgErr.ErrInvalid):
		response.Error(c, appErr.ErrInvalid, "invalid request")
	case errors.Is(err, pkgErr.ErrConflict):
		response.Error(c, appErr.ErrConflict, "conflict")
	case errors.Is(err, pkgErr.ErrUnavailable):
		response.Error(c, appErr.ErrAIUnavailable, "ai provider unavailable")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		response.Error(c, appErr.ErrInternal, "request cancelled")
	default:
		response.Error(c, appErr.ErrInternal, "internal error")
	}
}
