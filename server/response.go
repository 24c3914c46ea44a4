package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/logger"
	"github.com/HyxiaoGe/prompthub/store"
)

// successBody is the envelope around every successful payload. Data is
// always present, null for operations with nothing to return.
type successBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Meta    any    `json:"meta,omitempty"`
}

// errorBody is the envelope around every failure.
type errorBody struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// PageMeta is the pagination block list responses carry under meta.
type PageMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func newPageMeta(page store.Page, total int) PageMeta {
	totalPages := 0
	if page.Size > 0 {
		totalPages = (total + page.Size - 1) / page.Size
	}
	return PageMeta{
		Page:       page.Number,
		PageSize:   page.Size,
		Total:      total,
		TotalPages: totalPages,
	}
}

// writeData writes a success envelope around data.
func writeData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, successBody{Code: 0, Message: "success", Data: data})
}

// writeList writes a success envelope with pagination meta.
func writeList(c *gin.Context, data any, page store.Page, total int) {
	c.JSON(http.StatusOK, successBody{
		Code:    0,
		Message: "success",
		Data:    data,
		Meta:    newPageMeta(page, total),
	})
}

// writeError maps err to its envelope and HTTP status. Typed service errors
// carry their own code and status; anything else is an internal error whose
// cause goes to the log, not the caller.
func writeError(c *gin.Context, err error) {
	if appErr, ok := apperrors.As(err); ok {
		c.JSON(appErr.HTTPStatus, errorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		})
		return
	}

	logger.ErrorContext(c.Request.Context(), "unhandled error",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"error", err)
	c.JSON(http.StatusInternalServerError, errorBody{
		Code:    http.StatusInternalServerError * 100,
		Message: "internal server error",
	})
}
