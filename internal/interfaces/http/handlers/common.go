// Package handlers implements the HTTP endpoints of the protocol API.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// writeAppError maps err onto its catalogue status.  Internal failures are
// masked; caller and corpus errors are returned as-is.
func writeAppError(c *gin.Context, err error) {
	var ae *errors.AppError
	switch {
	case errors.As(err, &ae):
		resp := ErrorResponse{Code: string(ae.Code), Message: ae.Message, Detail: ae.Detail}
		status := ae.HTTPStatus()
		if status == http.StatusInternalServerError {
			resp.Message = errors.DefaultMessage(errors.ErrCodeInternal)
			resp.Detail = ""
		}
		c.AbortWithStatusJSON(status, resp)
	case errors.Is(err, context.DeadlineExceeded):
		c.AbortWithStatusJSON(http.StatusGatewayTimeout, ErrorResponse{
			Code:    string(errors.ErrCodeTimeout),
			Message: errors.DefaultMessage(errors.ErrCodeTimeout),
		})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Code:    string(errors.ErrCodeInternal),
			Message: errors.DefaultMessage(errors.ErrCodeInternal),
		})
	}
}

// bindJSON decodes the body into v and writes a 400 on failure.
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeAppError(c, errors.InvalidParam("invalid request body").WithDetail(err.Error()))
		return false
	}
	return true
}
