package middleware

import (
	"github.com/gin-gonic/gin"

	"visa-portal/internal/common/errors"
)

type errorBody struct {
	Code    errors.ErrorCode       `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Meta    map[string]interface{} `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error     errorBody `json:"error"`
	RequestID string    `json:"requestId,omitempty"`
}

// AbortWithError writes the JSON error envelope and stops the chain. Errors
// that are not StandardErrors are reported as INTERNAL_ERROR without their
// text.
func AbortWithError(c *gin.Context, err error) {
	stdErr, ok := errors.As(err)
	if !ok {
		_ = c.Error(err)
		stdErr = errors.NewInternalError(err)
		stdErr.Details = ""
	}
	c.AbortWithStatusJSON(errors.HTTPStatus(stdErr.Code), errorResponse{
		Error: errorBody{
			Code:    stdErr.Code,
			Message: stdErr.Message,
			Details: stdErr.Details,
			Meta:    stdErr.Metadata,
		},
		RequestID: GetRequestID(c),
	})
}
