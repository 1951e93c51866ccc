package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "giftledger/internal/errors"
	"giftledger/internal/logger"
)

var (
	errAPINotConfigured = &apperrors.AppError{Code: "INTERNAL_API_NOT_CONFIGURED", Message: "Internal endpoints are not configured", StatusCode: http.StatusServiceUnavailable}
	errInvalidAPIKey    = &apperrors.AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}
)

// ErrorHandler turns the last error attached to the context into the JSON
// error body, unless the handler already wrote a response. Anything that is
// not an AppError becomes INTERNAL_ERROR.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			appErr = apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		logAppError(c, appErr)
		abort(c, appErr)
	}
}

// abort writes err as {"error":{"code","message"}} and stops the chain.
func abort(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.StatusCode, gin.H{
		"error": gin.H{
			"code":    err.Code,
			"message": err.Message,
		},
	})
}

func logAppError(c *gin.Context, err *apperrors.AppError) {
	if err.Internal == nil {
		return
	}
	log := logger.Named("http").Warnw
	if err.StatusCode >= http.StatusInternalServerError {
		log = logger.Named("http").Errorw
	}
	log("request failed",
		"request_id", c.GetString(requestIDKey),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"code", err.Code,
		"error", err.Internal.Error(),
	)
}
