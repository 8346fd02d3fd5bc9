package response

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AnupamNeon/Chat-app/internal/apperr"
)

// debugMode controls whether internal error detail reaches clients.
var debugMode bool

// SetDebug toggles detail exposure for unclassified errors.
func SetDebug(debug bool) {
	debugMode = debug
}

// httpStatus maps the error taxonomy onto HTTP statuses.
func httpStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidArgument, apperr.KindInvalidOperation, apperr.KindUploadFailed:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// JSON writes data with the given status.
func JSON(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// Error classifies err and writes {"message": ..., "error": kind}.
// Unclassified errors are logged and, outside debug mode, their detail
// is suppressed.
func Error(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	message := apperr.MessageOf(err)

	if kind == apperr.KindInternal {
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err)
		if debugMode {
			message = err.Error()
		}
	}

	c.JSON(httpStatus(kind), gin.H{
		"message": message,
		"error":   kind.String(),
	})
}

// Message writes a bare {"message": ...} body.
func Message(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}
