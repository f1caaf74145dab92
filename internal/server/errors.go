package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xscopehub/datajud-bridge/internal/auth"
	"github.com/xscopehub/datajud-bridge/internal/datajud"
	"github.com/xscopehub/datajud-bridge/internal/limiter"
	"github.com/xscopehub/datajud-bridge/internal/registry"
	"github.com/xscopehub/datajud-bridge/internal/tools"
)

// errInvalidBody is returned for request bodies that are not a JSON object.
var errInvalidBody = errors.New("request body must be a JSON object")

// statusOf maps an invocation error to the HTTP status reported to the client.
func statusOf(err error) int {
	var (
		statusErr    *datajud.StatusError
		transportErr *datajud.TransportError
		decodeErr    *datajud.DecodeError
		argErr       *tools.ArgumentError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &statusErr):
		return statusErr.Status
	case errors.As(err, &transportErr):
		if transportErr.Timeout() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.As(err, &decodeErr):
		return http.StatusBadGateway
	case errors.As(err, &argErr), errors.Is(err, errInvalidBody), errors.Is(err, datajud.ErrInvalidAlias):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrToolNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, limiter.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// messageOf returns the client-facing error text. Upstream bodies are passed
// through verbatim.
func messageOf(err error, tool string) string {
	if errors.Is(err, registry.ErrToolNotFound) {
		return "tool " + tool + " not found"
	}
	return err.Error()
}

func outcomeOf(status int) string {
	switch {
	case status < 400:
		return "ok"
	case status < 500:
		return "client_error"
	default:
		return "upstream_error"
	}
}

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": msg})
}
