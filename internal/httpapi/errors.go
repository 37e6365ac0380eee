package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/set-night/chatgate/internal/domain"
)

// classify maps an error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyPrompt):
		return http.StatusBadRequest, "empty_prompt"
	case errors.Is(err, domain.ErrTokenMissing):
		return http.StatusUnauthorized, "token_missing"
	case errors.Is(err, domain.ErrTokenUnknown):
		return http.StatusUnauthorized, "token_unknown"
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusForbidden, "token_expired"
	case errors.Is(err, domain.ErrTokenNotYetValid):
		return http.StatusForbidden, "token_not_yet_valid"
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrTurnInProgress):
		return http.StatusConflict, "turn_in_progress"
	case errors.Is(err, domain.ErrAPIKeyMissing):
		return http.StatusPreconditionFailed, "api_key_missing"
	case errors.Is(err, domain.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge, "upload_too_large"
	case errors.Is(err, domain.ErrAssistantMissing):
		return http.StatusServiceUnavailable, "assistant_not_configured"
	case errors.Is(err, domain.ErrInvalidDate):
		return http.StatusInternalServerError, "token_data_invalid"
	case errors.Is(err, domain.ErrResourceNotFound):
		return http.StatusBadGateway, "invalid_credential"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusBadGateway, "upstream_unauthorized"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusBadGateway, "upstream_rate_limited"
	case errors.Is(err, domain.ErrEmptyReply):
		return http.StatusBadGateway, "empty_reply"
	case errors.Is(err, domain.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, "upstream_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func errorBody(err error) gin.H {
	_, code := classify(err)
	return gin.H{"error": code, "message": err.Error()}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, _ := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "route", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, errorBody(err))
}
