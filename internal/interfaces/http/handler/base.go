package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nurcrm/backend/internal/domain/chat"
	"github.com/nurcrm/backend/internal/domain/shared"
	"github.com/nurcrm/backend/internal/infrastructure/logger"
	"github.com/nurcrm/backend/internal/interfaces/http/dto"
	"github.com/nurcrm/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	return logger.GetRequestID(c)
}

// getTenantID extracts the tenant ID from JWT claims
func getTenantID(c *gin.Context) (uuid.UUID, error) {
	tenantIDStr := middleware.GetJWTTenantID(c)
	if tenantIDStr == "" {
		return uuid.Nil, errors.New("tenant ID not found in context")
	}
	return uuid.Parse(tenantIDStr)
}

// getUserID extracts the user ID from JWT claims
func getUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr := middleware.GetJWTUserID(c)
	if userIDStr == "" {
		return uuid.Nil, errors.New("user ID not found in context")
	}
	return uuid.Parse(userIDStr)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving the status from the code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError converts domain and chat-session errors to HTTP responses.
// Chat sentinels map to distinct codes so clients can branch on them:
// two-factor, checkpoint and manual-login outcomes come back as 401 with
// their own codes, platform rate limits as 429 with a retry hint.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	requestID := getRequestID(c)

	if rl, ok := chat.AsRateLimited(err); ok {
		response := dto.NewErrorResponseWithRequestID(dto.ErrCodeRateLimited, rl.Error(), requestID)
		if rl.RetryAfter > 0 {
			c.Header("Retry-After", fmt.Sprintf("%d", int(rl.RetryAfter.Seconds())))
		}
		c.JSON(http.StatusTooManyRequests, response)
		return
	}

	code := ""
	switch {
	case errors.Is(err, chat.ErrTwoFactorRequired):
		code = dto.ErrCodeTwoFactorRequired
	case errors.Is(err, chat.ErrChallengeRequired):
		code = dto.ErrCodeChallengeRequired
	case errors.Is(err, chat.ErrManualLoginRequired):
		code = dto.ErrCodeManualLoginRequired
	case errors.Is(err, chat.ErrSessionExpired):
		code = dto.ErrCodeSessionExpired
	case errors.Is(err, chat.ErrAuthFailed):
		code = dto.ErrCodeAuthFailed
	case errors.Is(err, chat.ErrBridgeDown):
		code = dto.ErrCodeBridgeDown
	case errors.Is(err, chat.ErrInvalidWebhookAuth):
		code = dto.ErrCodeInvalidWebhookAuth
	}
	if code != "" {
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, err.Error(), requestID))
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		normalized := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(normalized),
			dto.NewErrorResponseWithRequestID(normalized, domainErr.Message, requestID))
		return
	}

	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}
