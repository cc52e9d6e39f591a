// Package handler implements the HTTP handlers of the sync API.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/domain/notification"
	"github.com/shopsync/backend/internal/domain/scheduling"
	"github.com/shopsync/backend/internal/infrastructure/logger"
	"github.com/shopsync/backend/internal/infrastructure/scheduler"
	"github.com/shopsync/backend/internal/interfaces/http/dto"
	"github.com/shopsync/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// errorMapping pairs a domain sentinel with its API error code
type errorMapping struct {
	err  error
	code string
}

// domainErrors is checked in order with errors.Is
var domainErrors = []errorMapping{
	{scheduling.ErrJobNotFound, dto.ErrCodeNotFound},
	{scheduling.ErrScheduleNotFound, dto.ErrCodeNotFound},
	{notification.ErrNotificationNotFound, dto.ErrCodeNotFound},

	{scheduling.ErrScheduleAlreadyExists, dto.ErrCodeAlreadyExists},

	{scheduling.ErrJobNotCancellable, dto.ErrCodeInvalidState},
	{scheduling.ErrInvalidJobTransition, dto.ErrCodeInvalidState},
	{scheduling.ErrScheduleDisabled, dto.ErrCodeInvalidState},

	{scheduling.ErrInvalidJobType, dto.ErrCodeInvalidInput},
	{scheduling.ErrInvalidPlatform, dto.ErrCodeInvalidInput},
	{scheduling.ErrMissingInterval, dto.ErrCodeInvalidInput},
	{scheduling.ErrInvalidInterval, dto.ErrCodeInvalidInput},
	{scheduling.ErrInvalidCronExpression, dto.ErrCodeInvalidInput},
	{scheduling.ErrInvalidMaxFailures, dto.ErrCodeInvalidInput},
	{scheduling.ErrInvalidMaxRetries, dto.ErrCodeInvalidInput},
	{scheduling.ErrInvalidParameters, dto.ErrCodeInvalidInput},
	{scheduling.ErrInvalidTenantID, dto.ErrCodeInvalidInput},

	{scheduler.ErrRateLimited, dto.ErrCodeRateLimited},
	{scheduler.ErrJobQueueFull, dto.ErrCodeUnavailable},
	{scheduler.ErrSchedulerNotRunning, dto.ErrCodeUnavailable},
}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := middleware.GetRequestID(c); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// requireTenant returns the tenant set by the tenant middleware, or writes a 400
func (h *BaseHandler) requireTenant(c *gin.Context) (uuid.UUID, bool) {
	tenantID, ok := middleware.GetTenantID(c)
	if !ok {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeTenantRequired, "X-Tenant-ID header is required")
		return uuid.Nil, false
	}
	return tenantID, true
}

// pathUUID parses a UUID path parameter, or writes a 400
func (h *BaseHandler) pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// pathPlatform parses a concrete platform code path parameter, or writes a 400
func (h *BaseHandler) pathPlatform(c *gin.Context) (integration.PlatformCode, bool) {
	platform := integration.PlatformCode(c.Param("platform"))
	if !platform.IsValid() {
		h.BadRequest(c, "unknown platform: "+string(platform))
		return "", false
	}
	return platform, true
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

// Accepted sends a 202 accepted response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// ValidationError sends a 400 response for a binding failure
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	details := middleware.ValidationDetails(err)
	if details == nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
		return
	}
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse("Request validation failed", getRequestID(c), details))
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError converts domain errors to HTTP responses.
// Unknown errors are logged and reported as 500 without their message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			h.Error(c, dto.GetHTTPStatus(m.code), m.code, err.Error())
			return
		}
	}

	logger.GetGinLogger(c).Error("Request failed", zap.Error(err))
	_ = c.Error(err)
	h.InternalError(c, "An unexpected error occurred")
}
