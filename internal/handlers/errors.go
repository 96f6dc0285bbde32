package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"logima-backend/internal/middleware"
	"logima-backend/internal/models"
	"logima-backend/internal/services"
)

// respondError writes the status for a service error. Policy violations are 415 on
// upload routes and 400 elsewhere, so the caller passes that status in.
func respondError(c *gin.Context, err error, policyStatus int) {
	status, label := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, services.ErrPolicyViolation):
		status, label = policyStatus, "policy violation"
	case errors.Is(err, services.ErrNotFound):
		status, label = http.StatusNotFound, "not found"
	case errors.Is(err, services.ErrNotYetVisible):
		status, label = http.StatusConflict, "not yet visible"
	case errors.Is(err, services.ErrInvalidTransition):
		status, label = http.StatusConflict, "invalid state"
	case errors.Is(err, services.ErrIntegrity):
		status, label = http.StatusUnprocessableEntity, "integrity check failed"
	case errors.Is(err, services.ErrConstraintViolation):
		status, label = http.StatusBadRequest, "constraint violation"
	case errors.Is(err, services.ErrEmailTaken):
		status, label = http.StatusBadRequest, "email already registered"
	case errors.Is(err, services.ErrInvalidCredentials):
		status, label = http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, services.ErrUpstream):
		status, label = http.StatusInternalServerError, "upstream failure"
	}

	_ = c.Error(err)
	resp := models.ErrorResponse{Error: label}
	if status < http.StatusInternalServerError {
		resp.Message = err.Error()
	}
	c.JSON(status, resp)
}

// currentUserID reads the authenticated user. It writes a 401 and returns false when absent.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return uuid.Nil, false
	}
	s, _ := raw.(string)
	userID, err := uuid.Parse(s)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid user id"})
		return uuid.Nil, false
	}
	return userID, true
}

func isNotFound(err error) bool {
	return errors.Is(err, services.ErrNotFound)
}
