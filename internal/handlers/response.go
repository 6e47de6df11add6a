package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mcalderas/taskwise-backend/internal/platform/apierr"
	"github.com/mcalderas/taskwise-backend/internal/requestdata"
	"github.com/mcalderas/taskwise-backend/internal/validation"
)

type APIError struct {
	Message string                  `json:"message"`
	Code    string                  `json:"code,omitempty"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondServiceError maps service-layer errors onto the wire: apierr carries
// its own status and code, validation errors become 400 with field detail,
// anything else is an opaque 500.
func RespondServiceError(c *gin.Context, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, ErrorEnvelope{Error: APIError{
			Message: apiErr.Err.Error(),
			Code:    apiErr.Code,
		}})
		return
	}
	var valErr *validation.ValidationError
	if errors.As(err, &valErr) {
		c.JSON(http.StatusBadRequest, ErrorEnvelope{Error: APIError{
			Message: valErr.Error(),
			Code:    "validation_failed",
			Fields:  valErr.Fields,
		}})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorEnvelope{Error: APIError{
		Message: "internal server error",
		Code:    "internal",
	}})
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// currentUserID pulls the authenticated user out of the request context. The
// auth middleware guarantees it is set on protected routes.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing session"))
		return uuid.Nil, false
	}
	return rd.UserID, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", errors.New("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}
