package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/staff"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/service"
	"github.com/gin-gonic/gin"
)

type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse[any]{Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

func respondServiceError(c *gin.Context, err error) {
	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:  "validation failed",
			Fields: validErr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, patient.ErrPatientNotFound),
		errors.Is(err, staff.ErrStaffNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

	case errors.Is(err, patient.ErrPatientAlreadyExists),
		errors.Is(err, patient.ErrReevaluationPending),
		errors.Is(err, staff.ErrUsernameTaken),
		errors.Is(err, staff.ErrPrimaryAdmin):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})

	case errors.Is(err, patient.ErrInvalidStage),
		errors.Is(err, patient.ErrInvalidPriority),
		errors.Is(err, patient.ErrInvalidPatientCode),
		errors.Is(err, patient.ErrReevaluationReasonRequired),
		errors.Is(err, staff.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied"})

	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})

	case errors.Is(err, service.ErrAccountLocked):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error: "account temporarily locked",
			Code:  "ACCOUNT_LOCKED",
		})

	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return false
	}

	return true
}

// patientIDParam reads a patient code from the path, accepting lower case.
func patientIDParam(c *gin.Context) (string, bool) {
	id := strings.ToUpper(strings.TrimSpace(c.Param("id")))
	if !patient.ValidID(id) {
		respondError(c, http.StatusBadRequest, patient.ErrInvalidPatientCode.Error())
		return "", false
	}
	return id, true
}
