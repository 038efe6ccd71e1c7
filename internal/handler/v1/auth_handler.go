package v1

import (
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/service"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type staffLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type patientLoginRequest struct {
	Code string `json:"code" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (h *AuthHandler) StaffLogin(c *gin.Context) {
	var req staffLoginRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, err := h.svc.LoginStaff(c.Request.Context(), req.Username, req.Password, middleware.Caller(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pair)
}

func (h *AuthHandler) PatientLogin(c *gin.Context) {
	var req patientLoginRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, err := h.svc.LoginPatient(c.Request.Context(), req.Code, middleware.Caller(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pair)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, err := h.svc.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pair)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), req.CurrentPassword, req.NewPassword, middleware.Caller(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse[any]{Message: "password updated"})
}
