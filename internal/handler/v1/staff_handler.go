package v1

import (
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/staff"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/service"
	"github.com/gin-gonic/gin"
)

type StaffHandler struct {
	svc *service.StaffService
}

func NewStaffHandler(svc *service.StaffService) *StaffHandler {
	return &StaffHandler{svc: svc}
}

type registerStaffRequest struct {
	Username string      `json:"username" binding:"required"`
	Password string      `json:"password" binding:"required"`
	Name     string      `json:"name" binding:"required"`
	Role     domain.Role `json:"role" binding:"required"`
}

type updateStaffRequest struct {
	Username *string      `json:"username"`
	Name     *string      `json:"name"`
	Role     *domain.Role `json:"role"`
	Password *string      `json:"password"`
}

func (h *StaffHandler) Register(c *gin.Context) {
	var req registerStaffRequest
	if !bindJSON(c, &req) {
		return
	}

	st, err := h.svc.RegisterStaff(c.Request.Context(), &staff.RegisterStaffCommand{
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	}, middleware.Caller(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, st)
}

func (h *StaffHandler) List(c *gin.Context) {
	list, err := h.svc.ListStaff(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, list)
}

func (h *StaffHandler) Get(c *gin.Context) {
	st, err := h.svc.GetStaff(c.Request.Context(), c.Param("id"), middleware.Caller(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, st)
}

func (h *StaffHandler) Update(c *gin.Context) {
	var req updateStaffRequest
	if !bindJSON(c, &req) {
		return
	}

	st, err := h.svc.UpdateStaff(c.Request.Context(), c.Param("id"), &staff.UpdateStaffCommand{
		Username: req.Username,
		Name:     req.Name,
		Role:     req.Role,
		Password: req.Password,
	}, middleware.Caller(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, st)
}

func (h *StaffHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteStaff(c.Request.Context(), c.Param("id"), middleware.Caller(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
