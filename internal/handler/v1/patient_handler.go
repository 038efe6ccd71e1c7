package v1

import (
	"net/http"
	"strconv"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/service"
	"github.com/gin-gonic/gin"
)

type PatientHandler struct {
	svc *service.PatientService
}

func NewPatientHandler(svc *service.PatientService) *PatientHandler {
	return &PatientHandler{svc: svc}
}

type registerPatientRequest struct {
	Name              string `json:"name" binding:"required"`
	Age               *int   `json:"age" binding:"required"`
	Gender            string `json:"gender" binding:"required"`
	Symptoms          string `json:"symptoms" binding:"required"`
	HasEmergencySigns bool   `json:"has_emergency_signs"`
	Temperature       string `json:"temperature"`
	BloodPressure     string `json:"blood_pressure"`
	HeartRate         string `json:"heart_rate"`
	OxygenSaturation  string `json:"oxygen_saturation"`
	PainLevel         string `json:"pain_level"`
	Allergies         string `json:"allergies"`
	Medications       string `json:"medications"`
}

type updatePatientRequest struct {
	Name             *string           `json:"name"`
	Age              *int              `json:"age"`
	Gender           *string           `json:"gender"`
	Symptoms         *string           `json:"symptoms"`
	Priority         *patient.Priority `json:"priority"`
	Temperature      *string           `json:"temperature"`
	BloodPressure    *string           `json:"blood_pressure"`
	HeartRate        *string           `json:"heart_rate"`
	OxygenSaturation *string           `json:"oxygen_saturation"`
	PainLevel        *string           `json:"pain_level"`
	Allergies        *string           `json:"allergies"`
	Medications      *string           `json:"medications"`
}

type reevaluationRequest struct {
	Reason string `json:"reason"`
}

// Classify previews the priority and wait label for a set of vitals.
func (h *PatientHandler) Classify(c *gin.Context) {
	var in patient.Intake
	if !bindJSON(c, &in) {
		return
	}
	respondOK(c, h.svc.ClassifyIntake(in))
}

func (h *PatientHandler) Register(c *gin.Context) {
	var req registerPatientRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.svc.RegisterPatient(c.Request.Context(), &patient.RegisterPatientCommand{
		Name:              req.Name,
		Age:               *req.Age,
		Gender:            req.Gender,
		Symptoms:          req.Symptoms,
		HasEmergencySigns: req.HasEmergencySigns,
		Temperature:       req.Temperature,
		BloodPressure:     req.BloodPressure,
		HeartRate:         req.HeartRate,
		OxygenSaturation:  req.OxygenSaturation,
		PainLevel:         req.PainLevel,
		Allergies:         req.Allergies,
		Medications:       req.Medications,
	}, middleware.Caller(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, p)
}

// List returns the active queue. Query: priority, stage,
// pending_reevaluation=true, sort=registered_at|priority.
func (h *PatientHandler) List(c *gin.Context) {
	q := &patient.ListActiveQuery{SortBy: c.Query("sort")}
	if v := c.Query("priority"); v != "" {
		pr := patient.Priority(v)
		q.Priority = &pr
	}
	if v := c.Query("stage"); v != "" {
		st := patient.Stage(v)
		q.Stage = &st
	}
	if v := c.Query("pending_reevaluation"); v != "" {
		pending, err := strconv.ParseBool(v)
		if err != nil {
			respondError(c, http.StatusBadRequest, "pending_reevaluation must be a boolean")
			return
		}
		q.PendingReevaluate = pending
	}

	ps, err := h.svc.ListActive(c.Request.Context(), q, middleware.Caller(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, ps)
}

func (h *PatientHandler) Get(c *gin.Context) {
	id, ok := patientIDParam(c)
	if !ok {
		return
	}

	p, err := h.svc.GetPatient(c.Request.Context(), id, middleware.Caller(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *PatientHandler) Status(c *gin.Context) {
	id, ok := patientIDParam(c)
	if !ok {
		return
	}

	st, err := h.svc.GetPatientStatus(c.Request.Context(), id, middleware.Caller(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, st)
}

func (h *PatientHandler) Update(c *gin.Context) {
	id, ok := patientIDParam(c)
	if !ok {
		return
	}
	var req updatePatientRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.svc.UpdatePatient(c.Request.Context(), id, &patient.UpdatePatientCommand{
		Name:             req.Name,
		Age:              req.Age,
		Gender:           req.Gender,
		Symptoms:         req.Symptoms,
		Priority:         req.Priority,
		Temperature:      req.Temperature,
		BloodPressure:    req.BloodPressure,
		HeartRate:        req.HeartRate,
		OxygenSaturation: req.OxygenSaturation,
		PainLevel:        req.PainLevel,
		Allergies:        req.Allergies,
		Medications:      req.Medications,
	}, middleware.Caller(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *PatientHandler) ToggleStage(c *gin.Context) {
	id, ok := patientIDParam(c)
	if !ok {
		return
	}

	p, err := h.svc.ToggleStage(c.Request.Context(), id, patient.Stage(c.Param("stage")), middleware.Caller(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *PatientHandler) MarkReevaluationSeen(c *gin.Context) {
	id, ok := patientIDParam(c)
	if !ok {
		return
	}

	p, err := h.svc.MarkReevaluationSeen(c.Request.Context(), id, middleware.Caller(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

func (h *PatientHandler) Archive(c *gin.Context) {
	id, ok := patientIDParam(c)
	if !ok {
		return
	}

	archived, err := h.svc.ArchivePatient(c.Request.Context(), id, middleware.Caller(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, archived)
}

func (h *PatientHandler) ListArchived(c *gin.Context) {
	ps, err := h.svc.ListArchived(c.Request.Context(), middleware.Caller(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, ps)
}

func (h *PatientHandler) GetArchived(c *gin.Context) {
	id, ok := patientIDParam(c)
	if !ok {
		return
	}

	p, err := h.svc.GetArchived(c.Request.Context(), id, middleware.Caller(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

// Me is the patient's own status page.
func (h *PatientHandler) Me(c *gin.Context) {
	caller := middleware.Caller(c)

	st, err := h.svc.GetPatientStatus(c.Request.Context(), caller.PatientID, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, st)
}

func (h *PatientHandler) RequestReevaluation(c *gin.Context) {
	caller := middleware.Caller(c)
	var req reevaluationRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.svc.RequestReevaluation(c.Request.Context(), caller.PatientID, req.Reason, caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p.Reevaluation)
}
