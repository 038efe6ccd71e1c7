package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/config"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/staff"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/repository/memory"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/service"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/events"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/lock"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const adminPassword = "admin-password-123"

func init() {
	gin.SetMode(gin.TestMode)
}

type apiEnv struct {
	router http.Handler
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	cfg := &config.Config{
		App:       config.AppConfig{Name: "prontosocorro-test", Environment: "test", Version: "test"},
		JWT:       config.JWTConfig{Secret: "router-test-secret-with-32-bytes!", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour, Issuer: "test"},
		Tracing:   config.TracingConfig{ServiceName: "prontosocorro-test"},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000, AuthRequestsPerMinute: 1000},
	}
	log := zap.NewNop()
	m := metrics.NewCollector("test", nil)
	jwt := auth.NewJWTManager(cfg.JWT)

	patients := memory.NewPatientRepository()
	staffRepo := memory.NewStaffRepository()
	auditSvc := service.NewAuditService(memory.NewAuditRepository(), m, log)
	t.Cleanup(auditSvc.Shutdown)

	staffSvc := service.NewStaffService(staffRepo, auditSvc, log)
	_, _, err := staffSvc.EnsureAdmin(context.Background(), adminPassword, "Admin")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return &apiEnv{router: NewRouter(ctx, RouterDeps{
		Config:     cfg,
		Log:        log,
		Metrics:    m,
		JWT:        jwt,
		PatientSvc: service.NewPatientService(patients, lock.NewKeyedMutex(), events.Nop{}, auditSvc, m, log),
		StaffSvc:   staffSvc,
		AuthSvc:    service.NewAuthService(staffRepo, patients, jwt, auditSvc, m, log),
	})}
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp APIResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Data
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (e *apiEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/auth/staff/login", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeData[tokenResponse](t, w).AccessToken
}

func (e *apiEnv) registerPatient(t *testing.T, token string) patient.Patient {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/patients", token, gin.H{
		"name":              "Maria Souza",
		"age":               67,
		"gender":            "F",
		"symptoms":          "falta de ar",
		"oxygen_saturation": "89",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeData[patient.Patient](t, w)
}

func TestRouter_Health(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestRouter_HealthUnavailable(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Name: "x"}}
	h := healthHandler(RouterDeps{Config: cfg, Log: zap.NewNop(), HealthCheck: func(context.Context) error { return errors.New("db down") }})
	engine := gin.New()
	engine.GET("/health", h)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_PatientFlow(t *testing.T) {
	env := newAPIEnv(t)
	token := env.login(t, "admin", adminPassword)

	p := env.registerPatient(t, token)
	assert.Equal(t, patient.PriorityOrange, p.Priority)
	assert.Equal(t, "10 minutos", p.WaitTime)

	w := env.do(t, http.MethodPost, "/api/v1/patients/"+p.ID+"/stages/triagem/toggle", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeData[patient.Patient](t, w).CompletedSteps, patient.StageTriage)

	w = env.do(t, http.MethodPost, "/api/v1/patients/"+p.ID+"/stages/raio-x/toggle", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/patients?sort=priority", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]patient.Patient](t, w), 1)

	w = env.do(t, http.MethodGet, "/api/v1/patients?sort=name", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPatch, "/api/v1/patients/"+p.ID, token, gin.H{"priority": "Roxo"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/patients/"+p.ID+"/archive", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/patients/"+p.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/patients/archived/"+p.ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/patients/not-a-code", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_PatientSelfService(t *testing.T) {
	env := newAPIEnv(t)
	staffToken := env.login(t, "admin", adminPassword)
	p := env.registerPatient(t, staffToken)

	w := env.do(t, http.MethodPost, "/api/v1/auth/patient/login", "", gin.H{"code": p.ID})
	require.Equal(t, http.StatusOK, w.Code)
	patientToken := decodeData[tokenResponse](t, w).AccessToken

	w = env.do(t, http.MethodGet, "/api/v1/me", patientToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decodeData[patient.Status](t, w)
	assert.Equal(t, p.ID, status.Patient.ID)
	assert.Len(t, status.Progress, len(patient.Stages))

	w = env.do(t, http.MethodPost, "/api/v1/me/reevaluation", patientToken, gin.H{"reason": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/me/reevaluation", patientToken, gin.H{"reason": "dor piorou"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/me/reevaluation", patientToken, gin.H{"reason": "ainda pior"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/patients?pending_reevaluation=true", staffToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]patient.Patient](t, w), 1)

	w = env.do(t, http.MethodPost, "/api/v1/patients/"+p.ID+"/reevaluation/seen", staffToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// patients cannot reach staff routes
	w = env.do(t, http.MethodGet, "/api/v1/patients/"+p.ID, patientToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/patient/login", "", gin.H{"code": "PS00000"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_StaffAdministration(t *testing.T) {
	env := newAPIEnv(t)
	adminToken := env.login(t, "admin", adminPassword)

	w := env.do(t, http.MethodPost, "/api/v1/staff", adminToken, gin.H{
		"username": "enf.bia",
		"password": "nurse-password-123",
		"name":     "Bia",
		"role":     "enfermeiro",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	nurse := decodeData[staff.Staff](t, w)
	assert.NotContains(t, w.Body.String(), "password")

	w = env.do(t, http.MethodPost, "/api/v1/staff", adminToken, gin.H{
		"username": "enf.bia",
		"password": "nurse-password-123",
		"name":     "Outra Bia",
		"role":     "enfermeiro",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	nurseToken := env.login(t, "enf.bia", "nurse-password-123")
	w = env.do(t, http.MethodGet, "/api/v1/staff", nurseToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/staff", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeData[[]staff.Staff](t, w)
	require.Len(t, list, 2)

	var primaryID string
	for _, s := range list {
		if s.Username == staff.PrimaryAdminUsername {
			primaryID = s.ID
		}
	}
	w = env.do(t, http.MethodDelete, "/api/v1/staff/"+primaryID, adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/staff/"+nurse.ID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/staff/"+nurse.ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_AuthErrors(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/patients", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/staff/login", "", gin.H{"username": "admin", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/staff/login", "", gin.H{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	token := env.login(t, "admin", adminPassword)
	w = env.do(t, http.MethodPut, "/api/v1/auth/password", token, gin.H{"current_password": adminPassword, "new_password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/v1/auth/password", token, gin.H{"current_password": adminPassword, "new_password": "a-much-longer-password"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRespondServiceError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&service.ValidationError{Fields: []string{"name is required"}}, http.StatusBadRequest},
		{patient.ErrInvalidStage, http.StatusBadRequest},
		{patient.ErrPatientNotFound, http.StatusNotFound},
		{staff.ErrStaffNotFound, http.StatusNotFound},
		{staff.ErrUsernameTaken, http.StatusConflict},
		{patient.ErrReevaluationPending, http.StatusConflict},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrAccountLocked, http.StatusTooManyRequests},
		{&service.PersistenceError{Op: "getting patient", Err: errors.New("connection reset")}, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondServiceError(c, tc.err)

			assert.Equal(t, tc.want, w.Code)
			assert.NotContains(t, w.Body.String(), "connection reset")
		})
	}
}
