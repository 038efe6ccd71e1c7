package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/config"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/service"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type RouterDeps struct {
	Config     *config.Config
	Log        *zap.Logger
	Metrics    *metrics.Collector
	JWT        *auth.JWTManager
	PatientSvc *service.PatientService
	StaffSvc   *service.StaffService
	AuthSvc    *service.AuthService

	// HealthCheck, when set, is called by GET /health.
	HealthCheck func(ctx context.Context) error
}

// NewRouter builds the HTTP API. Rate limiter janitors stop when ctx is done.
func NewRouter(ctx context.Context, d RouterDeps) *gin.Engine {
	if d.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		middleware.Recovery(d.Log),
		middleware.RequestID(),
		middleware.Tracing(d.Config.Tracing.ServiceName),
		middleware.Metrics(d.Metrics),
		middleware.Logger(d.Log),
		middleware.CORS(d.Config.CORS),
	)

	r.GET("/health", healthHandler(d))
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	globalLimiter := middleware.NewIPRateLimiter(rate.Limit(d.Config.RateLimit.RequestsPerSecond), d.Config.RateLimit.BurstSize)
	authPerMinute := d.Config.RateLimit.AuthRequestsPerMinute
	authLimiter := middleware.NewIPRateLimiter(rate.Every(time.Minute/time.Duration(max(authPerMinute, 1))), max(authPerMinute, 1))
	go globalLimiter.RunJanitor(ctx, time.Minute)
	go authLimiter.RunJanitor(ctx, time.Minute)

	authH := NewAuthHandler(d.AuthSvc)
	patientH := NewPatientHandler(d.PatientSvc)
	staffH := NewStaffHandler(d.StaffSvc)

	api := r.Group("/api/v1", middleware.RateLimit(globalLimiter, d.Metrics, "global"))

	authGroup := api.Group("/auth")
	{
		strict := middleware.RateLimit(authLimiter, d.Metrics, "auth")
		authGroup.POST("/staff/login", strict, authH.StaffLogin)
		authGroup.POST("/patient/login", strict, authH.PatientLogin)
		authGroup.POST("/refresh", strict, authH.Refresh)
		authGroup.PUT("/password", middleware.Authenticate(d.JWT), middleware.RequireStaff(), authH.ChangePassword)
	}

	authed := api.Group("", middleware.Authenticate(d.JWT))

	staffOnly := authed.Group("", middleware.RequireStaff())
	{
		staffOnly.POST("/triage/classify", patientH.Classify)
		staffOnly.POST("/patients", patientH.Register)
		staffOnly.GET("/patients", patientH.List)
		staffOnly.GET("/patients/archived", patientH.ListArchived)
		staffOnly.GET("/patients/archived/:id", patientH.GetArchived)
		staffOnly.GET("/patients/:id", patientH.Get)
		staffOnly.GET("/patients/:id/status", patientH.Status)
		staffOnly.PATCH("/patients/:id", patientH.Update)
		staffOnly.POST("/patients/:id/stages/:stage/toggle", patientH.ToggleStage)
		staffOnly.POST("/patients/:id/reevaluation/seen", patientH.MarkReevaluationSeen)
		staffOnly.POST("/patients/:id/archive", patientH.Archive)
	}

	me := authed.Group("/me", middleware.RequireRole(domain.RolePatient))
	{
		me.GET("", patientH.Me)
		me.POST("/reevaluation", patientH.RequestReevaluation)
	}

	admin := authed.Group("/staff", middleware.RequireRole(domain.RoleAdmin))
	{
		admin.POST("", staffH.Register)
		admin.GET("", staffH.List)
		admin.GET("/:id", staffH.Get)
		admin.PUT("/:id", staffH.Update)
		admin.DELETE("/:id", staffH.Delete)
	}

	return r
}

func healthHandler(d RouterDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := d.HealthCheck(ctx); err != nil {
				d.Log.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": d.Config.App.Name,
			"version": d.Config.App.Version,
		})
	}
}
