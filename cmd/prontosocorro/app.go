package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/config"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/staff"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/repository/memory"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/repository/postgres"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/service"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/events"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/lock"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds everything the commands share. close releases it in reverse
// order of acquisition.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Collector
	jwt     *auth.JWTManager

	db          *gorm.DB
	patientRepo patient.Repository
	staffRepo   staff.Repository
	auditRepo   service.AuditRepository

	redis     *redis.Client
	locker    lock.Locker
	publisher events.Publisher

	auditSvc   *service.AuditService
	patientSvc *service.PatientService
	staffSvc   *service.StaffService
	authSvc    *service.AuthService

	closers []func() error
}

func loadConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	return cfg, log.With(
		zap.String("service", cfg.App.Name),
		zap.String("env", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	), nil
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics.NewCollector("prontosocorro", nil),
		jwt:     auth.NewJWTManager(cfg.JWT),
	}

	if err := a.openStorage(); err != nil {
		a.close()
		return nil, err
	}
	if err := a.openLocker(ctx); err != nil {
		a.close()
		return nil, err
	}
	a.openPublisher()

	a.auditSvc = service.NewAuditService(a.auditRepo, a.metrics, log.Named("audit"))
	a.closers = append(a.closers, func() error { a.auditSvc.Shutdown(); return nil })

	a.patientSvc = service.NewPatientService(a.patientRepo, a.locker, a.publisher, a.auditSvc, a.metrics, log.Named("patients"))
	a.staffSvc = service.NewStaffService(a.staffRepo, a.auditSvc, log.Named("staff"))
	a.authSvc = service.NewAuthService(a.staffRepo, a.patientRepo, a.jwt, a.auditSvc, a.metrics, log.Named("auth"))

	return a, nil
}

func (a *app) openStorage() error {
	if a.cfg.Storage.Driver == config.StorageMemory {
		a.log.Warn("using in-memory storage; data is lost on restart")
		a.patientRepo = memory.NewPatientRepository()
		a.staffRepo = memory.NewStaffRepository()
		a.auditRepo = memory.NewAuditRepository()
		return nil
	}

	db, err := database.Connect(a.cfg.Database, a.log)
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	a.patientRepo = postgres.NewPatientRepository(db)
	a.staffRepo = postgres.NewStaffRepository(db)
	a.auditRepo = postgres.NewAuditRepository(db)
	return nil
}

func (a *app) openLocker(ctx context.Context) error {
	if !a.cfg.Redis.Enabled() {
		a.locker = lock.NewKeyedMutex()
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("connecting to redis: %w", err)
	}
	a.redis = client
	a.closers = append(a.closers, client.Close)
	a.locker = lock.NewRedisLocker(client, "prontosocorro:lock:", a.cfg.Redis.LockTTL, a.log.Named("lock"))
	a.log.Info("using redis patient locks", zap.String("addr", a.cfg.Redis.Addr))
	return nil
}

func (a *app) openPublisher() {
	if !a.cfg.Kafka.Enabled() {
		a.publisher = events.Nop{}
		return
	}

	p := events.NewKafkaPublisher(events.KafkaConfig{
		Brokers:         a.cfg.Kafka.Brokers,
		Topic:           a.cfg.Kafka.Topic,
		WriteTimeout:    a.cfg.Kafka.WriteTimeout,
		BreakerTimeout:  a.cfg.Kafka.BreakerTimeout,
		BreakerFailures: a.cfg.Kafka.BreakerFailures,
	}, a.log.Named("events"))
	a.publisher = p
	a.closers = append(a.closers, p.Close)
	a.log.Info("publishing patient events", zap.Strings("brokers", a.cfg.Kafka.Brokers), zap.String("topic", a.cfg.Kafka.Topic))
}

// healthCheck pings the backing stores that are configured.
func (a *app) healthCheck(ctx context.Context) error {
	var errs []error
	if a.db != nil {
		sqlDB, err := a.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("error during shutdown", zap.Error(err))
		}
	}
	a.closers = nil
}
