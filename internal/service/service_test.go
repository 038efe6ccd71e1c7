package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/config"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/repository/memory"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/events"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/lock"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	passwordHashCost = bcrypt.MinCost
}

var (
	nurse = domain.Caller{ID: "STF010", Role: domain.RoleNurse, IP: "10.0.0.1"}
	admin = domain.Caller{ID: "STF001", Role: domain.RoleAdmin, IP: "10.0.0.2"}
)

func patientCaller(id string) domain.Caller {
	return domain.Caller{ID: id, Role: domain.RolePatient, PatientID: id}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	patients  *memory.PatientRepository
	staff     *memory.StaffRepository
	audit     *memory.AuditRepository
	publisher *recordingPublisher
	auditSvc  *AuditService

	patientSvc *PatientService
	staffSvc   *StaffService
	authSvc    *AuthService
	jwt        *auth.JWTManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := zap.NewNop()
	m := metrics.NewCollector("test", nil)
	env := &testEnv{
		patients:  memory.NewPatientRepository(),
		staff:     memory.NewStaffRepository(),
		audit:     memory.NewAuditRepository(),
		publisher: &recordingPublisher{},
		jwt: auth.NewJWTManager(config.JWTConfig{
			Secret:          "service-test-secret-with-32-bytes!",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
			Issuer:          "prontosocorro-test",
		}),
	}
	env.auditSvc = NewAuditService(env.audit, m, log)
	env.patientSvc = NewPatientService(env.patients, lock.NewKeyedMutex(), env.publisher, env.auditSvc, m, log)
	env.staffSvc = NewStaffService(env.staff, env.auditSvc, log)
	env.authSvc = NewAuthService(env.staff, env.patients, env.jwt, env.auditSvc, m, log)

	t.Cleanup(env.auditSvc.Shutdown)
	return env
}
