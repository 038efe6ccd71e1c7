package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/staff"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account is temporarily locked due to multiple failed login attempts")
)

const maxFailedAttempts = 5

const lockDuration = 15 * time.Minute

type AuthService struct {
	staffRepo   staff.Repository
	patientRepo patient.Repository
	jwtManager  *auth.JWTManager
	auditSvc    *AuditService
	metrics     *metrics.Collector
	log         *zap.Logger

	now func() time.Time
}

func NewAuthService(
	staffRepo staff.Repository,
	patientRepo patient.Repository,
	jwtManager *auth.JWTManager,
	auditSvc *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		staffRepo:   staffRepo,
		patientRepo: patientRepo,
		jwtManager:  jwtManager,
		auditSvc:    auditSvc,
		metrics:     m,
		log:         log,
		now:         time.Now,
	}
}

// VerifyCredentials checks a staff username and password and records the
// attempt. Five consecutive failures lock the account for fifteen minutes.
func (s *AuthService) VerifyCredentials(ctx context.Context, username, password string) (*staff.Staff, error) {
	st, err := s.staffRepo.GetByUsername(ctx, normalizeUsername(username))
	if err != nil {
		if !errors.Is(err, staff.ErrStaffNotFound) {
			return nil, repoError("looking up staff", err)
		}
		// Use bcrypt dummy hash to prevent timing-based user enumeration.
		_, _ = bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if st.IsLocked(now) {
		return nil, ErrAccountLocked
	}

	attempt := staff.LoginAttempt{At: now, MaxFailures: maxFailedAttempts, LockFor: lockDuration}
	if err := bcrypt.CompareHashAndPassword([]byte(st.PasswordHash), []byte(password)); err != nil {
		if err := s.staffRepo.UpdateLoginAttempt(ctx, st.ID, attempt); err != nil {
			s.log.Error("failed to record login attempt", zap.String("staff_id", st.ID), zap.Error(err))
		}
		return nil, ErrInvalidCredentials
	}

	attempt.Success = true
	if err := s.staffRepo.UpdateLoginAttempt(ctx, st.ID, attempt); err != nil {
		s.log.Error("failed to record login attempt", zap.String("staff_id", st.ID), zap.Error(err))
	}
	return st, nil
}

func (s *AuthService) LoginStaff(ctx context.Context, username, password string, caller domain.Caller) (*domain.TokenPair, error) {
	st, err := s.VerifyCredentials(ctx, username, password)
	if err != nil {
		s.metrics.LoginAttemptsTotal.WithLabelValues("staff", "failure").Inc()
		s.log.Warn("failed login attempt",
			zap.String("username", username),
			zap.String("ip", caller.IP),
			zap.Error(err),
		)
		return nil, err
	}

	pair, err := s.jwtManager.GenerateTokenPair(staffClaims(st))
	if err != nil {
		s.log.Error("failed to generate token pair", zap.Error(err))
		return nil, fmt.Errorf("generating tokens: %w", err)
	}

	s.metrics.LoginAttemptsTotal.WithLabelValues("staff", "success").Inc()
	caller.ID, caller.Role = st.ID, st.Role
	s.auditSvc.record(ctx, caller, domain.ActionLogin, resourceStaff, st.ID, "")
	s.log.Info("staff logged in",
		zap.String("staff_id", st.ID),
		zap.String("ip", caller.IP),
	)

	return pair, nil
}

// LoginPatient issues a patient-scoped token for the lookup code printed at
// registration. Only patients still in the active queue can log in.
func (s *AuthService) LoginPatient(ctx context.Context, code string, caller domain.Caller) (*domain.TokenPair, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !patient.ValidID(code) {
		return nil, patient.ErrInvalidPatientCode
	}

	p, err := s.patientRepo.GetByID(ctx, code)
	if err != nil {
		s.metrics.LoginAttemptsTotal.WithLabelValues("patient", "failure").Inc()
		if errors.Is(err, patient.ErrPatientNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, repoError("looking up patient", err)
	}

	pair, err := s.jwtManager.GenerateTokenPair(patientClaims(p))
	if err != nil {
		s.log.Error("failed to generate token pair", zap.Error(err))
		return nil, fmt.Errorf("generating tokens: %w", err)
	}

	s.metrics.LoginAttemptsTotal.WithLabelValues("patient", "success").Inc()
	caller.ID, caller.Role, caller.PatientID = p.ID, domain.RolePatient, p.ID
	s.auditSvc.record(ctx, caller, domain.ActionLogin, resourcePatient, p.ID, "")

	return pair, nil
}

// RefreshToken issues a new token pair given a valid refresh token. The
// subject must still exist: removed staff and archived patients are refused.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	var fresh *domain.Claims
	if claims.Role == domain.RolePatient {
		p, err := s.patientRepo.GetByID(ctx, claims.Subject)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
		fresh = patientClaims(p)
	} else {
		st, err := s.staffRepo.GetByID(ctx, claims.Subject)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
		fresh = staffClaims(st)
	}

	return s.jwtManager.GenerateTokenPair(fresh)
}

// ChangePassword updates a staff member's password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, currentPassword, newPassword string, caller domain.Caller) error {
	if !caller.IsStaff() {
		return ErrForbidden
	}

	st, err := s.staffRepo.GetByID(ctx, caller.ID)
	if err != nil {
		return repoError("getting staff", err, staff.ErrStaffNotFound)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(st.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	if err := validatePasswordStrength(newPassword); err != nil {
		return &ValidationError{Fields: []string{err.Error()}}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), passwordHashCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	st.PasswordHash = string(hash)

	if err := s.staffRepo.Update(ctx, st); err != nil {
		return repoError("updating staff", err, staff.ErrStaffNotFound)
	}

	s.auditSvc.record(ctx, caller, domain.ActionUpdate, resourceStaff, st.ID, changesJSON(map[string]any{"password_changed": true}))
	return nil
}

func staffClaims(st *staff.Staff) *domain.Claims {
	return &domain.Claims{
		Subject:  st.ID,
		Username: st.Username,
		Name:     st.Name,
		Role:     st.Role,
	}
}

func patientClaims(p *patient.Patient) *domain.Claims {
	return &domain.Claims{
		Subject:   p.ID,
		Name:      p.Name,
		Role:      domain.RolePatient,
		PatientID: p.ID,
	}
}

func validatePasswordStrength(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}
	return nil
}
