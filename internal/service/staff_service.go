package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/staff"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const resourceStaff = "staff"

var usernamePattern = regexp.MustCompile(`^[a-z0-9._-]{3,50}$`)

// passwordHashCost is lowered in tests.
var passwordHashCost = bcrypt.DefaultCost

type StaffService struct {
	repo     staff.Repository
	auditSvc *AuditService
	log      *zap.Logger

	newID func() string
}

func NewStaffService(repo staff.Repository, auditSvc *AuditService, log *zap.Logger) *StaffService {
	return &StaffService{repo: repo, auditSvc: auditSvc, log: log, newID: staff.NewID}
}

func (s *StaffService) RegisterStaff(ctx context.Context, cmd *staff.RegisterStaffCommand, caller domain.Caller) (*staff.Staff, error) {
	if caller.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	cmd.Username = normalizeUsername(cmd.Username)
	cmd.Name = strings.TrimSpace(cmd.Name)
	if err := validateRegisterStaff(cmd); err != nil {
		return nil, err
	}

	st, err := s.create(ctx, cmd)
	if err != nil {
		return nil, err
	}

	s.auditSvc.record(ctx, caller, domain.ActionCreate, resourceStaff, st.ID, changesJSON(map[string]any{
		"username": st.Username,
		"role":     st.Role,
	}))
	s.log.Info("staff registered",
		zap.String("staff_id", st.ID),
		zap.String("role", string(st.Role)),
		zap.String("created_by", caller.ID),
	)

	return st, nil
}

// EnsureAdmin creates the primary admin account if it does not exist yet.
// It reports whether an account was created.
func (s *StaffService) EnsureAdmin(ctx context.Context, password, name string) (*staff.Staff, bool, error) {
	existing, err := s.repo.GetByUsername(ctx, staff.PrimaryAdminUsername)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, staff.ErrStaffNotFound) {
		return nil, false, s.repoError("looking up admin", err)
	}

	if err := validatePasswordStrength(password); err != nil {
		return nil, false, &ValidationError{Fields: []string{err.Error()}}
	}
	if strings.TrimSpace(name) == "" {
		name = "Administrador"
	}

	st, err := s.create(ctx, &staff.RegisterStaffCommand{
		Username: staff.PrimaryAdminUsername,
		Password: password,
		Name:     strings.TrimSpace(name),
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		return nil, false, err
	}

	s.log.Info("primary admin created", zap.String("staff_id", st.ID))
	return st, true, nil
}

func (s *StaffService) ListStaff(ctx context.Context, caller domain.Caller) ([]*staff.Staff, error) {
	if caller.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.repoError("listing staff", err)
	}
	return list, nil
}

func (s *StaffService) GetStaff(ctx context.Context, id string, caller domain.Caller) (*staff.Staff, error) {
	if caller.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.repoError("getting staff", err)
	}
	return st, nil
}

func (s *StaffService) UpdateStaff(ctx context.Context, id string, cmd *staff.UpdateStaffCommand, caller domain.Caller) (*staff.Staff, error) {
	if caller.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	if cmd.Username != nil {
		u := normalizeUsername(*cmd.Username)
		cmd.Username = &u
	}
	if err := validateUpdateStaff(cmd); err != nil {
		return nil, err
	}

	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.repoError("getting staff", err)
	}

	if cmd.Username != nil && *cmd.Username != st.Username {
		if st.IsPrimaryAdmin() {
			return nil, &ValidationError{Fields: []string{"the primary admin username cannot be changed"}}
		}
		taken, err := s.repo.UsernameExists(ctx, *cmd.Username, id)
		if err != nil {
			return nil, s.repoError("checking username", err)
		}
		if taken {
			return nil, staff.ErrUsernameTaken
		}
		st.Username = *cmd.Username
	}
	if cmd.Name != nil {
		st.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.Role != nil {
		if st.IsPrimaryAdmin() && *cmd.Role != domain.RoleAdmin {
			return nil, &ValidationError{Fields: []string{"the primary admin must keep the admin role"}}
		}
		st.Role = *cmd.Role
	}
	if cmd.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*cmd.Password), passwordHashCost)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		st.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, st); err != nil {
		return nil, s.repoError("updating staff", err)
	}

	s.auditSvc.record(ctx, caller, domain.ActionUpdate, resourceStaff, id, changesJSON(map[string]any{
		"username":         st.Username,
		"role":             st.Role,
		"password_changed": cmd.Password != nil,
	}))

	return st, nil
}

func (s *StaffService) DeleteStaff(ctx context.Context, id string, caller domain.Caller) error {
	if caller.Role != domain.RoleAdmin {
		return ErrForbidden
	}

	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return s.repoError("getting staff", err)
	}
	if st.IsPrimaryAdmin() {
		return staff.ErrPrimaryAdmin
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.repoError("deleting staff", err)
	}

	s.auditSvc.record(ctx, caller, domain.ActionDelete, resourceStaff, id, "")
	s.log.Info("staff removed", zap.String("staff_id", id), zap.String("removed_by", caller.ID))
	return nil
}

func (s *StaffService) create(ctx context.Context, cmd *staff.RegisterStaffCommand) (*staff.Staff, error) {
	taken, err := s.repo.UsernameExists(ctx, cmd.Username, "")
	if err != nil {
		return nil, s.repoError("checking username", err)
	}
	if taken {
		return nil, staff.ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), passwordHashCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	st := &staff.Staff{
		Username:     cmd.Username,
		PasswordHash: string(hash),
		Name:         cmd.Name,
		Role:         cmd.Role,
	}

	// Staff ids have only a thousand values; a collision surfaces as an id
	// conflict and is retried with a fresh id.
	for range maxIDAttempts {
		st.ID = s.newID()
		err = s.repo.Create(ctx, st)
		if !errors.Is(err, staff.ErrStaffIDTaken) {
			break
		}
	}
	if err != nil {
		return nil, s.repoError("creating staff", err)
	}
	return st, nil
}

func (s *StaffService) repoError(op string, err error) error {
	err = repoError(op, err, staff.ErrStaffNotFound, staff.ErrUsernameTaken)
	var pe *PersistenceError
	if errors.As(err, &pe) {
		s.log.Error("staff repository failure", zap.String("op", op), zap.Error(pe.Err))
	}
	return err
}

func normalizeUsername(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}

func validateRegisterStaff(cmd *staff.RegisterStaffCommand) error {
	var errs []string

	if !usernamePattern.MatchString(cmd.Username) {
		errs = append(errs, "username must be 3-50 characters of a-z, 0-9, '.', '_' or '-'")
	}
	if cmd.Name == "" {
		errs = append(errs, "name is required")
	}
	if !staff.ValidRole(cmd.Role) {
		errs = append(errs, staff.ErrInvalidRole.Error())
	}
	if err := validatePasswordStrength(cmd.Password); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validateUpdateStaff(cmd *staff.UpdateStaffCommand) error {
	var errs []string

	if cmd.Username != nil && !usernamePattern.MatchString(*cmd.Username) {
		errs = append(errs, "username must be 3-50 characters of a-z, 0-9, '.', '_' or '-'")
	}
	if cmd.Name != nil && strings.TrimSpace(*cmd.Name) == "" {
		errs = append(errs, "name cannot be blank")
	}
	if cmd.Role != nil && !staff.ValidRole(*cmd.Role) {
		errs = append(errs, staff.ErrInvalidRole.Error())
	}
	if cmd.Password != nil {
		if err := validatePasswordStrength(*cmd.Password); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
