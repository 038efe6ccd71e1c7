package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/staff"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/database"
	"gorm.io/gorm"
)

type StaffRepository struct {
	db *gorm.DB
}

func NewStaffRepository(db *gorm.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

func (r *StaffRepository) Create(ctx context.Context, s *staff.Staff) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return translateStaffError("inserting staff", err)
	}
	return nil
}

func (r *StaffRepository) GetByID(ctx context.Context, id string) (*staff.Staff, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *StaffRepository) GetByUsername(ctx context.Context, username string) (*staff.Staff, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *StaffRepository) first(ctx context.Context, query string, arg any) (*staff.Staff, error) {
	var s staff.Staff
	err := r.db.WithContext(ctx).First(&s, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, staff.ErrStaffNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying staff: %w", err)
	}
	return &s, nil
}

func (r *StaffRepository) UsernameExists(ctx context.Context, username, excludeID string) (bool, error) {
	db := r.db.WithContext(ctx).Model(&staff.Staff{}).Where("username = ?", username)
	if excludeID != "" {
		db = db.Where("id <> ?", excludeID)
	}

	var n int64
	if err := db.Count(&n).Error; err != nil {
		return false, fmt.Errorf("checking username: %w", err)
	}
	return n > 0, nil
}

func (r *StaffRepository) Update(ctx context.Context, s *staff.Staff) error {
	res := r.db.WithContext(ctx).
		Model(&staff.Staff{}).
		Where("id = ?", s.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(s)
	if res.Error != nil {
		return translateStaffError("updating staff", res.Error)
	}
	if res.RowsAffected == 0 {
		return staff.ErrStaffNotFound
	}
	return nil
}

// UpdateLoginAttempt applies the attempt in a single statement so concurrent
// failures are all counted.
func (r *StaffRepository) UpdateLoginAttempt(ctx context.Context, id string, attempt staff.LoginAttempt) error {
	var updates map[string]any
	if attempt.Success {
		updates = map[string]any{
			"failed_login_count": 0,
			"locked_until":       nil,
			"last_login_at":      attempt.At,
		}
	} else {
		lockedUntil := attempt.At.Add(attempt.LockFor)
		updates = map[string]any{
			"failed_login_count": gorm.Expr("CASE WHEN failed_login_count + 1 >= ? THEN 0 ELSE failed_login_count + 1 END", attempt.MaxFailures),
			"locked_until":       gorm.Expr("CASE WHEN failed_login_count + 1 >= ? THEN ? ELSE locked_until END", attempt.MaxFailures, lockedUntil),
		}
	}

	res := r.db.WithContext(ctx).Model(&staff.Staff{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("recording login attempt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return staff.ErrStaffNotFound
	}
	return nil
}

func (r *StaffRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&staff.Staff{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("deleting staff: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return staff.ErrStaffNotFound
	}
	return nil
}

func (r *StaffRepository) List(ctx context.Context) ([]*staff.Staff, error) {
	var out []*staff.Staff
	if err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing staff: %w", err)
	}
	return out, nil
}

// translateStaffError maps unique violations to the domain error for the
// column that collided.
func translateStaffError(op string, err error) error {
	constraint, dup := database.UniqueViolation(err)
	switch {
	case !dup:
		return fmt.Errorf("%s: %w", op, err)
	case strings.Contains(constraint, "username"):
		return staff.ErrUsernameTaken
	case strings.HasSuffix(constraint, "_pkey"):
		return staff.ErrStaffIDTaken
	default:
		// Constraint unknown: only the username can collide on update.
		if strings.HasPrefix(op, "updating") {
			return staff.ErrUsernameTaken
		}
		return staff.ErrStaffIDTaken
	}
}
