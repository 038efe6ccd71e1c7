package staff

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain"
)

// PrimaryAdminUsername is the bootstrap account that cannot be removed.
const PrimaryAdminUsername = "admin"

type Staff struct {
	ID        string    `gorm:"column:id;type:varchar(6);primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Username     string      `gorm:"column:username;type:varchar(100);uniqueIndex;not null" json:"username"`
	PasswordHash string      `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	Name         string      `gorm:"column:name;type:varchar(200);not null" json:"name"`
	Role         domain.Role `gorm:"column:role;type:varchar(20);not null;index" json:"role"`

	FailedLoginCount int        `gorm:"column:failed_login_count;default:0" json:"-"`
	LockedUntil      *time.Time `gorm:"column:locked_until" json:"-"`
	LastLoginAt      *time.Time `gorm:"column:last_login_at" json:"last_login_at,omitempty"`
}

func (Staff) TableName() string {
	return "auth.staff"
}

// IsLocked returns true if the account is temporarily locked due to failed logins.
func (s *Staff) IsLocked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

func (s *Staff) IsPrimaryAdmin() bool {
	return s.Username == PrimaryAdminUsername
}

func (s *Staff) Clone() *Staff {
	c := *s
	if s.LockedUntil != nil {
		t := *s.LockedUntil
		c.LockedUntil = &t
	}
	if s.LastLoginAt != nil {
		t := *s.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

// NewID returns a staff id: "STF" followed by three digits.
func NewID() string {
	return fmt.Sprintf("STF%03d", rand.IntN(1000))
}

// ValidRole reports whether r may be assigned to a staff member.
func ValidRole(r domain.Role) bool {
	return r.IsStaff()
}

type RegisterStaffCommand struct {
	Username string
	Password string
	Name     string
	Role     domain.Role
}

type UpdateStaffCommand struct {
	Username *string
	Name     *string
	Role     *domain.Role
	// Password, when set, replaces the current one.
	Password *string
}

// LoginAttempt is the outcome of one credential check, applied atomically by
// the repository.
type LoginAttempt struct {
	Success     bool
	At          time.Time
	MaxFailures int
	LockFor     time.Duration
}
