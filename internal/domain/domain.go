package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "medico"
	RoleNurse   Role = "enfermeiro"
	RolePatient Role = "paciente"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleNurse, RolePatient:
		return true
	}
	return false
}

// IsStaff reports whether r is a role held by hospital staff.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleDoctor || r == RoleNurse
}

type AuditAction string

const (
	ActionCreate AuditAction = "create"
	ActionRead   AuditAction = "read"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
	ActionLogin  AuditAction = "login"
)

type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OccurredAt time.Time `gorm:"autoCreateTime;index"`

	// Who. UserID is a staff id ("STF…") or a patient code ("PS…").
	UserID    string `gorm:"column:user_id;type:varchar(20);not null;index"`
	UserRole  Role   `gorm:"column:user_role;type:varchar(30);not null"`
	IPAddress string `gorm:"column:ip_address;type:varchar(45)"` // Supports IPv6

	// What
	Action       AuditAction `gorm:"column:action;type:varchar(20);not null;index"`
	ResourceType string      `gorm:"column:resource_type;type:varchar(50);not null;index"`
	ResourceID   string      `gorm:"column:resource_id;type:varchar(50);index"`

	RequestID  string `gorm:"column:request_id;type:varchar(50);index"`
	StatusCode int    `gorm:"column:status_code"`

	Changes string `gorm:"column:changes;type:jsonb"`
}

func (AuditLog) TableName() string {
	return "audit.logs"
}

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"` // Always "Bearer"
}

// Claims identifies the caller. For staff, Subject is the staff id; for
// patients it is the patient code and PatientID repeats it.
type Claims struct {
	Subject   string `json:"sub"`
	Username  string `json:"username,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      Role   `json:"role"`
	PatientID string `json:"patient_id,omitempty"`
}

// Caller is the authenticated actor passed from the HTTP layer to services.
type Caller struct {
	ID        string
	Role      Role
	PatientID string
	IP        string
	RequestID string
}

func (c Caller) IsStaff() bool {
	return c.Role.IsStaff()
}
