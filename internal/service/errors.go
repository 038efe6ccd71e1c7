package service

import (
	"errors"
	"fmt"
	"strings"
)

var ErrForbidden = errors.New("forbidden: insufficient permissions")

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// PersistenceError is a repository failure that is not a domain outcome
// (not found, duplicate). Handlers report it as an internal error.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// repoError passes domain sentinels in expected through and wraps everything
// else as a PersistenceError.
func repoError(op string, err error, expected ...error) error {
	for _, target := range expected {
		if errors.Is(err, target) {
			return err
		}
	}
	return &PersistenceError{Op: op, Err: err}
}

type AuditEntry struct {
	UserID       string
	UserRole     string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	RequestID    string
	StatusCode   int
	Changes      string
}
