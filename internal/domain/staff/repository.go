package staff

import "context"

type Repository interface {
	// Create persists a new staff member. Returns ErrUsernameTaken on a
	// duplicate username.
	Create(ctx context.Context, s *Staff) error

	// GetByID returns ErrStaffNotFound if not found.
	GetByID(ctx context.Context, id string) (*Staff, error)
	GetByUsername(ctx context.Context, username string) (*Staff, error)

	// UsernameExists reports whether username is taken by anyone other than excludeID.
	UsernameExists(ctx context.Context, username, excludeID string) (bool, error)

	Update(ctx context.Context, s *Staff) error

	// UpdateLoginAttempt records a login outcome: success resets the failure
	// count and stamps LastLoginAt, failure increments it and locks the
	// account once MaxFailures is reached.
	UpdateLoginAttempt(ctx context.Context, id string, attempt LoginAttempt) error

	Delete(ctx context.Context, id string) error

	// List returns every staff member ordered by name.
	List(ctx context.Context) ([]*Staff, error)
}
