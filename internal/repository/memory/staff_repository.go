package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/staff"
)

type StaffRepository struct {
	mu    sync.RWMutex
	staff map[string]*staff.Staff
}

func NewStaffRepository() *StaffRepository {
	return &StaffRepository{staff: make(map[string]*staff.Staff)}
}

func (r *StaffRepository) Create(ctx context.Context, s *staff.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.staff[s.ID]; ok {
		return staff.ErrStaffIDTaken
	}
	if r.usernameTaken(s.Username, "") {
		return staff.ErrUsernameTaken
	}
	r.staff[s.ID] = s.Clone()
	return nil
}

func (r *StaffRepository) GetByID(ctx context.Context, id string) (*staff.Staff, error) {
	r.mu.RLock()
	s, ok := r.staff[id]
	r.mu.RUnlock()

	if !ok {
		return nil, staff.ErrStaffNotFound
	}
	return s.Clone(), nil
}

func (r *StaffRepository) GetByUsername(ctx context.Context, username string) (*staff.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.staff {
		if s.Username == username {
			return s.Clone(), nil
		}
	}
	return nil, staff.ErrStaffNotFound
}

func (r *StaffRepository) UsernameExists(ctx context.Context, username, excludeID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.usernameTaken(username, excludeID), nil
}

func (r *StaffRepository) usernameTaken(username, excludeID string) bool {
	for id, s := range r.staff {
		if s.Username == username && id != excludeID {
			return true
		}
	}
	return false
}

func (r *StaffRepository) Update(ctx context.Context, s *staff.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.staff[s.ID]; !ok {
		return staff.ErrStaffNotFound
	}
	if r.usernameTaken(s.Username, s.ID) {
		return staff.ErrUsernameTaken
	}
	r.staff[s.ID] = s.Clone()
	return nil
}

func (r *StaffRepository) UpdateLoginAttempt(ctx context.Context, id string, attempt staff.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.staff[id]
	if !ok {
		return staff.ErrStaffNotFound
	}

	if attempt.Success {
		at := attempt.At
		s.FailedLoginCount = 0
		s.LockedUntil = nil
		s.LastLoginAt = &at
		return nil
	}

	s.FailedLoginCount++
	if s.FailedLoginCount >= attempt.MaxFailures {
		until := attempt.At.Add(attempt.LockFor)
		s.LockedUntil = &until
		s.FailedLoginCount = 0
	}
	return nil
}

func (r *StaffRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.staff[id]; !ok {
		return staff.ErrStaffNotFound
	}
	delete(r.staff, id)
	return nil
}

func (r *StaffRepository) List(ctx context.Context) ([]*staff.Staff, error) {
	r.mu.RLock()
	out := make([]*staff.Staff, 0, len(r.staff))
	for _, s := range r.staff {
		out = append(out, s.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *staff.Staff) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}
