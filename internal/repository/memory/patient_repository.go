package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/patient"
)

// PatientRepository keeps patients in process memory. Records are copied on
// the way in and out so callers never share state with the store.
type PatientRepository struct {
	mu       sync.RWMutex
	active   map[string]*patient.Patient
	archived map[string]*patient.ArchivedPatient
	now      func() time.Time
}

func NewPatientRepository() *PatientRepository {
	return &PatientRepository{
		active:   make(map[string]*patient.Patient),
		archived: make(map[string]*patient.ArchivedPatient),
		now:      time.Now,
	}
}

func (r *PatientRepository) Create(ctx context.Context, p *patient.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Codes stay unique across the archive too: a discharged patient's code
	// must not resolve to someone else later.
	if _, ok := r.active[p.ID]; ok {
		return patient.ErrPatientAlreadyExists
	}
	if _, ok := r.archived[p.ID]; ok {
		return patient.ErrPatientAlreadyExists
	}
	r.active[p.ID] = p.Clone()
	return nil
}

func (r *PatientRepository) GetByID(ctx context.Context, id string) (*patient.Patient, error) {
	r.mu.RLock()
	p, ok := r.active[id]
	r.mu.RUnlock()

	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	return p.Clone(), nil
}

func (r *PatientRepository) Update(ctx context.Context, p *patient.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.active[p.ID]
	if !ok {
		return patient.ErrPatientNotFound
	}
	updated := p.Clone()
	updated.RegisteredAt = current.RegisteredAt
	r.active[p.ID] = updated
	return nil
}

func (r *PatientRepository) Archive(ctx context.Context, p *patient.Patient) (*patient.ArchivedPatient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.active[p.ID]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	archived := current.Archive(r.now().UTC())
	r.archived[p.ID] = archived
	delete(r.active, p.ID)

	out := *archived
	out.Patient = *archived.Patient.Clone()
	return &out, nil
}

func (r *PatientRepository) ListActive(ctx context.Context, q *patient.ListActiveQuery) ([]*patient.Patient, error) {
	r.mu.RLock()
	out := make([]*patient.Patient, 0, len(r.active))
	for _, p := range r.active {
		if q.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	r.mu.RUnlock()

	q.Sort(out)
	return out, nil
}

func (r *PatientRepository) ListArchived(ctx context.Context) ([]*patient.ArchivedPatient, error) {
	r.mu.RLock()
	out := make([]*patient.ArchivedPatient, 0, len(r.archived))
	for _, a := range r.archived {
		c := *a
		c.Patient = *a.Patient.Clone()
		out = append(out, &c)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *patient.ArchivedPatient) int {
		return b.ArchivedAt.Compare(a.ArchivedAt)
	})
	return out, nil
}

func (r *PatientRepository) GetArchivedByID(ctx context.Context, id string) (*patient.ArchivedPatient, error) {
	r.mu.RLock()
	a, ok := r.archived[id]
	r.mu.RUnlock()

	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	c := *a
	c.Patient = *a.Patient.Clone()
	return &c, nil
}
