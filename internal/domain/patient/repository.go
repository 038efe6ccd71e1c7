package patient

import (
	"context"
)

type Repository interface {
	// Create persists a new patient. Returns ErrPatientAlreadyExists on id collision.
	Create(ctx context.Context, p *Patient) error

	// GetByID retrieves an active patient. Returns ErrPatientNotFound if not found.
	GetByID(ctx context.Context, id string) (*Patient, error)

	// Update overwrites the mutable fields of an active patient.
	Update(ctx context.Context, p *Patient) error

	// Archive moves the patient from the active set to the archive.
	Archive(ctx context.Context, p *Patient) (*ArchivedPatient, error)

	// ListActive returns active patients matching q.
	ListActive(ctx context.Context, q *ListActiveQuery) ([]*Patient, error)

	// ListArchived returns archived patients, most recently archived first.
	ListArchived(ctx context.Context) ([]*ArchivedPatient, error)

	GetArchivedByID(ctx context.Context, id string) (*ArchivedPatient, error)
}
