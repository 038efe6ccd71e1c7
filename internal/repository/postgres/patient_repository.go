package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PatientRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPatientRepository(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db, now: time.Now}
}

func (r *PatientRepository) Create(ctx context.Context, p *patient.Patient) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Codes stay unique across the archive too.
		var archived int64
		if err := tx.Model(&patient.ArchivedPatient{}).Where("id = ?", p.ID).Count(&archived).Error; err != nil {
			return fmt.Errorf("checking archived codes: %w", err)
		}
		if archived > 0 {
			return patient.ErrPatientAlreadyExists
		}

		if err := tx.Create(p).Error; err != nil {
			if _, dup := database.UniqueViolation(err); dup {
				return patient.ErrPatientAlreadyExists
			}
			return fmt.Errorf("inserting patient: %w", err)
		}
		return nil
	})
}

func (r *PatientRepository) GetByID(ctx context.Context, id string) (*patient.Patient, error) {
	var p patient.Patient
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, patient.ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying patient: %w", err)
	}
	return &p, nil
}

func (r *PatientRepository) Update(ctx context.Context, p *patient.Patient) error {
	res := r.db.WithContext(ctx).
		Model(&patient.Patient{}).
		Where("id = ?", p.ID).
		Select("*").
		Omit("id", "registered_at").
		Updates(p)
	if res.Error != nil {
		return fmt.Errorf("updating patient: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return patient.ErrPatientNotFound
	}
	return nil
}

// Archive copies the stored row into the archive and deletes it in one
// transaction. The row is locked so a concurrent update cannot slip in
// between the copy and the delete.
func (r *PatientRepository) Archive(ctx context.Context, p *patient.Patient) (*patient.ArchivedPatient, error) {
	var archived *patient.ArchivedPatient
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current patient.Patient
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, "id = ?", p.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return patient.ErrPatientNotFound
		}
		if err != nil {
			return fmt.Errorf("locking patient: %w", err)
		}

		archived = current.Archive(r.now().UTC())
		if err := tx.Create(archived).Error; err != nil {
			return fmt.Errorf("inserting archived patient: %w", err)
		}
		if err := tx.Delete(&patient.Patient{}, "id = ?", p.ID).Error; err != nil {
			return fmt.Errorf("deleting active patient: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return archived, nil
}

func (r *PatientRepository) ListActive(ctx context.Context, q *patient.ListActiveQuery) ([]*patient.Patient, error) {
	db := r.db.WithContext(ctx).Model(&patient.Patient{})

	if q.Priority != nil {
		db = db.Where("priority = ?", *q.Priority)
	}
	if q.Stage != nil {
		db = db.Where("current_step = ?", *q.Stage)
	}
	if q.PendingReevaluate {
		db = db.Where("(reevaluation->>'requested')::boolean AND NOT (reevaluation->>'seen')::boolean")
	}

	if q.SortBy == patient.SortByPriority {
		db = db.Order(priorityOrder()).Order("registered_at ASC")
	} else {
		db = db.Order("registered_at DESC")
	}

	var out []*patient.Patient
	if err := db.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing active patients: %w", err)
	}
	return out, nil
}

func (r *PatientRepository) ListArchived(ctx context.Context) ([]*patient.ArchivedPatient, error) {
	var out []*patient.ArchivedPatient
	if err := r.db.WithContext(ctx).Order("archived_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing archived patients: %w", err)
	}
	return out, nil
}

func (r *PatientRepository) GetArchivedByID(ctx context.Context, id string) (*patient.ArchivedPatient, error) {
	var a patient.ArchivedPatient
	err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, patient.ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying archived patient: %w", err)
	}
	return &a, nil
}

// priorityOrder ranks the priority column by urgency, unknown values last.
func priorityOrder() string {
	var b strings.Builder
	b.WriteString("CASE priority")
	for _, p := range patient.Priorities {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", p, p.Rank())
	}
	fmt.Fprintf(&b, " ELSE %d END", len(patient.Priorities))
	return b.String()
}
