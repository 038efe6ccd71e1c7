package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/events"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/lock"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxIDAttempts bounds how many random patient codes are tried before
// registration gives up.
const maxIDAttempts = 5

const resourcePatient = "patient"

type PatientService struct {
	repo      patient.Repository
	locker    lock.Locker
	publisher events.Publisher
	auditSvc  *AuditService
	metrics   *metrics.Collector
	log       *zap.Logger
	tracer    trace.Tracer

	now   func() time.Time
	newID func() string
}

func NewPatientService(
	repo patient.Repository,
	locker lock.Locker,
	publisher events.Publisher,
	auditSvc *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
) *PatientService {
	return &PatientService{
		repo:      repo,
		locker:    locker,
		publisher: publisher,
		auditSvc:  auditSvc,
		metrics:   m,
		log:       log,
		tracer:    otel.Tracer("prontosocorro/service"),
		now:       time.Now,
		newID:     patient.NewID,
	}
}

// TriageResult is a classification preview; nothing is stored.
type TriageResult struct {
	Priority patient.Priority `json:"priority"`
	WaitTime string           `json:"wait_time"`
}

func (s *PatientService) ClassifyIntake(in patient.Intake) TriageResult {
	p := patient.Classify(in)
	return TriageResult{Priority: p, WaitTime: patient.EstimateWait(p)}
}

func (s *PatientService) RegisterPatient(ctx context.Context, cmd *patient.RegisterPatientCommand, caller domain.Caller) (*patient.Patient, error) {
	ctx, span := s.tracer.Start(ctx, "PatientService.RegisterPatient")
	defer span.End()

	if !caller.IsStaff() {
		return nil, ErrForbidden
	}
	normalizeRegister(cmd)
	if err := validateRegisterCommand(cmd); err != nil {
		return nil, err
	}

	var (
		p   *patient.Patient
		err error
	)
	for range maxIDAttempts {
		p = patient.New(s.newID(), cmd, s.now().UTC())
		err = s.repo.Create(ctx, p)
		if !errors.Is(err, patient.ErrPatientAlreadyExists) {
			break
		}
		s.log.Debug("patient code collision, retrying", zap.String("patient_id", p.ID))
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.log.Error("failed to create patient", zap.Error(err))
		return nil, &PersistenceError{Op: "creating patient", Err: err}
	}
	span.SetAttributes(
		attribute.String("patient.id", p.ID),
		attribute.String("patient.priority", string(p.Priority)),
	)

	s.metrics.PatientsRegistered.WithLabelValues(string(p.Priority)).Inc()
	s.auditSvc.record(ctx, caller, domain.ActionCreate, resourcePatient, p.ID, changesJSON(map[string]any{
		"priority":  p.Priority,
		"wait_time": p.WaitTime,
	}))
	s.publish(ctx, events.PatientRegistered, p.ID, caller, p)

	s.log.Info("patient registered",
		zap.String("patient_id", p.ID),
		zap.String("priority", string(p.Priority)),
		zap.String("registered_by", caller.ID),
	)

	return p, nil
}

func (s *PatientService) GetPatient(ctx context.Context, id string, caller domain.Caller) (*patient.Patient, error) {
	if err := authorizePatientAccess(caller, id); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.repoError("getting patient", err)
	}

	s.auditSvc.record(ctx, caller, domain.ActionRead, resourcePatient, id, "")
	return p, nil
}

// GetPatientStatus returns the pathway view shown to the patient and on the
// staff dashboard.
func (s *PatientService) GetPatientStatus(ctx context.Context, id string, caller domain.Caller) (*patient.Status, error) {
	p, err := s.GetPatient(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	return patient.NewStatus(p, s.now()), nil
}

func (s *PatientService) UpdatePatient(ctx context.Context, id string, cmd *patient.UpdatePatientCommand, caller domain.Caller) (*patient.Patient, error) {
	if !caller.IsStaff() {
		return nil, ErrForbidden
	}
	if err := validateUpdateCommand(cmd); err != nil {
		return nil, err
	}

	p, err := s.mutate(ctx, "UpdatePatient", id, func(p *patient.Patient) (bool, error) {
		return true, p.Apply(cmd)
	})
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if cmd.Priority != nil {
		changes["priority"] = *cmd.Priority
	}
	s.auditSvc.record(ctx, caller, domain.ActionUpdate, resourcePatient, id, changesJSON(changes))
	s.publish(ctx, events.PatientUpdated, id, caller, p)

	return p, nil
}

func (s *PatientService) ToggleStage(ctx context.Context, id string, stage patient.Stage, caller domain.Caller) (*patient.Patient, error) {
	if !caller.IsStaff() {
		return nil, ErrForbidden
	}
	if !stage.IsValid() {
		return nil, patient.ErrInvalidStage
	}

	var completed bool
	p, err := s.mutate(ctx, "ToggleStage", id, func(p *patient.Patient) (bool, error) {
		if err := p.ToggleStage(stage); err != nil {
			return false, err
		}
		completed = p.IsCompleted(stage)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	direction := "off"
	if completed {
		direction = "on"
	}
	s.metrics.StageToggles.WithLabelValues(string(stage), direction).Inc()

	change := map[string]any{
		"stage":        stage,
		"completed":    completed,
		"current_step": p.CurrentStep,
	}
	s.auditSvc.record(ctx, caller, domain.ActionUpdate, resourcePatient, id, changesJSON(change))
	s.publish(ctx, events.PatientStageToggled, id, caller, change)

	s.log.Info("stage toggled",
		zap.String("patient_id", id),
		zap.String("stage", string(stage)),
		zap.String("direction", direction),
		zap.String("current_step", string(p.CurrentStep)),
	)

	return p, nil
}

// RequestReevaluation is open to the patient on their own record and to staff.
func (s *PatientService) RequestReevaluation(ctx context.Context, id, reason string, caller domain.Caller) (*patient.Patient, error) {
	if err := authorizePatientAccess(caller, id); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, patient.ErrReevaluationReasonRequired
	}

	p, err := s.mutate(ctx, "RequestReevaluation", id, func(p *patient.Patient) (bool, error) {
		return true, p.RequestReevaluation(reason, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ReevaluationsTotal.WithLabelValues("requested").Inc()
	s.auditSvc.record(ctx, caller, domain.ActionUpdate, resourcePatient, id, changesJSON(p.Reevaluation))
	s.publish(ctx, events.PatientReevaluationRequested, id, caller, p.Reevaluation)

	s.log.Info("re-evaluation requested",
		zap.String("patient_id", id),
		zap.String("requested_by", caller.ID),
	)

	return p, nil
}

func (s *PatientService) MarkReevaluationSeen(ctx context.Context, id string, caller domain.Caller) (*patient.Patient, error) {
	if !caller.IsStaff() {
		return nil, ErrForbidden
	}

	var changed bool
	p, err := s.mutate(ctx, "MarkReevaluationSeen", id, func(p *patient.Patient) (bool, error) {
		changed = p.MarkReevaluationSeen()
		return changed, nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return p, nil
	}

	s.metrics.ReevaluationsTotal.WithLabelValues("seen").Inc()
	s.auditSvc.record(ctx, caller, domain.ActionUpdate, resourcePatient, id, changesJSON(map[string]any{"reevaluation_seen": true}))
	s.publish(ctx, events.PatientReevaluationSeen, id, caller, p.Reevaluation)

	return p, nil
}

// ArchivePatient discharges the patient: the record leaves the active queue
// and becomes read-only.
func (s *PatientService) ArchivePatient(ctx context.Context, id string, caller domain.Caller) (*patient.ArchivedPatient, error) {
	ctx, span := s.tracer.Start(ctx, "PatientService.ArchivePatient", trace.WithAttributes(attribute.String("patient.id", id)))
	defer span.End()

	if !caller.IsStaff() {
		return nil, ErrForbidden
	}

	var archived *patient.ArchivedPatient
	err := s.withPatientLock(ctx, id, func() error {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return s.repoError("getting patient", err)
		}
		archived, err = s.repo.Archive(ctx, p)
		if err != nil {
			return s.repoError("archiving patient", err)
		}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.metrics.PatientsArchived.Inc()
	s.auditSvc.record(ctx, caller, domain.ActionDelete, resourcePatient, id, changesJSON(map[string]any{"archived_at": archived.ArchivedAt}))
	s.publish(ctx, events.PatientArchived, id, caller, archived)

	s.log.Info("patient archived",
		zap.String("patient_id", id),
		zap.String("archived_by", caller.ID),
	)

	return archived, nil
}

func (s *PatientService) ListActive(ctx context.Context, q *patient.ListActiveQuery, caller domain.Caller) ([]*patient.Patient, error) {
	if !caller.IsStaff() {
		return nil, ErrForbidden
	}
	if err := validateListQuery(q); err != nil {
		return nil, err
	}

	ps, err := s.repo.ListActive(ctx, q)
	if err != nil {
		return nil, s.repoError("listing active patients", err)
	}
	return ps, nil
}

func (s *PatientService) ListArchived(ctx context.Context, caller domain.Caller) ([]*patient.ArchivedPatient, error) {
	if !caller.IsStaff() {
		return nil, ErrForbidden
	}

	ps, err := s.repo.ListArchived(ctx)
	if err != nil {
		return nil, s.repoError("listing archived patients", err)
	}
	return ps, nil
}

func (s *PatientService) GetArchived(ctx context.Context, id string, caller domain.Caller) (*patient.ArchivedPatient, error) {
	if !caller.IsStaff() {
		return nil, ErrForbidden
	}

	p, err := s.repo.GetArchivedByID(ctx, id)
	if err != nil {
		return nil, s.repoError("getting archived patient", err)
	}

	s.auditSvc.record(ctx, caller, domain.ActionRead, "archived_patient", id, "")
	return p, nil
}

// mutate runs a read-modify-write on one patient under its lock. fn reports
// whether it changed anything; unchanged records are not written back.
func (s *PatientService) mutate(ctx context.Context, op, id string, fn func(p *patient.Patient) (bool, error)) (*patient.Patient, error) {
	ctx, span := s.tracer.Start(ctx, "PatientService."+op, trace.WithAttributes(attribute.String("patient.id", id)))
	defer span.End()

	var out *patient.Patient
	err := s.withPatientLock(ctx, id, func() error {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return s.repoError("getting patient", err)
		}

		changed, err := fn(p)
		if err != nil {
			return err
		}
		if changed {
			if err := s.repo.Update(ctx, p); err != nil {
				return s.repoError("updating patient", err)
			}
		}
		out = p
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

func (s *PatientService) withPatientLock(ctx context.Context, id string, fn func() error) error {
	start := time.Now()
	release, err := s.locker.Lock(ctx, "patient:"+id)
	if err != nil {
		return fmt.Errorf("locking patient %s: %w", id, err)
	}
	defer release()
	s.metrics.PatientLockWait.Observe(time.Since(start).Seconds())

	return fn()
}

func (s *PatientService) repoError(op string, err error) error {
	err = repoError(op, err, patient.ErrPatientNotFound, patient.ErrPatientAlreadyExists)
	var pe *PersistenceError
	if errors.As(err, &pe) {
		s.log.Error("patient repository failure", zap.String("op", op), zap.Error(pe.Err))
	}
	return err
}

// publish never fails the calling operation; a lost event is logged and counted.
func (s *PatientService) publish(ctx context.Context, t events.Type, patientID string, caller domain.Caller, data any) {
	evt := events.New(t, patientID, data)
	evt.ActorID = caller.ID
	evt.ActorRole = string(caller.Role)

	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.metrics.EventsPublished.WithLabelValues(string(t), "error").Inc()
		s.log.Warn("failed to publish patient event",
			zap.String("event", string(t)),
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return
	}
	s.metrics.EventsPublished.WithLabelValues(string(t), "ok").Inc()
}

// authorizePatientAccess lets staff through and restricts patients to their own record.
func authorizePatientAccess(caller domain.Caller, patientID string) error {
	switch {
	case caller.IsStaff():
		return nil
	case caller.Role == domain.RolePatient && caller.PatientID != "" && caller.PatientID == patientID:
		return nil
	default:
		return ErrForbidden
	}
}

func changesJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func normalizeRegister(cmd *patient.RegisterPatientCommand) {
	cmd.Name = strings.TrimSpace(cmd.Name)
	cmd.Gender = strings.TrimSpace(cmd.Gender)
	cmd.Symptoms = strings.TrimSpace(cmd.Symptoms)
	cmd.Allergies = strings.TrimSpace(cmd.Allergies)
	cmd.Medications = strings.TrimSpace(cmd.Medications)
}

func validateRegisterCommand(cmd *patient.RegisterPatientCommand) error {
	var errs []string

	if cmd.Name == "" {
		errs = append(errs, "name is required")
	}
	if cmd.Age < 0 || cmd.Age > 150 {
		errs = append(errs, "age must be between 0 and 150")
	}
	if cmd.Gender == "" {
		errs = append(errs, "gender is required")
	}
	if cmd.Symptoms == "" {
		errs = append(errs, "symptoms is required")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validateUpdateCommand(cmd *patient.UpdatePatientCommand) error {
	var errs []string

	if cmd.Name != nil && strings.TrimSpace(*cmd.Name) == "" {
		errs = append(errs, "name cannot be blank")
	}
	if cmd.Age != nil && (*cmd.Age < 0 || *cmd.Age > 150) {
		errs = append(errs, "age must be between 0 and 150")
	}
	if cmd.Gender != nil && strings.TrimSpace(*cmd.Gender) == "" {
		errs = append(errs, "gender cannot be blank")
	}
	if cmd.Symptoms != nil && strings.TrimSpace(*cmd.Symptoms) == "" {
		errs = append(errs, "symptoms cannot be blank")
	}
	if cmd.Priority != nil && !cmd.Priority.IsValid() {
		errs = append(errs, "priority is invalid")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func validateListQuery(q *patient.ListActiveQuery) error {
	var errs []string

	switch q.SortBy {
	case "":
		q.SortBy = patient.SortByRegisteredAt
	case patient.SortByRegisteredAt, patient.SortByPriority:
	default:
		errs = append(errs, "sort must be registered_at or priority")
	}
	if q.Priority != nil && !q.Priority.IsValid() {
		errs = append(errs, "priority filter is invalid")
	}
	if q.Stage != nil && !q.Stage.IsValid() {
		errs = append(errs, "stage filter is invalid")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
