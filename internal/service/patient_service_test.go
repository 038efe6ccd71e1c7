package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/prontosocorro/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/prontosocorro/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerCmd() *patient.RegisterPatientCommand {
	return &patient.RegisterPatientCommand{
		Name:             "  Carlos Lima ",
		Age:              52,
		Gender:           "M",
		Symptoms:         "dor no peito",
		OxygenSaturation: "93",
		HeartRate:        "88",
	}
}

func registerPatient(t *testing.T, env *testEnv) *patient.Patient {
	t.Helper()
	p, err := env.patientSvc.RegisterPatient(context.Background(), registerCmd(), nurse)
	require.NoError(t, err)
	return p
}

func TestPatientService_RegisterPatient(t *testing.T) {
	env := newTestEnv(t)

	p := registerPatient(t, env)

	assert.True(t, patient.ValidID(p.ID))
	assert.Equal(t, "Carlos Lima", p.Name)
	assert.Equal(t, patient.PriorityYellow, p.Priority)
	assert.Equal(t, "30 minutos", p.WaitTime)
	assert.Equal(t, patient.StageReception, p.CurrentStep)
	assert.Equal(t, []patient.Stage{patient.StageReception}, p.CompletedSteps)

	stored, err := env.patients.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, stored)
	assert.Equal(t, []events.Type{events.PatientRegistered}, env.publisher.types())
}

func TestPatientService_RegisterPatient_Validation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.patientSvc.RegisterPatient(context.Background(), &patient.RegisterPatientCommand{Age: 200}, nurse)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Fields, 4)
}

func TestPatientService_RegisterPatient_PatientForbidden(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.patientSvc.RegisterPatient(context.Background(), registerCmd(), patientCaller("PS12345"))

	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPatientService_RegisterPatient_RetriesCollision(t *testing.T) {
	env := newTestEnv(t)
	ids := []string{"PS11111", "PS11111", "PS22222"}
	env.patientSvc.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, err := env.patientSvc.RegisterPatient(context.Background(), registerCmd(), nurse)
	require.NoError(t, err)
	second, err := env.patientSvc.RegisterPatient(context.Background(), registerCmd(), nurse)
	require.NoError(t, err)

	assert.Equal(t, "PS11111", first.ID)
	assert.Equal(t, "PS22222", second.ID)
}

func TestPatientService_RegisterPatient_GivesUpAfterCollisions(t *testing.T) {
	env := newTestEnv(t)
	env.patientSvc.newID = func() string { return "PS11111" }
	registerPatient(t, env)

	_, err := env.patientSvc.RegisterPatient(context.Background(), registerCmd(), nurse)

	var pErr *PersistenceError
	assert.ErrorAs(t, err, &pErr)
}

func TestPatientService_ClassifyIntake(t *testing.T) {
	env := newTestEnv(t)

	got := env.patientSvc.ClassifyIntake(patient.Intake{PainLevel: "2", OxygenSaturation: "90"})

	assert.Equal(t, TriageResult{Priority: patient.PriorityOrange, WaitTime: "10 minutos"}, got)
}

func TestPatientService_GetPatient_RBAC(t *testing.T) {
	env := newTestEnv(t)
	p := registerPatient(t, env)
	ctx := context.Background()

	got, err := env.patientSvc.GetPatient(ctx, p.ID, patientCaller(p.ID))
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = env.patientSvc.GetPatient(ctx, p.ID, patientCaller("PS99999"))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.patientSvc.GetPatient(ctx, "PS00000", nurse)
	assert.ErrorIs(t, err, patient.ErrPatientNotFound)
}

func TestPatientService_GetPatientStatus(t *testing.T) {
	env := newTestEnv(t)
	p := registerPatient(t, env)
	env.patientSvc.now = func() time.Time { return p.RegisteredAt.Add(25 * time.Minute) }

	status, err := env.patientSvc.GetPatientStatus(context.Background(), p.ID, patientCaller(p.ID))

	require.NoError(t, err)
	assert.Equal(t, 25, status.ElapsedMinutes)
	assert.Equal(t, "Recepção", status.CurrentStageLabel)
	assert.Equal(t, 10, status.CurrentStageBudget)
	assert.Equal(t, "1 hora(s) e 40 minutos", status.RemainingTime)
}

func TestPatientService_UpdatePatient_PriorityOverride(t *testing.T) {
	env := newTestEnv(t)
	p := registerPatient(t, env)
	blue := patient.PriorityBlue
	pain := "1"

	got, err := env.patientSvc.UpdatePatient(context.Background(), p.ID, &patient.UpdatePatientCommand{Priority: &blue, PainLevel: &pain}, nurse)

	require.NoError(t, err)
	assert.Equal(t, patient.PriorityBlue, got.Priority)
	assert.Equal(t, "30 minutos", got.WaitTime)
	assert.Equal(t, "1", got.PainLevel)
	assert.Equal(t, p.RegisteredAt, got.RegisteredAt)
}

func TestPatientService_UpdatePatient_Invalid(t *testing.T) {
	env := newTestEnv(t)
	p := registerPatient(t, env)
	bad := patient.Priority("Roxo")
	blank := " "

	_, err := env.patientSvc.UpdatePatient(context.Background(), p.ID, &patient.UpdatePatientCommand{Priority: &bad, Name: &blank}, nurse)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Fields, 2)
}

func TestPatientService_ToggleStage(t *testing.T) {
	env := newTestEnv(t)
	p := registerPatient(t, env)
	ctx := context.Background()

	got, err := env.patientSvc.ToggleStage(ctx, p.ID, patient.StageTriage, nurse)
	require.NoError(t, err)
	assert.Equal(t, patient.StageReception, got.CurrentStep)
	assert.True(t, got.IsCompleted(patient.StageTriage))

	_, err = env.patientSvc.ToggleStage(ctx, p.ID, patient.Stage("raio-x"), nurse)
	assert.ErrorIs(t, err, patient.ErrInvalidStage)

	_, err = env.patientSvc.ToggleStage(ctx, "PS00000", patient.StageTriage, nurse)
	assert.ErrorIs(t, err, patient.ErrPatientNotFound)

	_, err = env.patientSvc.ToggleStage(ctx, p.ID, patient.StageTriage, patientCaller(p.ID))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPatientService_ToggleStage_ConcurrentTogglesAreSerialized(t *testing.T) {
	env := newTestEnv(t)
	p := registerPatient(t, env)
	ctx := context.Background()

	stages := []patient.Stage{patient.StageTriage, patient.StageWaiting, patient.StageConsultation, patient.StageMedication, patient.StageDischarge}
	var wg sync.WaitGroup
	for _, stage := range stages {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.patientSvc.ToggleStage(ctx, p.ID, stage, nurse)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := env.patients.GetByID(ctx, p.ID)
	require.NoError(t, err)
	// no toggle was lost
	assert.ElementsMatch(t, patient.Stages, got.CompletedSteps)
}

func TestPatientService_Reevaluation(t *testing.T) {
	env := newTestEnv(t)
	p := registerPatient(t, env)
	ctx := context.Background()
	self := patientCaller(p.ID)

	_, err := env.patientSvc.RequestReevaluation(ctx, p.ID, "  ", self)
	assert.ErrorIs(t, err, patient.ErrReevaluationReasonRequired)

	got, err := env.patientSvc.RequestReevaluation(ctx, p.ID, "worse pain", self)
	require.NoError(t, err)
	assert.True(t, got.Reevaluation.Pending())

	_, err = env.patientSvc.RequestReevaluation(ctx, p.ID, "again", self)
	assert.ErrorIs(t, err, patient.ErrReevaluationPending)

	_, err = env.patientSvc.RequestReevaluation(ctx, p.ID, "not mine", patientCaller("PS99999"))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.patientSvc.MarkReevaluationSeen(ctx, p.ID, self)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err = env.patientSvc.MarkReevaluationSeen(ctx, p.ID, nurse)
	require.NoError(t, err)
	assert.True(t, got.Reevaluation.Seen)

	got, err = env.patientSvc.RequestReevaluation(ctx, p.ID, "fever", self)
	require.NoError(t, err)
	assert.Equal(t, "fever", got.Reevaluation.Reason)
	assert.False(t, got.Reevaluation.Seen)

	assert.Equal(t, []events.Type{
		events.PatientRegistered,
		events.PatientReevaluationRequested,
		events.PatientReevaluationSeen,
		events.PatientReevaluationRequested,
	}, env.publisher.types())
}

func TestPatientService_MarkReevaluationSeen_NoRequest(t *testing.T) {
	env := newTestEnv(t)
	p := registerPatient(t, env)

	got, err := env.patientSvc.MarkReevaluationSeen(context.Background(), p.ID, nurse)

	require.NoError(t, err)
	assert.Nil(t, got.Reevaluation)
	assert.Equal(t, []events.Type{events.PatientRegistered}, env.publisher.types())
}

func TestPatientService_Archive(t *testing.T) {
	env := newTestEnv(t)
	p := registerPatient(t, env)
	other := registerPatient(t, env)
	ctx := context.Background()

	archived, err := env.patientSvc.ArchivePatient(ctx, p.ID, nurse)
	require.NoError(t, err)
	assert.Equal(t, *p, archived.Patient)
	assert.False(t, archived.ArchivedAt.IsZero())

	active, err := env.patientSvc.ListActive(ctx, &patient.ListActiveQuery{}, nurse)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, other.ID, active[0].ID)

	list, err := env.patientSvc.ListArchived(ctx, nurse)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)

	got, err := env.patientSvc.GetArchived(ctx, p.ID, nurse)
	require.NoError(t, err)
	assert.Equal(t, *p, got.Patient)

	_, err = env.patientSvc.ArchivePatient(ctx, p.ID, nurse)
	assert.ErrorIs(t, err, patient.ErrPatientNotFound)

	_, err = env.patientSvc.ListArchived(ctx, patientCaller(other.ID))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPatientService_ListActive_InvalidQuery(t *testing.T) {
	env := newTestEnv(t)
	bad := patient.Stage("x")

	_, err := env.patientSvc.ListActive(context.Background(), &patient.ListActiveQuery{SortBy: "name", Stage: &bad}, nurse)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Fields, 2)
}

func TestPatientService_PublishFailureDoesNotFail(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.err = errors.New("broker down")

	_, err := env.patientSvc.RegisterPatient(context.Background(), registerCmd(), nurse)

	assert.NoError(t, err)
}

type failingPatientRepo struct {
	patient.Repository
}

func (failingPatientRepo) GetByID(context.Context, string) (*patient.Patient, error) {
	return nil, errors.New("connection reset")
}

func TestPatientService_PersistenceErrorIsWrapped(t *testing.T) {
	env := newTestEnv(t)
	env.patientSvc.repo = failingPatientRepo{Repository: env.patients}

	_, err := env.patientSvc.ToggleStage(context.Background(), "PS12345", patient.StageTriage, nurse)

	var pErr *PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "getting patient", pErr.Op)
	assert.EqualError(t, pErr.Err, "connection reset")
}
