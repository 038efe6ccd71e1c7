package patient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEstimateWait(t *testing.T) {
	assert.Equal(t, "Imediato", EstimateWait(PriorityRed))
	assert.Equal(t, "10 minutos", EstimateWait(PriorityOrange))
	assert.Equal(t, "30 minutos", EstimateWait(PriorityYellow))
	assert.Equal(t, "1 hora", EstimateWait(PriorityGreen))
	assert.Equal(t, "2 horas", EstimateWait(PriorityBlue))
	assert.Equal(t, "1 hora", EstimateWait(Priority("unknown")))
}

func TestStageBudget(t *testing.T) {
	assert.Equal(t, 60, StageBudget(StageWaiting, PriorityGreen))
	assert.Equal(t, 10, StageBudget(StageMedication, PriorityBlue))
	assert.Equal(t, 0, StageBudget(StageDischarge, PriorityRed))
	assert.Equal(t, 0, StageBudget(Stage("x"), PriorityRed))
	assert.Equal(t, 0, StageBudget(StageWaiting, Priority("x")))
}

func TestEstimateRemaining(t *testing.T) {
	tests := []struct {
		name     string
		stage    Stage
		priority Priority
		want     string
	}{
		{"green from reception", StageReception, PriorityGreen, "2 hora(s) e 15 minutos"},
		{"blue from reception", StageReception, PriorityBlue, "3 hora(s) e 20 minutos"},
		{"red from reception", StageReception, PriorityRed, "1 hora(s) e 5 minutos"},
		{"yellow from consultation", StageConsultation, PriorityYellow, "50 minutos"},
		{"orange from waiting", StageWaiting, PriorityOrange, "1 hora(s) e 15 minutos"},
		{"exactly one hour", StageConsultation, PriorityRed, "1 hora(s) e 0 minutos"},
		{"at discharge", StageDischarge, PriorityRed, "Concluído"},
		{"unknown stage", Stage("raio-x"), PriorityGreen, "Indeterminado"},
		{"unknown priority", StageMedication, Priority("x"), "Imediato"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Patient{CurrentStep: tt.stage, Priority: tt.priority}
			assert.Equal(t, tt.want, EstimateRemaining(p))
		})
	}
}

func TestRemainingMinutes(t *testing.T) {
	m, ok := RemainingMinutes(&Patient{CurrentStep: StageMedication, Priority: PriorityYellow})
	assert.True(t, ok)
	assert.Equal(t, 20, m)

	_, ok = RemainingMinutes(&Patient{CurrentStep: Stage("")})
	assert.False(t, ok)
}

func TestNewStatus(t *testing.T) {
	registered := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := &Patient{
		ID:             "PS10001",
		Priority:       PriorityYellow,
		RegisteredAt:   registered,
		CurrentStep:    StageWaiting,
		CompletedSteps: []Stage{StageReception, StageTriage},
	}

	s := NewStatus(p, registered.Add(42*time.Minute+30*time.Second))

	assert.Equal(t, "Espera", s.CurrentStageLabel)
	assert.Equal(t, 30, s.CurrentStageBudget)
	assert.Equal(t, "1 hora(s) e 20 minutos", s.RemainingTime)
	assert.Equal(t, 42, s.ElapsedMinutes)
	assert.Len(t, s.Progress, 6)

	s = NewStatus(p, registered.Add(-time.Minute))
	assert.Equal(t, 0, s.ElapsedMinutes)
}
