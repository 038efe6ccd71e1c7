package patient

import (
	"fmt"
	"time"
)

const (
	RemainingDone         = "Concluído"
	RemainingImmediate    = "Imediato"
	RemainingUndetermined = "Indeterminado"
	defaultWaitTimeLabel  = "1 hora"
)

var waitTimeLabels = map[Priority]string{
	PriorityRed:    "Imediato",
	PriorityOrange: "10 minutos",
	PriorityYellow: "30 minutos",
	PriorityGreen:  "1 hora",
	PriorityBlue:   "2 horas",
}

// EstimateWait returns the patient-facing wait label for a priority.
// Unknown priorities get "1 hora".
func EstimateWait(p Priority) string {
	if label, ok := waitTimeLabels[p]; ok {
		return label
	}
	return defaultWaitTimeLabel
}

// stageBudgets holds the protocol time budget, in minutes, per stage and priority.
var stageBudgets = map[Stage]map[Priority]int{
	StageReception:    {PriorityRed: 0, PriorityOrange: 5, PriorityYellow: 10, PriorityGreen: 15, PriorityBlue: 20},
	StageTriage:       {PriorityRed: 0, PriorityOrange: 5, PriorityYellow: 10, PriorityGreen: 15, PriorityBlue: 20},
	StageWaiting:      {PriorityRed: 5, PriorityOrange: 15, PriorityYellow: 30, PriorityGreen: 60, PriorityBlue: 120},
	StageConsultation: {PriorityRed: 30, PriorityOrange: 30, PriorityYellow: 30, PriorityGreen: 30, PriorityBlue: 30},
	StageMedication:   {PriorityRed: 30, PriorityOrange: 30, PriorityYellow: 20, PriorityGreen: 15, PriorityBlue: 10},
	StageDischarge:    {PriorityRed: 0, PriorityOrange: 0, PriorityYellow: 0, PriorityGreen: 0, PriorityBlue: 0},
}

// StageBudget returns the minutes allotted to stage for priority, 0 if either is unknown.
func StageBudget(stage Stage, p Priority) int {
	return stageBudgets[stage][p]
}

// RemainingMinutes sums the budget of the current stage and every later one.
// ok is false when the current stage is not a known stage.
func RemainingMinutes(p *Patient) (minutes int, ok bool) {
	idx := p.CurrentStep.Index()
	if idx < 0 {
		return 0, false
	}
	for _, s := range Stages[idx:] {
		minutes += StageBudget(s, p.Priority)
	}
	return minutes, true
}

// EstimateRemaining renders the remaining care time for the patient.
func EstimateRemaining(p *Patient) string {
	idx := p.CurrentStep.Index()
	if idx < 0 {
		return RemainingUndetermined
	}
	if idx == len(Stages)-1 {
		return RemainingDone
	}

	minutes, _ := RemainingMinutes(p)
	switch {
	case minutes <= 0:
		return RemainingImmediate
	case minutes < 60:
		return fmt.Sprintf("%d minutos", minutes)
	default:
		return fmt.Sprintf("%d hora(s) e %d minutos", minutes/60, minutes%60)
	}
}

// Status is the patient-facing view of where they are in the pathway.
type Status struct {
	Patient            *Patient        `json:"patient"`
	Progress           []StageProgress `json:"progress"`
	CurrentStageLabel  string          `json:"current_stage_label"`
	CurrentStageBudget int             `json:"current_stage_budget_minutes"`
	RemainingTime      string          `json:"remaining_time"`
	ElapsedMinutes     int             `json:"elapsed_minutes"`
}

func NewStatus(p *Patient, now time.Time) *Status {
	elapsed := int(now.Sub(p.RegisteredAt) / time.Minute)
	if elapsed < 0 {
		elapsed = 0
	}
	return &Status{
		Patient:            p,
		Progress:           p.Progress(),
		CurrentStageLabel:  p.CurrentStep.Label(),
		CurrentStageBudget: StageBudget(p.CurrentStep, p.Priority),
		RemainingTime:      EstimateRemaining(p),
		ElapsedMinutes:     elapsed,
	}
}
