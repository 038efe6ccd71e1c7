package patient

import "slices"

// Stage is one step of the care pathway. The string values are part of the
// stored data contract.
//
// Pathway order:
//
//	recepcao → triagem → espera → consulta → medicacao → alta
type Stage string

const (
	StageReception    Stage = "recepcao"
	StageTriage       Stage = "triagem"
	StageWaiting      Stage = "espera"
	StageConsultation Stage = "consulta"
	StageMedication   Stage = "medicacao"
	StageDischarge    Stage = "alta"
)

// Stages is the canonical pathway order.
var Stages = []Stage{
	StageReception,
	StageTriage,
	StageWaiting,
	StageConsultation,
	StageMedication,
	StageDischarge,
}

var stageLabels = map[Stage]string{
	StageReception:    "Recepção",
	StageTriage:       "Triagem",
	StageWaiting:      "Espera",
	StageConsultation: "Consulta",
	StageMedication:   "Medicação",
	StageDischarge:    "Alta",
}

// Index returns the position of s in the pathway, or -1.
func (s Stage) Index() int {
	return slices.Index(Stages, s)
}

func (s Stage) IsValid() bool {
	return s.Index() >= 0
}

func (s Stage) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsCompleted reports whether stage is marked done.
func (p *Patient) IsCompleted(stage Stage) bool {
	return slices.Contains(p.CompletedSteps, stage)
}

// ToggleStage flips the completion mark of stage and moves CurrentStep.
//
// Marking the current stage done advances to the next stage in pathway order,
// whether or not that one is already marked. Unmarking the current stage
// walks back to the nearest earlier stage that is not marked; if there is
// none, CurrentStep stays put. Toggling any other stage only changes the mark.
// Toggling on then off is therefore not an identity on CurrentStep.
func (p *Patient) ToggleStage(stage Stage) error {
	idx := stage.Index()
	if idx < 0 {
		return ErrInvalidStage
	}

	if p.IsCompleted(stage) {
		p.CompletedSteps = slices.DeleteFunc(slices.Clone(p.CompletedSteps), func(s Stage) bool {
			return s == stage
		})
		if stage == p.CurrentStep {
			for i := idx - 1; i >= 0; i-- {
				if !p.IsCompleted(Stages[i]) {
					p.CurrentStep = Stages[i]
					break
				}
			}
		}
		return nil
	}

	p.CompletedSteps = append(slices.Clone(p.CompletedSteps), stage)
	if stage == p.CurrentStep && idx < len(Stages)-1 {
		p.CurrentStep = Stages[idx+1]
	}
	return nil
}

// StageProgress is one row of the pathway display.
type StageProgress struct {
	Stage     Stage  `json:"stage"`
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
	Current   bool   `json:"current"`
}

func (p *Patient) Progress() []StageProgress {
	out := make([]StageProgress, 0, len(Stages))
	for _, s := range Stages {
		out = append(out, StageProgress{
			Stage:     s,
			Label:     s.Label(),
			Completed: p.IsCompleted(s),
			Current:   s == p.CurrentStep,
		})
	}
	return out
}
