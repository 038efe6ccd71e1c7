package patient

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"regexp"
	"slices"
	"time"
)

// Priority is the Manchester-style urgency level. The string values are part
// of the stored data contract.
type Priority string

const (
	PriorityRed    Priority = "Vermelho"
	PriorityOrange Priority = "Laranja"
	PriorityYellow Priority = "Amarelo"
	PriorityGreen  Priority = "Verde"
	PriorityBlue   Priority = "Azul"
)

// Priorities lists every level from most to least urgent.
var Priorities = []Priority{PriorityRed, PriorityOrange, PriorityYellow, PriorityGreen, PriorityBlue}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityRed, PriorityOrange, PriorityYellow, PriorityGreen, PriorityBlue:
		return true
	}
	return false
}

// Rank orders priorities by urgency: 0 is Vermelho, 4 is Azul.
// Unknown values sort after Azul.
func (p Priority) Rank() int {
	for i, candidate := range Priorities {
		if candidate == p {
			return i
		}
	}
	return len(Priorities)
}

// ReevaluationRequest is a patient-initiated ask to be reassessed before
// their turn arrives.
type ReevaluationRequest struct {
	Requested bool      `json:"requested"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
	Seen      bool      `json:"seen"`
}

// Pending reports whether the request still awaits staff acknowledgement.
func (r *ReevaluationRequest) Pending() bool {
	return r != nil && r.Requested && !r.Seen
}

type Patient struct {
	ID string `gorm:"column:id;type:varchar(7);primaryKey" json:"id"`

	Name     string `gorm:"column:name;type:varchar(200);not null" json:"name"`
	Age      int    `gorm:"column:age;not null" json:"age"`
	Gender   string `gorm:"column:gender;type:varchar(30);not null" json:"gender"`
	Symptoms string `gorm:"column:symptoms;type:text;not null" json:"symptoms"`

	Priority     Priority  `gorm:"column:priority;type:varchar(10);not null;index" json:"priority"`
	RegisteredAt time.Time `gorm:"column:registered_at;not null;index" json:"registered_at"`
	// WaitTime is derived at registration and kept as-is when priority is overridden.
	WaitTime string `gorm:"column:wait_time;type:varchar(30)" json:"wait_time"`

	CurrentStep    Stage   `gorm:"column:current_step;type:varchar(20);not null;index" json:"current_step"`
	CompletedSteps []Stage `gorm:"column:completed_steps;type:jsonb;serializer:json" json:"completed_steps"`

	Temperature      string `gorm:"column:temperature;type:varchar(20)" json:"temperature,omitempty"`
	BloodPressure    string `gorm:"column:blood_pressure;type:varchar(20)" json:"blood_pressure,omitempty"`
	HeartRate        string `gorm:"column:heart_rate;type:varchar(20)" json:"heart_rate,omitempty"`
	OxygenSaturation string `gorm:"column:oxygen_saturation;type:varchar(20)" json:"oxygen_saturation,omitempty"`
	PainLevel        string `gorm:"column:pain_level;type:varchar(20)" json:"pain_level,omitempty"`
	Allergies        string `gorm:"column:allergies;type:text" json:"allergies,omitempty"`
	Medications      string `gorm:"column:medications;type:text" json:"medications,omitempty"`

	Reevaluation *ReevaluationRequest `gorm:"column:reevaluation;type:jsonb;serializer:json" json:"reevaluation_request,omitempty"`
}

func (Patient) TableName() string {
	return "triage.patients"
}

// ArchivedPatient is a discharged patient record. It is terminal and read-only.
type ArchivedPatient struct {
	Patient    `gorm:"embedded"`
	ArchivedAt time.Time `gorm:"column:archived_at;not null;index" json:"archived_at"`
}

func (ArchivedPatient) TableName() string {
	return "triage.archived_patients"
}

// Archive snapshots the patient as an archived record.
func (p *Patient) Archive(at time.Time) *ArchivedPatient {
	return &ArchivedPatient{Patient: *p.Clone(), ArchivedAt: at}
}

// Clone returns a deep copy so callers cannot alias repository state.
func (p *Patient) Clone() *Patient {
	c := *p
	if p.CompletedSteps != nil {
		c.CompletedSteps = append([]Stage(nil), p.CompletedSteps...)
	}
	if p.Reevaluation != nil {
		r := *p.Reevaluation
		c.Reevaluation = &r
	}
	return &c
}

var idPattern = regexp.MustCompile(`^PS\d{5}$`)

// NewID returns a lookup code: "PS" followed by five digits.
func NewID() string {
	return fmt.Sprintf("PS%d", 10000+rand.IntN(90000))
}

// ValidID reports whether id has the lookup code format.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

type RegisterPatientCommand struct {
	Name              string
	Age               int
	Gender            string
	Symptoms          string
	HasEmergencySigns bool
	Temperature       string
	BloodPressure     string
	HeartRate         string
	OxygenSaturation  string
	PainLevel         string
	Allergies         string
	Medications       string
}

func (c *RegisterPatientCommand) Intake() Intake {
	return Intake{
		HasEmergencySigns: c.HasEmergencySigns,
		Temperature:       c.Temperature,
		BloodPressure:     c.BloodPressure,
		HeartRate:         c.HeartRate,
		OxygenSaturation:  c.OxygenSaturation,
		PainLevel:         c.PainLevel,
	}
}

// New builds the initial record for a registration: classified, with the
// wait label derived and the care pathway started at reception.
func New(id string, cmd *RegisterPatientCommand, now time.Time) *Patient {
	priority := Classify(cmd.Intake())
	return &Patient{
		ID:               id,
		Name:             cmd.Name,
		Age:              cmd.Age,
		Gender:           cmd.Gender,
		Symptoms:         cmd.Symptoms,
		Priority:         priority,
		RegisteredAt:     now,
		WaitTime:         EstimateWait(priority),
		CurrentStep:      StageReception,
		CompletedSteps:   []Stage{StageReception},
		Temperature:      cmd.Temperature,
		BloodPressure:    cmd.BloodPressure,
		HeartRate:        cmd.HeartRate,
		OxygenSaturation: cmd.OxygenSaturation,
		PainLevel:        cmd.PainLevel,
		Allergies:        cmd.Allergies,
		Medications:      cmd.Medications,
	}
}

type UpdatePatientCommand struct {
	Name             *string
	Age              *int
	Gender           *string
	Symptoms         *string
	Priority         *Priority
	Temperature      *string
	BloodPressure    *string
	HeartRate        *string
	OxygenSaturation *string
	PainLevel        *string
	Allergies        *string
	Medications      *string
}

// Apply copies the set fields onto p. A priority override leaves WaitTime untouched.
func (p *Patient) Apply(cmd *UpdatePatientCommand) error {
	if cmd.Priority != nil && !cmd.Priority.IsValid() {
		return ErrInvalidPriority
	}

	setString(&p.Name, cmd.Name)
	setString(&p.Gender, cmd.Gender)
	setString(&p.Symptoms, cmd.Symptoms)
	setString(&p.Temperature, cmd.Temperature)
	setString(&p.BloodPressure, cmd.BloodPressure)
	setString(&p.HeartRate, cmd.HeartRate)
	setString(&p.OxygenSaturation, cmd.OxygenSaturation)
	setString(&p.PainLevel, cmd.PainLevel)
	setString(&p.Allergies, cmd.Allergies)
	setString(&p.Medications, cmd.Medications)
	if cmd.Age != nil {
		p.Age = *cmd.Age
	}
	if cmd.Priority != nil {
		p.Priority = *cmd.Priority
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// ListActiveQuery filters the active queue.
type ListActiveQuery struct {
	Priority          *Priority
	Stage             *Stage
	PendingReevaluate bool
	SortBy            string // "registered_at" (newest first) | "priority"
}

const (
	SortByRegisteredAt = "registered_at"
	SortByPriority     = "priority"
)

// Sort orders ps in place. By priority, most urgent first and, within a
// level, whoever has waited longest. Otherwise newest registration first.
func (q *ListActiveQuery) Sort(ps []*Patient) {
	if q.SortBy == SortByPriority {
		slices.SortStableFunc(ps, func(a, b *Patient) int {
			if c := cmp.Compare(a.Priority.Rank(), b.Priority.Rank()); c != 0 {
				return c
			}
			return a.RegisteredAt.Compare(b.RegisteredAt)
		})
		return
	}
	slices.SortStableFunc(ps, func(a, b *Patient) int {
		return b.RegisteredAt.Compare(a.RegisteredAt)
	})
}

// Matches reports whether p passes the query filters.
func (q *ListActiveQuery) Matches(p *Patient) bool {
	if q.Priority != nil && p.Priority != *q.Priority {
		return false
	}
	if q.Stage != nil && p.CurrentStep != *q.Stage {
		return false
	}
	if q.PendingReevaluate && !p.Reevaluation.Pending() {
		return false
	}
	return true
}
