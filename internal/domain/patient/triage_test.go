package patient

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   Intake
		want Priority
	}{
		{"defaults", Intake{}, PriorityGreen},
		{"emergency signs win over everything", Intake{HasEmergencySigns: true, PainLevel: "0", Temperature: "36"}, PriorityRed},
		{"emergency signs with normal vitals", Intake{HasEmergencySigns: true, OxygenSaturation: "99", HeartRate: "70"}, PriorityRed},
		{"high fever", Intake{Temperature: "40"}, PriorityOrange},
		{"hypothermia", Intake{Temperature: "34"}, PriorityOrange},
		{"temperature on upper boundary", Intake{Temperature: "39.5"}, PriorityGreen},
		{"temperature on lower boundary", Intake{Temperature: "35"}, PriorityGreen},
		{"hypertensive crisis", Intake{BloodPressure: "190/110"}, PriorityOrange},
		{"hypotension", Intake{BloodPressure: "85/60"}, PriorityOrange},
		{"systolic 180 is not high", Intake{BloodPressure: "180/90"}, PriorityGreen},
		{"severe pain", Intake{PainLevel: "9"}, PriorityOrange},
		{"pain 8", Intake{PainLevel: "8"}, PriorityOrange},
		{"moderate pain", Intake{PainLevel: "6"}, PriorityYellow},
		{"mild pain", Intake{PainLevel: "3"}, PriorityGreen},
		{"low oxygen", Intake{OxygenSaturation: "90"}, PriorityOrange},
		{"borderline oxygen", Intake{OxygenSaturation: "93"}, PriorityYellow},
		{"oxygen 95 is normal", Intake{OxygenSaturation: "95"}, PriorityGreen},
		{"tachycardia", Intake{HeartRate: "130"}, PriorityYellow},
		{"bradycardia", Intake{HeartRate: "45"}, PriorityYellow},
		{"oxygen reached when pain below 3", Intake{PainLevel: "2", OxygenSaturation: "90"}, PriorityOrange},
		{"pain settles before oxygen", Intake{PainLevel: "3", OxygenSaturation: "85"}, PriorityGreen},
		{"pain settles before heart rate", Intake{PainLevel: "5", HeartRate: "150"}, PriorityYellow},
		{"temperature checked before pain", Intake{Temperature: "40", PainLevel: "4"}, PriorityOrange},
		{"pressure checked before pain", Intake{BloodPressure: "80/50", PainLevel: "5"}, PriorityOrange},
		{"non numeric values use defaults", Intake{Temperature: "febre", PainLevel: "muita", OxygenSaturation: "n/a", HeartRate: "?"}, PriorityGreen},
		{"leading number with unit", Intake{Temperature: "39.8°C"}, PriorityOrange},
		{"fractional pain truncates", Intake{PainLevel: "7.9"}, PriorityYellow},
		{"whitespace before number", Intake{HeartRate: "  125 bpm"}, PriorityYellow},
		{"pressure without diastolic", Intake{BloodPressure: "200"}, PriorityOrange},
		{"malformed pressure uses default", Intake{BloodPressure: "/80"}, PriorityGreen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

func TestClassify_NeverBlue(t *testing.T) {
	inputs := []Intake{
		{},
		{PainLevel: "0", OxygenSaturation: "100", HeartRate: "60", Temperature: "36.6", BloodPressure: "110/70"},
		{PainLevel: "-5"},
	}
	for _, in := range inputs {
		assert.NotEqual(t, PriorityBlue, Classify(in))
	}
}

func TestLeadingNumbers(t *testing.T) {
	assert.Equal(t, 38.2, leadingFloat("38.2", 0))
	assert.Equal(t, 38.0, leadingFloat("38.", 0))
	assert.Equal(t, 0.5, leadingFloat(".5", 1))
	assert.Equal(t, -2.0, leadingFloat("-2abc", 0))
	assert.Equal(t, 36.5, leadingFloat("", 36.5))
	assert.Equal(t, 36.5, leadingFloat("-", 36.5))

	assert.Equal(t, 150, leadingInt("150", 0))
	assert.Equal(t, 7, leadingInt("7.9", 0))
	assert.Equal(t, 70, leadingInt("abc", 70))
	assert.Equal(t, math.MaxInt, leadingInt("99999999999999999999", 70))
	assert.Equal(t, math.MinInt, leadingInt("-99999999999999999999", 70))
}

func TestClassify_HugeReadingsSaturate(t *testing.T) {
	huge := "99999999999999999999"

	assert.Equal(t, PriorityOrange, Classify(Intake{PainLevel: huge}))
	assert.Equal(t, PriorityYellow, Classify(Intake{HeartRate: huge}))
	assert.Equal(t, PriorityOrange, Classify(Intake{BloodPressure: huge + "/80"}))
}
