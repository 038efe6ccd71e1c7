package patient

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Intake is the classifier input as captured on the registration form.
// Vital signs are free text; see Classify for how they are read.
type Intake struct {
	HasEmergencySigns bool   `json:"has_emergency_signs"`
	Temperature       string `json:"temperature"`
	BloodPressure     string `json:"blood_pressure"`
	HeartRate         string `json:"heart_rate"`
	OxygenSaturation  string `json:"oxygen_saturation"`
	PainLevel         string `json:"pain_level"`
}

const (
	defaultTemperature      = 36.5
	defaultSystolic         = 120
	defaultPainLevel        = 0
	defaultOxygenSaturation = 98
	defaultHeartRate        = 70
)

// Classify assigns the urgency level for an intake.
//
// Rules run in a fixed order, each one an early return: emergency signs,
// temperature, systolic pressure, pain, oxygen saturation, heart rate. The
// order is not severity-sorted, so a pain score of 3-7 settles the level
// before oxygen or heart rate are looked at. Azul is never produced here;
// it is only reachable through a staff override.
//
// Numeric fields are read by their leading number ("39.8°C" is 39.8, "150/90"
// has systolic 150). Missing or non-numeric values use the resting defaults.
func Classify(in Intake) Priority {
	if in.HasEmergencySigns {
		return PriorityRed
	}

	temp := leadingFloat(in.Temperature, defaultTemperature)
	if temp > 39.5 || temp < 35 {
		return PriorityOrange
	}

	systolic := leadingInt(systolicPart(in.BloodPressure), defaultSystolic)
	if systolic > 180 || systolic < 90 {
		return PriorityOrange
	}

	pain := leadingInt(in.PainLevel, defaultPainLevel)
	switch {
	case pain >= 8:
		return PriorityOrange
	case pain >= 5:
		return PriorityYellow
	case pain >= 3:
		return PriorityGreen
	}

	o2 := leadingInt(in.OxygenSaturation, defaultOxygenSaturation)
	switch {
	case o2 < 92:
		return PriorityOrange
	case o2 < 95:
		return PriorityYellow
	}

	hr := leadingInt(in.HeartRate, defaultHeartRate)
	if hr > 120 || hr < 50 {
		return PriorityYellow
	}

	return PriorityGreen
}

func systolicPart(bp string) string {
	if bp == "" {
		return ""
	}
	systolic, _, _ := strings.Cut(bp, "/")
	return systolic
}

// numericPrefix returns the longest leading "[+-]digits[.digits]" run of s
// after leading whitespace, and how many digits it holds.
func numericPrefix(s string, allowFraction bool) (string, int) {
	s = strings.TrimLeft(s, " \t\r\n")
	end, digits := 0, 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	for end < len(s) && isDigit(s[end]) {
		end++
		digits++
	}
	if allowFraction && end < len(s) && s[end] == '.' {
		frac := end + 1
		for frac < len(s) && isDigit(s[frac]) {
			frac++
			digits++
		}
		if frac > end+1 {
			end = frac
		}
	}
	return s[:end], digits
}

func leadingFloat(s string, fallback float64) float64 {
	prefix, digits := numericPrefix(s, true)
	if digits == 0 {
		return fallback
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return fallback
	}
	return v
}

func leadingInt(s string, fallback int) int {
	prefix, digits := numericPrefix(s, false)
	if digits == 0 {
		return fallback
	}
	v, err := strconv.Atoi(prefix)
	if errors.Is(err, strconv.ErrRange) {
		// out-of-range readings keep their sign and saturate
		if strings.HasPrefix(prefix, "-") {
			return math.MinInt
		}
		return math.MaxInt
	}
	if err != nil {
		return fallback
	}
	return v
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
