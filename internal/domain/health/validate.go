package health

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxSymptomLength = 500
	maxNotesLength   = 2000
	maxShortField    = 100
)

// ValidationError is reported to the caller as a 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// SeverityFromScore maps the 1-10 slider: up to 3 mild, up to 6 moderate,
// otherwise severe.
func SeverityFromScore(score int) (string, error) {
	switch {
	case score < 1 || score > 10:
		return "", invalid("severity_score must be between 1 and 10")
	case score <= 3:
		return SeverityMild, nil
	case score <= 6:
		return SeverityModerate, nil
	default:
		return SeveritySevere, nil
	}
}

// JoinSymptoms combines the selected symptoms with the free-text entry,
// dropping blanks and repeats.
func JoinSymptoms(selected []string, custom string) string {
	seen := make(map[string]bool, len(selected)+1)
	out := make([]string, 0, len(selected)+1)
	for _, s := range append(append([]string{}, selected...), custom) {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return strings.Join(out, ", ")
}

func trimOptional(v *string, field string, max int) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(s) > max {
		return nil, invalid("%s must be at most %d characters", field, max)
	}
	return &s, nil
}

// NormalizeSymptom validates in and builds the row to insert.
func NormalizeSymptom(in SymptomInput) (*SymptomLog, error) {
	symptom := strings.TrimSpace(in.SymptomType)
	if symptom == "" {
		symptom = JoinSymptoms(in.Symptoms, in.Custom)
	}
	if symptom == "" {
		return nil, invalid("Please select or enter at least one symptom.")
	}
	if utf8.RuneCountInString(symptom) > maxSymptomLength {
		return nil, invalid("symptom_type must be at most %d characters", maxSymptomLength)
	}

	severity := strings.ToLower(strings.TrimSpace(in.Severity))
	switch {
	case severity != "":
		if !validSeverities[severity] {
			return nil, invalid("invalid severity: %s", in.Severity)
		}
	case in.SeverityScore != nil:
		var err error
		if severity, err = SeverityFromScore(*in.SeverityScore); err != nil {
			return nil, err
		}
	default:
		return nil, invalid("severity or severity_score is required")
	}

	log := &SymptomLog{SymptomType: symptom, Severity: severity}
	var err error
	if log.Duration, err = trimOptional(in.Duration, "duration", maxShortField); err != nil {
		return nil, err
	}
	if log.BodyLocation, err = trimOptional(in.BodyLocation, "body_location", maxShortField); err != nil {
		return nil, err
	}
	if log.Notes, err = trimOptional(in.Notes, "notes", maxNotesLength); err != nil {
		return nil, err
	}
	return log, nil
}

type intRange struct {
	field    string
	min, max int
}

type floatRange struct {
	field    string
	min, max float64
}

var (
	heartRateRange   = intRange{"heart_rate", 20, 250}
	systolicRange    = intRange{"systolic_bp", 50, 260}
	diastolicRange   = intRange{"diastolic_bp", 30, 180}
	oxygenRange      = intRange{"oxygen_saturation", 50, 100}
	sleepRange       = floatRange{"sleep_hours", 0, 24}
	temperatureRange = floatRange{"temperature", 90, 110} // Fahrenheit
)

func (r intRange) check(v *int) error {
	if v != nil && (*v < r.min || *v > r.max) {
		return invalid("%s must be between %d and %d", r.field, r.min, r.max)
	}
	return nil
}

func (r floatRange) check(v *float64) error {
	if v != nil && (*v < r.min || *v > r.max) {
		return invalid("%s must be between %g and %g", r.field, r.min, r.max)
	}
	return nil
}

// ValidateVitals requires at least one measurement and checks each against
// its physiologic range.
func ValidateVitals(v *HealthVitals) error {
	if v.HeartRate == nil && v.SystolicBP == nil && v.DiastolicBP == nil &&
		v.SleepHours == nil && v.OxygenSaturation == nil && v.Temperature == nil {
		return invalid("at least one measurement is required")
	}
	for _, err := range []error{
		heartRateRange.check(v.HeartRate),
		systolicRange.check(v.SystolicBP),
		diastolicRange.check(v.DiastolicBP),
		oxygenRange.check(v.OxygenSaturation),
		sleepRange.check(v.SleepHours),
		temperatureRange.check(v.Temperature),
	} {
		if err != nil {
			return err
		}
	}
	if v.SystolicBP != nil && v.DiastolicBP != nil && *v.DiastolicBP >= *v.SystolicBP {
		return invalid("diastolic_bp must be lower than systolic_bp")
	}
	notes, err := trimOptional(v.Notes, "notes", maxNotesLength)
	if err != nil {
		return err
	}
	v.Notes = notes
	return nil
}
