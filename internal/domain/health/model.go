package health

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("record not found")

const (
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

var validSeverities = map[string]bool{
	SeverityMild: true, SeverityModerate: true, SeveritySevere: true,
}

// SymptomLog maps to the symptom_logs table.
type SymptomLog struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	SymptomType  string    `db:"symptom_type" json:"symptom_type"`
	Severity     string    `db:"severity" json:"severity"`
	Duration     *string   `db:"duration" json:"duration"`
	BodyLocation *string   `db:"body_location" json:"body_location"`
	Notes        *string   `db:"notes" json:"notes"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// SymptomInput accepts either a single symptom_type or a list of selected
// symptoms plus a free-text entry, and either a severity label or a 1-10
// score.
type SymptomInput struct {
	SymptomType   string   `json:"symptom_type"`
	Symptoms      []string `json:"symptoms"`
	Custom        string   `json:"custom"`
	Severity      string   `json:"severity"`
	SeverityScore *int     `json:"severity_score"`
	Duration      *string  `json:"duration"`
	BodyLocation  *string  `json:"body_location"`
	Notes         *string  `json:"notes"`
}

// BMIRecord maps to the bmi_records table. Height and weight are metric.
type BMIRecord struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	HeightCM  float64   `db:"height_cm" json:"height_cm"`
	WeightKG  float64   `db:"weight_kg" json:"weight_kg"`
	BMIValue  float64   `db:"bmi_value" json:"bmi_value"`
	Category  string    `db:"category" json:"category"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HealthVitals maps to the health_vitals table.
type HealthVitals struct {
	ID               uuid.UUID `db:"id" json:"id"`
	PatientID        uuid.UUID `db:"patient_id" json:"patient_id"`
	HeartRate        *int      `db:"heart_rate" json:"heart_rate"`
	SystolicBP       *int      `db:"systolic_bp" json:"systolic_bp"`
	DiastolicBP      *int      `db:"diastolic_bp" json:"diastolic_bp"`
	SleepHours       *float64  `db:"sleep_hours" json:"sleep_hours"`
	OxygenSaturation *int      `db:"oxygen_saturation" json:"oxygen_saturation"`
	Temperature      *float64  `db:"temperature" json:"temperature"`
	Notes            *string   `db:"notes" json:"notes"`
	RecordedAt       time.Time `db:"recorded_at" json:"recorded_at"`
}

// Dashboard is the patient's aggregated view. Fetches that fail are
// rendered empty.
type Dashboard struct {
	Symptoms      []*SymptomLog   `json:"symptoms"`
	BMIHistory    []*BMIRecord    `json:"bmi_history"`
	LatestVitals  *HealthVitals   `json:"latest_vitals"`
	VitalsHistory []*HealthVitals `json:"vitals_history"`
}
