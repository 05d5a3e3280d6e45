package insights

type Source string

const (
	SourceAI   Source = "ai"
	SourceDemo Source = "demo"
)

const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

var validLevels = map[string]bool{LevelLow: true, LevelMedium: true, LevelHigh: true}

// Vitals is one reading submitted for risk analysis.
type Vitals struct {
	Age                    int      `json:"age"`
	HeartRate              float64  `json:"heartRate"`
	BloodPressureSystolic  float64  `json:"bloodPressureSystolic"`
	BloodPressureDiastolic float64  `json:"bloodPressureDiastolic"`
	OxygenLevel            float64  `json:"oxygenLevel"`
	Temperature            *float64 `json:"temperature,omitempty"`
}

type RiskAssessment struct {
	Level           string   `json:"level"`
	Score           int      `json:"score"`
	Explanation     string   `json:"explanation"`
	Recommendations []string `json:"recommendations"`
}

type ClinicalExtraction struct {
	Symptoms      []string `json:"symptoms"`
	Diagnosis     string   `json:"diagnosis"`
	TreatmentPlan []string `json:"treatment_plan"`
	FollowUp      string   `json:"follow_up"`
}

type RundownVitals struct {
	HeartRate     float64 `json:"heartRate"`
	BloodPressure string  `json:"bloodPressure"`
	Temperature   float64 `json:"temperature"`
	OxygenLevel   float64 `json:"oxygenLevel"`
}

// PatientSnapshot is what a doctor's workspace sends for a briefing.
type PatientSnapshot struct {
	Name               string        `json:"name"`
	Age                int           `json:"age"`
	RecentSymptoms     []string      `json:"recentSymptoms"`
	Vitals             RundownVitals `json:"vitals"`
	MedicalHistory     []string      `json:"medicalHistory"`
	CurrentMedications []string      `json:"currentMedications"`
}

// Rundown is always exactly three bullets: overview, vitals, next steps.
type Rundown []string
