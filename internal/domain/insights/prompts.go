package insights

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vitalia/portal/internal/platform/llm"
)

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}

var riskStrategy = Strategy[Vitals, RiskAssessment]{
	Name:     "risk",
	Params:   llm.Params{Temperature: 0.3, MaxTokens: 300},
	Prompt:   riskPrompt,
	Fallback: ScoreVitals,
	Validate: validateRisk,
}

func riskPrompt(v Vitals) string {
	var b strings.Builder
	b.WriteString("You are a medical AI assistant performing risk assessment based on vital signs.\n\n")
	b.WriteString("Patient Vitals:\n")
	fmt.Fprintf(&b, "- Age: %d years\n", v.Age)
	fmt.Fprintf(&b, "- Heart Rate: %s bpm\n", num(v.HeartRate))
	fmt.Fprintf(&b, "- Blood Pressure: %s/%s mmHg\n", num(v.BloodPressureSystolic), num(v.BloodPressureDiastolic))
	fmt.Fprintf(&b, "- Oxygen Saturation: %s%%\n", num(v.OxygenLevel))
	if v.Temperature != nil && *v.Temperature != 0 {
		fmt.Fprintf(&b, "- Temperature: %s°F\n", num(*v.Temperature))
	}
	b.WriteString(`
Analyze these vitals and return a JSON object with:
{
  "level": "low" | "medium" | "high",
  "score": <number 0-100, where 100 is highest risk>,
  "explanation": "<one sentence explaining the risk assessment>",
  "recommendations": ["<array of 2-3 specific recommendations>"]
}

Consider standard medical thresholds:
- Normal HR: 60-100 bpm
- Normal BP: 90-120 systolic, 60-80 diastolic
- Normal O2: 95-100%
- Fever: >100.4°F

Return ONLY valid JSON, no markdown or explanation.`)
	return b.String()
}

// UnmarshalJSON accepts fractional scores from the model and rounds them.
func (r *RiskAssessment) UnmarshalJSON(data []byte) error {
	var raw struct {
		Level           string   `json:"level"`
		Score           float64  `json:"score"`
		Explanation     string   `json:"explanation"`
		Recommendations []string `json:"recommendations"`
	}
	if err := llm.DecodeJSON(string(data), &raw); err != nil {
		return err
	}
	*r = RiskAssessment{
		Level:           strings.ToLower(strings.TrimSpace(raw.Level)),
		Score:           int(math.Round(raw.Score)),
		Explanation:     raw.Explanation,
		Recommendations: raw.Recommendations,
	}
	return nil
}

func validateRisk(r *RiskAssessment) error {
	if !validLevels[r.Level] {
		return fmt.Errorf("unknown risk level %q", r.Level)
	}
	if r.Score < 0 || r.Score > 100 {
		return fmt.Errorf("risk score %d out of range", r.Score)
	}
	if strings.TrimSpace(r.Explanation) == "" {
		return errors.New("missing explanation")
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
	if len(r.Recommendations) > MaxRecommendations {
		r.Recommendations = r.Recommendations[:MaxRecommendations]
	}
	return nil
}

var symptomKeywords = []string{"pain", "ache", "fever", "cough", "fatigue", "nausea", "headache", "dizziness"}

var extractionStrategy = Strategy[string, ClinicalExtraction]{
	Name:     "extraction",
	Params:   llm.Params{Temperature: 0.3, MaxTokens: 400},
	Prompt:   extractionPrompt,
	Fallback: demoExtraction,
	Decode:   decodeExtraction,
	Validate: validateExtraction,
}

func extractionPrompt(notes string) string {
	return `You are a medical AI assistant. Extract structured clinical data from the following doctor's notes.

Doctor's Notes:
"` + notes + `"

Extract and return a JSON object with these exact keys:
{
  "symptoms": ["array of identified symptoms"],
  "diagnosis": "primary diagnosis or 'Pending evaluation' if unclear",
  "treatment_plan": ["array of treatment steps/medications"],
  "follow_up": "recommended follow-up timeframe"
}

Return ONLY valid JSON, no markdown or explanation.`
}

// matchKeywords returns the keywords contained in text, in keyword order.
func matchKeywords(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			out = append(out, k)
		}
	}
	return out
}

func demoExtraction(notes string) ClinicalExtraction {
	return ClinicalExtraction{
		Symptoms:      matchKeywords(notes, symptomKeywords),
		Diagnosis:     "Requires clinical evaluation - AI extraction demo",
		TreatmentPlan: []string{"Continue monitoring symptoms", "Follow up in 1 week if symptoms persist"},
		FollowUp:      "1 week",
	}
}

// decodeExtraction requires every key of the extraction contract to be
// present and non-null; empty arrays and a blank diagnosis are allowed.
func decodeExtraction(content string, e *ClinicalExtraction) error {
	var raw *struct {
		Symptoms      *[]string `json:"symptoms"`
		Diagnosis     *string   `json:"diagnosis"`
		TreatmentPlan *[]string `json:"treatment_plan"`
		FollowUp      *string   `json:"follow_up"`
	}
	if err := llm.DecodeJSON(content, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("model returned null")
	}
	var missing []string
	if raw.Symptoms == nil {
		missing = append(missing, "symptoms")
	}
	if raw.Diagnosis == nil {
		missing = append(missing, "diagnosis")
	}
	if raw.TreatmentPlan == nil {
		missing = append(missing, "treatment_plan")
	}
	if raw.FollowUp == nil {
		missing = append(missing, "follow_up")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	*e = ClinicalExtraction{
		Symptoms:      *raw.Symptoms,
		Diagnosis:     *raw.Diagnosis,
		TreatmentPlan: *raw.TreatmentPlan,
		FollowUp:      *raw.FollowUp,
	}
	return nil
}

func validateExtraction(e *ClinicalExtraction) error {
	if strings.TrimSpace(e.Diagnosis) == "" {
		e.Diagnosis = "Pending evaluation"
	}
	return nil
}

var rundownStrategy = Strategy[PatientSnapshot, Rundown]{
	Name:     "rundown",
	Params:   llm.Params{Temperature: 0.7, MaxTokens: 300},
	Prompt:   rundownPrompt,
	Fallback: demoRundown,
	Validate: validateRundown,
}

func rundownPrompt(p PatientSnapshot) string {
	var b strings.Builder
	b.WriteString("You are a medical AI assistant helping doctors quickly understand a patient's status.\n\n")
	b.WriteString("Patient Information:\n")
	fmt.Fprintf(&b, "- Name: %s\n", p.Name)
	fmt.Fprintf(&b, "- Age: %d\n", p.Age)
	fmt.Fprintf(&b, "- Recent Symptoms: %s\n", joinOr(p.RecentSymptoms, "None reported"))
	fmt.Fprintf(&b, "- Current Vitals: HR %s bpm, BP %s, Temp %s°F, O2 %s%%\n",
		num(p.Vitals.HeartRate), p.Vitals.BloodPressure, num(p.Vitals.Temperature), num(p.Vitals.OxygenLevel))
	fmt.Fprintf(&b, "- Medical History: %s\n", joinOr(p.MedicalHistory, "None recorded"))
	fmt.Fprintf(&b, "- Current Medications: %s\n", joinOr(p.CurrentMedications, "None"))
	b.WriteString(`
Generate a concise 3-bullet point briefing for the doctor. Each bullet should be 1-2 sentences max. Focus on:
1. Patient overview and chief concern
2. Vital signs assessment
3. Recommended next steps

Return ONLY a JSON array with exactly 3 strings, no markdown or explanation.`)
	return b.String()
}

func demoRundown(p PatientSnapshot) Rundown {
	state := "normal"
	if p.Vitals.HeartRate > 100 {
		state = "elevated"
	}
	next := "preventive care options"
	if len(p.CurrentMedications) > 0 {
		next = "current medication regimen"
	}
	return Rundown{
		fmt.Sprintf("Patient %s is a %d-year-old with %s.", p.Name, p.Age, joinOr(p.RecentSymptoms, "no recently reported symptoms")),
		fmt.Sprintf("Current vitals show HR %s bpm, BP %s, which are within %s ranges.", num(p.Vitals.HeartRate), p.Vitals.BloodPressure, state),
		fmt.Sprintf("Recommend reviewing %s and scheduling follow-up as needed.", next),
	}
}

func validateRundown(r *Rundown) error {
	if len(*r) != 3 {
		return fmt.Errorf("expected 3 bullets, got %d", len(*r))
	}
	for i, s := range *r {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("bullet %d is empty", i+1)
		}
	}
	return nil
}
