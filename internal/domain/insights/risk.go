package insights

import (
	"strings"
)

// MaxRecommendations caps the recommendations of any risk assessment.
const MaxRecommendations = 3

// ScoreVitals is the rule-based assessment used when no model is configured.
// Points: bradycardia 15, tachycardia 20; hypertensive crisis 40,
// hypertension 25, hypotension 30 (first blood pressure band wins); severe
// hypoxemia 35, mild hypoxemia 15; age over 65 adds 10. The total is capped
// at 100.
func ScoreVitals(v Vitals) RiskAssessment {
	score := 0
	var issues, recs []string

	switch {
	case v.HeartRate < 60:
		score += 15
		issues = append(issues, "bradycardia")
		recs = append(recs, "Monitor heart rate closely")
	case v.HeartRate > 100:
		score += 20
		issues = append(issues, "tachycardia")
		recs = append(recs, "Evaluate causes of elevated heart rate")
	}

	sys, dia := v.BloodPressureSystolic, v.BloodPressureDiastolic
	switch {
	case sys >= 180 || dia >= 120:
		score += 40
		issues = append(issues, "hypertensive crisis")
		recs = append(recs, "Immediate blood pressure management required")
	case sys >= 140 || dia >= 90:
		score += 25
		issues = append(issues, "hypertension")
		recs = append(recs, "Consider antihypertensive therapy")
	case sys < 90:
		score += 30
		issues = append(issues, "hypotension")
		recs = append(recs, "Evaluate for dehydration or other causes")
	}

	switch {
	case v.OxygenLevel < 90:
		score += 35
		issues = append(issues, "severe hypoxemia")
		recs = append(recs, "Supplemental oxygen may be needed")
	case v.OxygenLevel < 95:
		score += 15
		issues = append(issues, "mild hypoxemia")
		recs = append(recs, "Monitor oxygen levels")
	}

	if v.Age > 65 {
		score += 10
	}
	if score > 100 {
		score = 100
	}

	if len(issues) == 0 {
		return RiskAssessment{
			Level:           riskLevel(score),
			Score:           score,
			Explanation:     "All vital signs are within normal ranges.",
			Recommendations: []string{"Continue routine monitoring", "Maintain healthy lifestyle"},
		}
	}

	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return RiskAssessment{
		Level:           riskLevel(score),
		Score:           score,
		Explanation:     "Assessment indicates " + strings.Join(issues, ", ") + " requiring attention.",
		Recommendations: recs,
	}
}

func riskLevel(score int) string {
	switch {
	case score >= 50:
		return LevelHigh
	case score >= 25:
		return LevelMedium
	default:
		return LevelLow
	}
}
