package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func normal() Vitals {
	return Vitals{Age: 40, HeartRate: 75, BloodPressureSystolic: 118, BloodPressureDiastolic: 76, OxygenLevel: 98}
}

func TestScoreVitals_HeartRateBands(t *testing.T) {
	for hr := 60.0; hr <= 100; hr++ {
		v := normal()
		v.HeartRate = hr
		assert.Equal(t, 0, ScoreVitals(v).Score, "heart rate %v", hr)
	}

	tests := []struct {
		hr    float64
		score int
		issue string
	}{
		{59, 15, "bradycardia"},
		{101, 20, "tachycardia"},
	}
	for _, tt := range tests {
		v := normal()
		v.HeartRate = tt.hr
		got := ScoreVitals(v)
		assert.Equal(t, tt.score, got.Score, "heart rate %v", tt.hr)
		assert.Contains(t, got.Explanation, tt.issue)
	}
}

func TestScoreVitals_BloodPressureFirstMatchWins(t *testing.T) {
	tests := []struct {
		name     string
		sys, dia float64
		score    int
		issue    string
	}{
		{"systolic crisis", 185, 70, 40, "hypertensive crisis"},
		{"diastolic crisis", 120, 125, 40, "hypertensive crisis"},
		{"systolic stage", 145, 70, 25, "hypertension"},
		{"diastolic stage", 130, 92, 25, "hypertension"},
		{"hypotension", 85, 55, 30, "hypotension"},
		{"crisis beats stage", 182, 95, 40, "hypertensive crisis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := normal()
			v.BloodPressureSystolic, v.BloodPressureDiastolic = tt.sys, tt.dia
			got := ScoreVitals(v)
			assert.Equal(t, tt.score, got.Score)
			assert.Contains(t, got.Explanation, tt.issue)
		})
	}
}

func TestScoreVitals_OxygenBands(t *testing.T) {
	tests := []struct {
		o2    float64
		score int
	}{
		{89, 35},
		{94, 15},
		{95, 0},
	}
	for _, tt := range tests {
		v := normal()
		v.OxygenLevel = tt.o2
		assert.Equal(t, tt.score, ScoreVitals(v).Score, "oxygen %v", tt.o2)
	}
}

func TestScoreVitals_AgeAddsFlatTen(t *testing.T) {
	v := normal()
	v.Age = 66
	got := ScoreVitals(v)
	assert.Equal(t, 10, got.Score)
	assert.Equal(t, LevelLow, got.Level)
	// age alone is not an issue
	assert.Equal(t, "All vital signs are within normal ranges.", got.Explanation)

	v.Age = 65
	assert.Equal(t, 0, ScoreVitals(v).Score)
}

func TestScoreVitals_ClampedHighRisk(t *testing.T) {
	got := ScoreVitals(Vitals{Age: 70, HeartRate: 105, BloodPressureSystolic: 182, BloodPressureDiastolic: 95, OxygenLevel: 88})

	assert.Equal(t, 100, got.Score)
	assert.Equal(t, LevelHigh, got.Level)
	assert.Equal(t, "Assessment indicates tachycardia, hypertensive crisis, severe hypoxemia requiring attention.", got.Explanation)
	assert.Equal(t, []string{
		"Evaluate causes of elevated heart rate",
		"Immediate blood pressure management required",
		"Supplemental oxygen may be needed",
	}, got.Recommendations)
}

func TestScoreVitals_AllNormal(t *testing.T) {
	got := ScoreVitals(normal())

	assert.Equal(t, 0, got.Score)
	assert.Equal(t, LevelLow, got.Level)
	assert.Equal(t, "All vital signs are within normal ranges.", got.Explanation)
	assert.Equal(t, []string{"Continue routine monitoring", "Maintain healthy lifestyle"}, got.Recommendations)
}

func TestScoreVitals_Levels(t *testing.T) {
	tests := []struct {
		name  string
		v     Vitals
		score int
		level string
	}{
		{"mild hypoxemia only", Vitals{Age: 30, HeartRate: 70, BloodPressureSystolic: 120, BloodPressureDiastolic: 80, OxygenLevel: 93}, 15, LevelLow},
		{"hypertension", Vitals{Age: 30, HeartRate: 70, BloodPressureSystolic: 150, BloodPressureDiastolic: 80, OxygenLevel: 98}, 25, LevelMedium},
		{"hypertension and tachycardia", Vitals{Age: 30, HeartRate: 110, BloodPressureSystolic: 150, BloodPressureDiastolic: 80, OxygenLevel: 98}, 45, LevelMedium},
		{"crisis and age", Vitals{Age: 80, HeartRate: 70, BloodPressureSystolic: 190, BloodPressureDiastolic: 80, OxygenLevel: 98}, 50, LevelHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreVitals(tt.v)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, tt.level, got.Level)
		})
	}
}

func TestScoreVitals_Deterministic(t *testing.T) {
	v := Vitals{Age: 50, HeartRate: 55, BloodPressureSystolic: 85, BloodPressureDiastolic: 50, OxygenLevel: 92}
	first := ScoreVitals(v)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ScoreVitals(v))
	}
	assert.Equal(t, 60, first.Score)
	assert.Len(t, first.Recommendations, 3)
}
