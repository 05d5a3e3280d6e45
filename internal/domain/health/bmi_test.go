package health

import (
	"errors"
	"testing"
)

func TestComputeBMI_Metric(t *testing.T) {
	res, err := ComputeBMI(BMIInput{Height: 170, HeightUnit: "cm", Weight: 65, WeightUnit: "kg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BMI != 22.5 {
		t.Errorf("expected 22.5, got %v", res.BMI)
	}
	if res.Category != CategoryNormal {
		t.Errorf("expected normal, got %s", res.Category)
	}
	if res.Label != "Normal Weight" || res.Description == "" {
		t.Errorf("unexpected label/description: %q %q", res.Label, res.Description)
	}
}

func TestComputeBMI_Imperial(t *testing.T) {
	res, err := ComputeBMI(BMIInput{Height: 67, HeightUnit: "inches", Weight: 150, WeightUnit: "lbs"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BMI != 23.5 {
		t.Errorf("expected 23.5, got %v", res.BMI)
	}
	if res.HeightCM != 170.18 {
		t.Errorf("expected 170.18 cm, got %v", res.HeightCM)
	}
	if res.WeightKG != 68.04 {
		t.Errorf("expected 68.04 kg, got %v", res.WeightKG)
	}
}

func TestComputeBMI_DefaultUnits(t *testing.T) {
	res, err := ComputeBMI(BMIInput{Height: 180, Weight: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BMI != 30.9 || res.Category != CategoryObese {
		t.Errorf("expected 30.9 obese, got %v %s", res.BMI, res.Category)
	}
}

func TestComputeBMI_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   BMIInput
	}{
		{"zero height", BMIInput{Height: 0, Weight: 60}},
		{"negative weight", BMIInput{Height: 170, Weight: -1}},
		{"bad height unit", BMIInput{Height: 170, HeightUnit: "ft", Weight: 60}},
		{"bad weight unit", BMIInput{Height: 170, Weight: 60, WeightUnit: "stone"}},
		{"too short", BMIInput{Height: 10, Weight: 60}},
		{"too heavy", BMIInput{Height: 170, Weight: 900}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeBMI(tt.in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestBMICategory_Boundaries(t *testing.T) {
	tests := []struct {
		bmi  float64
		want string
	}{
		{16.0, CategoryUnderweight},
		{18.49, CategoryUnderweight},
		{18.5, CategoryNormal},
		{24.99, CategoryNormal},
		{25, CategoryOverweight},
		{29.99, CategoryOverweight},
		{30, CategoryObese},
		{42, CategoryObese},
	}
	for _, tt := range tests {
		if got := BMICategory(tt.bmi); got != tt.want {
			t.Errorf("BMICategory(%v) = %s, want %s", tt.bmi, got, tt.want)
		}
	}
}

func TestDescribeCategory(t *testing.T) {
	label, desc, err := DescribeCategory(CategoryObese)
	if err != nil || label != "Obese" || desc == "" {
		t.Errorf("unexpected: %q %q %v", label, desc, err)
	}
	if _, _, err := DescribeCategory("huge"); err == nil {
		t.Error("expected error for unknown category")
	}
}
