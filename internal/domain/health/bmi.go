package health

import (
	"fmt"
	"math"
	"strings"
)

const (
	CategoryUnderweight = "underweight"
	CategoryNormal      = "normal"
	CategoryOverweight  = "overweight"
	CategoryObese       = "obese"

	cmPerInch = 2.54
	kgPerLb   = 0.453592
)

// BMIInput is a measurement as entered, in either unit system.
type BMIInput struct {
	Height     float64 `json:"height"`
	HeightUnit string  `json:"height_unit"`
	Weight     float64 `json:"weight"`
	WeightUnit string  `json:"weight_unit"`
}

// BMIResult is a computed BMI with its category.
type BMIResult struct {
	HeightCM    float64 `json:"height_cm"`
	WeightKG    float64 `json:"weight_kg"`
	BMI         float64 `json:"bmi_value"`
	Category    string  `json:"category"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
}

type categoryInfo struct {
	label       string
	description string
}

var categories = map[string]categoryInfo{
	CategoryUnderweight: {"Underweight", "Your BMI is below the healthy range. Consider consulting a healthcare provider about nutrition."},
	CategoryNormal:      {"Normal Weight", "Your BMI is in the healthy range. Keep up your current lifestyle!"},
	CategoryOverweight:  {"Overweight", "Your BMI is above the healthy range. Consider healthy diet and exercise adjustments."},
	CategoryObese:       {"Obese", "Your BMI indicates obesity. Consult a healthcare provider for a personalized health plan."},
}

// ComputeBMI converts in to metric and returns the BMI rounded to one
// decimal. The category is taken from the unrounded value.
func ComputeBMI(in BMIInput) (BMIResult, error) {
	if in.Height <= 0 || in.Weight <= 0 || math.IsNaN(in.Height) || math.IsNaN(in.Weight) {
		return BMIResult{}, invalid("height and weight must be positive numbers")
	}

	heightCM := in.Height
	switch strings.ToLower(in.HeightUnit) {
	case "", "cm":
	case "in", "inch", "inches":
		heightCM = in.Height * cmPerInch
	default:
		return BMIResult{}, invalid("invalid height_unit: %s", in.HeightUnit)
	}

	weightKG := in.Weight
	switch strings.ToLower(in.WeightUnit) {
	case "", "kg":
	case "lb", "lbs":
		weightKG = in.Weight * kgPerLb
	default:
		return BMIResult{}, invalid("invalid weight_unit: %s", in.WeightUnit)
	}

	if heightCM < 30 || heightCM > 300 {
		return BMIResult{}, invalid("height must be between 30 and 300 cm")
	}
	if weightKG < 1 || weightKG > 700 {
		return BMIResult{}, invalid("weight must be between 1 and 700 kg")
	}

	m := heightCM / 100
	bmi := weightKG / (m * m)
	cat := BMICategory(bmi)
	info := categories[cat]
	return BMIResult{
		HeightCM:    round(heightCM, 2),
		WeightKG:    round(weightKG, 2),
		BMI:         round(bmi, 1),
		Category:    cat,
		Label:       info.label,
		Description: info.description,
	}, nil
}

// BMICategory buckets a BMI value: <18.5 underweight, <25 normal, <30
// overweight, otherwise obese.
func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return CategoryUnderweight
	case bmi < 25:
		return CategoryNormal
	case bmi < 30:
		return CategoryOverweight
	default:
		return CategoryObese
	}
}

// DescribeCategory returns the display label and advice for a category.
func DescribeCategory(cat string) (label, description string, err error) {
	info, ok := categories[cat]
	if !ok {
		return "", "", fmt.Errorf("unknown BMI category %q", cat)
	}
	return info.label, info.description, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
