// Package nutrition computes energy and macro targets from a user profile.
package nutrition

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"nutriplan/types"
)

const (
	kcalPerGramProtein = 4
	kcalPerGramCarb    = 4
	kcalPerGramFat     = 9

	DefaultCarbPercentage = 40.0
	DefaultProteinPerKg   = 1.6
)

var activityFactors = map[types.Intensity]float64{
	types.IntensityLow:      1.2,
	types.IntensityMedium:   1.375,
	types.IntensityHigh:     1.55,
	types.IntensityVeryHigh: 1.725,
}

// goalFactors is the only goal policy: a multiplicative factor on maintenance.
var goalFactors = map[types.Objective]float64{
	types.ObjectiveFatLoss:       0.85,
	types.ObjectiveMaintenance:   1.0,
	types.ObjectiveMuscleGain:    1.15,
	types.ObjectiveRecomposition: 0.95,
}

var proteinTiers = []struct {
	label string
	perKg float64
}{
	{"muy altas", 3.0},
	{"moderadas", 1.6},
	{"bajas", 0.8},
	{"altas", 2.2},
}

var (
	gramsPerKgRe = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*g\s*/\s*kg`)
	percentRe    = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*%?`)
)

// MacroConflictError reports protein and carb calories exceeding the target.
type MacroConflictError struct {
	TargetCalories  float64
	ProteinCalories float64
	CarbCalories    float64
}

func (e *MacroConflictError) Error() string {
	return fmt.Sprintf("protein (%.0f kcal) and carbs (%.0f kcal) exceed target calories (%.0f kcal)",
		e.ProteinCalories, e.CarbCalories, e.TargetCalories)
}

func (e *MacroConflictError) Unwrap() error { return types.ErrConfiguration }

// BMR uses the revised Harris-Benedict formula.
func BMR(weightKg, heightCm float64, age int) float64 {
	return 447.593 + 9.247*weightKg + 3.098*heightCm - 4.330*float64(age)
}

func Compute(p types.UserProfile) (types.EnergyTargets, error) {
	activity, ok := activityFactors[p.IntensityKind()]
	if !ok {
		return types.EnergyTargets{}, fmt.Errorf("%w: unknown intensity %q", types.ErrConfiguration, p.Activity.Intensity)
	}
	goal, ok := goalFactors[p.ObjectiveKind()]
	if !ok {
		return types.EnergyTargets{}, fmt.Errorf("%w: unknown objective %q", types.ErrConfiguration, p.Basic.Objective)
	}
	proteinPerKg, err := ProteinPerKg(p.Basic.ProteinTier)
	if err != nil {
		return types.EnergyTargets{}, err
	}
	carbPct, err := CarbPercentage(p.Basic.CarbPercentage)
	if err != nil {
		return types.EnergyTargets{}, err
	}

	bmr := BMR(p.Basic.WeightKg, p.Basic.HeightCm, p.Basic.Age)
	maintenance := bmr * activity
	target := maintenance * goal

	protein := proteinPerKg * p.Basic.WeightKg
	carbs := target * carbPct / 100 / kcalPerGramCarb
	remaining := target - protein*kcalPerGramProtein - carbs*kcalPerGramCarb
	if remaining < 0 {
		return types.EnergyTargets{}, &MacroConflictError{
			TargetCalories:  target,
			ProteinCalories: protein * kcalPerGramProtein,
			CarbCalories:    carbs * kcalPerGramCarb,
		}
	}

	return types.EnergyTargets{
		BMR:                 round1(bmr),
		MaintenanceCalories: round1(maintenance),
		TargetCalories:      round1(target),
		ProteinG:            round1(protein),
		CarbsG:              round1(carbs),
		FatG:                round1(remaining / kcalPerGramFat),
	}, nil
}

// ProteinPerKg reads a form label such as "Altas (2.2g/kg)". An explicit
// g/kg figure wins over the tier name; an empty label gives the default.
func ProteinPerKg(label string) (float64, error) {
	folded := types.FoldLabel(label)
	if folded == "" {
		return DefaultProteinPerKg, nil
	}
	if m := gramsPerKgRe.FindStringSubmatch(folded); m != nil {
		v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
		if err == nil && v >= 0.8 && v <= 3.0 {
			return v, nil
		}
		return 0, fmt.Errorf("%w: protein %q outside 0.8-3.0 g/kg", types.ErrConfiguration, label)
	}
	for _, tier := range proteinTiers {
		if strings.HasPrefix(folded, tier.label) {
			return tier.perKg, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown protein tier %q", types.ErrConfiguration, label)
}

// CarbPercentage reads a form label such as "40%".
func CarbPercentage(label string) (float64, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return DefaultCarbPercentage, nil
	}
	m := percentRe.FindStringSubmatch(label)
	if m == nil {
		return 0, fmt.Errorf("%w: invalid carb percentage %q", types.ErrConfiguration, label)
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil || v < 30 || v > 60 {
		return 0, fmt.Errorf("%w: carb percentage %q outside 30-60%%", types.ErrConfiguration, label)
	}
	return v, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
