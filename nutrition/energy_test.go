package nutrition

import (
	"testing"

	"nutriplan/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceProfile() types.UserProfile {
	return types.UserProfile{
		Basic: types.BasicData{
			Age:            30,
			HeightCm:       175,
			WeightKg:       80,
			Country:        "Argentina",
			Objective:      "Pérdida de grasa",
			ProteinTier:    "Altas (2.2g/kg)",
			CarbPercentage: "40%",
			Restrictions:   []string{"Lácteos"},
			Supplements:    []string{"Proteína", "Creatina"},
			MainMeals:      []string{"Desayuno", "Almuerzo", "Merienda", "Cena"},
			SportSnacks:    []string{"Pre-entreno", "Post-entreno"},
		},
		Activity: types.ActivityData{
			Types:          []string{"Musculación"},
			DaysPerWeek:    5,
			SessionMinutes: 75,
			Intensity:      "Alta",
		},
	}
}

func TestCompute_ReferenceProfile(t *testing.T) {
	got, err := Compute(referenceProfile())
	require.NoError(t, err)

	// 447.593 + 9.247*80 + 3.098*175 - 4.330*30
	assert.InDelta(t, 1599.6, got.BMR, 0.05)
	assert.InDelta(t, 1599.6*1.55, got.MaintenanceCalories, 0.1)
	assert.Less(t, got.TargetCalories, got.MaintenanceCalories)
	assert.InDelta(t, 2107.5, got.TargetCalories, 0.05)
	assert.InDelta(t, 176.0, got.ProteinG, 0.01)
	assert.InDelta(t, 210.7, got.CarbsG, 0.05)
	assert.InDelta(t, 62.3, got.FatG, 0.05)
}

func TestCompute_GoalPolicy(t *testing.T) {
	tests := []struct {
		objective string
		factor    float64
	}{
		{"Pérdida de grasa", 0.85},
		{"Mantenimiento", 1.0},
		{"Ganancia muscular", 1.15},
		{"Recomposición corporal", 0.95},
	}
	for _, tt := range tests {
		t.Run(tt.objective, func(t *testing.T) {
			p := referenceProfile()
			p.Basic.Objective = tt.objective
			got, err := Compute(p)
			require.NoError(t, err)
			assert.InDelta(t, got.MaintenanceCalories*tt.factor, got.TargetCalories, 0.2)
		})
	}
}

func TestCompute_NonNegativeMacros(t *testing.T) {
	for _, intensity := range []string{"Baja", "Media", "Alta", "Muy alta"} {
		for _, tier := range []string{"Bajas (0.8g/kg)", "Moderadas (1.6g/kg)", "Altas (2.2g/kg)"} {
			p := referenceProfile()
			p.Activity.Intensity = intensity
			p.Basic.ProteinTier = tier
			got, err := Compute(p)
			require.NoError(t, err, "%s/%s", intensity, tier)
			assert.GreaterOrEqual(t, got.ProteinG, 0.0)
			assert.GreaterOrEqual(t, got.CarbsG, 0.0)
			assert.GreaterOrEqual(t, got.FatG, 0.0)
		}
	}
}

func TestCompute_FatConflict(t *testing.T) {
	p := referenceProfile()
	p.Basic.WeightKg = 40
	p.Basic.HeightCm = 150
	p.Basic.Age = 80
	p.Activity.Intensity = "Baja"
	p.Basic.ProteinTier = "Muy altas (3.0g/kg)"
	p.Basic.CarbPercentage = "60%"

	_, err := Compute(p)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	var conflict *MacroConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Greater(t, conflict.ProteinCalories+conflict.CarbCalories, conflict.TargetCalories)
}

func TestProteinPerKg(t *testing.T) {
	tests := map[string]float64{
		"":                       DefaultProteinPerKg,
		"Bajas (0.8g/kg)":        0.8,
		"Moderadas":              1.6,
		"Altas (2.2g/kg)":        2.2,
		"Muy altas":              3.0,
		"Personalizada 2,5 g/kg": 2.5,
	}
	for label, want := range tests {
		got, err := ProteinPerKg(label)
		require.NoError(t, err, label)
		assert.InDelta(t, want, got, 1e-9, label)
	}

	_, err := ProteinPerKg("Extremas (5g/kg)")
	assert.ErrorIs(t, err, types.ErrConfiguration)
	_, err = ProteinPerKg("???")
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestCarbPercentage(t *testing.T) {
	got, err := CarbPercentage("")
	require.NoError(t, err)
	assert.Equal(t, 40.0, got)

	got, err = CarbPercentage("55%")
	require.NoError(t, err)
	assert.Equal(t, 55.0, got)

	_, err = CarbPercentage("90%")
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestDistributeMeals(t *testing.T) {
	p := referenceProfile()
	targets, err := Compute(p)
	require.NoError(t, err)

	meals := DistributeMeals(targets, p)
	names := make([]string, len(meals))
	for i, m := range meals {
		names[i] = m.Name
	}
	assert.Equal(t, []string{"Desayuno", "Almuerzo", "Merienda", "Pre-entreno", "Post-entreno", "Cena"}, names)

	var mains []types.MealTarget
	for _, m := range meals {
		assert.NotEmpty(t, m.Window)
		if m.Kind == types.MealMain {
			mains = append(mains, m)
		}
	}
	require.Len(t, mains, 4)
	for _, m := range mains {
		assert.Equal(t, mains[0].Target, m.Target)
	}
	assert.InDelta(t, targets.TargetCalories*0.8/4, mains[0].Target.Calories, 0.1)

	assert.Equal(t, types.MacroTarget{Calories: 198, Protein: 10, Carbs: 35, Fat: 2}, meals[3].Target)
	assert.Equal(t, types.MacroTarget{Calories: 247, Protein: 25, Carbs: 30, Fat: 3}, meals[4].Target)
}

func TestDistributeMeals_NoSnacks(t *testing.T) {
	p := referenceProfile()
	p.Basic.SportSnacks = nil
	p.Basic.MainMeals = []string{"Almuerzo", "Cena", "Desayuno"}
	targets := types.EnergyTargets{TargetCalories: 2400, ProteinG: 150, CarbsG: 240, FatG: 90}

	meals := DistributeMeals(targets, p)
	require.Len(t, meals, 3)
	assert.Equal(t, "Desayuno", meals[0].Name)
	assert.Equal(t, types.MacroTarget{Calories: 800, Protein: 50, Carbs: 80, Fat: 30}, meals[0].Target)
}

func TestDistributeMeals_UnknownNameGetsWindow(t *testing.T) {
	p := referenceProfile()
	p.Basic.SportSnacks = nil
	p.Basic.MainMeals = []string{"Desayuno", "Brunch"}
	meals := DistributeMeals(types.EnergyTargets{TargetCalories: 2000}, p)
	require.Len(t, meals, 2)
	assert.Regexp(t, `^\d{2}:\d{2}-\d{2}:\d{2}$`, meals[1].Window)
}

func TestDistributeMeals_MidMorningWindow(t *testing.T) {
	p := referenceProfile()
	p.Basic.SportSnacks = nil
	p.Basic.MainMeals = []string{"Cena", "Media mañana", "Desayuno"}

	meals := DistributeMeals(types.EnergyTargets{TargetCalories: 2100}, p)
	require.Len(t, meals, 3)
	assert.Equal(t, "Media mañana", meals[1].Name)
	assert.Equal(t, "10:30-11:00", meals[1].Window)
}
