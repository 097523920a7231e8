package agent

import (
	"strings"
	"testing"

	"nutriplan/nutrition"
	"nutriplan/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AcceptsExactPlan(t *testing.T) {
	v := NewPlanValidator(DefaultTolerance())
	report := v.Validate(dayPlan(1, 250), testExpectation())
	assert.True(t, report.Valid(), report.Messages)
	assert.Empty(t, report.Messages)
}

func TestValidate_MealCaloriesOffTarget(t *testing.T) {
	v := NewPlanValidator(DefaultTolerance())
	report := v.Validate(dayPlan(1, 260), testExpectation())

	assert.False(t, report.Valid())
	assert.False(t, report.MacrosValid)
	assert.False(t, report.ArithmeticValid)
	assert.True(t, report.SupplementsValid)
	assert.True(t, report.CompletenessValid)

	var macro, arith bool
	for _, m := range report.Messages {
		if strings.Contains(m, "DESAYUNO") && strings.Contains(m, "calories") && strings.Contains(m, "vs target") {
			macro = true
		}
		if strings.Contains(m, "DESAYUNO") && strings.Contains(m, "calories") && strings.Contains(m, "vs items sum") {
			arith = true
		}
	}
	assert.True(t, macro, "missing per-meal macro message: %v", report.Messages)
	assert.True(t, arith, "missing arithmetic message: %v", report.Messages)
}

func TestValidate_WithinTolerance(t *testing.T) {
	v := NewPlanValidator(DefaultTolerance())
	text := strings.Replace(dayPlan(1, 250), "[150 kcal | P 8 g", "[154 kcal | P 8 g", 1)
	report := v.Validate(text, testExpectation())
	assert.True(t, report.Valid(), report.Messages)
}

func TestValidate_DairyRestriction(t *testing.T) {
	v := NewPlanValidator(DefaultTolerance())
	for _, food := range []string{"Queso fresco", "Leche descremada", "Yogur natural", "Whey"} {
		t.Run(food, func(t *testing.T) {
			text := strings.Replace(dayPlan(1, 250), "Pechuga de pollo", food, 1)
			report := v.Validate(text, testExpectation())

			assert.False(t, report.SupplementsValid)
			assert.False(t, report.Valid())
			require.NotEmpty(t, report.Messages)
			assert.Contains(t, report.Messages[0], "Lácteos")
			assert.Contains(t, report.Messages[0], food)
		})
	}
}

func TestValidate_SupplementAllowList(t *testing.T) {
	v := NewPlanValidator(DefaultTolerance())
	exp := testExpectation()

	allowed := strings.Replace(dayPlan(1, 250), "Merluza 120 g", "Merluza 120 g con creatina 5 g", 1)
	assert.True(t, v.Validate(allowed, exp).SupplementsValid)

	for _, line := range []string{"BCAA 10 g", "Batido de proteína", "1 scoop de proteína en polvo"} {
		text := strings.Replace(dayPlan(1, 250), "Arroz 70 g", line, 1)
		report := v.Validate(text, exp)
		assert.False(t, report.SupplementsValid, line)
		assert.Contains(t, strings.Join(report.Messages, "\n"), "no seleccionado", line)
	}
}

func TestValidate_ShortSynonymsNeedWholeWords(t *testing.T) {
	assert.True(t, mentions("pan integral", "pan"))
	assert.True(t, mentions("2 panes tostados", "pan"))
	assert.False(t, mentions("panceta ahumada", "pan"))
	assert.False(t, mentions("espinaca", "pan"))
	assert.True(t, mentions("200 g de res", "res"))
	assert.False(t, mentions("fresas", "res"))
}

func TestValidate_Completeness(t *testing.T) {
	v := NewPlanValidator(DefaultTolerance())
	text := dayPlan(1, 250)
	text = text[:strings.Index(text, "CENA")] + "TOTAL DÍA 1: [250 kcal | P 20 g | C 30 g | G 10 g]\n"

	report := v.Validate(text, testExpectation())
	assert.False(t, report.CompletenessValid)
	assert.Contains(t, strings.Join(report.Messages, "\n"), "missing meal Cena")
}

func TestValidate_UnparseablePlan(t *testing.T) {
	v := NewPlanValidator(DefaultTolerance())
	report := v.Validate("Lo siento, no puedo ayudarte.", testExpectation())
	assert.False(t, report.Valid())
	assert.False(t, report.MacrosValid)
	assert.True(t, report.SupplementsValid)
	assert.Contains(t, report.Messages[0], "could not be parsed")
}

func TestValidate_PlanAverageOutOfBand(t *testing.T) {
	v := NewPlanValidator(DefaultTolerance())
	exp := testExpectation()
	exp.Daily.Calories = 700

	report := v.Validate(dayPlan(1, 250), exp)
	assert.False(t, report.MacrosValid)
	assert.Contains(t, strings.Join(report.Messages, "\n"), "plan average: calories")
}

func TestValidate_AcceptsPlanMeetingDistributedMeals(t *testing.T) {
	p := testProfile()
	p.Basic.RegularSnacks = 1
	targets, err := nutrition.Compute(p)
	require.NoError(t, err)
	meals := nutrition.DistributeMeals(targets, p)
	require.Len(t, meals, 3)

	exp := NewExpectation(targets, meals, p)
	assert.Less(t, exp.Daily.Calories, targets.TargetCalories)

	report := NewPlanValidator(DefaultTolerance()).Validate(renderDay(1, meals), exp)
	assert.True(t, report.Valid(), report.Messages)
}

func TestDailyReference_FallsBackToTargets(t *testing.T) {
	targets := types.EnergyTargets{TargetCalories: 2000, ProteinG: 150, CarbsG: 200, FatG: 67}
	assert.Equal(t, targets.Macros(), DailyReference(targets, nil))

	meals := testExpectation().Meals
	assert.Equal(t, types.MacroTarget{Calories: 500, Protein: 40, Carbs: 60, Fat: 20}, DailyReference(targets, meals))
}
