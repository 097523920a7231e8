package agent

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"nutriplan/types"
)

// Tolerance holds the allowed deviations for each check.
type Tolerance struct {
	MealKcal    float64
	MealProtein float64
	MealCarbs   float64
	MealFat     float64
	// PlanRelative bounds the averaged daily totals against the daily targets.
	PlanRelative float64
	ArithKcal    float64
	ArithGrams   float64
}

func DefaultTolerance() Tolerance {
	return Tolerance{
		MealKcal:     5,
		MealProtein:  3,
		MealCarbs:    3,
		MealFat:      2,
		PlanRelative: 0.10,
		ArithKcal:    5,
		ArithGrams:   1,
	}
}

// Expectation is what a plan is checked against.
type Expectation struct {
	Daily   types.MacroTarget
	Meals   []types.MealTarget
	Profile types.UserProfile
}

// NewExpectation checks day totals against the sum of the meal targets rather
// than the raw energy targets.
func NewExpectation(t types.EnergyTargets, meals []types.MealTarget, p types.UserProfile) Expectation {
	return Expectation{Daily: DailyReference(t, meals), Meals: meals, Profile: p}
}

// DailyReference is the day total a plan should declare.
func DailyReference(t types.EnergyTargets, meals []types.MealTarget) types.MacroTarget {
	if len(meals) == 0 {
		return t.Macros()
	}
	var sum types.MacroTarget
	for _, m := range meals {
		sum = add(sum, m.Target)
	}
	return sum
}

var restrictionSynonyms = map[string][]string{
	"lacteos":      {"queso", "leche", "yogur", "yogurt", "whey", "mantequilla", "kefir", "nata", "ricota", "requeson"},
	"gluten":       {"trigo", "pan", "pasta", "cebada", "centeno", "seitan", "cuscus", "galleta"},
	"huevos":       {"huevo", "claras", "yema", "omelette"},
	"pescado":      {"pescado", "atun", "salmon", "merluza", "sardina", "bacalao", "trucha", "caballa"},
	"mariscos":     {"marisco", "camaron", "langostino", "gamba", "mejillon", "almeja", "pulpo", "calamar"},
	"mani":         {"mani", "cacahuete", "cacahuate"},
	"soja":         {"soja", "soya", "tofu", "tempeh", "edamame"},
	"frutos secos": {"almendra", "nuez", "nueces", "avellana", "anacardo", "pistacho"},
	"cerdo":        {"cerdo", "jamon", "bacon", "tocino", "panceta", "chorizo"},
	"res":          {"res", "ternera", "vacuno", "bife"},
}

type supplementRule struct {
	name     string
	selected func(types.UserProfile) bool
	synonyms []string
}

var supplementRules = []supplementRule{
	{
		name:     "proteína en polvo",
		selected: func(p types.UserProfile) bool { return selectedLike(p, "prote", "whey") },
		synonyms: []string{"proteina en polvo", "whey", "batido de proteina", "batido proteico", "scoop", "caseina"},
	},
	{
		name:     "creatina",
		selected: func(p types.UserProfile) bool { return selectedLike(p, "creatin") },
		synonyms: []string{"creatina"},
	},
	{
		name:     "BCAA",
		selected: func(p types.UserProfile) bool { return selectedLike(p, "bcaa", "aminoacidos") },
		synonyms: []string{"bcaa", "aminoacidos ramificados"},
	},
}

type PlanValidator struct {
	tol Tolerance
}

func NewPlanValidator(tol Tolerance) *PlanValidator {
	return &PlanValidator{tol: tol}
}

// Validate runs the macro, arithmetic, completeness and exclusion checks.
// It always returns a report; parse failures become failed checks.
func (v *PlanValidator) Validate(text string, exp Expectation) (report types.ValidationReport) {
	defer func() {
		if r := recover(); r != nil {
			report = types.ValidationReport{Messages: []string{fmt.Sprintf("validator failure: %v", r)}}
		}
	}()

	exclusions := v.checkExclusions(text, exp.Profile)
	report.SupplementsValid = len(exclusions) == 0
	report.Messages = append(report.Messages, exclusions...)

	outcome := Parse(text)
	if !outcome.OK {
		report.Messages = append(report.Messages, "plan could not be parsed: "+outcome.Reason)
		return report
	}

	completeness := v.checkCompleteness(outcome.Days, exp.Meals)
	arithmetic := v.checkArithmetic(outcome.Days)
	macros := v.checkMacros(outcome.Days, exp)

	report.CompletenessValid = len(completeness) == 0
	report.ArithmeticValid = len(arithmetic) == 0
	report.MacrosValid = len(macros) == 0
	report.Messages = append(report.Messages, completeness...)
	report.Messages = append(report.Messages, arithmetic...)
	report.Messages = append(report.Messages, macros...)
	return report
}

func (v *PlanValidator) checkCompleteness(days []DayBlock, expected []types.MealTarget) []string {
	var msgs []string
	for _, d := range days {
		for _, want := range expected {
			if findMeal(d, want.Name) == nil {
				msgs = append(msgs, fmt.Sprintf("%s: missing meal %s", dayName(d), want.Name))
			}
		}
		for _, m := range d.Meals {
			if m.Total == nil {
				msgs = append(msgs, fmt.Sprintf("%s / %s: missing meal total", dayName(d), m.Name))
			}
		}
		if d.Total == nil {
			msgs = append(msgs, fmt.Sprintf("%s: missing day total", dayName(d)))
		}
	}
	return msgs
}

func (v *PlanValidator) checkArithmetic(days []DayBlock) []string {
	var msgs []string
	for _, d := range days {
		var mealSum types.MacroTarget
		for _, m := range d.Meals {
			if m.Total == nil {
				continue
			}
			mealSum = add(mealSum, *m.Total)
			if len(m.Items) == 0 {
				continue
			}
			var itemSum types.MacroTarget
			for _, it := range m.Items {
				itemSum = add(itemSum, it.Macros)
			}
			where := dayName(d) + " / " + m.Name
			msgs = append(msgs, compare(where, "items sum", *m.Total, itemSum, v.tol.ArithKcal, v.tol.ArithGrams, v.tol.ArithGrams, v.tol.ArithGrams)...)
		}
		if d.Total != nil {
			msgs = append(msgs, compare(dayName(d), "meal totals sum", *d.Total, mealSum, v.tol.ArithKcal, v.tol.ArithGrams, v.tol.ArithGrams, v.tol.ArithGrams)...)
		}
	}
	return msgs
}

// checkMacros compares each meal total against its target with absolute bands
// and the averaged day totals against the daily target with a relative band.
func (v *PlanValidator) checkMacros(days []DayBlock, exp Expectation) []string {
	var msgs []string
	var sum types.MacroTarget
	counted := 0
	for _, d := range days {
		if d.Total == nil {
			msgs = append(msgs, fmt.Sprintf("%s: no declared day total to check against targets", dayName(d)))
		} else {
			sum = add(sum, *d.Total)
			counted++
		}
		for _, want := range exp.Meals {
			m := findMeal(d, want.Name)
			if m == nil {
				continue
			}
			if m.Total == nil {
				msgs = append(msgs, fmt.Sprintf("%s / %s: no declared meal total to check against targets", dayName(d), m.Name))
				continue
			}
			where := dayName(d) + " / " + m.Name
			msgs = append(msgs, compare(where, "target", *m.Total, want.Target, v.tol.MealKcal, v.tol.MealProtein, v.tol.MealCarbs, v.tol.MealFat)...)
		}
	}
	if counted == 0 || isZero(exp.Daily) {
		return msgs
	}
	avg := scale(sum, 1/float64(counted))
	rel := v.tol.PlanRelative
	msgs = append(msgs, compare("plan average", "daily target", avg, exp.Daily,
		rel*exp.Daily.Calories, rel*exp.Daily.Protein, rel*exp.Daily.Carbs, rel*exp.Daily.Fat)...)
	return msgs
}

// checkExclusions reports every line mentioning a restricted food or an
// unselected supplement.
func (v *PlanValidator) checkExclusions(text string, p types.UserProfile) []string {
	type rule struct {
		label    string
		synonyms []string
	}
	var rules []rule
	for _, r := range p.Basic.Restrictions {
		key := types.FoldLabel(r)
		syn, ok := restrictionSynonyms[key]
		if !ok {
			syn = []string{key}
		}
		rules = append(rules, rule{label: r, synonyms: syn})
	}
	for _, s := range supplementRules {
		if !s.selected(p) {
			rules = append(rules, rule{label: s.name + " (no seleccionado)", synonyms: s.synonyms})
		}
	}
	if len(rules) == 0 {
		return nil
	}

	var msgs []string
	for _, line := range strings.Split(text, "\n") {
		folded := types.FoldLabel(line)
		if folded == "" {
			continue
		}
		for _, r := range rules {
			for _, syn := range r.synonyms {
				if mentions(folded, syn) {
					msgs = append(msgs, fmt.Sprintf("excluded item %q (%s) on line: %s", syn, r.label, strings.TrimSpace(line)))
					break
				}
			}
		}
	}
	return msgs
}

// mentions matches long synonyms as substrings and short ones (four runes or
// fewer) as whole words with an optional plural ending.
func mentions(folded, syn string) bool {
	if len([]rune(syn)) > 4 {
		return strings.Contains(folded, syn)
	}
	for from := 0; ; {
		i := strings.Index(folded[from:], syn)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(syn)
		for _, suffix := range []string{"es", "s"} {
			if strings.HasPrefix(folded[end:], suffix) && !isLetterAt(folded, end+len(suffix)) {
				end += len(suffix)
				break
			}
		}
		if !isLetterBefore(folded, start) && !isLetterAt(folded, end) {
			return true
		}
		from = start + 1
	}
}

func isLetterAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r := []rune(s[i:])[0]
	return unicode.IsLetter(r)
}

func isLetterBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r := []rune(s[:i])
	return unicode.IsLetter(r[len(r)-1])
}

func selectedLike(p types.UserProfile, prefixes ...string) bool {
	for _, s := range p.Basic.Supplements {
		f := types.FoldLabel(s)
		for _, pre := range prefixes {
			if strings.Contains(f, pre) {
				return true
			}
		}
	}
	return false
}

func findMeal(d DayBlock, name string) *MealBlock {
	want := types.FoldLabel(name)
	for i := range d.Meals {
		if types.FoldLabel(d.Meals[i].Name) == want {
			return &d.Meals[i]
		}
	}
	return nil
}

func dayName(d DayBlock) string {
	return fmt.Sprintf("%s %d", dayLabel, d.Number)
}

// compare reports each field of declared that differs from expected by more than its band.
func compare(where, against string, declared, expected types.MacroTarget, kcal, protein, carbs, fat float64) []string {
	fields := []struct {
		name     string
		got, ref float64
		band     float64
		unit     string
	}{
		{"calories", declared.Calories, expected.Calories, kcal, "kcal"},
		{"protein", declared.Protein, expected.Protein, protein, "g"},
		{"carbs", declared.Carbs, expected.Carbs, carbs, "g"},
		{"fat", declared.Fat, expected.Fat, fat, "g"},
	}
	var msgs []string
	for _, f := range fields {
		if math.Abs(f.got-f.ref) > f.band+1e-9 {
			msgs = append(msgs, fmt.Sprintf("%s: %s declared %.1f %s vs %s %.1f %s (tolerance ±%.1f)",
				where, f.name, f.got, f.unit, against, f.ref, f.unit, f.band))
		}
	}
	return msgs
}

func add(a, b types.MacroTarget) types.MacroTarget {
	return types.MacroTarget{
		Calories: a.Calories + b.Calories,
		Protein:  a.Protein + b.Protein,
		Carbs:    a.Carbs + b.Carbs,
		Fat:      a.Fat + b.Fat,
	}
}

func scale(a types.MacroTarget, k float64) types.MacroTarget {
	return types.MacroTarget{Calories: a.Calories * k, Protein: a.Protein * k, Carbs: a.Carbs * k, Fat: a.Fat * k}
}

func isZero(m types.MacroTarget) bool {
	return m == types.MacroTarget{}
}
