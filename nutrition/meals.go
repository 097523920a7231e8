package nutrition

import (
	"fmt"
	"sort"

	"nutriplan/types"
)

// MainMealShareWithSnacks is the fraction of daily totals split across main
// meals when any snack is configured.
const MainMealShareWithSnacks = 0.8

var snackPresets = map[string]types.MacroTarget{
	"Pre-entreno":   preset(10, 35, 2),
	"Intra-entreno": preset(0, 25, 0),
	"Post-entreno":  preset(25, 30, 3),
	"Snack":         preset(10, 15, 5),
}

var mealWindows = map[string]string{
	"desayuno":      "07:00-08:00",
	"media manana":  "10:30-11:00",
	"almuerzo":      "13:00-14:00",
	"comida":        "13:00-14:00",
	"merienda":      "17:00-17:30",
	"cena":          "21:00-22:00",
	"pre-entreno":   "18:00-18:30",
	"intra-entreno": "18:30-19:30",
	"post-entreno":  "19:30-20:00",
	"snack 1":       "10:30-11:00",
	"snack 2":       "16:00-16:30",
	"snack 3":       "23:00-23:30",
}

func preset(p, c, f float64) types.MacroTarget {
	return types.MacroTarget{
		Calories: p*kcalPerGramProtein + c*kcalPerGramCarb + f*kcalPerGramFat,
		Protein:  p,
		Carbs:    c,
		Fat:      f,
	}
}

// DistributeMeals splits daily totals equally across main meals and layers
// fixed snack presets on top. Meals come back in time-window order.
func DistributeMeals(t types.EnergyTargets, p types.UserProfile) []types.MealTarget {
	mains := p.Basic.MainMeals
	if len(mains) == 0 {
		mains = types.DefaultMainMeals
	}

	var snacks []types.MealTarget
	for _, name := range p.Basic.SportSnacks {
		snacks = append(snacks, types.MealTarget{Name: name, Kind: types.MealSnack, Target: snackPresets[name]})
	}
	for i := 1; i <= p.Basic.RegularSnacks; i++ {
		snacks = append(snacks, types.MealTarget{Name: fmt.Sprintf("Snack %d", i), Kind: types.MealSnack, Target: snackPresets["Snack"]})
	}

	share := 1.0
	if len(snacks) > 0 {
		share = MainMealShareWithSnacks
	}
	per := share / float64(len(mains))
	meals := make([]types.MealTarget, 0, len(mains)+len(snacks))
	for _, name := range mains {
		meals = append(meals, types.MealTarget{
			Name: name,
			Kind: types.MealMain,
			Target: types.MacroTarget{
				Calories: round1(t.TargetCalories * per),
				Protein:  round1(t.ProteinG * per),
				Carbs:    round1(t.CarbsG * per),
				Fat:      round1(t.FatG * per),
			},
		})
	}
	meals = append(meals, snacks...)

	for i := range meals {
		meals[i].Window = window(meals[i].Name, i)
	}
	sort.SliceStable(meals, func(i, j int) bool { return meals[i].Window < meals[j].Window })
	return meals
}

// window looks up a meal's fixed time window; unknown names get a slot by position.
func window(name string, pos int) string {
	if w, ok := mealWindows[types.FoldLabel(name)]; ok {
		return w
	}
	start := 7*60 + pos*150
	return fmt.Sprintf("%02d:%02d-%02d:%02d", start/60%24, start%60, (start+30)/60%24, (start+30)%60)
}
