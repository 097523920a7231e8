package agent

import (
	"testing"

	"nutriplan/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	out := Parse(dayPlan(1, 250) + "\n" + dayPlan(2, 250))
	require.True(t, out.OK, out.Reason)
	require.Len(t, out.Days, 2)

	d := out.Days[1]
	assert.Equal(t, 2, d.Number)
	require.Len(t, d.Meals, 2)
	assert.Equal(t, "DESAYUNO", d.Meals[0].Name)
	assert.Equal(t, "07:00-08:00", d.Meals[0].Window)
	assert.Len(t, d.Meals[0].Items, 2)
	assert.Equal(t, types.MacroTarget{Calories: 250, Protein: 20, Carbs: 30, Fat: 10}, *d.Meals[0].Total)
	assert.Equal(t, types.MacroTarget{Calories: 500, Protein: 40, Carbs: 60, Fat: 20}, *d.Total)
}

func TestParse_MarkdownAndDecimals(t *testing.T) {
	text := `**Día 3**
**Merienda (17:00-17:30):**
- Banana [89,5 kcal | P 1,1 g | C 22,8 g | G 0,3 g]
Total comida: [89.5 kcal | P 1.1 g | C 22.8 g | G 0.3 g]
**TOTAL DÍA 3:** [89.5 kcal | P 1.1 g | C 22.8 g | G 0.3 g]`

	out := Parse(text)
	require.True(t, out.OK, out.Reason)
	require.Len(t, out.Days, 1)
	assert.Equal(t, 3, out.Days[0].Number)
	require.Len(t, out.Days[0].Meals, 1)
	assert.Equal(t, "Merienda", out.Days[0].Meals[0].Name)
	assert.InDelta(t, 89.5, out.Days[0].Meals[0].Items[0].Macros.Calories, 1e-9)
	assert.InDelta(t, 1.1, out.Days[0].Meals[0].Items[0].Macros.Protein, 1e-9)
}

func TestParse_ImplicitDay(t *testing.T) {
	out := Parse(dayBody(250))
	require.True(t, out.OK, out.Reason)
	require.Len(t, out.Days, 1)
	assert.Equal(t, 1, out.Days[0].Number)
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"empty", "", "no meal blocks"},
		{"prose only", "Aquí tienes tu plan, ¡disfrútalo!", "no meal blocks"},
		{"total outside meal", "DÍA 1\nTotal comida: [1 kcal | P 1 g | C 1 g | G 1 g]", "outside a meal"},
		{"total without bracket", "DÍA 1\nCENA (21:00-22:00):\nTotal comida: 500 kcal", "meal total"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Parse(tt.text)
			assert.False(t, out.OK)
			assert.Contains(t, out.Reason, tt.reason)
		})
	}
}

func TestFormatMacrosRoundTrips(t *testing.T) {
	m := types.MacroTarget{Calories: 527, Protein: 44, Carbs: 53, Fat: 16}
	text := "CENA (21:00-22:00):\n- Plato " + FormatMacros(m) + "\nTotal comida: " + FormatMacros(m)
	out := Parse(text)
	require.True(t, out.OK, out.Reason)
	assert.Equal(t, m, *out.Days[0].Meals[0].Total)
}
