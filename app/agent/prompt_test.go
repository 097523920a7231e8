package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	exp := testExpectation()
	req := testRequest()
	p := exp.Profile
	p.Basic.SecondaryObjectives = []string{"Mejorar rendimiento"}
	p.Basic.BodyFatPct = 18

	system, user := BuildPrompt(PromptInput{
		Profile: p,
		Targets: req.Targets,
		Meals:   exp.Meals,
		Context: req.Context,
		Day:     2,
		Days:    3,
	})

	assert.Contains(t, system, "NUNCA incluyas proteína en polvo")
	assert.Contains(t, user, "Ubicación: Argentina, Córdoba")
	assert.Contains(t, user, "Objetivos secundarios: Mejorar rendimiento")
	assert.Contains(t, user, "Grasa corporal: 18.0%")
	assert.Contains(t, user, "DESAYUNO (07:00-08:00): [250 kcal | P 20 g | C 30 g | G 10 g]")
	assert.Contains(t, user, "Exclusiones (no incluir nunca): Lácteos")
	assert.Contains(t, user, "Suplementos permitidos: Creatina")
	assert.Contains(t, user, "Alimentos preferidos (incluir): Avena")
	assert.Contains(t, user, "[methodology, p.3] Tres días y carga.")
	assert.Contains(t, user, "Genera el DÍA 2 de 3")
	assert.Contains(t, user, "TOTAL DÍA 2: [<kcal> kcal")
	assert.NotContains(t, user, "NO PASÓ LA VALIDACIÓN")
}

func TestBuildPrompt_EmptyListsAndFeedback(t *testing.T) {
	p := testProfile()
	p.Basic.Supplements = nil
	p.Basic.Restrictions = nil

	_, user := BuildPrompt(PromptInput{Profile: p, Day: 1, Days: 1, Feedback: []string{"DÍA 1: missing meal Cena"}})
	assert.Contains(t, user, "Suplementos permitidos: ninguno")
	assert.Contains(t, user, "Exclusiones (no incluir nunca): ninguna")
	assert.Contains(t, user, "(sin contexto disponible)")
	assert.Contains(t, user, "- DÍA 1: missing meal Cena")
}
