package agent

import (
	"fmt"
	"strings"

	"nutriplan/types"
)

type PromptInput struct {
	Profile types.UserProfile
	Targets types.EnergyTargets
	Meals   []types.MealTarget
	Context string
	Day     int
	Days    int
	// Feedback holds the validator messages of the previous attempt, if any.
	Feedback []string
}

const systemPrompt = `Eres un nutricionista deportivo experto en el método "Tres Días y Carga".
Redactas planes de alimentación en español, exactos y verificables.

REGLAS OBLIGATORIAS:
- Usa SOLO los suplementos de la lista de suplementos permitidos. Si la lista está vacía, no menciones ningún suplemento.
- NUNCA incluyas proteína en polvo, whey, batidos de proteína, caseína, creatina ni BCAA salvo que figuren en la lista permitida.
- NUNCA incluyas alimentos de la lista de exclusiones ni sus derivados.
- Cada alimento lleva su anotación exacta ` + "`[<kcal> kcal | P <g> g | C <g> g | G <g> g]`" + `.
- La línea "Total comida" es la suma exacta de los alimentos de la comida.
- La línea "TOTAL DÍA" es la suma exacta de los "Total comida" del día.
- Respeta el orden y los horarios de las comidas indicados.
- No añadas introducciones, explicaciones ni texto fuera de la plantilla.`

// BuildPrompt composes the system and user prompts for one plan day.
func BuildPrompt(in PromptInput) (string, string) {
	var b strings.Builder
	p := in.Profile

	b.WriteString("DATOS DEL PACIENTE:\n")
	fmt.Fprintf(&b, "- Edad: %d años\n", p.Basic.Age)
	fmt.Fprintf(&b, "- Altura: %.0f cm\n", p.Basic.HeightCm)
	fmt.Fprintf(&b, "- Peso: %.1f kg\n", p.Basic.WeightKg)
	if p.Basic.BodyFatPct > 0 {
		fmt.Fprintf(&b, "- Grasa corporal: %.1f%%\n", p.Basic.BodyFatPct)
	}
	if p.Basic.MusclePct > 0 {
		fmt.Fprintf(&b, "- Masa muscular: %.1f%%\n", p.Basic.MusclePct)
	}
	fmt.Fprintf(&b, "- Ubicación: %s\n", p.Location())
	fmt.Fprintf(&b, "- Objetivo principal: %s\n", p.Basic.Objective)
	writeList(&b, "Objetivos secundarios", p.Basic.SecondaryObjectives)
	if p.Basic.WeightGoal != "" {
		fmt.Fprintf(&b, "- Objetivo de peso: %s\n", p.Basic.WeightGoal)
	}
	if p.Basic.TargetWeeks > 0 {
		fmt.Fprintf(&b, "- Plazo: %d semanas\n", p.Basic.TargetWeeks)
	}
	writeList(&b, "Patologías", p.Basic.Pathologies)
	fmt.Fprintf(&b, "- Actividad: %s, %d días/semana, %d min/sesión, intensidad %s\n",
		strings.Join(p.Activity.Types, ", "), p.Activity.DaysPerWeek, p.Activity.SessionMinutes, p.Activity.Intensity)
	if p.Anabolic.OnCycle {
		fmt.Fprintf(&b, "- Ciclo: %s, %.0f mg, %d semanas\n", p.Anabolic.Compound, p.Anabolic.DoseMg, p.Anabolic.Weeks)
	}

	t := in.Targets
	b.WriteString("\nREQUERIMIENTOS DIARIOS:\n")
	fmt.Fprintf(&b, "- Metabolismo basal: %.0f kcal\n", t.BMR)
	fmt.Fprintf(&b, "- Mantenimiento: %.0f kcal\n", t.MaintenanceCalories)
	fmt.Fprintf(&b, "- Objetivo: %s\n", FormatMacros(DailyReference(t, in.Meals)))

	b.WriteString("\nCOMIDAS Y OBJETIVOS POR COMIDA:\n")
	for _, m := range in.Meals {
		fmt.Fprintf(&b, "- %s (%s): %s\n", strings.ToUpper(m.Name), m.Window, FormatMacros(m.Target))
	}

	b.WriteString("\nRESTRICCIONES:\n")
	writeListOr(&b, "Alimentos preferidos (incluir)", p.Basic.Preferences, "sin preferencias")
	writeListOr(&b, "Exclusiones (no incluir nunca)", p.Basic.Restrictions, "ninguna")
	writeListOr(&b, "Suplementos permitidos", p.Basic.Supplements, "ninguno")

	b.WriteString("\nCONTEXTO DEL MÉTODO:\n")
	if strings.TrimSpace(in.Context) == "" {
		b.WriteString("(sin contexto disponible)\n")
	} else {
		b.WriteString(strings.TrimSpace(in.Context))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nGenera el %s %d de %d siguiendo EXACTAMENTE esta plantilla:\n\n", dayLabel, in.Day, in.Days)
	b.WriteString(template(in.Day, in.Meals))

	if len(in.Feedback) > 0 {
		b.WriteString("\nLA RESPUESTA ANTERIOR NO PASÓ LA VALIDACIÓN. Corrige estos problemas:\n")
		for _, f := range in.Feedback {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return systemPrompt, b.String()
}

func template(day int, meals []types.MealTarget) string {
	var b strings.Builder
	placeholder := "[<kcal> kcal | P <g> g | C <g> g | G <g> g]"
	fmt.Fprintf(&b, "%s %d\n\n", dayLabel, day)
	for _, m := range meals {
		fmt.Fprintf(&b, "%s (%s):\n", strings.ToUpper(m.Name), m.Window)
		fmt.Fprintf(&b, "- <alimento> <cantidad> %s\n", placeholder)
		fmt.Fprintf(&b, "%s: %s\n\n", mealTotalLabel, placeholder)
	}
	fmt.Fprintf(&b, "%s %d: %s\n", dayTotalLabel, day, placeholder)
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) > 0 {
		fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(items, ", "))
	}
}

func writeListOr(b *strings.Builder, label string, items []string, none string) {
	if len(items) == 0 {
		fmt.Fprintf(b, "- %s: %s\n", label, none)
		return
	}
	writeList(b, label, items)
}
