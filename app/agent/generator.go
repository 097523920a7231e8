package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"nutriplan/logger"
	"nutriplan/model"
	"nutriplan/types"

	"github.com/google/uuid"
)

const (
	DefaultMaxAttempts     = 3
	DefaultBaseTemperature = 0.7
	DefaultTemperatureStep = 0.2
	DefaultMaxTokens       = 2500
	DefaultPlanDays        = 3

	minTemperature = 0.1
)

// TokenCounter sizes prompts before they are sent.
type TokenCounter func(texts ...string) (int, error)

type PlanGenerator struct {
	completer   model.Completer
	validator   *PlanValidator
	log         *logger.Logger
	model       string
	maxAttempts int
	baseTemp    float64
	tempStep    float64
	maxTokens   int
	days        int
	countTokens TokenCounter
	now         func() time.Time
}

type GeneratorOption func(*PlanGenerator)

func WithMaxAttempts(n int) GeneratorOption {
	return func(g *PlanGenerator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithTemperature sets the first-attempt temperature and the decrease per retry.
func WithTemperature(base, step float64) GeneratorOption {
	return func(g *PlanGenerator) {
		if base > 0 {
			g.baseTemp = base
		}
		if step >= 0 {
			g.tempStep = step
		}
	}
}

func WithMaxTokens(n int) GeneratorOption {
	return func(g *PlanGenerator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

func WithModel(name string) GeneratorOption {
	return func(g *PlanGenerator) { g.model = name }
}

func WithDays(n int) GeneratorOption {
	return func(g *PlanGenerator) {
		if n > 0 {
			g.days = n
		}
	}
}

func WithTokenCounter(c TokenCounter) GeneratorOption {
	return func(g *PlanGenerator) {
		if c != nil {
			g.countTokens = c
		}
	}
}

func WithGeneratorLogger(l *logger.Logger) GeneratorOption {
	return func(g *PlanGenerator) { g.log = logger.OrNop(l) }
}

func NewPlanGenerator(c model.Completer, v *PlanValidator, opts ...GeneratorOption) *PlanGenerator {
	g := &PlanGenerator{
		completer:   c,
		validator:   v,
		log:         logger.Nop(),
		maxAttempts: DefaultMaxAttempts,
		baseTemp:    DefaultBaseTemperature,
		tempStep:    DefaultTemperatureStep,
		maxTokens:   DefaultMaxTokens,
		days:        DefaultPlanDays,
		countTokens: model.CountTokens,
		now:         time.Now,
	}
	if g.validator == nil {
		g.validator = NewPlanValidator(DefaultTolerance())
	}
	for _, opt := range opts {
		opt(g)
	}
	if n := g.distinctTemperatures(); g.maxAttempts > n {
		g.log.Warn("[LLM] max attempts capped to the distinct temperatures available",
			"requested", g.maxAttempts, "capped", n, "base", g.baseTemp, "step", g.tempStep)
		g.maxAttempts = n
	}
	return g
}

// MaxAttempts is the retry bound after capping.
func (g *PlanGenerator) MaxAttempts() int { return g.maxAttempts }

// distinctTemperatures counts the attempts before the schedule reaches the floor.
func (g *PlanGenerator) distinctTemperatures() int {
	if g.tempStep <= 0 || g.baseTemp <= minTemperature {
		return 1
	}
	return int(math.Floor((g.baseTemp-minTemperature)/g.tempStep+1e-9)) + 1
}

// PlanRequest carries everything computed before generation.
type PlanRequest struct {
	Profile types.UserProfile
	Targets types.EnergyTargets
	Meals   []types.MealTarget
	Context string
	// Days overrides the generator default when positive.
	Days int
}

func (r PlanRequest) expectation() Expectation {
	return NewExpectation(r.Targets, r.Meals, r.Profile)
}

// attemptState is the value threaded through step; each call returns the next state.
type attemptState struct {
	Day             int
	Attempt         int
	Temperature     float64
	LastText        string
	LastAttempt     int
	LastTemperature float64
	LastErr         error
	LastReport      types.ValidationReport
	Accepted        bool
}

func (g *PlanGenerator) temperature(attempt int) float64 {
	t := g.baseTemp - g.tempStep*float64(attempt)
	if t < minTemperature {
		t = minTemperature
	}
	return math.Round(t*100) / 100
}

func (g *PlanGenerator) step(ctx context.Context, st attemptState, in PromptInput, exp Expectation) attemptState {
	in.Feedback = feedback(st)
	system, user := BuildPrompt(in)
	if n, err := g.countTokens(system, user); err == nil {
		g.log.Info("[LLM] prompt prepared", "day", st.Day, "attempt", st.Attempt+1, "tokens", n, "temperature", st.Temperature)
	} else {
		g.log.Debug("[LLM] token count unavailable", "error", err)
	}

	start := time.Now()
	text, err := g.completer.Complete(ctx, model.CompletionRequest{
		Model:        g.model,
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  st.Temperature,
		MaxTokens:    g.maxTokens,
	})
	g.log.Debug("[LLM] completion finished", "day", st.Day, "took", time.Since(start))

	st.Attempt++
	if err != nil || strings.TrimSpace(text) == "" {
		if err == nil {
			err = errors.New("empty completion")
		}
		st.LastErr = fmt.Errorf("%w: day %d attempt %d: %w", types.ErrGeneration, st.Day, st.Attempt, err)
		g.log.Warn("[LLM] generation failed", "day", st.Day, "attempt", st.Attempt, "error", err)
	} else {
		text = withDayHeading(strings.TrimSpace(text), st.Day)
		st.LastErr = nil
		st.LastText = text
		st.LastAttempt = st.Attempt
		st.LastTemperature = st.Temperature
		st.LastReport = g.validator.Validate(text, exp)
		st.Accepted = st.LastReport.Valid()
		if !st.Accepted {
			g.log.Warn("[VALIDATE] plan rejected", "day", st.Day, "attempt", st.Attempt, "problems", len(st.LastReport.Messages))
		}
	}
	st.Temperature = g.temperature(st.Attempt)
	return st
}

func feedback(st attemptState) []string {
	if st.Attempt == 0 {
		return nil
	}
	if st.LastErr != nil {
		return []string{"la respuesta anterior estaba vacía o no se pudo generar; responde con el plan completo"}
	}
	return st.LastReport.Messages
}

// GenerateDay runs the bounded retry loop for one day. It returns the last
// produced text even when no attempt validated; it fails only when no text
// was produced at all or the context ends.
func (g *PlanGenerator) GenerateDay(ctx context.Context, req PlanRequest, day, days int) (types.DayPlan, error) {
	in := PromptInput{
		Profile: req.Profile,
		Targets: req.Targets,
		Meals:   req.Meals,
		Context: req.Context,
		Day:     day,
		Days:    days,
	}
	exp := req.expectation()

	st := attemptState{Day: day, Temperature: g.temperature(0)}
	for st.Attempt < g.maxAttempts && !st.Accepted {
		if err := ctx.Err(); err != nil {
			return types.DayPlan{}, err
		}
		st = g.step(ctx, st, in, exp)
		if err := ctx.Err(); err != nil {
			return types.DayPlan{}, err
		}
	}

	if st.LastText == "" {
		return types.DayPlan{}, st.LastErr
	}
	if st.Accepted {
		g.log.Info("[LLM] day accepted", "day", day, "attempt", st.LastAttempt)
	} else {
		g.log.Warn("[LLM] attempts exhausted, keeping last plan", "day", day, "attempts", st.Attempt)
	}
	return types.DayPlan{
		Plan: types.GeneratedPlan{
			ID:          uuid.New(),
			Day:         day,
			Text:        st.LastText,
			Attempt:     st.LastAttempt,
			Temperature: st.LastTemperature,
		},
		Validated: st.Accepted,
		Attempts:  st.Attempt,
		Report:    st.LastReport,
	}, nil
}

// Generate produces every day in sequence and validates the assembled plan.
func (g *PlanGenerator) Generate(ctx context.Context, req PlanRequest) (types.PlanResult, error) {
	days := g.days
	if req.Days > 0 {
		days = req.Days
	}

	result := types.PlanResult{
		ID:        uuid.New(),
		Targets:   req.Targets,
		Meals:     req.Meals,
		Context:   req.Context,
		CreatedAt: g.now(),
		Validated: true,
	}
	texts := make([]string, 0, days)
	for day := 1; day <= days; day++ {
		dp, err := g.GenerateDay(ctx, req, day, days)
		if err != nil {
			return types.PlanResult{}, err
		}
		result.Days = append(result.Days, dp)
		result.Validated = result.Validated && dp.Validated
		texts = append(texts, dp.Plan.Text)
	}

	body := strings.Join(texts, "\n\n")
	result.Report = g.validator.Validate(body, req.expectation())
	result.Validated = result.Validated && result.Report.Valid()
	result.Text = planHeader(req) + "\n" + body + "\n\n" + planNotes(result)
	g.log.Info("[LLM] plan generated", "id", result.ID, "days", days, "validated", result.Validated)
	return result, nil
}

func withDayHeading(text string, day int) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if dayRe.MatchString(line) {
			return text
		}
		break
	}
	return fmt.Sprintf("%s %d\n\n%s", dayLabel, day, text)
}

func planHeader(req PlanRequest) string {
	p := req.Profile
	var b strings.Builder
	b.WriteString("PLAN NUTRICIONAL - MÉTODO TRES DÍAS Y CARGA\n")
	fmt.Fprintf(&b, "Paciente: %d años, %.0f cm, %.1f kg (%s)\n", p.Basic.Age, p.Basic.HeightCm, p.Basic.WeightKg, p.Location())
	fmt.Fprintf(&b, "Objetivo: %s\n", p.Basic.Objective)
	fmt.Fprintf(&b, "Requerimiento diario: %s\n", FormatMacros(DailyReference(req.Targets, req.Meals)))
	return b.String()
}

func planNotes(r types.PlanResult) string {
	var b strings.Builder
	b.WriteString("NOTAS:\n")
	b.WriteString("- Bebe entre 2 y 3 litros de agua al día.\n")
	b.WriteString("- Pesa los alimentos en crudo salvo que se indique lo contrario.\n")
	b.WriteString("- Ajusta las cantidades con tu profesional si el peso no evoluciona en 2 semanas.\n")
	if !r.Validated {
		b.WriteString("- ATENCIÓN: el plan no superó todas las validaciones automáticas:\n")
		for _, m := range r.Report.Messages {
			fmt.Fprintf(&b, "  * %s\n", m)
		}
	}
	return b.String()
}
