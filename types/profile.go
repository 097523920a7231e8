package types

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Objective string

const (
	ObjectiveFatLoss       Objective = "fat_loss"
	ObjectiveMaintenance   Objective = "maintenance"
	ObjectiveMuscleGain    Objective = "muscle_gain"
	ObjectiveRecomposition Objective = "recomposition"
)

type Intensity string

const (
	IntensityLow      Intensity = "low"
	IntensityMedium   Intensity = "medium"
	IntensityHigh     Intensity = "high"
	IntensityVeryHigh Intensity = "very_high"
)

var objectiveLabels = map[string]Objective{
	"perdida de grasa":       ObjectiveFatLoss,
	"fat_loss":               ObjectiveFatLoss,
	"fat loss":               ObjectiveFatLoss,
	"mantenimiento":          ObjectiveMaintenance,
	"maintenance":            ObjectiveMaintenance,
	"ganancia muscular":      ObjectiveMuscleGain,
	"muscle_gain":            ObjectiveMuscleGain,
	"muscle gain":            ObjectiveMuscleGain,
	"recomposicion corporal": ObjectiveRecomposition,
	"recomposicion":          ObjectiveRecomposition,
	"recomposition":          ObjectiveRecomposition,
}

var intensityLabels = map[string]Intensity{
	"baja":      IntensityLow,
	"low":       IntensityLow,
	"media":     IntensityMedium,
	"medium":    IntensityMedium,
	"alta":      IntensityHigh,
	"high":      IntensityHigh,
	"muy alta":  IntensityVeryHigh,
	"very_high": IntensityVeryHigh,
	"very high": IntensityVeryHigh,
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ü", "u",
	"ñ", "n", "Ñ", "n",
)

// FoldLabel lowercases a form label and strips Spanish accents and tildes.
func FoldLabel(s string) string {
	return strings.ToLower(accentFolder.Replace(strings.TrimSpace(s)))
}

func ParseObjective(label string) (Objective, error) {
	if o, ok := objectiveLabels[FoldLabel(label)]; ok {
		return o, nil
	}
	return "", fmt.Errorf("%w: unknown objective %q", ErrConfiguration, label)
}

func ParseIntensity(label string) (Intensity, error) {
	if i, ok := intensityLabels[FoldLabel(label)]; ok {
		return i, nil
	}
	return "", fmt.Errorf("%w: unknown intensity %q", ErrConfiguration, label)
}

// DefaultMainMeals is used when the form leaves the meal structure empty.
var DefaultMainMeals = []string{"Desayuno", "Almuerzo", "Merienda", "Cena"}

type BasicData struct {
	Age                 int      `json:"age" validate:"required,gte=18,lte=100"`
	HeightCm            float64  `json:"height_cm" validate:"required,gte=140,lte=220"`
	WeightKg            float64  `json:"weight_kg" validate:"required,gte=40,lte=200"`
	BodyFatPct          float64  `json:"body_fat_pct" validate:"gte=0,lte=50"`
	MusclePct           float64  `json:"muscle_pct" validate:"gte=0,lte=100"`
	Country             string   `json:"country" validate:"required"`
	Province            string   `json:"province"`
	Objective           string   `json:"objective" validate:"required,objective"`
	SecondaryObjectives []string `json:"secondary_objectives"`
	TargetWeeks         int      `json:"target_weeks" validate:"gte=0,lte=104"`
	WeightGoal          string   `json:"weight_goal"`
	CarbPercentage      string   `json:"carb_percentage"`
	ProteinTier         string   `json:"protein_tier"`
	Pathologies         []string `json:"pathologies"`
	Supplements         []string `json:"supplements"`
	Restrictions        []string `json:"restrictions"`
	Preferences         []string `json:"preferences"`
	MainMeals           []string `json:"main_meals" validate:"omitempty,min=2,max=6"`
	RegularSnacks       int      `json:"regular_snacks" validate:"gte=0,lte=3"`
	SportSnacks         []string `json:"sport_snacks" validate:"dive,oneof=Pre-entreno Intra-entreno Post-entreno"`
}

type ActivityData struct {
	Types          []string `json:"types" validate:"required,min=1"`
	DaysPerWeek    int      `json:"days_per_week" validate:"gte=1,lte=7"`
	SessionMinutes int      `json:"session_minutes" validate:"gte=15,lte=180"`
	Intensity      string   `json:"intensity" validate:"required,intensity"`
}

type AnabolicData struct {
	OnCycle  bool    `json:"on_cycle"`
	Compound string  `json:"compound" validate:"required_if=OnCycle true"`
	DoseMg   float64 `json:"dose_mg" validate:"gte=0,lte=1000"`
	Weeks    int     `json:"weeks" validate:"required_if=OnCycle true,gte=0,lte=52"`
}

// UserProfile is built once per session from form input and is read-only afterwards.
type UserProfile struct {
	Basic    BasicData    `json:"basic"`
	Activity ActivityData `json:"activity"`
	Anabolic AnabolicData `json:"anabolic"`
}

var profileValidate = newProfileValidator()

func newProfileValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("objective", func(fl validator.FieldLevel) bool {
		_, err := ParseObjective(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("intensity", func(fl validator.FieldLevel) bool {
		_, err := ParseIntensity(fl.Field().String())
		return err == nil
	})
	return v
}

// DecodeUserProfile reads a JSON profile, rejecting unknown fields, and validates it.
func DecodeUserProfile(r io.Reader) (UserProfile, error) {
	var p UserProfile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return UserProfile{}, NewValidationError(map[string]string{"body": err.Error()})
	}
	return NewUserProfile(p)
}

// NewUserProfile validates the raw form data and fills meal-structure defaults.
func NewUserProfile(p UserProfile) (UserProfile, error) {
	if errs := validateStruct(&p); len(errs) > 0 {
		return UserProfile{}, NewValidationError(errs)
	}
	if len(p.Basic.MainMeals) == 0 {
		p.Basic.MainMeals = append([]string(nil), DefaultMainMeals...)
	}
	p.Basic.Restrictions = dropNone(p.Basic.Restrictions)
	p.Basic.Supplements = dropNone(p.Basic.Supplements)
	p.Basic.Pathologies = dropNone(p.Basic.Pathologies)
	return p, nil
}

func validateStruct(s any) map[string]string {
	if err := profileValidate.Struct(s); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"profile": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Namespace()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

// dropNone removes the form's "Ninguna"/"Ninguna restricción" placeholders.
func dropNone(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		f := FoldLabel(it)
		if f == "" || strings.HasPrefix(f, "ninguna") || f == "none" {
			continue
		}
		out = append(out, strings.TrimSpace(it))
	}
	return out
}

func (p UserProfile) ObjectiveKind() Objective {
	o, _ := ParseObjective(p.Basic.Objective)
	return o
}

func (p UserProfile) IntensityKind() Intensity {
	i, _ := ParseIntensity(p.Activity.Intensity)
	return i
}

// HasSupplement reports whether the user selected a supplement, ignoring case and accents.
func (p UserProfile) HasSupplement(name string) bool {
	return containsFolded(p.Basic.Supplements, name)
}

func (p UserProfile) Excludes(item string) bool {
	return containsFolded(p.Basic.Restrictions, item)
}

func (p UserProfile) Location() string {
	if p.Basic.Province != "" {
		return p.Basic.Country + ", " + p.Basic.Province
	}
	return p.Basic.Country
}

func containsFolded(items []string, name string) bool {
	want := FoldLabel(name)
	for _, it := range items {
		if FoldLabel(it) == want {
			return true
		}
	}
	return false
}
