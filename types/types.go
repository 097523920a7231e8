package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Section string

const (
	SectionIntroduction    Section = "introduction"
	SectionMethodology     Section = "methodology"
	SectionNutrition       Section = "nutrition"
	SectionPlans           Section = "plans"
	SectionSupplementation Section = "supplementation"
	SectionTraining        Section = "training"
	SectionGoals           Section = "goals"
	SectionGeneral         Section = "general"
)

type Tag string

const (
	TagMethodology     Tag = "methodology"
	TagNutrition       Tag = "nutrition"
	TagGoals           Tag = "goals"
	TagTraining        Tag = "training"
	TagSupplementation Tag = "supplementation"
	TagMacros          Tag = "macros"
	TagPlanning        Tag = "planning"
)

// Page is the extracted text of a single source-document page (1-based).
type Page struct {
	Number int
	Text   string
}

type Chunk struct {
	ID          string
	Text        string
	SourcePage  int
	Section     Section
	Tags        []Tag
	GlobalIndex int
	// Overlap is the number of leading runes repeated from the previous chunk of the same page.
	Overlap int
}

// ChunkID derives the stable store id from a chunk's global position.
func ChunkID(globalIndex int) string {
	return fmt.Sprintf("chunk_%d", globalIndex)
}

type RetrievalResult struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`
	Score          float64 `json:"score"`
	Similarity     float64 `json:"similarity"`
	Section        Section `json:"section"`
	Tags           []Tag   `json:"tags"`
	Page           int     `json:"page"`
	KeywordMatches int     `json:"keyword_matches"`
}

type MacroTarget struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

type EnergyTargets struct {
	BMR                 float64 `json:"bmr"`
	MaintenanceCalories float64 `json:"maintenance_calories"`
	TargetCalories      float64 `json:"target_calories"`
	ProteinG            float64 `json:"protein_g"`
	CarbsG              float64 `json:"carbs_g"`
	FatG                float64 `json:"fat_g"`
}

// Macros returns the daily totals as a MacroTarget.
func (t EnergyTargets) Macros() MacroTarget {
	return MacroTarget{
		Calories: t.TargetCalories,
		Protein:  t.ProteinG,
		Carbs:    t.CarbsG,
		Fat:      t.FatG,
	}
}

type MealKind string

const (
	MealMain  MealKind = "main"
	MealSnack MealKind = "snack"
)

type MealTarget struct {
	Name   string      `json:"name"`
	Kind   MealKind    `json:"kind"`
	Window string      `json:"window"`
	Target MacroTarget `json:"target"`
}

type GeneratedPlan struct {
	ID          uuid.UUID `json:"id"`
	Day         int       `json:"day"`
	Text        string    `json:"text"`
	Attempt     int       `json:"attempt"`
	Temperature float64   `json:"temperature"`
}

type ValidationReport struct {
	MacrosValid       bool     `json:"macros_valid"`
	ArithmeticValid   bool     `json:"arithmetic_valid"`
	SupplementsValid  bool     `json:"supplements_valid"`
	CompletenessValid bool     `json:"completeness_valid"`
	Messages          []string `json:"messages"`
}

func (r ValidationReport) Valid() bool {
	return r.MacrosValid && r.ArithmeticValid && r.SupplementsValid && r.CompletenessValid
}

type DayPlan struct {
	Plan      GeneratedPlan    `json:"plan"`
	Validated bool             `json:"validated"`
	Attempts  int              `json:"attempts"`
	Report    ValidationReport `json:"report"`
}

type PlanResult struct {
	ID        uuid.UUID        `json:"id"`
	Text      string           `json:"text"`
	Days      []DayPlan        `json:"days"`
	Validated bool             `json:"validated"`
	Report    ValidationReport `json:"report"`
	Targets   EnergyTargets    `json:"targets"`
	Meals     []MealTarget     `json:"meals"`
	Context   string           `json:"context"`
	CreatedAt time.Time        `json:"created_at"`
}
