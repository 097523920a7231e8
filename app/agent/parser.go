package agent

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"nutriplan/types"
)

// The plan text contract shared with prompt.go:
//
//	DÍA 1
//	DESAYUNO (07:00-08:00):
//	- Avena 60 g [228 kcal | P 8 g | C 40 g | G 4 g]
//	Total comida: [228 kcal | P 8 g | C 40 g | G 4 g]
//	TOTAL DÍA 1: [2107 kcal | P 176 g | C 211 g | G 62 g]
const (
	bracketFormat  = "[%.0f kcal | P %.0f g | C %.0f g | G %.0f g]"
	mealTotalLabel = "Total comida"
	dayTotalLabel  = "TOTAL DÍA"
	dayLabel       = "DÍA"
)

const num = `(-?\d+(?:[.,]\d+)?)`

var (
	bracketRe    = regexp.MustCompile(`(?i)\[\s*` + num + `\s*kcal\s*\|\s*P\s*` + num + `\s*g\s*\|\s*C\s*` + num + `\s*g\s*\|\s*G\s*` + num + `\s*g\s*\]`)
	dayRe        = regexp.MustCompile(`(?i)^\s*[*#]*\s*D[IÍ]A\s+(\d+)\b`)
	dayTotalRe   = regexp.MustCompile(`(?i)^\s*[*#]*\s*TOTAL\s+D[IÍ]A\b`)
	mealTotalRe  = regexp.MustCompile(`(?i)^\s*[*#]*\s*TOTAL\s+COMIDA\b`)
	mealHeaderRe = regexp.MustCompile(`^\s*[*#]*\s*([^\[\]\n:()]+?)\s*\(\s*(\d{1,2}:\d{2})\s*-\s*(\d{1,2}:\d{2})\s*\)\s*[*]*\s*:?\s*[*]*\s*$`)
)

type ItemLine struct {
	Text   string
	Macros types.MacroTarget
}

type MealBlock struct {
	Name   string
	Window string
	Items  []ItemLine
	Total  *types.MacroTarget
}

type DayBlock struct {
	Number int
	Meals  []MealBlock
	Total  *types.MacroTarget
}

// ParseOutcome is either OK with the parsed days or a parse failure with a reason.
type ParseOutcome struct {
	OK     bool
	Days   []DayBlock
	Reason string
}

// Parse reads plan text in the bracket notation. It never panics.
func Parse(text string) (out ParseOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = ParseOutcome{Reason: fmt.Sprintf("parser failure: %v", r)}
		}
	}()

	var (
		days []DayBlock
		day  *DayBlock
		meal *MealBlock
	)
	closeMeal := func() {
		if meal != nil && day != nil {
			day.Meals = append(day.Meals, *meal)
		}
		meal = nil
	}
	closeDay := func() {
		closeMeal()
		if day != nil {
			days = append(days, *day)
		}
		day = nil
	}
	ensureDay := func() {
		if day == nil {
			day = &DayBlock{Number: len(days) + 1}
		}
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		switch {
		case dayTotalRe.MatchString(line):
			m, err := bracket(line)
			if err != nil {
				return ParseOutcome{Reason: fmt.Sprintf("line %d: day total: %v", lineNo, err)}
			}
			ensureDay()
			closeMeal()
			day.Total = m
		case dayRe.MatchString(line):
			closeDay()
			n, _ := strconv.Atoi(dayRe.FindStringSubmatch(line)[1])
			day = &DayBlock{Number: n}
		case mealTotalRe.MatchString(line):
			m, err := bracket(line)
			if err != nil {
				return ParseOutcome{Reason: fmt.Sprintf("line %d: meal total: %v", lineNo, err)}
			}
			if meal == nil {
				return ParseOutcome{Reason: fmt.Sprintf("line %d: meal total outside a meal", lineNo)}
			}
			meal.Total = m
		case mealHeaderRe.MatchString(line):
			ensureDay()
			closeMeal()
			sm := mealHeaderRe.FindStringSubmatch(line)
			meal = &MealBlock{Name: strings.TrimSpace(sm[1]), Window: sm[2] + "-" + sm[3]}
		case bracketRe.MatchString(line) && meal != nil:
			m, err := bracket(line)
			if err != nil {
				return ParseOutcome{Reason: fmt.Sprintf("line %d: item: %v", lineNo, err)}
			}
			meal.Items = append(meal.Items, ItemLine{Text: strings.TrimSpace(line), Macros: *m})
		}
	}
	if err := sc.Err(); err != nil {
		return ParseOutcome{Reason: fmt.Sprintf("read plan: %v", err)}
	}
	closeDay()

	meals := 0
	for _, d := range days {
		meals += len(d.Meals)
	}
	if meals == 0 {
		return ParseOutcome{Reason: "no meal blocks found"}
	}
	return ParseOutcome{OK: true, Days: days}
}

func bracket(line string) (*types.MacroTarget, error) {
	sm := bracketRe.FindStringSubmatch(line)
	if sm == nil {
		return nil, fmt.Errorf("missing [kcal | P | C | G] annotation")
	}
	var v [4]float64
	for i := range v {
		f, err := strconv.ParseFloat(strings.Replace(sm[i+1], ",", ".", 1), 64)
		if err != nil {
			return nil, err
		}
		v[i] = f
	}
	return &types.MacroTarget{Calories: v[0], Protein: v[1], Carbs: v[2], Fat: v[3]}, nil
}

// FormatMacros renders m in the bracket notation.
func FormatMacros(m types.MacroTarget) string {
	return fmt.Sprintf(bracketFormat, m.Calories, m.Protein, m.Carbs, m.Fat)
}
