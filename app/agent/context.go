package agent

import (
	"context"
	"fmt"
	"strings"

	"nutriplan/logger"
	"nutriplan/types"
)

// Searcher is the retrieval side of the knowledge store.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, threshold float64) ([]types.RetrievalResult, error)
}

type topic struct {
	title     string
	topK      int
	threshold float64
	query     func(types.UserProfile) string
}

var topics = []topic{
	{
		title:     "Método Tres Días y Carga",
		topK:      3,
		threshold: 0.5,
		query: func(p types.UserProfile) string {
			return "método tres días y carga para " + strings.ToLower(p.Basic.Objective)
		},
	},
	{
		title:     "Nutrición según actividad",
		topK:      3,
		threshold: 0.5,
		query: func(p types.UserProfile) string {
			return fmt.Sprintf("nutrición %s %s", strings.ToLower(strings.Join(p.Activity.Types, " ")), strings.ToLower(p.Basic.Objective))
		},
	},
	{
		title:     "Suplementación",
		topK:      2,
		threshold: 0.55,
		query: func(p types.UserProfile) string {
			supps := "sin suplementos"
			if len(p.Basic.Supplements) > 0 {
				supps = strings.ToLower(strings.Join(p.Basic.Supplements, " "))
			}
			return fmt.Sprintf("suplementación %s para %s", supps, strings.ToLower(p.Basic.Objective))
		},
	},
	{
		title:     "Alternativas por restricciones",
		topK:      3,
		threshold: 0.5,
		query: func(p types.UserProfile) string {
			if len(p.Basic.Restrictions) == 0 {
				return ""
			}
			return "alternativas sin " + strings.ToLower(strings.Join(p.Basic.Restrictions, " "))
		},
	},
	{
		title:     "Planificación de comidas",
		topK:      3,
		threshold: 0.45,
		query: func(p types.UserProfile) string {
			goal := p.Basic.WeightGoal
			if goal == "" {
				goal = p.Basic.Objective
			}
			tier := p.Basic.ProteinTier
			if tier == "" {
				tier = "moderada"
			}
			return fmt.Sprintf("plan alimentación %s proteína %s", strings.ToLower(goal), strings.ToLower(tier))
		},
	},
}

const noResults = "(sin resultados)"

// ContextAssembler turns a profile into the method excerpts quoted in the prompt.
type ContextAssembler struct {
	searcher Searcher
	log      *logger.Logger
}

func NewContextAssembler(s Searcher, log *logger.Logger) *ContextAssembler {
	return &ContextAssembler{searcher: s, log: logger.OrNop(log)}
}

// Assemble runs one retrieval per topic. A topic that fails or finds nothing
// keeps its heading with noResults as body; if no topic finds anything the
// result is "".
func (a *ContextAssembler) Assemble(ctx context.Context, p types.UserProfile) string {
	var b strings.Builder
	found := false
	for _, t := range topics {
		q := t.query(p)
		if q == "" {
			continue
		}
		results, err := a.searcher.Search(ctx, q, t.topK, t.threshold)
		if err != nil {
			a.log.Warn("[CONTEXT] topic search failed", "topic", t.title, "error", err)
			results = nil
		} else if len(results) == 0 {
			a.log.Debug("[CONTEXT] topic without results", "topic", t.title, "query", q)
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "### %s\n", t.title)
		if len(results) == 0 {
			b.WriteString(noResults + "\n")
			continue
		}
		found = true
		for _, r := range results {
			fmt.Fprintf(&b, "[%s, p.%d] %s\n", r.Section, r.Page, strings.TrimSpace(r.Text))
		}
	}
	if !found {
		return ""
	}
	return b.String()
}
