package kb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"nutriplan/types"
)

const (
	keywordBoost   = 0.1
	literalBoost   = 0.1
	dedupeRunes    = 100
	maxPerSection  = 2
	candidateRatio = 3
)

// Search returns at most topK passages for query. Candidates below threshold
// raw similarity are dropped, a detected intent filters and boosts by keyword,
// near-duplicates are removed and each section contributes at most two results.
// An empty result is not an error.
func (k *KnowledgeStore) Search(ctx context.Context, query string, topK int, threshold float64) ([]types.RetrievalResult, error) {
	if topK <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	vec, err := k.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", types.ErrRetrieval, err)
	}
	matches, err := k.vectors.Query(ctx, k.collection, vec, candidateRatio*topK, true)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", types.ErrRetrieval, err)
	}

	intent := k.taxonomy.DetectIntent(query)
	foldedQuery := types.FoldLabel(query)

	candidates := make([]types.RetrievalResult, 0, len(matches))
	for _, m := range matches {
		if m.Score < threshold {
			continue
		}
		text := metaString(m.Metadata, "text")
		if text == "" {
			continue
		}
		folded := types.FoldLabel(text)

		matched := 0
		if intent != nil {
			if countMatches(folded, intent.Excluded) > 0 {
				continue
			}
			matched = countMatches(folded, intent.Required)
			if matched < intent.MinRequired {
				continue
			}
		}

		score := m.Score + keywordBoost*float64(matched)
		if strings.Contains(folded, foldedQuery) {
			score += literalBoost
		}

		section := types.Section(metaString(m.Metadata, "section"))
		if section == "" {
			section = types.SectionGeneral
		}
		candidates = append(candidates, types.RetrievalResult{
			ID:             m.ID,
			Text:           text,
			Score:          score,
			Similarity:     m.Score,
			Section:        section,
			Tags:           metaTags(m.Metadata),
			Page:           metaInt(m.Metadata, "page"),
			KeywordMatches: matched,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.KeywordMatches != b.KeywordMatches {
			return a.KeywordMatches > b.KeywordMatches
		}
		return a.ID < b.ID
	})

	results := diversify(candidates, topK)
	k.log.Debug("[SEARCH] done", "query", query, "candidates", len(matches), "results", len(results))
	return results, nil
}

// diversify walks ranked candidates and keeps the first of each text prefix,
// with at most maxPerSection per section, until topK are kept.
func diversify(ranked []types.RetrievalResult, topK int) []types.RetrievalResult {
	seen := make(map[string]struct{}, len(ranked))
	perSection := make(map[types.Section]int)
	out := make([]types.RetrievalResult, 0, topK)
	for _, r := range ranked {
		if len(out) == topK {
			break
		}
		key := prefix(r.Text, dedupeRunes)
		if _, dup := seen[key]; dup {
			continue
		}
		if perSection[r.Section] >= maxPerSection {
			continue
		}
		seen[key] = struct{}{}
		perSection[r.Section]++
		out = append(out, r)
	}
	return out
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

func metaString(md map[string]any, key string) string {
	if v, ok := md[key].(string); ok {
		return v
	}
	return ""
}

// metaInt reads numbers stored natively or decoded from JSON.
func metaInt(md map[string]any, key string) int {
	switch v := md[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	default:
		return 0
	}
}

func metaTags(md map[string]any) []types.Tag {
	var tags []types.Tag
	switch v := md["tags"].(type) {
	case []string:
		for _, t := range v {
			tags = append(tags, types.Tag(t))
		}
	case []any:
		for _, t := range v {
			if s, ok := t.(string); ok {
				tags = append(tags, types.Tag(s))
			}
		}
	}
	return tags
}
