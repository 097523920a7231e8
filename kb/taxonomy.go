package kb

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"
	"sync"

	"nutriplan/types"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomyYAML []byte

type keywordSet struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Intent is a special query pattern that tightens candidate filtering.
type Intent struct {
	Name        string   `yaml:"name"`
	Triggers    []string `yaml:"triggers"`
	Required    []string `yaml:"required"`
	MinRequired int      `yaml:"min_required"`
	Excluded    []string `yaml:"excluded"`
}

type Taxonomy struct {
	TagSets  []keywordSet `yaml:"tags"`
	Sections []keywordSet `yaml:"sections"`
	Intents  []Intent     `yaml:"intents"`
}

var (
	defaultOnce sync.Once
	defaultTax  *Taxonomy
)

// DefaultTaxonomy returns the embedded taxonomy.
func DefaultTaxonomy() *Taxonomy {
	defaultOnce.Do(func() {
		t, err := ParseTaxonomy(bytes.NewReader(defaultTaxonomyYAML))
		if err != nil {
			panic(fmt.Sprintf("embedded taxonomy: %v", err))
		}
		defaultTax = t
	})
	return defaultTax
}

// ParseTaxonomy decodes a taxonomy file and folds every keyword.
func ParseTaxonomy(r io.Reader) (*Taxonomy, error) {
	var t Taxonomy
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}
	for i := range t.TagSets {
		t.TagSets[i].Keywords = foldAll(t.TagSets[i].Keywords)
	}
	for i := range t.Sections {
		t.Sections[i].Keywords = foldAll(t.Sections[i].Keywords)
	}
	for i := range t.Intents {
		in := &t.Intents[i]
		in.Triggers = foldAll(in.Triggers)
		in.Required = foldAll(in.Required)
		in.Excluded = foldAll(in.Excluded)
		if in.MinRequired < 0 || in.MinRequired > len(in.Required) {
			return nil, fmt.Errorf("intent %s: min_required %d out of range", in.Name, in.MinRequired)
		}
	}
	return &t, nil
}

// Tags returns every tag whose keywords appear in text, in taxonomy order.
func (t *Taxonomy) Tags(text string) []types.Tag {
	folded := types.FoldLabel(text)
	var tags []types.Tag
	for _, set := range t.TagSets {
		if countMatches(folded, set.Keywords) > 0 {
			tags = append(tags, types.Tag(set.Name))
		}
	}
	return tags
}

func (t *Taxonomy) Section(text string) types.Section {
	folded := types.FoldLabel(text)
	for _, set := range t.Sections {
		if countMatches(folded, set.Keywords) > 0 {
			return types.Section(set.Name)
		}
	}
	return types.SectionGeneral
}

// DetectIntent returns the first intent triggered by the query, or nil.
func (t *Taxonomy) DetectIntent(query string) *Intent {
	folded := types.FoldLabel(query)
	for i := range t.Intents {
		if countMatches(folded, t.Intents[i].Triggers) > 0 {
			return &t.Intents[i]
		}
	}
	return nil
}

func countMatches(folded string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(folded, kw) {
			n++
		}
	}
	return n
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if f := types.FoldLabel(s); f != "" {
			out = append(out, f)
		}
	}
	return out
}
