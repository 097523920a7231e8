package kb

import (
	"strings"

	"nutriplan/types"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// separators are tried in order when looking for a cut point.
var separators = []string{"\n\n", "\n", ". ", " "}

type Chunker struct {
	size     int
	overlap  int
	taxonomy *Taxonomy
}

type ChunkerOption func(*Chunker)

func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

func WithOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

func WithTaxonomy(t *Taxonomy) ChunkerOption {
	return func(c *Chunker) {
		if t != nil {
			c.taxonomy = t
		}
	}
}

func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		size:     DefaultChunkSize,
		overlap:  DefaultOverlap,
		taxonomy: DefaultTaxonomy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits every page into overlapping chunks that never cross a page
// boundary. Global indexes and ids start at startIndex.
func (c *Chunker) Chunk(pages []types.Page, startIndex int) []types.Chunk {
	var chunks []types.Chunk
	idx := startIndex
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		for _, span := range c.split([]rune(page.Text)) {
			text := string(span.text)
			chunks = append(chunks, types.Chunk{
				ID:          types.ChunkID(idx),
				Text:        text,
				SourcePage:  page.Number,
				Section:     c.taxonomy.Section(text),
				Tags:        c.taxonomy.Tags(text),
				GlobalIndex: idx,
				Overlap:     span.overlap,
			})
			idx++
		}
	}
	return chunks
}

type span struct {
	text    []rune
	overlap int
}

func (c *Chunker) split(runes []rune) []span {
	var spans []span
	n := len(runes)
	start, prevEnd := 0, 0
	for start < n {
		end := start + c.size
		if end >= n {
			end = n
		} else {
			end = c.cut(runes, start, end)
		}
		overlap := 0
		if prevEnd > start {
			overlap = prevEnd - start
		}
		spans = append(spans, span{text: runes[start:end], overlap: overlap})
		if end == n {
			break
		}
		prevEnd = end
		start = c.nextStart(runes, start, end)
	}
	return spans
}

// cut finds the latest separator boundary in runes[start:end] that still
// leaves the chunk at least half full, falling back to a hard cut at end.
func (c *Chunker) cut(runes []rune, start, end int) int {
	minEnd := start + c.size/2
	if m := start + c.overlap + 1; m > minEnd {
		minEnd = m
	}
	window := string(runes[start:end])
	for _, sep := range separators {
		i := strings.LastIndex(window, sep)
		if i < 0 {
			continue
		}
		pos := start + len([]rune(window[:i+len(sep)]))
		if pos >= minEnd && pos <= end {
			return pos
		}
	}
	return end
}

// nextStart backs up by the overlap and then moves forward to a word start.
func (c *Chunker) nextStart(runes []rune, start, end int) int {
	next := end - c.overlap
	if next <= start {
		return end
	}
	for i := next; i < end; i++ {
		if runes[i] == ' ' || runes[i] == '\n' {
			if i+1 < end {
				return i + 1
			}
			break
		}
	}
	return next
}
