package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nutriplan/logger"
	"nutriplan/types"

	"github.com/ledongthuc/pdf"
)

// PDFLoader extracts per-page text from the knowledge-base document.
type PDFLoader struct {
	cropTop    float64
	cropBottom float64
	log        *logger.Logger
}

func NewPDFLoader(cropTop, cropBottom float64, log *logger.Logger) *PDFLoader {
	return &PDFLoader{cropTop: cropTop, cropBottom: cropBottom, log: logger.OrNop(log)}
}

// Pages validates the file, optionally crops headers and footers into a
// temporary copy, and returns one Page per PDF page (1-based numbers).
func (l *PDFLoader) Pages(ctx context.Context, path string) ([]types.Page, error) {
	count, err := Inspect(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIngestion, err)
	}
	l.log.Info("[LOADER] document validated", "path", path, "pages", count)

	source := path
	if l.cropTop > 0 || l.cropBottom > 0 {
		tmp, err := os.CreateTemp("", "kb-*.pdf")
		if err != nil {
			return nil, err
		}
		tmp.Close()
		defer os.Remove(tmp.Name())
		if err := CropHeaderFooter(path, tmp.Name(), l.cropTop, l.cropBottom); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrIngestion, err)
		}
		source = tmp.Name()
	}

	pages, err := extractPages(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("%w: extract %s: %v", types.ErrIngestion, path, err)
	}
	l.log.Info("[LOADER] text extracted", "path", path, "pages_with_text", len(pages))
	return pages, nil
}

func extractPages(ctx context.Context, path string) ([]types.Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fonts := make(map[string]*pdf.Font)
	var pages []types.Page
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, types.Page{Number: i, Text: text})
	}
	return pages, nil
}

// IsPDF reports whether path names a PDF by extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
