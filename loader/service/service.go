package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nutriplan/kb"
	"nutriplan/loader/internal"
	"nutriplan/logger"
	"nutriplan/types"
)

// PageSource turns a document into pages of text.
type PageSource interface {
	Pages(ctx context.Context, path string) ([]types.Page, error)
}

type Service struct {
	log        *logger.Logger
	kb         *kb.KnowledgeStore
	chunker    *kb.Chunker
	pages      PageSource
	resetPause time.Duration
	archiveDir string
	now        func() time.Time
}

type Option func(*Service)

func WithResetPause(d time.Duration) Option {
	return func(s *Service) { s.resetPause = d }
}

func WithArchiveDir(dir string) Option {
	return func(s *Service) { s.archiveDir = dir }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = logger.OrNop(l) }
}

func New(store *kb.KnowledgeStore, chunker *kb.Chunker, pages PageSource, opts ...Option) *Service {
	s := &Service{
		log:     logger.Nop(),
		kb:      store,
		chunker: chunker,
		pages:   pages,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestReport summarizes one full rebuild of the knowledge base.
type IngestReport struct {
	Document string            `json:"document"`
	Pages    int               `json:"pages"`
	Chunks   int               `json:"chunks"`
	Written  int               `json:"written"`
	Stored   int               `json:"stored"`
	Failures []kb.BatchFailure `json:"-"`
	Took     time.Duration     `json:"took"`
}

// Shortfall is how many chunks are missing from the store after the rebuild.
func (r IngestReport) Shortfall() int {
	return max(r.Chunks-r.Stored, 0)
}

// Reindex rebuilds the collection from scratch: delete, pause, create, chunk,
// upsert, then compare the stored vector count with the chunk count.
func (s *Service) Reindex(ctx context.Context, path string) (IngestReport, error) {
	start := s.now()
	report := IngestReport{Document: path}

	pages, err := s.pages.Pages(ctx, path)
	if err != nil {
		return report, err
	}
	report.Pages = len(pages)
	chunks := s.chunker.Chunk(pages, 0)
	report.Chunks = len(chunks)
	if len(chunks) == 0 {
		return report, fmt.Errorf("%w: %s has no extractable text", types.ErrIngestion, path)
	}
	s.log.Info("[LOADER] document chunked", "pages", report.Pages, "chunks", report.Chunks)

	if err := s.kb.Reset(ctx); err != nil {
		return report, err
	}
	if s.resetPause > 0 {
		select {
		case <-time.After(s.resetPause):
		case <-ctx.Done():
			return report, ctx.Err()
		}
	}
	if _, err := s.kb.EnsureCollection(ctx); err != nil {
		return report, err
	}

	up, err := s.kb.Upsert(ctx, chunks, 0)
	report.Written = up.Written
	report.Failures = up.Failures
	if err != nil {
		return report, err
	}

	stats, err := s.kb.Stats(ctx)
	if err != nil {
		return report, err
	}
	report.Stored = stats.TotalVectorCount
	report.Took = s.now().Sub(start)

	if report.Shortfall() > 0 {
		s.log.Warn("[LOADER] stored vectors below chunk count", "chunks", report.Chunks, "stored", report.Stored)
	}
	s.log.Info("[LOADER] reindex finished", "written", report.Written, "stored", report.Stored, "took", report.Took)
	return report, up.Err()
}

type probeCategory struct {
	name    string
	queries []string
}

var coverageProbes = []probeCategory{
	{"metodologia", []string{"método tres días y carga", "distribución de comidas", "timing nutricional"}},
	{"alimentos", []string{"alimentos permitidos", "porciones recomendadas", "alternativas alimentarias"}},
	{"planes", []string{"ejemplo plan pérdida grasa", "ejemplo plan ganancia muscular", "ejemplo plan mantenimiento"}},
	{"ajustes", []string{"ajustes por objetivo", "ajustes por restricciones", "ajustes por actividad"}},
}

const (
	probeTopK      = 1
	probeThreshold = 0.5
)

type ProbeResult struct {
	Query   string        `json:"query"`
	Found   bool          `json:"found"`
	Score   float64       `json:"score,omitempty"`
	Section types.Section `json:"section,omitempty"`
}

type CategoryCoverage struct {
	Name    string        `json:"name"`
	Probes  []ProbeResult `json:"probes"`
	Percent float64       `json:"percent"`
}

type CoverageReport struct {
	Categories []CategoryCoverage `json:"categories"`
	Percent    float64            `json:"percent"`
}

// VerifyCoverage runs the fixed probe queries and reports which topics the
// knowledge base can answer.
func (s *Service) VerifyCoverage(ctx context.Context) (CoverageReport, error) {
	var (
		report       CoverageReport
		found, total int
	)
	for _, cat := range coverageProbes {
		cc := CategoryCoverage{Name: cat.name}
		hits := 0
		for _, q := range cat.queries {
			res, err := s.kb.Search(ctx, q, probeTopK, probeThreshold)
			if err != nil {
				return CoverageReport{}, err
			}
			pr := ProbeResult{Query: q}
			if len(res) > 0 {
				pr.Found = true
				pr.Score = res[0].Score
				pr.Section = res[0].Section
				hits++
			}
			cc.Probes = append(cc.Probes, pr)
		}
		cc.Percent = 100 * float64(hits) / float64(len(cat.queries))
		report.Categories = append(report.Categories, cc)
		found += hits
		total += len(cat.queries)
		s.log.Info("[VERIFY] category checked", "category", cat.name, "coverage", cc.Percent)
	}
	report.Percent = 100 * float64(found) / float64(total)
	return report, nil
}

// Watch rebuilds the knowledge base whenever a PDF settles in the watcher's
// inbox, archiving it afterwards. It returns when ctx ends.
func (s *Service) Watch(ctx context.Context, w *internal.Watcher) error {
	paths := make(chan string, 10)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx, paths)
	}()

	for path := range paths {
		report, err := s.Reindex(ctx, path)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			w.Done(path)
			break
		}
		failed := err != nil
		if failed {
			s.log.Error("[WATCH] reindex failed", "path", path, "error", err)
		} else {
			s.log.Info("[WATCH] reindex done", "path", path, "chunks", report.Chunks, "stored", report.Stored)
		}
		if s.archiveDir != "" {
			if dest, err := internal.MoveToArchive(path, s.archiveDir, failed, s.now()); err != nil {
				s.log.Error("[WATCH] archive failed", "path", path, "error", err)
			} else {
				s.log.Info("[WATCH] file archived", "dest", dest)
			}
		}
		w.Done(path)
	}

	// drain so the watcher goroutine can exit
	for range paths {
	}
	wg.Wait()
	return ctx.Err()
}
