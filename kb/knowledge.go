package kb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"nutriplan/logger"
	"nutriplan/model"
	"nutriplan/store"
	"nutriplan/types"

	"golang.org/x/time/rate"
)

const (
	DefaultDimension = 1536
	DefaultBatchSize = 50
)

// KnowledgeStore owns one embedding-indexed collection of chunks.
type KnowledgeStore struct {
	vectors    store.VectorStorer
	embedder   model.Embedder
	collection string
	dimension  int
	batchSize  int
	pause      time.Duration
	taxonomy   *Taxonomy
	log        *logger.Logger
}

type Option func(*KnowledgeStore)

func WithDimension(dim int) Option {
	return func(k *KnowledgeStore) {
		if dim > 0 {
			k.dimension = dim
		}
	}
}

func WithBatchSize(n int) Option {
	return func(k *KnowledgeStore) {
		if n > 0 {
			k.batchSize = n
		}
	}
}

// WithBatchPause sets the minimum spacing between upsert batches.
func WithBatchPause(d time.Duration) Option {
	return func(k *KnowledgeStore) {
		if d >= 0 {
			k.pause = d
		}
	}
}

func WithSearchTaxonomy(t *Taxonomy) Option {
	return func(k *KnowledgeStore) {
		if t != nil {
			k.taxonomy = t
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(k *KnowledgeStore) {
		if l != nil {
			k.log = l
		}
	}
}

func NewKnowledgeStore(vectors store.VectorStorer, embedder model.Embedder, collection string, opts ...Option) *KnowledgeStore {
	k := &KnowledgeStore{
		vectors:    vectors,
		embedder:   embedder,
		collection: collection,
		dimension:  DefaultDimension,
		batchSize:  DefaultBatchSize,
		taxonomy:   DefaultTaxonomy(),
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.log = k.log.With("collection", collection)
	return k
}

func (k *KnowledgeStore) Collection() string { return k.collection }

// EnsureCollection creates the collection if it is absent and reports whether it did.
func (k *KnowledgeStore) EnsureCollection(ctx context.Context) (bool, error) {
	names, err := k.vectors.ListCollections(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: list collections: %v", types.ErrIngestion, err)
	}
	if slices.Contains(names, k.collection) {
		return false, nil
	}
	if err := k.vectors.CreateCollection(ctx, k.collection, k.dimension, store.MetricCosine); err != nil {
		return false, fmt.Errorf("%w: create collection: %v", types.ErrIngestion, err)
	}
	k.log.Info("[KB] collection created", "dimension", k.dimension)
	return true, nil
}

// Reset deletes the collection if present. A full rebuild starts here.
func (k *KnowledgeStore) Reset(ctx context.Context) error {
	names, err := k.vectors.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("%w: list collections: %v", types.ErrIngestion, err)
	}
	if !slices.Contains(names, k.collection) {
		return nil
	}
	if err := k.vectors.DeleteCollection(ctx, k.collection); err != nil && !errors.Is(err, store.ErrCollectionNotFound) {
		return fmt.Errorf("%w: delete collection: %v", types.ErrIngestion, err)
	}
	k.log.Info("[KB] collection deleted")
	return nil
}

func (k *KnowledgeStore) Stats(ctx context.Context) (store.Stats, error) {
	stats, err := k.vectors.Describe(ctx, k.collection)
	if err != nil {
		return store.Stats{}, fmt.Errorf("%w: describe: %v", types.ErrRetrieval, err)
	}
	return stats, nil
}

type BatchFailure struct {
	Batch int
	From  int
	To    int
	Err   error
}

type UpsertReport struct {
	Written  int
	Batches  int
	Failures []BatchFailure
}

// Err joins every batch failure under types.ErrIngestion, or returns nil.
func (r UpsertReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("batch %d [%d,%d): %w", f.Batch, f.From, f.To, f.Err))
	}
	return fmt.Errorf("%w: %d of %d batches failed: %w", types.ErrIngestion, len(r.Failures), r.Batches, errors.Join(errs...))
}

// Upsert embeds and writes chunks in batches with ids chunk_<startIndex+i>.
// A failed batch is recorded and the remaining batches still run. The
// returned error is non-nil only when ctx ends.
func (k *KnowledgeStore) Upsert(ctx context.Context, chunks []types.Chunk, startIndex int) (UpsertReport, error) {
	var report UpsertReport
	limit := rate.Inf
	if k.pause > 0 {
		limit = rate.Every(k.pause)
	}
	limiter := rate.NewLimiter(limit, 1)

	for from := 0; from < len(chunks); from += k.batchSize {
		to := min(from+k.batchSize, len(chunks))
		report.Batches++
		if err := limiter.Wait(ctx); err != nil {
			return report, err
		}

		batch := chunks[from:to]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		written, err := k.writeBatch(ctx, batch, texts, startIndex+from)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			k.log.Warn("[KB] batch failed", "batch", report.Batches, "from", startIndex+from, "error", err)
			report.Failures = append(report.Failures, BatchFailure{Batch: report.Batches, From: startIndex + from, To: startIndex + to, Err: err})
			continue
		}
		report.Written += written
		k.log.Info("[KB] batch written", "batch", report.Batches, "vectors", written)
	}
	return report, nil
}

func (k *KnowledgeStore) writeBatch(ctx context.Context, batch []types.Chunk, texts []string, first int) (int, error) {
	vectors, err := k.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(batch) {
		return 0, fmt.Errorf("embed: got %d vectors for %d texts", len(vectors), len(batch))
	}
	records := make([]store.Record, len(batch))
	for i, c := range batch {
		records[i] = store.Record{
			ID:       types.ChunkID(first + i),
			Values:   vectors[i],
			Metadata: chunkMetadata(c),
		}
	}
	n, err := k.vectors.Upsert(ctx, k.collection, records)
	if err != nil {
		return 0, fmt.Errorf("upsert: %w", err)
	}
	return n, nil
}

func chunkMetadata(c types.Chunk) map[string]any {
	tags := make([]string, len(c.Tags))
	for i, t := range c.Tags {
		tags[i] = string(t)
	}
	return map[string]any{
		"text":    c.Text,
		"page":    c.SourcePage,
		"section": string(c.Section),
		"tags":    tags,
	}
}
