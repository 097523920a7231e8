package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"nutriplan/logger"
)

type PineconeConfig struct {
	APIKey     string
	APIVersion string
	BaseURL    string
	Cloud      string
	Region     string
	Timeout    time.Duration
	// ReadyPoll is the interval between readiness checks after index creation.
	ReadyPoll time.Duration
	// ReadyTimeout bounds how long CreateCollection waits for the index to be ready.
	ReadyTimeout time.Duration
}

// PineconeStore talks to the Pinecone control and data planes over REST.
type PineconeStore struct {
	cfg  PineconeConfig
	http *http.Client
	log  *logger.Logger

	mu    sync.Mutex
	hosts map[string]string
}

var _ VectorStorer = (*PineconeStore)(nil)

func NewPineconeStore(cfg PineconeConfig, log *logger.Logger) (*PineconeStore, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing Pinecone API key")
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = "2025-01"
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.pinecone.io"
	}
	if cfg.Cloud == "" {
		cfg.Cloud = "aws"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ReadyPoll <= 0 {
		cfg.ReadyPoll = 2 * time.Second
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Minute
	}
	return &PineconeStore{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		log:   logger.OrNop(log).With("store", "pinecone"),
		hosts: make(map[string]string),
	}, nil
}

// -------------------- Control plane --------------------

type indexDescription struct {
	Name      string `json:"name"`
	Host      string `json:"host"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

type indexList struct {
	Indexes []indexDescription `json:"indexes"`
}

type createIndexRequest struct {
	Name      string         `json:"name"`
	Dimension int            `json:"dimension"`
	Metric    string         `json:"metric"`
	Spec      map[string]any `json:"spec"`
}

func (p *PineconeStore) ListCollections(ctx context.Context) ([]string, error) {
	out, err := doJSON[indexList](p, ctx, http.MethodGet, p.controlURL("/indexes"), nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Indexes))
	for _, idx := range out.Indexes {
		names = append(names, idx.Name)
	}
	return names, nil
}

func (p *PineconeStore) CreateCollection(ctx context.Context, name string, dimension int, metric string) error {
	req := createIndexRequest{
		Name:      name,
		Dimension: dimension,
		Metric:    metric,
		Spec: map[string]any{
			"serverless": map[string]string{"cloud": p.cfg.Cloud, "region": p.cfg.Region},
		},
	}
	if _, err := doJSON[indexDescription](p, ctx, http.MethodPost, p.controlURL("/indexes"), req); err != nil {
		return err
	}
	p.log.Info("[STORE] index created, waiting until ready", "index", name, "dimension", dimension)
	return p.waitReady(ctx, name)
}

func (p *PineconeStore) waitReady(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ReadyTimeout)
	defer cancel()
	ticker := time.NewTicker(p.cfg.ReadyPoll)
	defer ticker.Stop()
	for {
		desc, err := p.describeIndex(ctx, name)
		if err == nil && desc.Status.Ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("index %s not ready: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (p *PineconeStore) DeleteCollection(ctx context.Context, name string) error {
	_, err := doJSON[struct{}](p, ctx, http.MethodDelete, p.controlURL("/indexes/"+name), nil)
	p.mu.Lock()
	delete(p.hosts, name)
	p.mu.Unlock()
	return err
}

func (p *PineconeStore) describeIndex(ctx context.Context, name string) (*indexDescription, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("index name required")
	}
	out, err := doJSON[indexDescription](p, ctx, http.MethodGet, p.controlURL("/indexes/"+name), nil)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Host) == "" {
		return nil, fmt.Errorf("pinecone describe_index returned empty host")
	}
	return out, nil
}

// PinHost sets the data-plane host of an index, skipping describe_index.
func (p *PineconeStore) PinHost(name, host string) {
	p.mu.Lock()
	p.hosts[name] = normalizeHost(host)
	p.mu.Unlock()
}

func normalizeHost(h string) string {
	if !strings.HasPrefix(h, "http://") && !strings.HasPrefix(h, "https://") {
		h = "https://" + h
	}
	return strings.TrimRight(h, "/")
}

// host resolves and caches the data-plane host of an index.
func (p *PineconeStore) host(ctx context.Context, name string) (string, error) {
	p.mu.Lock()
	h, ok := p.hosts[name]
	p.mu.Unlock()
	if ok {
		return h, nil
	}
	desc, err := p.describeIndex(ctx, name)
	if err != nil {
		return "", err
	}
	h = normalizeHost(desc.Host)
	p.mu.Lock()
	p.hosts[name] = h
	p.mu.Unlock()
	return h, nil
}

// -------------------- Data plane --------------------

type upsertRequest struct {
	Vectors []Record `json:"vectors"`
}

type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata,omitempty"`
	} `json:"matches"`
}

type indexStats struct {
	TotalVectorCount int `json:"totalVectorCount"`
	Dimension        int `json:"dimension"`
}

func (p *PineconeStore) Upsert(ctx context.Context, collection string, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	h, err := p.host(ctx, collection)
	if err != nil {
		return 0, err
	}
	out, err := doJSON[upsertResponse](p, ctx, http.MethodPost, h+"/vectors/upsert", upsertRequest{Vectors: records})
	if err != nil {
		return 0, err
	}
	return out.UpsertedCount, nil
}

func (p *PineconeStore) Query(ctx context.Context, collection string, vector []float32, topK int, includeMetadata bool) ([]Match, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector required")
	}
	if topK <= 0 {
		topK = 10
	}
	h, err := p.host(ctx, collection)
	if err != nil {
		return nil, err
	}
	out, err := doJSON[queryResponse](p, ctx, http.MethodPost, h+"/query", queryRequest{
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: includeMetadata,
	})
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(out.Matches))
	for _, m := range out.Matches {
		matches = append(matches, Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return matches, nil
}

func (p *PineconeStore) Describe(ctx context.Context, collection string) (Stats, error) {
	h, err := p.host(ctx, collection)
	if err != nil {
		return Stats{}, err
	}
	out, err := doJSON[indexStats](p, ctx, http.MethodPost, h+"/describe_index_stats", struct{}{})
	if err != nil {
		return Stats{}, err
	}
	return Stats{TotalVectorCount: out.TotalVectorCount, Dimension: out.Dimension}, nil
}

// -------------------- helpers --------------------

func (p *PineconeStore) controlURL(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

func doJSON[T any](p *PineconeStore, ctx context.Context, method, url string, body any) (*T, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Api-Key", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pinecone-Api-Version", p.cfg.APIVersion)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: pinecone %s %s", ErrCollectionNotFound, method, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pinecone http %d: %s", resp.StatusCode, string(raw))
	}

	var out T
	if len(bytes.TrimSpace(raw)) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("pinecone decode error: %w; raw=%s", err, string(raw))
	}
	return &out, nil
}
