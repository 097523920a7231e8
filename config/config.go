package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"nutriplan/types"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr string `validate:"required"`
	LogMode    string `validate:"oneof=dev prod production"`

	OpenAIKey     string `validate:"required_if=EmbeddingProvider openai,required_if=LLMProvider openai"`
	OpenAIBaseURL string

	EmbeddingProvider string `validate:"oneof=openai ollama hash"`
	EmbeddingModel    string
	EmbeddingDim      int    `validate:"gt=0"`
	OllamaEmbedURL    string `validate:"required_if=EmbeddingProvider ollama"`
	OllamaEmbedModel  string

	LLMProvider string `validate:"oneof=openai ollama"`
	LLMModel    string `validate:"required"`
	LLMURL      string `validate:"required_if=LLMProvider ollama"`
	MaxTokens   int    `validate:"gt=0"`

	VectorBackend  string `validate:"oneof=pgvector pinecone memory"`
	PineconeAPIKey string `validate:"required_if=VectorBackend pinecone"`
	PineconeHost   string
	PGHost         string `validate:"required_if=VectorBackend pgvector"`
	PGPort         int
	PGUser         string
	PGPass         string
	PGDBName       string `validate:"required_if=VectorBackend pgvector"`

	Collection string `validate:"required"`
	Document   string `validate:"required"`
	InboxDir   string
	ArchiveDir string

	// CropTop and CropBottom trim running headers and footers, in points.
	CropTop       float64       `validate:"gte=0"`
	CropBottom    float64       `validate:"gte=0"`
	ResetPause    time.Duration `validate:"gte=0"`
	WatchInterval time.Duration `validate:"gt=0"`
	WatchSettle   time.Duration `validate:"gte=0"`

	ChunkSize       int           `validate:"gt=0"`
	ChunkOverlap    int           `validate:"gte=0,ltfield=ChunkSize"`
	EmbedBatchSize  int           `validate:"gt=0"`
	BatchPause      time.Duration `validate:"gte=0"`
	MaxAttempts     int           `validate:"gt=0"`
	BaseTemperature float64       `validate:"gte=0,lte=2"`
	TemperatureStep float64       `validate:"gte=0"`
	PlanDays        int           `validate:"gte=1,lte=7"`

	RedisAddr string
}

// Load reads an optional .env file and the process environment.
// Validation failures wrap types.ErrConfiguration.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("%w: load .env: %v", types.ErrConfiguration, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() (Config, error) {
	cfg := Config{
		ServerAddr: get("SERVER_ADDR", ":3000"),
		LogMode:    get("LOG_MODE", "dev"),

		OpenAIKey:     get("OPENAI_API_KEY", ""),
		OpenAIBaseURL: get("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		EmbeddingProvider: strings.ToLower(get("EMBEDDING_PROVIDER", "openai")),
		EmbeddingModel:    get("EMBEDDING_MODEL", "text-embedding-ada-002"),
		EmbeddingDim:      getInt("EMBEDDING_DIM", 1536),
		OllamaEmbedURL:    get("OLLAMA_EMBEDDING_URL", ""),
		OllamaEmbedModel:  get("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),

		LLMProvider: strings.ToLower(get("LLM_PROVIDER", "openai")),
		LLMModel:    get("LLM_MODEL", "gpt-4o-mini"),
		LLMURL:      get("LLM_URL", ""),
		MaxTokens:   getInt("MAX_TOKENS", 2500),

		VectorBackend:  strings.ToLower(get("VECTOR_BACKEND", "pinecone")),
		PineconeAPIKey: get("PINECONE_API_KEY", ""),
		PineconeHost:   get("PINECONE_HOST", ""),
		PGHost:         get("PG_HOST", ""),
		PGPort:         getInt("PG_PORT", 5432),
		PGUser:         get("PG_USER", ""),
		PGPass:         get("PG_PASS", ""),
		PGDBName:       get("PG_DB_NAME", ""),

		Collection: get("KB_COLLECTION", "tresdiasycarga"),
		Document:   get("KB_DOCUMENT", "data/libro_nutricion.pdf"),
		InboxDir:   get("KB_INBOX_DIR", "data/inbox"),
		ArchiveDir: get("KB_ARCHIVE_DIR", "data/archive"),

		CropTop:       getFloat("KB_CROP_TOP", 0),
		CropBottom:    getFloat("KB_CROP_BOTTOM", 0),
		ResetPause:    getDuration("KB_RESET_PAUSE", 5*time.Second),
		WatchInterval: getDuration("KB_WATCH_INTERVAL", time.Second),
		WatchSettle:   getDuration("KB_WATCH_SETTLE", 5*time.Second),

		ChunkSize:       getInt("CHUNK_SIZE", 1000),
		ChunkOverlap:    getInt("CHUNK_OVERLAP", 200),
		EmbedBatchSize:  getInt("EMBED_BATCH_SIZE", 50),
		BatchPause:      getDuration("BATCH_PAUSE", 2*time.Second),
		MaxAttempts:     getInt("MAX_ATTEMPTS", 3),
		BaseTemperature: getFloat("BASE_TEMPERATURE", 0.7),
		TemperatureStep: getFloat("TEMPERATURE_STEP", 0.2),
		PlanDays:        getInt("PLAN_DAYS", 3),

		RedisAddr: get("REDIS_ADDR", ""),
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s", types.ErrConfiguration, describe(err))
	}
	return cfg, nil
}

// PostgresDSN returns the connection string in the form pgxpool expects.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.PGHost, c.PGPort, c.PGUser, c.PGPass, c.PGDBName)
}

var validate = validator.New()

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", e.Field(), e.Tag()))
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

func get(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v, err := strconv.Atoi(get(k, ""))
	if err != nil {
		return def
	}
	return v
}

func getFloat(k string, def float64) float64 {
	v, err := strconv.ParseFloat(get(k, ""), 64)
	if err != nil {
		return def
	}
	return v
}

// getDuration accepts Go durations ("2s") or plain seconds ("2").
func getDuration(k string, def time.Duration) time.Duration {
	raw := get(k, "")
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}
