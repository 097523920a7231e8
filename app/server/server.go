package server

import (
	"context"
	"sync"
	"time"

	"nutriplan/app/agent"
	"nutriplan/app/api"
	"nutriplan/config"
	"nutriplan/kb"
	"nutriplan/logger"
	"nutriplan/model"
	"nutriplan/store"

	"github.com/gofiber/fiber/v2"
)

const sessionLimit = 100

type Handlers struct {
	Check  *api.CheckHandler
	Config *api.ConfigHandler
	Plan   *api.PlanHandler
	File   *api.FileHandler
}

// Routes mounts every endpoint on app.
func Routes(app *fiber.App, h Handlers) {
	var (
		check = app.Group("/check")
		apiv1 = app.Group("/api/v1")
	)
	check.Get("/healthy", h.Check.HandleHealthy)
	check.Get("/ready", h.Check.HandleReady)

	apiv1.Get("/config", h.Config.HandleGetConfig)
	apiv1.Post("/targets", h.Plan.HandleTargets)
	apiv1.Post("/search", h.Plan.HandleSearch)
	apiv1.Post("/plan", h.Plan.HandlePlan)
	apiv1.Get("/plan/:id/txt", h.Plan.HandlePlanText)
	apiv1.Get("/plan/:id/pdf", h.Plan.HandlePlanPDF)
	apiv1.Post("/kb/upload", h.File.HandleUpload)
}

// NewApp builds the fiber app with the JSON error handler.
func NewApp(log *logger.Logger) *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: api.NewErrorHandler(log),
		ReadTimeout:  30 * time.Second,
		// plan generation runs several model calls in sequence
		WriteTimeout: 10 * time.Minute,
	})
}

type Server struct {
	cfg config.Config
	log *logger.Logger

	mu      sync.Mutex
	app     *fiber.App
	closers []func() error
}

func NewServer(cfg config.Config, log *logger.Logger) *Server {
	return &Server{cfg: cfg, log: logger.OrNop(log)}
}

// Run wires the pipeline and blocks serving HTTP until Stop.
func (s *Server) Run(ctx context.Context) error {
	vectors, closeStore, err := store.Open(ctx, s.cfg, s.log)
	if err != nil {
		return err
	}
	s.addCloser(closeStore)

	embedder, closeEmbedder, err := model.OpenEmbedder(ctx, s.cfg, s.log)
	if err != nil {
		return err
	}
	s.addCloser(closeEmbedder)

	completer, err := model.OpenCompleter(s.cfg)
	if err != nil {
		return err
	}

	knowledge := kb.NewKnowledgeStore(vectors, embedder, s.cfg.Collection,
		kb.WithDimension(s.cfg.EmbeddingDim),
		kb.WithBatchSize(s.cfg.EmbedBatchSize),
		kb.WithBatchPause(s.cfg.BatchPause),
		kb.WithLogger(s.log),
	)
	if created, err := knowledge.EnsureCollection(ctx); err != nil {
		return err
	} else if created {
		s.log.Warn("[SERVER] knowledge base was empty; run `loader reindex` before generating plans")
	}

	generator := agent.NewPlanGenerator(completer, agent.NewPlanValidator(agent.DefaultTolerance()),
		agent.WithModel(s.cfg.LLMModel),
		agent.WithMaxAttempts(s.cfg.MaxAttempts),
		agent.WithTemperature(s.cfg.BaseTemperature, s.cfg.TemperatureStep),
		agent.WithMaxTokens(s.cfg.MaxTokens),
		agent.WithDays(s.cfg.PlanDays),
		agent.WithGeneratorLogger(s.log),
	)

	app := NewApp(s.log)
	Routes(app, Handlers{
		Check:  api.NewCheckHandler(knowledge),
		Config: api.NewConfigHandler(api.SettingsFrom(s.cfg)),
		Plan: api.NewPlanHandler(knowledge, agent.NewContextAssembler(knowledge, s.log), generator,
			api.NewSessions(sessionLimit), s.log),
		File: api.NewFileHandler(s.cfg.InboxDir, s.log),
	})
	s.mu.Lock()
	s.app = app
	s.mu.Unlock()

	s.log.Info("[SERVER] listening", "addr", s.cfg.ServerAddr, "backend", s.cfg.VectorBackend, "collection", s.cfg.Collection)
	return app.Listen(s.cfg.ServerAddr)
}

func (s *Server) addCloser(fn func() error) {
	s.mu.Lock()
	s.closers = append(s.closers, fn)
	s.mu.Unlock()
}

// Stop shuts the HTTP server down and releases backends in reverse order.
func (s *Server) Stop() {
	s.mu.Lock()
	app, closers := s.app, s.closers
	s.mu.Unlock()

	if app != nil {
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			s.log.Error("[SERVER] shutdown failed", "error", err)
		}
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			s.log.Warn("[SERVER] close failed", "error", err)
		}
	}
	s.log.Info("[SERVER] server stopped")
}
