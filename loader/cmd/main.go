package main

import (
	"context"
	stdlog "log"
	"os"

	"nutriplan/config"
	"nutriplan/kb"
	"nutriplan/loader/cli"
	"nutriplan/loader/internal"
	"nutriplan/loader/service"
	"nutriplan/logger"
	"nutriplan/model"
	"nutriplan/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatal("error loading configuration: ", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		stdlog.Fatal("error creating logger: ", err)
	}
	defer log.Sync()

	root := cli.NewRootCmd(func(ctx context.Context) (*cli.Runtime, error) {
		return open(ctx, cfg, log)
	})
	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Error("[LOADER] command failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func open(ctx context.Context, cfg config.Config, log *logger.Logger) (*cli.Runtime, error) {
	vectors, closeStore, err := store.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	embedder, closeEmbedder, err := model.OpenEmbedder(ctx, cfg, log)
	if err != nil {
		closeStore()
		return nil, err
	}

	knowledge := kb.NewKnowledgeStore(vectors, embedder, cfg.Collection,
		kb.WithDimension(cfg.EmbeddingDim),
		kb.WithBatchSize(cfg.EmbedBatchSize),
		kb.WithBatchPause(cfg.BatchPause),
		kb.WithLogger(log),
	)
	chunker := kb.NewChunker(kb.WithChunkSize(cfg.ChunkSize), kb.WithOverlap(cfg.ChunkOverlap))
	pdfLoader := internal.NewPDFLoader(cfg.CropTop, cfg.CropBottom, log)
	svc := service.New(knowledge, chunker, pdfLoader,
		service.WithResetPause(cfg.ResetPause),
		service.WithArchiveDir(cfg.ArchiveDir),
		service.WithLogger(log),
	)

	return &cli.Runtime{
		Service:  svc,
		KB:       knowledge,
		Watcher:  internal.NewWatcher(cfg.InboxDir, cfg.WatchInterval, cfg.WatchSettle, log),
		Document: cfg.Document,
		Close: func() {
			if err := closeEmbedder(); err != nil {
				log.Warn("[LOADER] close embedder cache", "error", err)
			}
			if err := closeStore(); err != nil {
				log.Warn("[LOADER] close store", "error", err)
			}
		},
	}, nil
}
