package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"nutriplan/app/server"
	"nutriplan/config"
	"nutriplan/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("error loading configuration: ", err)
	}
	zl, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatal("error creating logger: ", err)
	}
	defer zl.Sync()

	s := server.NewServer(cfg, zl)
	go func() {
		if err := s.Run(context.Background()); err != nil {
			zl.Error("[SERVER] stopped with error", "error", err)
			zl.Sync()
			os.Exit(1)
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	zl.Info("[SERVER] received shutdown signal, shutting down server...")
	s.Stop()
}
