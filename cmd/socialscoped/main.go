package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"socialscope/internal/agent"
	"socialscope/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, logger, err := bootstrap("")
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	a, err := agent.New(cfg, logger)
	if err != nil {
		logger.Error("create agent", logging.Error(err))
		return
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		logger.Error("start agent", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("socialscoped shutting down")
	a.Stop(context.Background())
}
