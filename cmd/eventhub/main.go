package main

import (
	"os"

	"github.com/you/eventhub/internal/app"
	"github.com/you/eventhub/internal/config"
	"github.com/you/eventhub/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New(false, "info")
		log.Fatal().Err(err).Msg("config")
	}

	log := logger.New(cfg.IsDevelopment(), cfg.LogLevel)
	if err := app.Run(cfg, log); err != nil {
		log.Error().Err(err).Msg("app")
		os.Exit(1)
	}
}
