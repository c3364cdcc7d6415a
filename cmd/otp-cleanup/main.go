// Command otp-cleanup runs the OTP and rate-limit purge once. Schedule it
// from cron or a Kubernetes CronJob.
package main

import (
	"context"
	"os"
	"time"

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
	log := logger.New(cfg.IsDevelopment(), cfg.LogLevel).With().Str("job", "otp-cleanup").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	c, err := app.NewContainer(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	defer c.Close()

	deleted, err := c.OTPSvc.Cleanup(ctx)
	if err != nil {
		log.Error().Err(err).Msg("cleanup failed")
		c.Close()
		os.Exit(1)
	}
	log.Info().Int64("deleted", deleted).Msg("cleanup complete")
}
