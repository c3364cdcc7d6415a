package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/you/eventhub/internal/config"
	httpx "github.com/you/eventhub/internal/http"
	"github.com/you/eventhub/internal/http/handlers"
	"github.com/you/eventhub/internal/http/middleware"
)

// Run wires the service and serves HTTP until the process is signalled.
func Run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := NewContainer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	gin.SetMode(cfg.GinMode)
	r := httpx.BuildRouter(httpx.Handlers{
		Auth:    handlers.NewAuthHandlers(c.AuthSvc),
		Admin:   handlers.NewAdminHandlers(c.ApprovalSvc),
		Expense: handlers.NewExpenseHandlers(c.ExpenseSvc),
		Cleanup: handlers.NewCleanupHandlers(c.OTPSvc, cfg.CleanupSecret),
		Policy:  handlers.NewPolicyHandlers(c.PolicySvc),
	}, middleware.NewAuthMW(c.TokenSvc), middleware.NewCasbinMW(c.PolicySvc), log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("environment", cfg.Environment).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
