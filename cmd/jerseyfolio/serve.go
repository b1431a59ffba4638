package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/jerseyfolio"
	"github.com/eringen/jerseyfolio/logging"
	"github.com/eringen/jerseyfolio/mirror"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the catalog server",
	Long: `Serves the data documents, the JSON API, the gallery and admin pages and
the /api/events stream. ADMIN_PASSWORD (or ADMIN_PASSWORD_HASH) and
SESSION_SECRET must be set.

When AMQP_URL is set, changes are relayed to every other instance bound to
the same exchange. When S3_BUCKET is set, uploads are mirrored to it.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := jerseyfolio.LoadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}

	amqp.SetLogger(logging.NewPrintfAdapter(logger.Named("amqp091")))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []jerseyfolio.Option{jerseyfolio.WithLogger(logger)}
	if cfg.S3.Bucket != "" {
		m, err := mirror.New(ctx, cfg.S3.Mirror(), mirror.WithLogger(logger.Named("mirror")))
		if err != nil {
			return err
		}
		opts = append(opts, jerseyfolio.WithMirror(m))
	}

	app := jerseyfolio.New(cfg, opts...)
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("close", zap.Error(err))
		}
	}()
	if err := app.Init(ctx); err != nil {
		return err
	}
	app.Echo.Server.ErrorLog = zap.NewStdLog(logger.Named("http.server"))

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("data_dir", cfg.DataDir))
		if err := app.Echo.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("serve: shutdown: %w", err)
	}
	return nil
}
