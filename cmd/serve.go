package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/michojekunle/amala-atlas/internal/api"
	"github.com/michojekunle/amala-atlas/internal/config"
	"github.com/michojekunle/amala-atlas/internal/places"
)

const defaultShutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		factory, err := places.NewFactoryFromConfig(st, cfg)
		if err != nil {
			return err
		}

		handler := buildMux(api.Deps{
			Store:     st,
			Factory:   factory,
			Directory: newDirectory(st),
			Engine:    newEngine(st),
		}, cfg.Server)

		return startServer(ctx, handler, resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func buildMux(deps api.Deps, sc config.ServerConfig) http.Handler {
	return api.NewRouter(deps, sc)
}

// resolvePort prefers the flag value and falls back to config.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

func shutdownTimeout() time.Duration {
	if cfg != nil && cfg.Server.ShutdownTimeoutMS > 0 {
		return time.Duration(cfg.Server.ShutdownTimeoutMS) * time.Millisecond
	}
	return defaultShutdownTimeout
}

// startServer serves handler on port until ctx is cancelled, then drains
// in-flight requests.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server shutdown")
		}
		return nil
	})

	return g.Wait()
}
