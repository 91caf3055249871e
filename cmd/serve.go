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

	"github.com/sells-group/pilgrim-map/internal/api"
	"github.com/sells-group/pilgrim-map/internal/auth"
)

var servePort int

// sweepInterval is how often expired sessions and idle login limiters are
// dropped.
const sweepInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site catalog over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer env.Close()

		sessions := auth.NewSessionManager(cfg.Auth.SessionTTL)
		limiter := auth.NewLoginLimiter(cfg.Auth.LoginEvery, cfg.Auth.LoginBurst)
		srv := api.NewServer(env.Catalog, env.Users, sessions, limiter, api.Options{
			CORSOrigins:             cfg.Server.CORSOrigins,
			RequireSessionForWrites: cfg.Auth.RequireSessionForWrites,
			TrustProxy:              cfg.Server.TrustProxy,
		})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			sweep(gctx, sessions, limiter, sweepInterval)
			return nil
		})
		g.Go(func() error {
			return startServer(gctx, srv.Handler(), resolvePort(servePort, cfg.Server.Port), cfg.Server.ShutdownTimeout)
		})
		return g.Wait()
	},
}

// resolvePort prefers the --port flag over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves handler until ctx is cancelled, then shuts down
// gracefully within timeout.
func startServer(ctx context.Context, handler http.Handler, port int, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- eris.Wrap(err, "server listen")
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return <-errCh
}

// sweep periodically drops expired sessions and idle login limiters.
func sweep(ctx context.Context, sessions *auth.SessionManager, limiter *auth.LoginLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				zap.L().Debug("expired sessions removed", zap.Int("count", n))
			}
			limiter.Prune(10 * time.Minute)
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
