// Command hostcached is the host-wide cache daemon. It serves the cache
// protocol on a unix socket and keeps entries in a bbolt file under the
// runtime directory, so they outlive client processes but not a reboot.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/leonardcser/hostcache/internal/cache"
	"github.com/leonardcser/hostcache/internal/config"
	"github.com/leonardcser/hostcache/internal/logger"
	"github.com/leonardcser/hostcache/internal/metrics"
)

const metricsNamespace = "hostcache"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath     string
		socket      string
		dbPath      string
		metricsAddr string
		logLevel    string
	)
	cmd := &cobra.Command{
		Use:          "hostcached",
		Short:        "Host-wide cache daemon",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("socket") {
				cfg.Socket = socket
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", os.Getenv("HOSTCACHE_CONFIG"), "path to a YAML config file")
	cmd.Flags().StringVar(&socket, "socket", "", "unix socket to listen on")
	cmd.Flags().StringVar(&dbPath, "db", "", "bbolt file backing the cache")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := initLogger(cfg); err != nil {
		return err
	}
	defer logger.Close()

	if err := os.MkdirAll(filepath.Dir(cfg.Socket), 0o700); err != nil {
		return err
	}
	lock := flock.New(cfg.Socket + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("another hostcached already owns %s", cfg.Socket)
	}
	defer lock.Unlock()

	// We hold the lock, so any socket file left behind is stale.
	_ = os.Remove(cfg.Socket)
	l, err := net.Listen("unix", cfg.Socket)
	if err != nil {
		return err
	}
	_ = os.Chmod(cfg.Socket, 0o600)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		_ = l.Close()
		return err
	}
	store, err := cache.Open(cfg.DBPath, cache.Options{Bucket: "entries"})
	if err != nil {
		_ = l.Close()
		return err
	}
	defer store.Close()

	m := metrics.New(metricsNamespace)
	m.TrackRecords(metricsNamespace, func() float64 {
		n, _ := store.Len()
		return float64(n)
	})
	srv := cache.NewServer(store, cache.WithRecorder(m))

	go sweepLoop(ctx, store, cfg.SweepInterval, m)
	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, m)
	}
	go func() {
		<-ctx.Done()
		logger.Infof("Shutting down hostcached")
		_ = srv.Close()
	}()

	logger.Infof("hostcached listening on %s (db %s)", cfg.Socket, cfg.DBPath)
	if err := srv.Serve(l); err != nil {
		logger.Errorf("serve: %v", err)
		return err
	}
	return nil
}

func initLogger(cfg *config.Config) error {
	logger.SetLevelFromString(cfg.LogLevel)
	if cfg.LogPath != "" {
		return logger.Init(cfg.LogPath)
	}
	return logger.InitFromEnv("hostcached")
}

// sweepLoop drops expired records so the file does not grow without bound.
func sweepLoop(ctx context.Context, store *cache.Store, every time.Duration, m *metrics.Metrics) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Sweep()
			if err != nil {
				logger.Warnf("sweep failed: %v", err)
				continue
			}
			m.Swept(n)
			if n > 0 {
				logger.Debugf("swept %d expired records", n)
			}
		}
	}
}

func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()
	logger.Infof("Serving metrics on %s", addr)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("metrics server: %v", err)
	}
}
