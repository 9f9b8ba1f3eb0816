package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fc-troll-detector/internal/cache"
	"fc-troll-detector/internal/metrics"
	"fc-troll-detector/internal/server"
	"fc-troll-detector/internal/session"
	"fc-troll-detector/worker"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the annotation HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		store, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics.MustRegister(reg)

		sessions := session.NewRegistry(cfg.SessionTTL())
		srv := server.New(cfg, store, persister(), sessions, reg)

		// Settings written by trust toggles or by another process reach
		// new sessions through the watcher.
		v := viper.GetViper()
		if v.ConfigFileUsed() != "" {
			v.OnConfigChange(func(e fsnotify.Event) {
				next, err := loadConfig(v)
				if err != nil {
					slog.Error("serve: ignoring invalid config change", "file", e.Name, "error", err)
					return
				}
				srv.NotifyConfigUpdated(next)
			})
			v.WatchConfig()
		}

		ws := []worker.Worker{
			&worker.HTTPServer{
				Server: &http.Server{
					Addr:              cfg.Server.Addr,
					Handler:           srv.Routes(),
					ReadHeaderTimeout: 10 * time.Second,
				},
			},
			&worker.Janitor{
				Name:     "sessions",
				Interval: time.Minute,
				Sweep: func(_ context.Context, now time.Time) (int64, error) {
					return int64(sessions.Expire(now)), nil
				},
			},
		}
		if s, ok := store.(*cache.SQLiteStore); ok {
			ws = append(ws, &worker.Janitor{Name: "profile_cache", Interval: time.Hour, Sweep: s.Cleanup})
		}

		mgr := worker.NewManager(ws...)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Signal handling for systemd
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			s := <-sigc
			log.Printf("received signal: %s, shutting down", s)
			cancel()
		}()

		slog.Info("serve: starting", "addr", cfg.Server.Addr, "cache", cfg.Cache.Backend, "session_ttl", cfg.SessionTTL())
		if err := mgr.Start(ctx); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
