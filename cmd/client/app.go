package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	_ "gridrealm.dev/internal/authority/sqlstore"
	_ "gridrealm.dev/internal/authority/wsremote"
	"gridrealm.dev/internal/bridge"
	"gridrealm.dev/internal/config"
	"gridrealm.dev/internal/logging"
	"gridrealm.dev/internal/play"
	"gridrealm.dev/internal/tui"
)

// Version is set via ldflags.
var Version = "dev"

const (
	exitConfig   = 2
	exitRejected = 3
)

func app() *cli.App {
	return &cli.App{
		Name:    "gridrealm",
		Usage:   "play in a shared grid world",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "authority address: ws://host:port, wss://..., sqlite:///path or file:path",
				EnvVars: []string{"GRIDREALM_SERVER"},
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "account name, created on first login",
				EnvVars: []string{"GRIDREALM_USERNAME"},
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "account password",
				EnvVars: []string{"GRIDREALM_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
			},
			&cli.StringFlag{Name: "log-file", Usage: "log destination (the terminal is taken by the game)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn, error"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address"},
		},
		Action: run,
	}
}

// overrides maps explicitly set flags onto config keys.
func overrides(c *cli.Context) map[string]any {
	keys := map[string]string{
		"server":       "server",
		"name":         "username",
		"password":     "password",
		"log-file":     "log.file",
		"log-level":    "log.level",
		"metrics-addr": "metrics_addr",
	}
	out := map[string]any{}
	for flag, key := range keys {
		if c.IsSet(flag) {
			out[key] = c.String(flag)
		}
	}
	return out
}

func run(c *cli.Context) error {
	cfg, err := config.LoadClient(c.String("config"), overrides(c))
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}
	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		return cli.Exit(err.Error(), exitConfig)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	metrics := startMetrics(ctx, cfg.MetricsAddr, log)

	conn := bridge.Start(ctx, bridge.Config{
		Addr:            cfg.Server,
		Username:        cfg.Username,
		Password:        cfg.Password,
		RefreshInterval: cfg.RefreshInterval,
		Logger:          log,
		Metrics:         metrics,
	})

	term, err := tui.Open()
	if err != nil {
		_ = conn.Close()
		return cli.Exit("open terminal: "+err.Error(), 1)
	}
	result := play.Run(ctx, conn, term, cfg.FrameInterval)
	term.Close()

	if result == play.Quit {
		if err := conn.Close(); err != nil {
			log.WithError(err).Warn("session ended with error on quit")
		}
		return nil
	}

	err = conn.Wait()
	switch {
	case errors.Is(err, bridge.ErrLoginRejected):
		return cli.Exit("login failed: "+err.Error(), exitRejected)
	case err != nil:
		return cli.Exit("connection lost: "+err.Error(), 1)
	}
	return nil
}

// startMetrics serves a private registry when addr is set. It returns nil
// otherwise, which leaves the bridge metrics unregistered.
func startMetrics(ctx context.Context, addr string, log logrus.FieldLogger) *bridge.Metrics {
	if addr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := bridge.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	return m
}
