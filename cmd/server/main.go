package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"gridrealm.dev/internal/authority/sqlstore"
	"gridrealm.dev/internal/config"
	"gridrealm.dev/internal/logging"
	"gridrealm.dev/internal/persistence/journal"
	"gridrealm.dev/internal/persistence/mirror"
	"gridrealm.dev/internal/seed"
	"gridrealm.dev/internal/transport/observer"
	"gridrealm.dev/internal/transport/ws"
)

const serverName = "gridrealm"

func main() {
	var (
		configPath = flag.String("config", "", "path to server.yaml (optional)")
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		dbPath     = flag.String("db", "", "sqlite database path (overrides config)")
		seedPath   = flag.String("seed", "", "seed yaml used for an empty database (overrides config)")
		journalDir = flag.String("journal", "", "journal directory (overrides config)")
	)
	flag.Parse()

	overrides := map[string]any{}
	set := func(key, v string) {
		if v != "" {
			overrides[key] = v
		}
	}
	set("addr", *addr)
	set("db", *dbPath)
	set("seed", *seedPath)
	set("journal_dir", *journalDir)

	cfg, err := config.LoadServer(*configPath, overrides)
	if err != nil {
		logrus.Errorf("config: %v", err)
		os.Exit(2)
	}
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		logrus.Errorf("logging: %v", err)
		os.Exit(2)
	}
	defer closer.Close()

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server stopped")
		closer.Close()
		os.Exit(1)
	}
}

func run(cfg config.Server, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlstore.Open(ctx, sqlstore.PathFromAddr(cfg.DB))
	if err != nil {
		return err
	}
	defer store.Close()

	w := seed.Default()
	if cfg.Seed != "" {
		if w, err = seed.Load(cfg.Seed); err != nil {
			return err
		}
	}
	seeded, err := store.Seed(ctx, w)
	if err != nil {
		return err
	}
	if seeded {
		logger.WithField("db", cfg.DB).Info("seeded empty world")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	jw := journal.NewWriter(cfg.JournalDir)
	if cfg.Mirror.Enabled() {
		bucket, err := mirror.NewBucket(mirror.BucketConfig{
			Endpoint:        cfg.Mirror.Endpoint,
			Bucket:          cfg.Mirror.Bucket,
			Region:          cfg.Mirror.Region,
			AccessKeyID:     cfg.Mirror.AccessKeyID,
			SecretAccessKey: cfg.Mirror.SecretAccessKey,
		})
		if err != nil {
			return err
		}
		m := mirror.New(bucket, mirror.Options{
			Prefix:   cfg.Mirror.Prefix,
			Workers:  cfg.Mirror.Workers,
			Logger:   logger,
			Registry: reg,
		})
		// Runs after jw.Close so the last segment is queued first.
		defer m.Close()
		jw.OnClose(m.Enqueue)
		logger.WithField("bucket", cfg.Mirror.Bucket).Info("mirroring journal segments")
	}
	defer jw.Close()

	wsSrv, err := ws.NewServer(store, ws.Options{
		ServerName: serverName,
		RatePerSec: cfg.RatePerSec,
		RateBurst:  cfg.RateBurst,
		Journal:    jw,
		Metrics:    ws.NewMetrics(reg),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/v1/status", observer.NewServer(serverName, store).StatusHandler())
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx2)
	}()

	logger.WithField("addr", cfg.Addr).Info("listening")
	serveErr := srv.ListenAndServe()

	// Upgraded connections are not covered by srv.Shutdown; release their
	// accounts before the deferred journal and store closes run.
	wsCtx, wsCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer wsCancel()
	if err := wsSrv.Shutdown(wsCtx); err != nil {
		logger.WithError(err).Warn("websocket sessions did not drain")
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return nil
}
