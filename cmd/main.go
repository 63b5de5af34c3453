package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fedutinova/pagegen/internal/auth"
	appconfig "github.com/fedutinova/pagegen/internal/config"
	"github.com/fedutinova/pagegen/internal/generate"
	"github.com/fedutinova/pagegen/internal/job"
	"github.com/fedutinova/pagegen/internal/jobstore"
	"github.com/fedutinova/pagegen/internal/llm"
	"github.com/fedutinova/pagegen/internal/metrics"
	"github.com/fedutinova/pagegen/internal/server"
	"github.com/fedutinova/pagegen/internal/storage"
	httpapi "github.com/fedutinova/pagegen/internal/transport/http"
	"github.com/prometheus/client_golang/prometheus"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		os.Exit(runToken(os.Args[2:]))
	}

	cfg := appconfig.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	slog.Info("starting pagegen", "addr", cfg.HTTPAddr, "provider", cfg.LLMProvider, "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen, err := llm.NewGenerator(cfg, logger)
	if err != nil {
		slog.Error("failed to initialize model client", "err", err)
		os.Exit(1)
	}

	storageService, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize storage", "err", err)
		os.Exit(1)
	}
	slog.Info("storage initialized", "type", storage.GetStorageType(cfg))

	m := metrics.New(prometheus.DefaultRegisterer)

	// the eviction hook needs the runner, which needs the store
	var runner *generate.Runner
	store := jobstore.New(
		jobstore.WithTTL(cfg.JobTTL),
		jobstore.WithSweepInterval(cfg.JobSweepInterval),
		jobstore.WithSweepHook(m.OnSweep),
		jobstore.WithEvictHook(func(evicted []job.Job) { runner.ReleaseArtifacts(evicted) }),
		jobstore.WithLogger(logger),
	)
	metrics.RegisterJobGauges(prometheus.DefaultRegisterer, func() map[string]int {
		return store.StatsCumulative().Live
	})

	runner = generate.NewRunner(store, gen, generate.Config{
		MinScore:       cfg.MinScore,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		AttemptTimeout: cfg.GenerationTimeout,
		ArtifactTTL:    cfg.JobTTL,
		ModelDefaults: llm.Defaults{
			Temperature: llm.DefaultDefaults().Temperature,
			TopP:        llm.DefaultDefaults().TopP,
			ContextSize: cfg.DefaultContextSize,
			MaxTokens:   cfg.DefaultMaxTokens,
		},
	},
		generate.WithArtifacts(storageService),
		generate.WithMetrics(m),
		generate.WithLogger(logger),
	)

	store.StartSweeper(ctx)

	pinger, _ := gen.(llm.Pinger)
	handlers := &httpapi.Handlers{
		Runner:  runner,
		Store:   store,
		Model:   pinger,
		Storage: storageService,
		Config:  cfg,
		Version: version,
	}
	r := server.NewRouter(handlers, prometheus.DefaultGatherer)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
	slog.Info("shutting down")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	if err := srv.Shutdown(shCtx); err != nil {
		slog.Warn("http shutdown", "err", err)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.GenerationTimeout+5*time.Second)
	defer drainCancel()
	if err := runner.Shutdown(drainCtx); err != nil {
		slog.Warn("generation jobs cancelled on shutdown", "err", err)
	}

	store.StopSweeper()
	cancel()
}

// runToken mints an API token: pagegen token -sub ci-bot -roles client,monitor
func runToken(args []string) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	sub := fs.String("sub", "", "token subject, usually the client name")
	roles := fs.String("roles", "client", "comma-separated roles (client, monitor, admin)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := appconfig.Load()
	if !cfg.AuthEnabled() {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		return 1
	}
	if *sub == "" {
		fmt.Fprintln(os.Stderr, "-sub is required")
		return 2
	}

	tok, err := auth.NewToken(cfg.JWTSecret, cfg.JWTIssuer, *sub, strings.Split(*roles, ","), *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		return 1
	}
	fmt.Println(tok)
	return 0
}
