/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command docfleetd is the docfleet daemon: it owns the build queue, the
// auto-build monitor, and the HTTP metrics endpoint, and serializes access
// to its data directory with an advisory file lock so two instances never
// fight over the same workspaces and published artifacts.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jeffvincent/docfleet/internal/builderrors"
	"github.com/jeffvincent/docfleet/internal/config"
	"github.com/jeffvincent/docfleet/internal/executor"
	"github.com/jeffvincent/docfleet/internal/gitdriver"
	"github.com/jeffvincent/docfleet/internal/lock"
	"github.com/jeffvincent/docfleet/internal/logging"
	"github.com/jeffvincent/docfleet/internal/metrics"
	"github.com/jeffvincent/docfleet/internal/model"
	"github.com/jeffvincent/docfleet/internal/monitor"
	_ "github.com/jeffvincent/docfleet/internal/provision"
	"github.com/jeffvincent/docfleet/internal/publish"
	"github.com/jeffvincent/docfleet/internal/queue"
	"github.com/jeffvincent/docfleet/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to docfleetd config file")
	devLog := flag.Bool("dev", false, "use human-readable development logging")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics and /healthz on")
	flag.Parse()

	if err := run(*configPath, *devLog, *metricsAddr); err != nil {
		fmt.Fprintln(os.Stderr, "docfleetd:", err)
		os.Exit(1)
	}
}

func run(configPath string, devLog bool, metricsAddr string) error {
	logger, err := logging.New(devLog)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	loader, err := config.NewLoader(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := loader.Current()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", cfg.DataDir, err)
	}

	instanceLock := flock.New(filepath.Join(cfg.DataDir, "docfleetd.lock"))
	locked, err := instanceLock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another docfleetd instance already holds the lock at %s", cfg.DataDir)
	}
	defer instanceLock.Unlock()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	n, err := queue.RecoverInterrupted(ctx, db, cfg.DataDir, string(builderrors.InterruptedAtStartup))
	if err != nil {
		return fmt.Errorf("recover interrupted jobs: %w", err)
	}
	if n > 0 {
		logger.Warn("recovered jobs left running by a previous instance", zap.Int("count", n))
	}

	collectors := metrics.NewCollectors()
	collectors.MustRegister(prometheus.DefaultRegisterer)

	locks := lock.NewRegistry()
	publishStore := publish.NewStore(cfg.DataDir, locks)
	git := gitdriver.New()

	ex := &executor.Executor{
		DataDir:             cfg.DataDir,
		GitDriver:           git,
		PublishStore:        publishStore,
		PublishLocks:        locks,
		Refs:                refResolver{db},
		Repos:               db,
		DefaultBackend:      cfg.DefaultEnvBackend,
		DefaultPyConstraint: cfg.DefaultInterpreterConstraint,
		DocBuildTimeout:     cfg.DocBuildTimeout,
		Logger:              logger,
	}

	q := queue.New(db, ex, locks, collectors, logger, cfg.WorkerCount)
	if cfg.RedisAddr != "" {
		notifier := queue.NewRedisNotifier(cfg.RedisAddr)
		defer notifier.Close()
		q.Notifier = notifier
	}
	q.Start(ctx, lookup{db})

	mon := &monitor.Monitor{
		Targets:  lookup{db},
		Queue:    q,
		Git:      git,
		Interval: cfg.AutoBuildInterval,
		NewJobID: func() string { return uuid.NewString() },
		Metrics:  collectors,
		Logger:   logger,
	}
	go mon.Run(ctx)

	loader.WatchAndReload(func(c config.Config) {
		logger.Info("configuration reloaded", zap.Duration("git_timeout", c.GitTimeout))
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server exited", zap.Error(err))
		}
	}()

	logger.Info("docfleetd started", zap.String("data_dir", cfg.DataDir), zap.Int("workers", cfg.WorkerCount))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)

	q.Wait()
	return nil
}

// lookup adapts *store.Postgres to the narrow interfaces queue.Queue and
// monitor.Monitor depend on.
type lookup struct {
	db store.Store
}

func (l lookup) Repository(ctx context.Context, id string) (model.Repository, error) {
	return l.db.GetRepository(ctx, id)
}

func (l lookup) Target(ctx context.Context, id string) (model.Target, error) {
	return l.db.GetTarget(ctx, id)
}

func (l lookup) ListAutoBuildTargets(ctx context.Context) ([]model.Target, error) {
	return l.db.ListAutoBuildTargets(ctx)
}

func (l lookup) GetRepository(ctx context.Context, id string) (model.Repository, error) {
	return l.db.GetRepository(ctx, id)
}

func (l lookup) HasActiveJob(ctx context.Context, targetID string) (bool, error) {
	return l.db.HasActiveJob(ctx, targetID)
}

// refResolver adapts the store to executor.RefResolver, building the
// refs.json-shaped document from each tracked target's publication state.
type refResolver struct {
	db store.Store
}

func (r refResolver) RefsDocument(ctx context.Context, repositoryID string) (model.RefsDocument, error) {
	targets, err := r.db.ListTargets(ctx, repositoryID)
	if err != nil {
		return model.RefsDocument{}, err
	}
	doc := model.RefsDocument{RepositoryID: repositoryID}
	for _, t := range targets {
		available := t.LatestSuccessfulBuild != ""
		url := ""
		if available {
			url = "/" + repositoryID + "/" + t.Slug() + "/index.html"
		}
		doc.Targets = append(doc.Targets, model.RefEntry{
			Slug:      t.Slug(),
			RefType:   string(t.RefKind),
			RefName:   t.RefName,
			Available: available,
			URL:       url,
		})
	}
	return doc, nil
}
