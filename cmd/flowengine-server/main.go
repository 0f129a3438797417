// Package main provides the flowengine HTTP server: flow storage, run
// submission, SSE event streaming, and debug/metrics endpoints.
package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof" // register /debug/pprof on the default mux
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/flowengine/flowengine/internal/adapters/repository/memory"
	"github.com/flowengine/flowengine/internal/adapters/repository/postgres"
	"github.com/flowengine/flowengine/internal/adapters/repository/sqlite"
	"github.com/flowengine/flowengine/internal/app/services"
	"github.com/flowengine/flowengine/internal/core/record"
	"github.com/flowengine/flowengine/internal/infrastructure/logging"
	"github.com/flowengine/flowengine/pkg/flowengine"
	"github.com/flowengine/flowengine/pkg/prebuilt/openai"
)

func main() {
	_ = godotenv.Load()

	logger, err := logging.New()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openRecordStore(ctx, logger)
	if err != nil {
		logger.Fatal("record store", zap.Error(err))
	}
	defer closeStore()

	rt, err := flowengine.NewRuntime(
		flowengine.WithLogger(logger),
		flowengine.WithRecorder(services.NewRecorder(store, logger)),
	)
	if err != nil {
		logger.Fatal("runtime", zap.Error(err))
	}
	defer rt.Close()
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if err := openai.Register(rt.Registry(), key); err != nil {
			logger.Fatal("openai builder", zap.Error(err))
		}
	}

	api := newAPI(rt, store, logger)
	wm := newWorkloadManager(rt, logger)

	mux := http.NewServeMux()
	api.register(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", promMetricsHandler)
	mux.HandleFunc("/workload/start", wm.start)
	mux.HandleFunc("/workload/stop", wm.stop)
	mux.Handle("/debug/", http.DefaultServeMux)

	addr := ":8080"
	if v := os.Getenv("FLOWENGINE_ADDR"); v != "" {
		addr = v
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		wm.stopAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server", zap.Error(err))
	}
}

// openRecordStore picks the persistence backend from the environment:
// FLOWENGINE_POSTGRES_URL wins, then FLOWENGINE_DB (sqlite path), then
// an in-memory store.
func openRecordStore(ctx context.Context, logger *zap.Logger) (record.Store, func(), error) {
	if url := os.Getenv("FLOWENGINE_POSTGRES_URL"); url != "" {
		store, err := postgres.Connect(ctx, url, nil)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("run history in postgres")
		return store, store.Close, nil
	}
	if path := os.Getenv("FLOWENGINE_DB"); path != "" {
		store, err := sqlite.Open(path, nil)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("run history in sqlite", zap.String("path", path))
		return store, func() { _ = store.Close() }, nil
	}
	return memory.NewStore(), func() {}, nil
}
