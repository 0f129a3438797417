// Package main provides the flowengine CLI: validate and run flow files
// from the command line, streaming run events to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/flowengine/flowengine/internal/adapters/repository/sqlite"
	"github.com/flowengine/flowengine/internal/app/dto"
	"github.com/flowengine/flowengine/internal/app/services"
	"github.com/flowengine/flowengine/internal/core/event"
	"github.com/flowengine/flowengine/internal/core/graph"
	"github.com/flowengine/flowengine/internal/core/record"
	"github.com/flowengine/flowengine/internal/infrastructure/logging"
	"github.com/flowengine/flowengine/pkg/flowengine"
	"github.com/flowengine/flowengine/pkg/prebuilt/openai"
	"github.com/flowengine/flowengine/pkg/validation"
)

// Version information set during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("flowengine %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
	case "validate":
		err = runValidate(os.Args[2:])
	case "run":
		err = runRun(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  flowengine run [flags] <flow.json>    execute a flow and stream events
  flowengine validate <flow.json>       check a flow file without running it
  flowengine version                    print build information`)
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("validate: expected exactly one flow file")
	}

	payload, err := loadPayload(fs.Arg(0))
	if err != nil {
		return err
	}
	if err := validation.ValidatePayload(payload); err != nil {
		return err
	}
	fmt.Printf("%s: ok (%d nodes, %d edges)\n", payload.ID, len(payload.Nodes), len(payload.Edges))
	return nil
}

func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	concurrency := fs.Int("concurrency", 0, "max vertices building at once (0 = default)")
	timeout := fs.Duration("vertex-timeout", 0, "per-vertex build timeout (0 = none)")
	failFast := fs.Bool("fail-fast", false, "stop the run on the first vertex failure")
	noCache := fs.Bool("no-cache", false, "disable the build cache")
	quiet := fs.Bool("quiet", false, "print only the final summary")
	dbPath := fs.String("db", os.Getenv("FLOWENGINE_DB"), "sqlite file for run history (empty = none)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("run: expected exactly one flow file")
	}

	payload, err := loadPayload(fs.Arg(0))
	if err != nil {
		return err
	}

	logger, err := logging.New()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	opts := []flowengine.Option{flowengine.WithLogger(logger)}
	if *dbPath != "" {
		store, err := sqlite.Open(*dbPath, nil)
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		defer func() { _ = store.Close() }()
		opts = append(opts, flowengine.WithRecorder(services.NewRecorder(store, logger)))
	}

	rt, err := flowengine.NewRuntime(opts...)
	if err != nil {
		return err
	}
	defer rt.Close()
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if err := openai.Register(rt.Registry(), key); err != nil {
			return err
		}
	}

	cfg := dto.RunConfig{
		Concurrency:   *concurrency,
		VertexTimeout: *timeout,
	}
	if *failFast {
		cfg.ErrorPolicy = dto.FailFast
	}
	if *noCache {
		enabled := false
		cfg.CacheEnabled = &enabled
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := rt.StartFromPayload(ctx, payload, cfg)
	if err != nil {
		return err
	}

	if !*quiet {
		events, unsubscribe := run.Subscribe(ctx)
		defer unsubscribe()
		logger.Info("run started", zap.String("run_id", run.ID()), zap.String("flow_id", run.FlowID()))
		for ev := range events {
			printEvent(ev)
		}
	}

	summary, err := run.Wait(context.Background())
	if err != nil {
		return err
	}
	printSummary(summary)
	if summary.Status != record.RunCompleted {
		os.Exit(1)
	}
	return nil
}

func loadPayload(path string) (*graph.Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return graph.DecodePayload(data)
}

func printEvent(ev event.Event) {
	ts := ev.Timestamp.Format(time.RFC3339Nano)
	switch ev.Kind {
	case event.KindVertexErrored:
		fmt.Printf("%s  %-16s %s: %s\n", ts, ev.Kind, ev.VertexID, ev.Error)
	case event.KindRunStarted, event.KindRunFinished:
		fmt.Printf("%s  %-16s\n", ts, ev.Kind)
	default:
		fmt.Printf("%s  %-16s %s\n", ts, ev.Kind, ev.VertexID)
	}
}

func printSummary(s *dto.RunSummary) {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		fmt.Printf("run %s finished: %s\n", s.RunID, s.Status)
		return
	}
	fmt.Println(string(out))
}
