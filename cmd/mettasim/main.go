package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/mettamodeler/mettasim/pkg/compare"
	"github.com/mettamodeler/mettasim/pkg/config"
	"github.com/mettamodeler/mettasim/pkg/export"
	"github.com/mettamodeler/mettasim/pkg/logging"
	"github.com/mettamodeler/mettasim/pkg/model"
	"github.com/mettamodeler/mettasim/pkg/output"
	"github.com/mettamodeler/mettasim/pkg/pubsub"
	"github.com/mettamodeler/mettasim/pkg/schema"
	"github.com/mettamodeler/mettasim/pkg/sim"
	"github.com/mettamodeler/mettasim/pkg/watcher"
	"github.com/mettamodeler/mettasim/pkg/web"
)

func main() {
	flags := pflag.NewFlagSet("mettasim", pflag.ExitOnError)
	flags.String("model", "", "Path to the model file (JSON or YAML)")
	flags.String("scenario", "", "Path to a scenario overlay file; implies a baseline comparison")
	flags.Bool("web", false, "Start the HTTP API server")
	flags.Int("port", 5050, "Port for the HTTP API server (only used with --web)")
	flags.Bool("watch", false, "Re-run the simulation when the model file changes")
	flags.Bool("compare", false, "Run a baseline comparison even without a scenario file")
	flags.String("activation", "", "Activation function override (sigmoid, tanh, relu)")
	flags.Float64("threshold", 0, "Convergence threshold override")
	flags.Int("max-iterations", 0, "Iteration limit override")
	flags.String("output", "", "Write results to this file instead of stdout")
	flags.String("format", "report", "Output format: report, json, csv or notebook")
	flags.CountP("verbose", "v", "Increase log verbosity (repeat for more)")
	flags.String("verbosity", "", "Log level by name (trace, debug, info, warn, error)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyVerbosity(cfg)

	switch {
	case cfg.Model != "":
		runCLI(cfg)
	case cfg.WebMode:
		runServer(cfg)
	default:
		fmt.Fprintln(os.Stderr, "Error: --model or --web is required")
		flags.Usage()
		os.Exit(2)
	}
}

// applyVerbosity maps config onto the log level. A named level wins over
// counted -v flags.
func applyVerbosity(cfg *config.Config) {
	switch strings.ToLower(cfg.Verbosity) {
	case "trace":
		logging.SetLevel(logging.TraceLevel)
	case "debug":
		logging.SetLevel(slog.LevelDebug)
	case "info":
		logging.SetLevel(slog.LevelInfo)
	case "warn", "warning":
		logging.SetLevel(slog.LevelWarn)
	case "error":
		logging.SetLevel(slog.LevelError)
	case "":
		switch {
		case cfg.VerboseCnt >= 2:
			logging.SetLevel(logging.TraceLevel)
		case cfg.VerboseCnt == 1:
			logging.SetLevel(slog.LevelDebug)
		}
	default:
		logging.Warn("unknown verbosity level", "verbosity", cfg.Verbosity)
	}
}

// runServer starts the HTTP API without a preloaded model.
func runServer(cfg *config.Config) {
	server := web.NewServer()
	fmt.Printf("Starting web server on http://localhost:%d\n", cfg.Port)
	if err := server.Start(cfg.Port); err != nil {
		logging.Fatal("web server failed", "error", err)
	}
}

// runCLI loads the model, runs it once, and then keeps going in watch or
// web mode.
func runCLI(cfg *config.Config) {
	req, err := loadRequest(cfg)
	if err != nil {
		fatalErr(err)
	}

	var srv *web.Server
	if cfg.WebMode {
		srv = web.NewServer()
		fmt.Printf("Starting web server on http://localhost:%d\n", cfg.Port)
		go func() {
			if err := srv.Start(cfg.Port); err != nil {
				logging.Fatal("web server failed", "error", err)
			}
		}()
	}

	if err := runOnce(cfg, req, srv); err != nil {
		fatalErr(err)
	}

	switch {
	case cfg.Watch:
		watchLoop(cfg, srv)
	case cfg.WebMode:
		// Keep serving; the first run's status events stay replayable
		select {}
	}
}

// loadRequest reads the model file, overlays the scenario file, and applies
// command-line overrides on top.
func loadRequest(cfg *config.Config) (*schema.SimulationRequest, error) {
	req, err := schema.LoadFile(cfg.Model)
	if err != nil {
		return nil, err
	}
	if cfg.Scenario != "" {
		if err := req.ApplyFile(cfg.Scenario); err != nil {
			return nil, err
		}
	}

	if cfg.Activation != "" {
		req.Activation = cfg.Activation
	}
	if cfg.Threshold > 0 {
		req.SetThreshold(cfg.Threshold)
	}
	if cfg.MaxIterations > 0 {
		req.SetMaxIterations(cfg.MaxIterations)
	}
	return req, nil
}

// runOnce executes one simulation or comparison and emits the results.
func runOnce(cfg *config.Config, req *schema.SimulationRequest, srv *web.Server) error {
	ctx := context.Background()

	g, err := req.Graph()
	if err != nil {
		return err
	}

	comparison := cfg.Compare || cfg.Scenario != "" || req.CompareToBaseline

	if comparison {
		opts, err := req.CompareOptions()
		if err != nil {
			return err
		}
		statusPublish(srv, "running", "comparison started", nil)
		cmp, err := compare.Run(ctx, g, opts)
		if err != nil {
			statusPublish(srv, "failed", err.Error(), nil)
			return err
		}
		statusPublish(srv, "completed", "comparison finished", &pubsub.RunSummary{
			Iterations: cmp.Iterations,
			Converged:  cmp.Converged,
			Nodes:      g.NodeCount(),
			Comparison: true,
		})
		return emitComparison(cfg, cmp)
	}

	opts, err := req.SimOptions()
	if err != nil {
		return err
	}
	simulator, err := sim.New(g, opts)
	if err != nil {
		return err
	}
	statusPublish(srv, "running", "simulation started", nil)
	result, err := simulator.Run(ctx)
	if err != nil {
		statusPublish(srv, "failed", err.Error(), nil)
		return err
	}
	statusPublish(srv, "completed", "simulation finished", &pubsub.RunSummary{
		Iterations: result.Iterations,
		Converged:  result.Converged,
		Nodes:      g.NodeCount(),
	})
	return emitResult(cfg, g, result)
}

// statusPublish forwards lifecycle events when the API server is up.
func statusPublish(srv *web.Server, state, message string, summary *pubsub.RunSummary) {
	if srv == nil {
		return
	}
	srv.PublishStatus(context.Background(), state, message, summary)
}

func emitResult(cfg *config.Config, g *model.Graph, result *sim.Result) error {
	switch cfg.Format {
	case "", "report":
		output.PrintSimulationReport(cfg.Model, result)
		return nil
	case "json":
		raw, err := export.ToJSON(result)
		if err != nil {
			return err
		}
		return writeOutput(cfg.Output, raw)
	case "csv":
		raw, err := export.TimeSeriesCSV(result)
		if err != nil {
			return err
		}
		return writeOutput(cfg.Output, raw)
	case "notebook":
		nb, err := export.SimulationNotebook(g, result)
		if err != nil {
			return err
		}
		raw, err := nb.Bytes()
		if err != nil {
			return err
		}
		return writeOutput(cfg.Output, raw)
	default:
		return model.Invalidf("unknown output format %q", cfg.Format)
	}
}

func emitComparison(cfg *config.Config, cmp *compare.Comparison) error {
	switch cfg.Format {
	case "", "report":
		output.PrintComparisonReport(cfg.Model, cmp)
		return nil
	case "json":
		raw, err := export.ToJSON(cmp)
		if err != nil {
			return err
		}
		return writeOutput(cfg.Output, raw)
	case "csv":
		raw, err := export.ComparisonCSV(cmp)
		if err != nil {
			return err
		}
		return writeOutput(cfg.Output, raw)
	case "notebook":
		nb, err := export.NewNotebook(export.TypeComparison, cmp)
		if err != nil {
			return err
		}
		raw, err := nb.Bytes()
		if err != nil {
			return err
		}
		return writeOutput(cfg.Output, raw)
	default:
		return model.Invalidf("unknown output format %q", cfg.Format)
	}
}

// writeOutput sends rendered results to the configured file, or stdout
// when none is set. Reports and logs never share stdout with data.
func writeOutput(path string, raw []byte) error {
	if path == "" {
		os.Stdout.Write(raw)
		fmt.Println()
		return nil
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	logging.Info("results written", "path", path)
	return nil
}

// watchLoop blocks, re-running the model whenever its files change.
func watchLoop(cfg *config.Config, srv *web.Server) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paths := []string{cfg.Model}
	if cfg.Scenario != "" {
		paths = append(paths, cfg.Scenario)
	}
	fw, err := watcher.NewFileWatcher(paths...)
	if err != nil {
		fatalErr(err)
	}
	if err := fw.Start(ctx); err != nil {
		fatalErr(err)
	}

	deb := watcher.NewDebouncer(fw.Events(), 200*time.Millisecond, 2*time.Second)
	deb.Start(ctx)

	logging.Info("watching for model changes", "model", cfg.Model)
	for range deb.Output() {
		req, err := loadRequest(cfg)
		if err != nil {
			logging.Error("reload failed", "error", err)
			continue
		}
		if err := runOnce(cfg, req, srv); err != nil {
			logging.Error("re-run failed", "error", err)
		}
	}
}

func fatalErr(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
