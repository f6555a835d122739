// ecoscan is the eco clothing-scan rewards server and its companion CLI.
//
// Usage:
//
//	ecoscan serve [flags]               Run the HTTP API over one session
//	ecoscan replay [path]               Replay YAML/JSON scenarios against a fresh store
//	ecoscan catalog validate <file>...  Check catalog files
//	ecoscan state [show]                Print the state of a running server
//	ecoscan state export                Print the restorable admin snapshot
//	ecoscan state seed <file>           Load an admin snapshot into a running server
//	ecoscan state reset                 Reset a running server
//	ecoscan health                      Health check a running server
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/wondertwin-ai/ecoscan/internal/api"
	"github.com/wondertwin-ai/ecoscan/internal/catalog"
	"github.com/wondertwin-ai/ecoscan/internal/client"
	"github.com/wondertwin-ai/ecoscan/internal/config"
	"github.com/wondertwin-ai/ecoscan/internal/history"
	"github.com/wondertwin-ai/ecoscan/internal/mcp"
	"github.com/wondertwin-ai/ecoscan/internal/metrics"
	"github.com/wondertwin-ai/ecoscan/internal/offers"
	"github.com/wondertwin-ai/ecoscan/internal/scenario"
	"github.com/wondertwin-ai/ecoscan/internal/scoring"
	"github.com/wondertwin-ai/ecoscan/internal/session"
	"github.com/wondertwin-ai/ecoscan/pkg/admin"
	"github.com/wondertwin-ai/ecoscan/pkg/appcore"
	"github.com/wondertwin-ai/ecoscan/pkg/store"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cmd, args, opts := parseArgs()

	if cmd == "" || cmd == "help" || cmd == "--help" || cmd == "-h" {
		printUsage()
		if cmd == "" {
			os.Exit(1)
		}
		return
	}

	var err error
	switch cmd {
	case "version", "--version", "-v":
		fmt.Printf("ecoscan version %s\n", version)
		return
	case "serve":
		err = cmdServe(opts.configPath, args)
	case "replay":
		err = cmdReplay(args)
	case "catalog":
		err = cmdCatalog(args)
	case "state":
		err = cmdState(opts.url, args)
	case "health":
		err = cmdHealth(opts.url)
	case "mcp":
		err = cmdMCP(opts.url)
	default:
		fmt.Fprintf(os.Stderr, "ecoscan: unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ecoscan: %v\n", err)
		os.Exit(1)
	}
}

type globalOpts struct {
	configPath string
	url        string
}

// parseArgs extracts the subcommand, positional args, and the global
// --config and --url options from os.Args.
func parseArgs() (command string, args []string, opts globalOpts) {
	opts.configPath = os.Getenv("ECOSCAN_CONFIG")
	opts.url = client.DefaultURL
	if u := os.Getenv("ECOSCAN_URL"); u != "" {
		opts.url = u
	}

	raw := os.Args[1:]
	var filtered []string
	for i := 0; i < len(raw); i++ {
		switch {
		case raw[i] == "--config" && i+1 < len(raw):
			opts.configPath = raw[i+1]
			i++
		case raw[i] == "--url" && i+1 < len(raw):
			opts.url = raw[i+1]
			i++
		default:
			filtered = append(filtered, raw[i])
		}
	}

	if len(filtered) == 0 {
		return "", nil, opts
	}
	return filtered[0], filtered[1:], opts
}

func printUsage() {
	fmt.Printf(`ecoscan %s

Usage:
  ecoscan [--config <path>] [--url <url>] <command> [arguments]

Commands:
  serve [flags]               Run the HTTP API (flags: -port, -verbose, -catalog, -history)
  replay [path]               Replay scenarios against a fresh store (default: ./scenarios/)
  catalog validate <file>...  Validate catalog files
  state [show]                Print the session state of a running server
  state export                Print the restorable admin snapshot
  state seed <file>           Load an admin snapshot from a JSON file
  state reset                 Reset a running server to its startup state
  health                      Health check a running server
  mcp                         Serve agent tools for a running server over stdio (JSON-RPC)
  version                     Print the ecoscan version

Options:
  --config <path>   Config file (default: ./ecoscan.yaml when present)
  --url <url>       Server for state/health/mcp (default: %s)

Environment:
  ECOSCAN_CONFIG    Override the config path
  ECOSCAN_URL       Override the server URL
  ECOSCAN_*         Override config keys, e.g. ECOSCAN_PORT, ECOSCAN_HISTORY_PATH
`, version, client.DefaultURL)
}

// ---------------------------------------------------------------------------
// ecoscan serve
// ---------------------------------------------------------------------------

func cmdServe(configPath string, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable debug logging")
	fs.StringVar(&cfg.CatalogFile, "catalog", cfg.CatalogFile, "catalog file (default: built-in catalog)")
	fs.StringVar(&cfg.History.Path, "history", cfg.History.Path, "bbolt history file (default: in memory)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	appCfg := &appcore.Config{
		Name:              "ecoscan",
		Port:              cfg.Port,
		Verbose:           cfg.Verbose,
		LogFile:           cfg.LogFile,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	}
	logger, logCloser := appcore.NewLogger(appCfg, os.Stdout)
	defer logCloser.Close()

	app := appcore.New(appCfg, logger)
	m := metrics.New()
	clock := store.NewClock()

	repo, repoCloser, err := openHistory(cfg.History)
	if err != nil {
		return err
	}
	defer repoCloser.Close()

	scorer := scoring.New(scoring.Options{
		BaseURL:       cfg.Scoring.BaseURL,
		Timeout:       cfg.Scoring.Timeout.Std(),
		RatePerSecond: cfg.Scoring.RatePerSecond,
		Burst:         cfg.Scoring.Burst,
	})
	tracker := session.New(session.Options{
		Scorer:   scorer,
		History:  repo,
		Clock:    clock,
		Logger:   logger,
		Recorder: m,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := catalogSource(cfg.CatalogFile)
	initial, err := source(ctx)
	if err == nil {
		err = tracker.LoadCatalog(initial)
	}
	m.CatalogReloaded("startup", err)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	apiHandler := api.NewHandler(api.Options{
		Tracker:           tracker,
		Middleware:        app.Middleware(),
		Metrics:           m,
		Logger:            logger,
		ProgressionPoints: cfg.History.ProgressionPoints,
	})
	apiHandler.Routes(app.Router)

	state := api.NewAdminState(tracker, source, m, logger)
	adminHandler := admin.NewHandler(state, app.Middleware(), clock)
	adminHandler.SetReloader(state)
	adminHandler.Routes(app.Router)

	if cfg.CatalogFile != "" && cfg.CatalogPoll > 0 {
		w := catalog.NewWatcher([]string{cfg.CatalogFile}, cfg.CatalogPoll.Std(), func(path string) {
			reloadCatalogFile(tracker, m, logger, path)
		})
		w.Start()
		defer w.Stop()
	}

	logger.Info("ecoscan ready",
		"port", cfg.Port,
		"catalog", catalogLabel(cfg.CatalogFile),
		"history", historyLabel(cfg.History.Path),
		"scoring_url", scorer.BaseURL(),
	)
	return app.Serve(ctx)
}

func openHistory(cfg config.HistoryConfig) (history.Repository, io.Closer, error) {
	if cfg.Path == "" {
		return history.NewMemoryRepository(cfg.Capacity), nopCloser{}, nil
	}
	repo, err := history.OpenBolt(cfg.Path, nil)
	if err != nil {
		return nil, nil, err
	}
	return repo, repo, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func catalogSource(path string) api.CatalogSource {
	return func(ctx context.Context) ([]offers.Offer, error) {
		if path == "" {
			return catalog.Default(), nil
		}
		return catalog.LoadFile(path)
	}
}

func reloadCatalogFile(tracker *session.Tracker, m *metrics.Metrics, logger *slog.Logger, path string) {
	list, err := catalog.LoadFile(path)
	if err == nil {
		err = tracker.LoadCatalog(list)
	}
	m.CatalogReloaded("watch", err)
	if err != nil {
		logger.Warn("catalog reload failed, keeping previous catalog", "file", path, "error", err)
		return
	}
	logger.Info("catalog reloaded", "file", path, "offers", len(list))
}

func catalogLabel(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}

func historyLabel(path string) string {
	if path == "" {
		return "memory"
	}
	return path
}

// ---------------------------------------------------------------------------
// ecoscan replay
// ---------------------------------------------------------------------------

func cmdReplay(args []string) error {
	path := "./scenarios/"
	if len(args) > 0 {
		path = args[0]
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("scenario path %s: %w", path, err)
	}

	var scenarios []*scenario.Scenario
	if info.IsDir() {
		scenarios, err = scenario.LoadDir(path)
	} else {
		var s *scenario.Scenario
		s, err = scenario.LoadScenario(path)
		scenarios = []*scenario.Scenario{s}
	}
	if err != nil {
		return err
	}

	totalPassed, totalFailed := 0, 0
	for _, s := range scenarios {
		result, runErr := scenario.Run(s, offers.New())
		p, f := printScenarioResult(s, result, runErr)
		totalPassed += p
		totalFailed += f
	}

	fmt.Println()
	fmt.Printf("Results: %d passed, %d failed, %d total\n", totalPassed, totalFailed, totalPassed+totalFailed)
	if totalFailed > 0 {
		os.Exit(1)
	}
	return nil
}

func printScenarioResult(s *scenario.Scenario, result *scenario.Result, err error) (passed, failed int) {
	fmt.Printf("\n--- %s ---\n", s.Name)
	if s.Description != "" {
		fmt.Printf("    %s\n", s.Description)
	}
	fmt.Println()

	if err != nil {
		fmt.Printf("  ERROR: %v\n", err)
		return 0, 1
	}

	for _, sr := range result.Steps {
		if sr.Passed {
			fmt.Printf("  PASS  %-50s (%s)\n", sr.Name, sr.Duration.Round(time.Microsecond))
			passed++
		} else {
			fmt.Printf("  FAIL  %-50s (%s)\n", sr.Name, sr.Duration.Round(time.Microsecond))
			fmt.Printf("        %s\n", sr.Error)
			failed++
		}
	}

	fmt.Printf("\n  Scenario: %s, final balance %d (%s)\n",
		passFailLabel(result.Passed), result.Final.TotalPoints, result.Duration.Round(time.Microsecond))
	return
}

func passFailLabel(passed bool) string {
	if passed {
		return "PASSED"
	}
	return "FAILED"
}

// ---------------------------------------------------------------------------
// ecoscan catalog
// ---------------------------------------------------------------------------

func cmdCatalog(args []string) error {
	if len(args) < 2 || args[0] != "validate" {
		return errors.New("usage: ecoscan catalog validate <file>...")
	}

	bad := 0
	for _, path := range args[1:] {
		list, err := catalog.LoadFile(path)
		if err != nil {
			fmt.Printf("  FAIL  %s\n        %v\n", path, err)
			bad++
			continue
		}
		fmt.Printf("  OK    %s (%d offers)\n", filepath.Clean(path), len(list))
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d catalog files invalid", bad, len(args)-1)
	}
	return nil
}

// ---------------------------------------------------------------------------
// ecoscan state / health
// ---------------------------------------------------------------------------

func cmdState(url string, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c := client.New(url)

	sub := "show"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "show":
		st, err := c.State(ctx)
		if err != nil {
			return err
		}
		printState(st)
		return nil
	case "export":
		data, err := c.Export(ctx)
		if err != nil {
			return err
		}
		out, err := prettyJSON(data)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	case "seed":
		if len(args) < 2 {
			return errors.New("usage: ecoscan state seed <file>")
		}
		body, err := c.Seed(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Println(body)
		return nil
	case "reset":
		body, err := c.Reset(ctx)
		if err != nil {
			return err
		}
		fmt.Println(body)
		return nil
	default:
		return fmt.Errorf("unknown state command %q (want show, export, seed or reset)", sub)
	}
}

func printState(st *offers.AppState) {
	fmt.Printf("Points: %d   Carbon: %.2f\n", st.TotalPoints, st.CarbonScore)
	fmt.Println()
	fmt.Printf("Available (%d):\n", len(st.AvailableOffers))
	for _, o := range st.AvailableOffers {
		fmt.Printf("  %-6s %-40s %5d pts\n", o.ID, o.Title, o.PointsRequired)
	}
	fmt.Printf("Upcoming (%d):\n", len(st.UpcomingOffers))
	for _, u := range st.UpcomingOffers {
		fmt.Printf("  %-6s %-40s %5d pts  (%d to go)\n", u.ID, u.Title, u.PointsRequired, u.PointsNeeded)
	}
}

func cmdHealth(url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok, body := client.New(url).Health(ctx)
	if !ok {
		return fmt.Errorf("%s unhealthy: %s", url, body)
	}
	fmt.Printf("%s  %s\n", url, body)
	return nil
}

func cmdMCP(url string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return mcp.NewServer(client.New(url)).Serve(ctx)
}

func prettyJSON(raw []byte) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
