package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/talkops-ai/tfknowledge"
	"github.com/talkops-ai/tfknowledge/config"
	"github.com/talkops-ai/tfknowledge/core"
	"github.com/talkops-ai/tfknowledge/orchestrator"
	"github.com/urfave/cli/v2"
)

// openKnowledge is replaced in tests to inject doubles.
var openKnowledge = tfknowledge.Open

func main() {
	if err := newApp().Run(os.Args); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "tfknowledge",
		Usage: "Build and query a searchable knowledge base of Terraform provider documentation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file loaded before reading the environment",
				Value: ".env",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Discover, extract, embed and store provider documentation",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "index",
						Usage: "Provider index Markdown listing resources and data sources",
					},
					&cli.StringSliceFlag{
						Name:  "scan-dir",
						Usage: "Directory scanned for best-practice and README files (repeatable)",
					},
					&cli.StringSliceFlag{
						Name:  "doc",
						Usage: "Extra document as TYPE=PATH_OR_URL, e.g. best_practice=docs/s3_best_practices.md (repeatable)",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Extraction mode (llm, rule, both)",
					},
					&cli.StringSliceFlag{
						Name:  "type",
						Usage: "Only ingest documents of this type (repeatable)",
					},
					&cli.StringSliceFlag{
						Name:  "service",
						Usage: "Only ingest documents of this service (repeatable)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of nodes written per store round trip",
					},
					&cli.BoolFlag{
						Name:  "content-hash",
						Usage: "Re-ingest documents whose content changed since their last success",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Print progress to stderr",
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Serve Prometheus metrics on this address while ingesting, e.g. :9090",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Semantic search over the ingested documentation",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results to return (1-50)",
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum similarity score (0-1)",
					},
					&cli.StringSliceFlag{
						Name:  "type",
						Usage: "Node type to search: resource, data_source, best_practice, generic (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "full",
						Usage: "Print full chunk content",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Summarize the ingestion log",
				Action: statusCommand,
			},
			{
				Name:   "watch",
				Usage:  "Re-ingest best-practice and README files as they change",
				Action: watchCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "scan-dir",
						Usage: "Directory to watch (repeatable, defaults to scan_dirs)",
					},
					&cli.DurationFlag{
						Name:  "debounce",
						Usage: "Quiet period before a changed file is ingested",
						Value: orchestrator.DefaultDebounce,
					},
				},
			},
		},
	}
}

// loadConfig applies defaults, the config file and the environment, in that
// order. Commands apply their own flags on top.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if err := config.LoadEnvFile(c.String("env-file")); err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func ingestCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyIngestFlags(c, cfg)
	extra, err := parseDocs(c.StringSlice("doc"))
	if err != nil {
		return err
	}

	var opts []tfknowledge.Option
	if addr := c.String("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, tfknowledge.WithMetrics(orchestrator.NewMetrics(reg)))
		stop := serveMetrics(addr, reg)
		defer stop()
	}
	if c.Bool("progress") {
		opts = append(opts, tfknowledge.WithProgress(os.Stderr))
	}

	k, err := openKnowledge(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer k.Close()

	sources := k.Sources()
	sources.Extra = extra
	if sources.IndexPath == "" && len(sources.ScanDirs) == 0 && len(sources.Extra) == 0 {
		return errors.New("nothing to ingest: set --index, --scan-dir or --doc")
	}

	fmt.Fprintf(c.App.ErrWriter, "Run: %s\n", k.RunID())
	fmt.Fprintf(c.App.ErrWriter, "Mode: %s\n", cfg.Mode)
	fmt.Fprintf(c.App.ErrWriter, "Store: %s\n", cfg.Store.Backend)
	fmt.Fprintln(c.App.ErrWriter)

	summary, err := k.Ingest(ctx, sources)
	if summary != nil {
		printSummary(c.App.Writer, summary)
	}
	if err != nil {
		return fmt.Errorf("ingestion aborted: %w", err)
	}
	if n := summary.Failed(); n > 0 {
		return fmt.Errorf("%d document(s) failed", n)
	}
	return nil
}

func applyIngestFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("mode") {
		cfg.Mode = c.String("mode")
	}
	if c.IsSet("type") {
		cfg.FilterTypes = c.StringSlice("type")
	}
	if c.IsSet("service") {
		cfg.FilterServices = c.StringSlice("service")
	}
	if c.IsSet("scan-dir") {
		cfg.ScanDirs = c.StringSlice("scan-dir")
	}
	if c.IsSet("index") {
		cfg.IndexPath = c.String("index")
	}
	if c.IsSet("batch-size") {
		cfg.BatchSize = c.Int("batch-size")
	}
	if c.Bool("content-hash") {
		cfg.Pipeline.ContentHashInvalidation = true
	}
}

// parseDocs turns TYPE=SOURCE pairs into documents.
func parseDocs(specs []string) ([]orchestrator.Document, error) {
	docs := make([]orchestrator.Document, 0, len(specs))
	for _, spec := range specs {
		kind, source, ok := strings.Cut(spec, "=")
		if !ok || source == "" {
			return nil, fmt.Errorf("invalid --doc %q: want TYPE=PATH_OR_URL", spec)
		}
		docType, err := core.ParseDocType(kind)
		if err != nil {
			return nil, fmt.Errorf("invalid --doc %q: %w", spec, err)
		}
		docs = append(docs, orchestrator.Document{Source: source, Type: docType})
	}
	return docs, nil
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("serving metrics", "addr", addr, "path", "/metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics server failed", "err", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func searchCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("search needs a QUERY argument")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("type") {
		cfg.Search.NodeTypes = c.StringSlice("type")
	}
	if c.IsSet("threshold") {
		cfg.Search.Threshold = float32(c.Float64("threshold"))
	}
	topK := cfg.Search.TopK
	if c.IsSet("top-k") {
		topK = c.Int("top-k")
	}

	k, err := openKnowledge(ctx, cfg)
	if err != nil {
		return err
	}
	defer k.Close()

	searcher, err := k.NewSearcher()
	if err != nil {
		return err
	}
	results, err := searcher.Search(ctx, query, topK)
	if err != nil {
		return err
	}
	printResults(c.App.Writer, query, results, c.Bool("full"))
	return nil
}

func statusCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	k, err := openKnowledge(ctx, cfg)
	if err != nil {
		return err
	}
	defer k.Close()

	snapshot, err := k.Status(ctx)
	if err != nil {
		return err
	}
	printStatus(c.App.Writer, snapshot)
	return nil
}

func watchCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("scan-dir") {
		cfg.ScanDirs = c.StringSlice("scan-dir")
	}
	if len(cfg.ScanDirs) == 0 {
		return errors.New("nothing to watch: set --scan-dir or scan_dirs")
	}

	k, err := openKnowledge(ctx, cfg)
	if err != nil {
		return err
	}
	defer k.Close()

	fmt.Fprintf(c.App.ErrWriter, "Watching %s (Ctrl-C to stop)\n", strings.Join(cfg.ScanDirs, ", "))
	return k.Watch(ctx, cfg.ScanDirs,
		orchestrator.WithDebounce(c.Duration("debounce")),
		orchestrator.OnResult(func(res orchestrator.DocumentResult) {
			printResult(c.App.Writer, res)
		}))
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
