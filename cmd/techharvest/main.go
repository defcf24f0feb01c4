package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/avkuzmin/techharvest/internal/ai"
	"github.com/avkuzmin/techharvest/internal/api"
	"github.com/avkuzmin/techharvest/internal/config"
	"github.com/avkuzmin/techharvest/internal/crawl"
	"github.com/avkuzmin/techharvest/internal/etl"
	"github.com/avkuzmin/techharvest/internal/fetcher"
	"github.com/avkuzmin/techharvest/internal/store"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "techharvest",
		Short: "TechHarvest — e-commerce catalog crawler and normalizer",
		Long: `TechHarvest crawls paginated product catalogs, assembles one nested
document per product (characteristics plus customer reviews), archives the
documents in a deduplicating store, and periodically flattens the archive
into columnar parquet relations for analytics.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(etlCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// crawlCmd creates the "crawl" subcommand: the long-running crawl loop with
// the ETL cycle and optional ops server alongside.
func crawlCmd() *cobra.Command {
	var targets []string
	var once bool

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl configured catalog targets continuously",
		Long: `Walk every configured category listing, fetch characteristics and review
pages for products not yet archived, and store the assembled documents.
Repeats after the cooldown until interrupted. The ETL cycle republishes the
parquet relations in the background on its own interval.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(targets, once)
		},
	}

	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil,
		"listing URL template with a {page} placeholder (repeatable, overrides config)")
	cmd.Flags().BoolVar(&once, "once", false, "run a single crawl cycle and exit")
	return cmd
}

func runCrawl(targets []string, once bool) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	for _, t := range targets {
		cfg.Crawler.Targets = append(cfg.Crawler.Targets, config.Target{URLTemplate: t})
	}
	if len(cfg.Crawler.Targets) == 0 {
		return fmt.Errorf("no crawl targets configured: set crawler.targets or pass --target")
	}
	for _, t := range cfg.Crawler.Targets {
		if err := config.ValidateTarget(t); err != nil {
			return fmt.Errorf("invalid target %q: %w", t.URLTemplate, err)
		}
	}

	ctx, stop := signalContext(logger)
	defer stop()

	docStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer docStore.Close(context.Background())

	throttle := fetcher.NewThrottle(cfg.Crawler.PolitenessDelay)
	browser, err := fetcher.NewBrowserFetcher(cfg, throttle, logger)
	if err != nil {
		return fmt.Errorf("create browser fetcher: %w", err)
	}
	defer browser.Close()

	var static fetcher.Fetcher = browser
	if cfg.Fetcher.Type == "http" {
		httpFetcher, err := fetcher.NewHTTPFetcher(cfg, throttle, logger)
		if err != nil {
			return fmt.Errorf("create http fetcher: %w", err)
		}
		defer httpFetcher.Close()
		static = httpFetcher
	}

	publisher, err := etl.NewPublisher(cfg.ETL.OutputDir, logger)
	if err != nil {
		return err
	}
	etlRunner := etl.NewRunner(docStore, publisher, cfg.ETL.Interval, logger)

	stats := crawl.NewStats()
	orchestrator := crawl.NewOrchestrator(cfg, static, browser, docStore, stats, logger)

	if cfg.API.Enabled {
		var aiClient *ai.Client
		if cfg.AI.Enabled {
			aiClient = ai.NewClient(&cfg.AI, logger)
		}
		server := api.NewServer(&cfg.API, docStore, stats, aiClient, logger)
		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Error("ops server failed", "error", err)
			}
		}()
	}

	logger.Info("starting crawl",
		"targets", len(cfg.Crawler.Targets),
		"workers", cfg.Crawler.Workers,
		"fetcher", cfg.Fetcher.Type,
		"store", cfg.Store.Backend,
	)

	start := time.Now()
	if once {
		if err := orchestrator.RunCycle(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		if ctx.Err() == nil {
			if err := etlRunner.RunOnce(ctx); err != nil {
				return err
			}
		}
	} else {
		supervisor := crawl.NewSupervisor(orchestrator, etlRunner, logger)
		if err := supervisor.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
	}

	snap := stats.Snapshot()
	fmt.Printf("\nCrawl finished in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("  Pages fetched:  %d\n", snap.PagesFetched)
	fmt.Printf("  Discovered:     %d\n", snap.ProductsDiscovered)
	fmt.Printf("  Stored:         %d\n", snap.ProductsStored)
	fmt.Printf("  Skipped known:  %d\n", snap.ProductsSkipped)
	fmt.Printf("  Dropped:        %d\n", snap.ProductsDropped)
	fmt.Printf("  Fetch errors:   %d\n", snap.FetchErrors)
	return nil
}

// etlCmd creates the "etl" subcommand: one relation rebuild, no crawling.
func etlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "etl",
		Short: "Rebuild the parquet relations from the document store once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signalContext(logger)
			defer stop()

			docStore, err := newStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer docStore.Close(context.Background())

			publisher, err := etl.NewPublisher(cfg.ETL.OutputDir, logger)
			if err != nil {
				return err
			}

			if err := etl.NewRunner(docStore, publisher, cfg.ETL.Interval, logger).RunOnce(ctx); err != nil {
				return err
			}
			fmt.Printf("Relations published under %s\n", publisher.CurrentDir())
			return nil
		},
	}
}

// exportCmd creates the "export" subcommand.
func exportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the document archive to a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signalContext(logger)
			defer stop()

			docStore, err := newStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer docStore.Close(context.Background())

			n, err := store.ExportFile(ctx, docStore, output)
			if err != nil {
				return err
			}
			fmt.Printf("Exported %d documents to %s\n", n, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "products.json", "output file path")
	return cmd
}

// importCmd creates the "import" subcommand.
func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import a JSON archive into the document store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signalContext(logger)
			defer stop()

			docStore, err := newStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer docStore.Close(context.Background())

			n, err := store.ImportFile(ctx, docStore, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d documents from %s\n", n, args[0])
			return nil
		},
	}
}

// resetCmd creates the "reset" subcommand.
func resetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every document from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to wipe the store without --yes")
			}

			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signalContext(logger)
			defer stop()

			docStore, err := newStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer docStore.Close(context.Background())

			before, _ := docStore.Count(ctx)
			if err := docStore.DeleteAll(ctx); err != nil {
				return err
			}
			fmt.Printf("Deleted %d documents\n", before)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			fmt.Printf("Crawler:\n")
			fmt.Printf("  Targets:           %d configured\n", len(cfg.Crawler.Targets))
			for _, t := range cfg.Crawler.Targets {
				fmt.Printf("    - %s\n", t.URLTemplate)
			}
			fmt.Printf("  Workers:           %d\n", cfg.Crawler.Workers)
			fmt.Printf("  Politeness Delay:  %s\n", cfg.Crawler.PolitenessDelay)
			fmt.Printf("  Request Timeout:   %s\n", cfg.Crawler.RequestTimeout)
			fmt.Printf("  Cooldown:          %s\n", cfg.Crawler.Cooldown)
			fmt.Printf("  Max Retries:       %d\n", cfg.Crawler.MaxRetries)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Type:              %s\n", cfg.Fetcher.Type)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("  User Agents:       %d configured\n", len(cfg.Fetcher.UserAgents))
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Headless:          %v\n", cfg.Browser.Headless)
			fmt.Printf("  Stealth:           %v\n", cfg.Browser.Stealth)
			fmt.Printf("  Window Size:       %s\n", cfg.Browser.WindowSize)
			fmt.Printf("  Settle Wait:       %s\n", cfg.Browser.SettleWait)
			fmt.Printf("\nStore:\n")
			fmt.Printf("  Backend:           %s\n", cfg.Store.Backend)
			fmt.Printf("  Database:          %s\n", cfg.Store.Database)
			fmt.Printf("  Collection:        %s\n", cfg.Store.Collection)
			fmt.Printf("\nETL:\n")
			fmt.Printf("  Interval:          %s\n", cfg.ETL.Interval)
			fmt.Printf("  Output Dir:        %s\n", cfg.ETL.OutputDir)
			fmt.Printf("\nAPI:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.API.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.API.Port)
			fmt.Printf("\nAI:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.AI.Enabled)
			fmt.Printf("  Provider:          %s\n", cfg.AI.Provider)
			fmt.Printf("  Model:             %s\n", cfg.AI.Model)
			return nil
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("TechHarvest %s\n", config.Version)
		},
	}
}

// setup loads and validates configuration and builds the root logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(&cfg.Logging)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// setupLogger creates a structured logger.
func setupLogger(cfg *config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// newStore opens the configured document store backend.
func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.DocumentStore, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(logger), nil
	default:
		s, err := store.NewMongoStore(ctx, &cfg.Store, logger)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		return s, nil
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", "signal", sig)
		cancel()
	}()

	return ctx, cancel
}
