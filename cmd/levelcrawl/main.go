package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/amosWeiskopf/levelcrawl/internal/config"
	"github.com/amosWeiskopf/levelcrawl/internal/logging"
	"github.com/amosWeiskopf/levelcrawl/pkg/crawler"
	"github.com/amosWeiskopf/levelcrawl/pkg/fetcher"
	"github.com/amosWeiskopf/levelcrawl/pkg/reporter"
	"github.com/amosWeiskopf/levelcrawl/pkg/storage"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "levelcrawl",
		Short: "levelcrawl - level-synchronized web crawler",
		Long: `levelcrawl crawls the web breadth first, one depth level at a time.
Every page of a level is fetched concurrently and stored under a directory
named after its depth; the next level starts only when the current one is done.`,
		Version:       versionString(),
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().String("config", "", "Config file path")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newCrawlCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newCrawlCmd() *cobra.Command {
	crawlCmd := &cobra.Command{
		Use:   "crawl <startURL> <maxUrlsPerLevel> <maxDepth> <urlUniqueness>",
		Short: "Crawl from a start URL level by level",
		Args: func(cmd *cobra.Command, args []string) error {
			return config.CheckArgCount(args)
		},
		RunE: runCrawl,
	}

	crawlCmd.Flags().Int("workers", 0, "Number of concurrent fetch workers")
	crawlCmd.Flags().Duration("timeout", 0, "Per-page fetch timeout")
	crawlCmd.Flags().String("output", "", "Directory pages are written under")
	crawlCmd.Flags().String("format", "", "Report format (text, json, markdown, html)")
	crawlCmd.Flags().Bool("manifest", false, "Write manifest.json next to the crawled pages")
	crawlCmd.Flags().Bool("progress", false, "Show a progress bar per level on stderr")
	return crawlCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "levelcrawl %s\n", versionString())
		},
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	crawlArgs, err := config.ParseArgs(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rep, err := reporter.New(cfg.Report.Format)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	runID := uuid.NewString()
	logger = logger.With().Str("run_id", runID).Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := crawler.NewState(crawlArgs.MaxURLsPerLevel, crawlArgs.MaxDepth, crawlArgs.URLUniqueness)
	if err != nil {
		return err
	}
	f, err := fetcher.New(fetcher.Options{
		UserAgent:    cfg.Crawler.UserAgent,
		Timeout:      cfg.Crawler.Timeout,
		MaxBodyBytes: cfg.Crawler.MaxBodyBytes,
		Summarize:    cfg.Crawler.Summarize,
	})
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}
	prober, err := fetcher.NewProber(fetcher.ProberOptions{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.Crawler.ProbeTimeout,
		CacheSize: cfg.Crawler.ProbeCacheSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create prober: %w", err)
	}
	store := storage.NewFileStore(cfg.Storage.Path)

	opts := crawler.Options{
		Workers:            cfg.Crawler.Workers,
		ExcludedExtensions: cfg.Crawler.ExcludedExtensions,
		Logger:             &logger,
	}
	if progress, _ := cmd.Flags().GetBool("progress"); progress {
		opts.Observer = newProgressObserver(cmd.ErrOrStderr())
	}

	c, err := crawler.New(state, f, prober, store, opts)
	if err != nil {
		return fmt.Errorf("failed to create crawler: %w", err)
	}

	logger.Info().
		Str("start_url", crawlArgs.StartURL).
		Int("max_urls_per_level", crawlArgs.MaxURLsPerLevel).
		Int("max_depth", crawlArgs.MaxDepth).
		Bool("uniqueness", crawlArgs.URLUniqueness).
		Int("workers", cfg.Crawler.Workers).
		Str("output", store.Root()).
		Msg("Starting crawl")

	report, crawlErr := c.Crawl(ctx, crawlArgs.StartURL)
	report.RunID = runID
	if crawlErr != nil {
		logger.Warn().Err(crawlErr).Msg("Crawl stopped early")
	}

	if cfg.Storage.Manifest {
		path, err := store.WriteManifest(report)
		if err != nil {
			return fmt.Errorf("failed to write manifest: %w", err)
		}
		logger.Info().Str("path", path).Msg("Manifest written")
	}

	if err := rep.Write(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	return crawlErr
}

// loadConfig reads file and environment configuration, then applies the
// flags the user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Crawler.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("timeout") {
		cfg.Crawler.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("output") {
		cfg.Storage.Path, _ = flags.GetString("output")
	}
	if flags.Changed("format") {
		cfg.Report.Format, _ = flags.GetString("format")
	}
	if flags.Changed("manifest") {
		cfg.Storage.Manifest, _ = flags.GetBool("manifest")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(stderr, "Argument error: %s\n", cfgErr.Msg)
		} else {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
