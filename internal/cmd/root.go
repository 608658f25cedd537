// Package cmd provides the command-line interface for FocusCrawl.
// It handles command parsing, configuration loading, and crawler execution.
package cmd

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/masahif/focuscrawl/internal/config"
	"github.com/masahif/focuscrawl/internal/crawler"
	"github.com/masahif/focuscrawl/internal/frontier"
	"github.com/masahif/focuscrawl/internal/logging"
	"github.com/masahif/focuscrawl/internal/storage"
)

const (
	envPrefix      = "FC"
	configBaseName = "focuscrawl"
	defaultAgent   = "FocusCrawl/1.0"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "focuscrawl [URL]",
	Short: "A focused web crawler that follows the most relevant links first",
	Long: `FocusCrawl downloads pages starting from a seed URL, always fetching
the known page whose links looked most relevant to a query.

Links are scored by their anchor text, their URL and the words around them.
Pages are saved into the output directory until the page budget is spent.`,
	Args:          cobra.MaximumNArgs(1),
	RunE:          runCrawler,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel a running crawl.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

// flagBinding maps a viper key to its command-line flag
type flagBinding struct {
	viperKey string
	flagName string
}

var flagBindings = []flagBinding{
	{"start_url", "url"},
	{"query", "query"},
	{"output_dir", "docs"},
	{"max_pages", "max-pages"},
	{"trace", "trace"},
	{"user_agent", "user-agent"},
	{"request_timeout", "timeout"},
	{"request_delay", "delay"},
	{"ignore_robots", "ignore-robots"},
	{"scope", "scope"},
	{"lenient_content_type", "lenient-content-type"},
	{"database_path", "database"},
	{"log.level", "log-level"},
	{"log.file", "log-file"},
	{"log.format", "log-format"},
}

func init() {
	defaults := config.DefaultConfig()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./focuscrawl.yml)")

	rootCmd.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	// Focused crawl flags
	rootCmd.Flags().StringP("url", "u", "", "Seed URL to start crawling from")
	rootCmd.Flags().StringP("query", "q", "", "Query the crawl is focused on")
	rootCmd.Flags().String("docs", defaults.OutputDir, "Directory receiving downloaded pages")
	rootCmd.Flags().IntP("max-pages", "m", defaults.MaxPages, "Stop after saving N pages")
	rootCmd.Flags().BoolP("trace", "t", false, "Log queue and download activity (debug level)")

	// HTTP flags
	rootCmd.Flags().String("user-agent", defaults.UserAgent, "HTTP User-Agent header")
	rootCmd.Flags().Duration("timeout", defaults.RequestTimeout, "HTTP request timeout")
	rootCmd.Flags().Duration("delay", defaults.RequestDelay, "Minimum delay between requests to one host")

	// Policy flags
	rootCmd.Flags().Bool("ignore-robots", false, "Ignore robots.txt rules")
	rootCmd.Flags().String("scope", defaults.Scope, "Links to follow: any, host or domain")
	rootCmd.Flags().Bool("lenient-content-type", false, "Accept any text/html content type, not only UTF-8")

	// Journal and logging flags
	rootCmd.Flags().StringP("database", "d", defaults.DatabasePath, "Path to SQLite crawl journal (empty disables it)")
	rootCmd.Flags().String("log-level", defaults.Log.Level, "Log level: debug, info, warn, error")
	rootCmd.Flags().String("log-file", "", "Also write logs to this file (rotated by size)")
	rootCmd.Flags().String("log-format", defaults.Log.Format, "Log format: json or text")
}

// newViper layers flags over FC_ environment variables over the config file
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()

	for _, bind := range flagBindings {
		if err := v.BindPFlag(bind.viperKey, cmd.Flags().Lookup(bind.flagName)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", bind.flagName, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(configBaseName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", v.ConfigFileUsed())
	}

	return v, nil
}

// loadConfig builds the crawl configuration for one invocation. A positional
// URL is used when --url is not given.
func loadConfig(cmd *cobra.Command, args []string) (*config.CrawlConfig, error) {
	v, err := newViper(cmd)
	if err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(args) > 0 && !cmd.Flags().Changed("url") {
		cfg.StartURL = args[0]
	}

	if !cmd.Flags().Changed("user-agent") && cfg.UserAgent == defaultAgent {
		cfg.UserAgent = generateUserAgent()
	}

	return cfg, nil
}

func generateUserAgent() string {
	if version != "" && version != "dev" {
		return fmt.Sprintf("FocusCrawl/%s", version)
	}
	return "FocusCrawl/dev"
}

func showCurrentConfig(out io.Writer, cfg *config.CrawlConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Configuration validation failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Displaying configuration anyway...\n\n")
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Fprintf(out, "# Current FocusCrawl Configuration\n")
	fmt.Fprintf(out, "# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(out, "# Configuration file search paths: ./%s.yml\n", configBaseName)
	fmt.Fprintf(out, "# Environment variables prefix: %s_\n\n", envPrefix)

	fmt.Fprint(out, string(yamlData))

	fmt.Fprintf(out, "\n# Configuration source priority:\n")
	fmt.Fprintf(out, "# 1. Command-line arguments (highest priority)\n")
	fmt.Fprintf(out, "# 2. Environment variables (%s_ prefix)\n", envPrefix)
	fmt.Fprintf(out, "# 3. Configuration file (%s.yml)\n", configBaseName)
	fmt.Fprintf(out, "# 4. Default values (lowest priority)\n")

	return nil
}

func runCrawler(cmd *cobra.Command, args []string) error {
	showConfig, _ := cmd.Flags().GetBool("show-config")

	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	if showConfig {
		return showCurrentConfig(cmd.OutOrStdout(), cfg)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCloser, err := logging.SetDefault(logging.Config{
		Level:      logging.ParseLevel(cfg.LogLevel()),
		Format:     cfg.Log.Format,
		FilePath:   cfg.Log.File,
		MaxSize:    100,
		MaxBackups: 5,
		Console:    true,
		Output:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Starting crawler with configuration:\n")
	fmt.Fprintf(out, "  Start URL: %s\n", cfg.StartURL)
	fmt.Fprintf(out, "  Query: %q\n", cfg.Query)
	fmt.Fprintf(out, "  Max Pages: %d\n", cfg.MaxPages)
	fmt.Fprintf(out, "  Output Dir: %s\n", cfg.OutputDir)
	fmt.Fprintf(out, "  Scope: %s\n", cfg.Scope)
	fmt.Fprintf(out, "  Request Delay: %v\n", cfg.RequestDelay)
	fmt.Fprintf(out, "  Ignore Robots: %t\n", cfg.IgnoreRobots)
	if cfg.DatabasePath != "" {
		fmt.Fprintf(out, "  Database: %s\n", cfg.DatabasePath)
	} else {
		fmt.Fprintf(out, "  Database: (disabled)\n")
	}

	_, err = crawl(cmd.Context(), cfg, out)
	return err
}

// crawl wires the document store, journal and crawler for cfg, runs it and
// prints the summary to out
func crawl(ctx context.Context, cfg *config.CrawlConfig, out io.Writer) (*crawler.CrawlStats, error) {
	docs, err := storage.NewDocumentStore(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	journal, err := openJournal(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = journal.Close() }()

	c, err := crawler.NewCrawler(cfg, docs, journal)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize crawler: %w", err)
	}
	defer func() { _ = c.Stop() }()

	if ctx == nil {
		ctx = context.Background()
	}
	stats, err := c.Run(ctx)
	if stats == nil {
		return nil, err
	}

	printSummary(out, stats, docs.Dir())
	if cfg.Trace {
		printQueue(out, c.Frontier().Snapshot(), 10)
		printSaved(out, c.Seen().URLs())
	}
	if j, ok := journal.(*storage.SQLiteJournal); ok {
		printJournal(out, j, 5)
	}
	return stats, err
}

// openJournal opens the SQLite journal, or a no-op journal when path is empty
func openJournal(path string) (crawler.Journal, error) {
	if path == "" {
		return crawler.NopJournal{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	journal, err := storage.NewSQLiteJournal(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}
	return journal, nil
}

func printSummary(out io.Writer, stats *crawler.CrawlStats, outputDir string) {
	fmt.Fprintf(out, "Crawl finished: %s\n", stats.State)
	fmt.Fprintf(out, "  Pages saved: %d (in %s)\n", stats.PagesSaved, outputDir)
	fmt.Fprintf(out, "  Discarded: %d (robots %d, failed %d, not HTML %d)\n",
		stats.Discarded(), stats.RobotsRejected, stats.FetchFailed, stats.NotHTML)
	fmt.Fprintf(out, "  Left in queue: %d\n", stats.Remaining)
	fmt.Fprintf(out, "  robots.txt fetches: %d\n", stats.RobotsFetches)
	fmt.Fprintf(out, "  Duration: %v\n", stats.Duration.Round(time.Millisecond))
}

// printQueue lists the best remaining candidates
func printQueue(out io.Writer, queued []frontier.Candidate, limit int) {
	if len(queued) == 0 {
		return
	}
	slices.SortStableFunc(queued, func(a, b frontier.Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})
	fmt.Fprintf(out, "Best unfetched candidates:\n")
	for _, cand := range queued[:min(limit, len(queued))] {
		fmt.Fprintf(out, "  %6d  %s\n", cand.Score, cand.URL)
	}
}

func printSaved(out io.Writer, urls []string) {
	fmt.Fprintf(out, "Saved pages in fetch order:\n")
	for i, u := range urls {
		fmt.Fprintf(out, "  %3d  %s\n", i+1, u)
	}
}

// printJournal reports what the SQLite journal recorded for the run
func printJournal(out io.Writer, journal *storage.SQLiteJournal, limit int) {
	pages, err := journal.PageCount()
	if err != nil {
		fmt.Fprintf(out, "Journal unavailable: %v\n", err)
		return
	}
	state, _ := journal.GetMeta(crawler.MetaState)
	fmt.Fprintf(out, "Journal: %d pages recorded, state %s\n", pages, state)

	if counts, err := journal.ErrorCounts(); err == nil && len(counts) > 0 {
		types := make([]string, 0, len(counts))
		for t := range counts {
			types = append(types, t)
		}
		slices.Sort(types)
		for _, t := range types {
			fmt.Fprintf(out, "  %s: %d\n", t, counts[t])
		}
	}

	if links, err := journal.TopLinks(limit); err == nil && len(links) > 0 {
		fmt.Fprintf(out, "Top scored links:\n")
		for _, link := range links {
			fmt.Fprintf(out, "  %6d  %s (%q)\n", link.Score, link.TargetURL, link.AnchorText)
		}
	}
}
