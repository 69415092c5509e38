package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/askcsv/internal/ai"
	cfgpkg "github.com/KaramelBytes/askcsv/internal/config"
	"github.com/KaramelBytes/askcsv/internal/logging"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int
	flagProviders        string

	// Loaded configuration
	cfg *cfgpkg.Global
	// Process logger, built on first use
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "askcsv",
	Short: "askcsv: ask questions about a CSV file in plain language",
	Long: `askcsv turns a natural-language question about a CSV file into SQL, repairs and
validates it, runs it against a private in-memory copy of the data, and reports
the rows with summary statistics and a suggested chart.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.askcsv/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagProviders, "providers", "", "comma-separated generator backends in fallback order (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	if f.Changed("providers") {
		if err := cfg.Set("providers", flagProviders); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: ignoring --providers: %v\n", err)
		}
	}

	if src := strings.TrimSpace(cfg.ModelsCatalog); src != "" {
		if err := applyCatalog(src); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: models catalog not applied: %v\n", err)
		}
	}
}

// requireConfig returns the loaded config, loading it now if the initializer
// could not.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

// appLogger builds the process logger from the loaded config on first use.
func appLogger() *zap.Logger {
	if logger != nil {
		return logger
	}
	level := ""
	if cfg != nil {
		level = cfg.LogLevel
	}
	l, err := logging.New(level, debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
		l = zap.NewNop()
	}
	logger = l
	return logger
}

// applyCatalog merges context window overrides from a local JSON file or an
// http(s) URL into the in-memory catalog.
func applyCatalog(src string) error {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		m, err := ai.LoadCatalogFromJSON(src)
		if err != nil {
			return fmt.Errorf("load: %w", err)
		}
		ai.MergeCatalog(m)
		return nil
	}
	client := &http.Client{Timeout: 20 * time.Second}
	resp, err := client.Get(src)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("fetch: unexpected status %s: %s", resp.Status, string(b))
	}
	var m map[string]ai.ModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	ai.MergeCatalog(m)
	return nil
}
