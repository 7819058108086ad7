package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/avelnar/tokensage/internal/tokensage/actions"
	"github.com/avelnar/tokensage/internal/tokensage/backend"
	"github.com/avelnar/tokensage/internal/tokensage/config"
	"github.com/avelnar/tokensage/internal/tokensage/dispatch"
	"github.com/avelnar/tokensage/internal/tokensage/engine"
	"github.com/avelnar/tokensage/internal/tokensage/memory"
	"github.com/avelnar/tokensage/internal/tokensage/rules"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tokensage",
	Short: "Conversational crypto market-data assistant",
	Long: `tokensage answers free-text questions about crypto markets. It
classifies each question into a backend operation (prices, grades,
signals, sentiment, history), remembers the conversation so follow-ups
like "and what about its signals?" resolve naturally, and replies in
plain language.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "tokensage.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// app bundles everything a command needs to process queries.
type app struct {
	cfg      *config.Config
	engine   *engine.Engine
	client   *backend.Client
	registry *dispatch.Registry
	store    *memory.InMemoryStore
}

// buildApp loads configuration and assembles the engine with every
// operation bound.
func buildApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	setupLogging(cfg)

	table := rules.MustCompileDefaults()
	if cfg.Rules != "" {
		table, err = rules.LoadFile(cfg.Rules)
		if err != nil {
			return nil, fmt.Errorf("loading rules %s: %w", cfg.Rules, err)
		}
	}

	client := backend.New(backend.Config{
		APIKey:  cfg.API.Key,
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	})
	registry := dispatch.NewRegistry()
	actions.Register(registry)

	store := memory.NewInMemoryStore()
	eng := engine.New(table, store, registry, dispatch.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		Timeout:     cfg.Retry.Timeout,
	})

	return &app{cfg: cfg, engine: eng, client: client, registry: registry, store: store}, nil
}

func setupLogging(cfg *config.Config) {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
