// Package main provides the CLI entrypoint for charkov, a fixed-order
// character-level Markov text generator.
package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/dstrelow/charkov/pkg/charlm"
)

const configPath = "./charkov.toml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "charkov <windowLength> <initialText> <textLength> <mode> <corpusFile>",
		Short: "Character-level Markov text generator",
		Long: `charkov trains a fixed-order character-level Markov model on a corpus
file and prints text generated from it.

windowLength is the number of characters of context, initialText seeds the
generation, textLength is the total length of the printed text (seed
included), and mode is "random" for non-deterministic output or anything
else for the fixed seed from the config file.`,
		Args:          cobra.ExactArgs(5),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runGenerate,
	}

	rootCmd.AddCommand(newDumpCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newSaveCmd())
	rootCmd.AddCommand(newLoadCmd())
	rootCmd.AddCommand(newModelsCmd())

	return rootCmd
}

func buildLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// newModel builds a model whose seeding follows mode: "random" draws a
// fresh seed, anything else uses the fixed seed from the config so runs
// are reproducible.
func newModel(cfg *Config, windowLength int, mode string, logger *slog.Logger) (*charlm.Model, error) {
	var (
		m   *charlm.Model
		err error
	)
	if mode == "random" {
		m, err = charlm.NewModel(windowLength)
	} else {
		m, err = charlm.NewSeededModel(windowLength, cfg.FixedSeed)
	}
	if err != nil {
		return nil, err
	}
	m.SetLogger(logger)
	return m, nil
}

func trainFromFile(ctx context.Context, m *charlm.Model, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	return m.Train(ctx, f)
}

func openStore(cfg *Config, logger *slog.Logger) (*sql.DB, *charlm.Store, error) {
	db, err := initDB(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open model database: %w", err)
	}
	if err = charlm.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to set up model schema: %w", err)
	}
	store, err := charlm.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create model store: %w", err)
	}
	store.SetLogger(logger)
	return db, store, nil
}

func parseInt(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return n, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger := buildLogger(cfg.LogLevel)

	windowLength, err := parseInt("window length", args[0])
	if err != nil {
		return err
	}
	initialText := args[1]
	textLength, err := parseInt("text length", args[2])
	if err != nil {
		return err
	}
	mode := args[3]
	corpusFile := args[4]

	m, err := newModel(cfg, windowLength, mode, logger)
	if err != nil {
		return err
	}
	if err = trainFromFile(cmd.Context(), m, corpusFile); err != nil {
		return err
	}

	out, err := m.Generate(cmd.Context(), initialText, textLength)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <windowLength> <corpusFile>",
		Short: "Train on a corpus and print the learned tables",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger := buildLogger(cfg.LogLevel)

			windowLength, err := parseInt("window length", args[0])
			if err != nil {
				return err
			}
			m, err := newModel(cfg, windowLength, "fixed", logger)
			if err != nil {
				return err
			}
			if err = trainFromFile(cmd.Context(), m, args[1]); err != nil {
				return err
			}
			return m.Dump(os.Stdout)
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <windowLength> <corpusFile>",
		Short: "Train on a corpus and print model statistics",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger := buildLogger(cfg.LogLevel)

			windowLength, err := parseInt("window length", args[0])
			if err != nil {
				return err
			}
			m, err := newModel(cfg, windowLength, "fixed", logger)
			if err != nil {
				return err
			}
			if err = trainFromFile(cmd.Context(), m, args[1]); err != nil {
				return err
			}
			stats := m.Stats()
			fmt.Printf("windows:      %d\n", stats.Windows)
			fmt.Printf("entries:      %d\n", stats.Entries)
			fmt.Printf("observations: %d\n", stats.Observations)
			fmt.Printf("vocabulary:   %d\n", stats.VocabSize)
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <windowLength> <corpusFile> <outFile>",
		Short: "Train on a corpus and write the model as JSON",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger := buildLogger(cfg.LogLevel)

			windowLength, err := parseInt("window length", args[0])
			if err != nil {
				return err
			}
			m, err := newModel(cfg, windowLength, "fixed", logger)
			if err != nil {
				return err
			}
			if err = trainFromFile(cmd.Context(), m, args[1]); err != nil {
				return err
			}

			var buf bytes.Buffer
			if err = m.Export(&buf); err != nil {
				return err
			}
			if err = atomic.WriteFile(args[2], &buf); err != nil {
				return fmt.Errorf("failed to write model file: %w", err)
			}
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <modelFile> <initialText> <textLength>",
		Short: "Generate text from a previously exported JSON model",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger := buildLogger(cfg.LogLevel)

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open model file: %w", err)
			}
			defer func(f *os.File) {
				_ = f.Close()
			}(f)

			m, err := charlm.ImportModel(f)
			if err != nil {
				return err
			}
			m.SetLogger(logger)

			textLength, err := parseInt("text length", args[2])
			if err != nil {
				return err
			}
			out, err := m.Generate(cmd.Context(), args[1], textLength)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}

func newSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <name> <windowLength> <corpusFile>",
		Short: "Train on a corpus and save the model to the database",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger := buildLogger(cfg.LogLevel)

			windowLength, err := parseInt("window length", args[1])
			if err != nil {
				return err
			}
			m, err := newModel(cfg, windowLength, "fixed", logger)
			if err != nil {
				return err
			}
			if err = trainFromFile(cmd.Context(), m, args[2]); err != nil {
				return err
			}

			db, store, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				store.Close()
				_ = db.Close()
			}()

			return store.Save(cmd.Context(), args[0], m)
		},
	}
}

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <name> <initialText> <textLength> <mode>",
		Short: "Generate text from a model saved in the database",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger := buildLogger(cfg.LogLevel)

			db, store, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				store.Close()
				_ = db.Close()
			}()

			var m *charlm.Model
			if args[3] == "random" {
				m, err = store.Load(cmd.Context(), args[0])
			} else {
				m, err = store.LoadSeeded(cmd.Context(), args[0], cfg.FixedSeed)
			}
			if err != nil {
				return err
			}
			m.SetLogger(logger)

			textLength, err := parseInt("text length", args[2])
			if err != nil {
				return err
			}
			out, err := m.Generate(cmd.Context(), args[1], textLength)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models saved in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger := buildLogger(cfg.LogLevel)

			db, store, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				store.Close()
				_ = db.Close()
			}()

			models, err := store.Models(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, 0, len(models))
			for name := range models {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("%s (window length %d)\n", name, models[name])
			}
			return nil
		},
	}
}
