package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/allthingssecurity/deepsearch/internal/config"
	"github.com/allthingssecurity/deepsearch/internal/database"
	"github.com/allthingssecurity/deepsearch/internal/fetch"
	"github.com/allthingssecurity/deepsearch/internal/llm"
	"github.com/allthingssecurity/deepsearch/internal/research"
	"github.com/allthingssecurity/deepsearch/internal/search"
	"github.com/allthingssecurity/deepsearch/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "deepsearch",
	Short:   "Iterative research reports from web sources",
	Long:    "deepsearch turns a research question into a cited markdown report by cycling through query generation, web search, and source evaluation.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("deepsearch", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/deepsearch/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure search and LLM providers, then set the API keys they need.")
		return nil
	},
}

// --- research command ---

var (
	outputPath string
	noArchive  bool
)

var researchCmd = &cobra.Command{
	Use:   "research [question]",
	Short: "Run the research loop and produce a cited markdown report",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args, " "))

		provider := llm.CreateProvider(
			cfg.LLM.Provider,
			cfg.LLM.Model,
			cfg.LLM.OllamaURL,
			cfg.LLM.OpenAIModel,
			cfg.LLM.APIKeyEnv,
		)
		if provider == nil {
			return fmt.Errorf("no LLM provider available")
		}

		searcher, err := search.New(search.Options{
			Provider:   cfg.Search.Provider,
			APIKeyEnv:  cfg.Search.APIKeyEnv,
			Depth:      cfg.Search.Depth,
			MaxResults: cfg.Search.MaxResults,
		})
		if err != nil {
			return err
		}

		controller := research.NewController(
			research.Config{
				Budget:       cfg.Research.Budget,
				MaxQueries:   cfg.Research.MaxQueries,
				MaxSources:   cfg.Research.MaxSources,
				MaxTokens:    cfg.Research.MaxTokens,
				QualityFloor: cfg.Research.QualityFloor,
			},
			research.NewPlanner(provider, cfg.Research.MaxQueries),
			searcher,
			research.NewGrader(provider),
			research.NewWriter(provider),
		)
		if cfg.Research.FetchContent {
			controller.SetEnricher(fetch.NewEnricher(15*time.Second, 0))
		}

		result, err := controller.Run(context.Background(), question)
		if err != nil {
			if errors.Is(err, research.ErrNoSources) {
				return fmt.Errorf("research produced nothing to report on: %w", err)
			}
			return err
		}

		fmt.Println(result.Report)

		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "Run summary: %d cycles, %d queries, %d candidates evaluated, %d sources pooled\n",
			result.Cycles, len(result.QueriesUsed), result.Evaluated, len(result.Sources))
		if result.EarlyStop != "" {
			fmt.Fprintf(os.Stderr, "Stopped early: %s\n", result.EarlyStop)
		}

		if outputPath != "" {
			if err := os.WriteFile(outputPath, []byte(result.Report+"\n"), 0o644); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Report written to %s\n", outputPath)
		}

		if !noArchive {
			if err := archiveRun(result); err != nil {
				// The report already reached the user; losing the
				// archive row is not worth failing the command.
				log.Printf("Archiving run failed: %v", err)
			}
		}
		return nil
	},
}

func init() {
	researchCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Also write the report to a file")
	researchCmd.Flags().BoolVar(&noArchive, "no-archive", false, "Skip archiving the run")
}

func archiveRun(result *research.RunResult) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	run := database.Run{
		Question:       result.Question,
		ReportMarkdown: result.Report,
		CycleCount:     result.Cycles,
		QueryCount:     len(result.QueriesUsed),
	}
	if result.EarlyStop != "" {
		run.EarlyStop = &result.EarlyStop
	}

	var sources []database.RunSource
	for _, s := range result.Sources {
		sources = append(sources, database.RunSource{
			URL:             s.URL,
			Title:           s.Title,
			Summary:         s.Summary,
			RelevanceScore:  s.Score,
			CycleDiscovered: s.Cycle,
		})
	}

	id, err := db.InsertRun(run, sources)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Archived as run #%d (view with 'deepsearch show %d')\n", id, id)
	return nil
}

// --- history command ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived research runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.GetAllRuns()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs archived yet. Start one with: deepsearch research \"your question\"")
			return nil
		}

		for _, r := range runs {
			created := ""
			if r.CreatedAt != nil {
				created = *r.CreatedAt
			}
			fmt.Printf("  [%d] %s\n", r.ID, r.Question)
			fmt.Printf("        %s | %d cycles, %d sources\n", created, r.CycleCount, r.SourceCount)
		}
		return nil
	},
}

// --- show command ---

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print an archived report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid run ID: %s", args[0])
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := db.GetRun(id)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %d not found", id)
		}

		fmt.Println(run.ReportMarkdown)
		return nil
	},
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show archive and configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Archive:")
		fmt.Printf("  Runs: %d\n", stats.TotalRuns)
		fmt.Printf("  Pooled sources: %d\n", stats.TotalSources)
		if stats.LastRunAt != "" {
			fmt.Printf("  Last run: %s\n", stats.LastRunAt)
		}
		fmt.Println("\nConfiguration:")
		fmt.Printf("  Search provider: %s\n", cfg.Search.Provider)
		fmt.Printf("  LLM provider: %s\n", cfg.LLM.Provider)
		fmt.Printf("  Budget: %d cycles, %d queries/cycle, %d sources max\n",
			cfg.Research.Budget, cfg.Research.MaxQueries, cfg.Research.MaxSources)
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web viewer for archived reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "deepsearch.db")
	return database.Open(dbPath)
}
