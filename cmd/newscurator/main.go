package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deusflow/newscurator/internal/app"
	"github.com/deusflow/newscurator/internal/config"
	"github.com/deusflow/newscurator/internal/curate"
	"github.com/deusflow/newscurator/internal/logger"
	"github.com/deusflow/newscurator/internal/news"
)

var (
	flagDebug  bool
	flagSource string
	flagLimit  int
)

var rootCmd = &cobra.Command{
	Use:           "newscurator",
	Short:         "Collect and curate AI and tech news",
	Long:          "newscurator reads RSS feeds and scrapes news pages into a store, then serves a curated, source-diverse selection per category.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(flagDebug)
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan all sources, or one with --source",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			if flagSource != "" {
				res, err := a.Ingestor.FetchSource(ctx, flagSource)
				if err != nil {
					return err
				}
				return printJSON(res)
			}
			res, err := a.Ingestor.FetchAll(ctx)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var newsCmd = &cobra.Command{
	Use:   "news [category]",
	Short: "Print curated news for every category or one of tech, research, business",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var category news.Category
		if len(args) == 1 {
			c, err := news.ParseCategory(args[0])
			if err != nil {
				return err
			}
			category = c
		}

		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			if category == "" {
				all, err := a.Reader.All(ctx)
				if err != nil {
					return err
				}
				return printJSON(all)
			}
			items, err := a.Reader.ByCategory(ctx, category, flagLimit)
			if err != nil {
				return err
			}
			return printJSON(items)
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scan scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return a.Serve(ctx)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	scanCmd.Flags().StringVar(&flagSource, "source", "", "scan only the source with this name")
	newsCmd.Flags().IntVar(&flagLimit, "limit", 10, "articles to show for a single category")
	newsCmd.Long = fmt.Sprintf("Without a category, prints tech (%d), research (%d) and business (%d) news.",
		curate.TechNewsLimit, curate.ResearchNewsLimit, curate.BusinessNewsLimit)

	rootCmd.AddCommand(scanCmd, newsCmd, serveCmd)
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}
