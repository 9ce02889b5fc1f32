package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalambet/cvextract/internal/config"
)

var version = "dev"

var (
	noColor bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "cvextract",
	Short:         "Extract structured CV JSON from .docx resumes",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("NO_COLOR") != "" {
			noColor = true
		}
		setupLogging("")
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cvextract version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cvextract version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		extractCmd,
		batchCmd,
		verifyCmd,
		adjustCmd,
		listCmd,
		showCmd,
		deleteCmd,
		submitCmd,
		serveCmd,
		stopCmd,
		statusCmd,
		configCmd,
		versionCmd,
	)
}

// setupLogging installs a text handler on stderr. --verbose wins over the
// configured level.
func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch {
	case verbose || strings.EqualFold(level, "debug"):
		logLevel = slog.LevelDebug
	case strings.EqualFold(level, "warn"):
		logLevel = slog.LevelWarn
	case strings.EqualFold(level, "error"):
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	setupLogging(cfg.Log.Level)
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
