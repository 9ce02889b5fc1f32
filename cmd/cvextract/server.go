package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kalambet/cvextract/internal/api"
	"github.com/kalambet/cvextract/internal/config"
	"github.com/kalambet/cvextract/internal/ingest"
	"github.com/kalambet/cvextract/internal/metrics"
	"github.com/kalambet/cvextract/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and job worker (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(cmd.Context(), withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running cvextract server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cvextract status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools on stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "cvextract.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(ctx context.Context, withMCP bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("starting cvextract", "version", version)

	token, created, err := config.EnsureServerToken(&cfg)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	if created {
		slog.Info("generated API bearer token")
	}

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	ex, err := newExtractor(cfg, "")
	if err != nil {
		return err
	}
	m := metrics.New(prometheus.DefaultRegisterer)
	svc := ingest.NewService(ex, store, m)

	handler := api.NewAppHandler(api.AppDeps{
		Service:       svc,
		Store:         store,
		Token:         token,
		Metrics:       promhttp.Handler(),
		MaxUploadSize: int64(cfg.Extract.MaxFileSize),
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	worker := ingest.NewWorker(store, svc, 500*time.Millisecond)
	go worker.Run(ctx)

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Service: svc,
			Store:   store,
			Version: version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("cvextract is not running (no PID file): %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("could not find process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		removePIDFile(pidPath)
		return fmt.Errorf("could not stop cvextract (PID %d): %w", pid, err)
	}

	printSuccess("Sent stop signal to cvextract (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:      cfg.Server.Token,
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
	reportStatus(ctx, client, cfg)
	return nil
}

// reportStatus prints server reachability and, when it is up, the number of
// stored extractions.
func reportStatus(ctx context.Context, client *apiClient, cfg config.Config) {
	const countLimit = 100

	resp, err := client.get(ctx, "/health")
	running := err == nil && resp.StatusCode == http.StatusOK
	switch {
	case err != nil:
		printStatus("Server", "stopped")
	case running:
		resp.Body.Close()
		printStatus("Server", "running on port %d", cfg.Server.Port)
	default:
		resp.Body.Close()
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
	}

	if running && client.token != "" {
		if resp, err := client.get(ctx, fmt.Sprintf("/extractions?limit=%d", countLimit)); err == nil {
			var records []json.RawMessage
			if decodeJSON(resp, &records) == nil {
				printStatus("Extractions", "%s", countLabel(len(records), countLimit))
			}
		}
	}

	profile := cfg.Extract.ProfilePath
	if profile == "" {
		profile = "built-in (label match " + cfg.Extract.LabelMatch + ")"
	}
	printStatus("Profile", "%s", profile)
	printStatus("Adjust model", "%s", cfg.Adjust.Model)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
