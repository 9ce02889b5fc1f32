package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/cvextract/internal/adjust"
	"github.com/kalambet/cvextract/internal/batch"
	"github.com/kalambet/cvextract/internal/config"
	"github.com/kalambet/cvextract/internal/cv"
	"github.com/kalambet/cvextract/internal/extract"
	"github.com/kalambet/cvextract/internal/ingest"
	"github.com/kalambet/cvextract/internal/storage"
	"github.com/kalambet/cvextract/internal/verify"
)

// newExtractor builds an extractor from the configured profile. profilePath
// overrides extract.profile_path; the configured label match applies only to
// the built-in profile.
func newExtractor(cfg config.Config, profilePath string) (*extract.Extractor, error) {
	if profilePath == "" {
		profilePath = cfg.Extract.ProfilePath
	}

	p := extract.DefaultProfile()
	if profilePath != "" {
		var err error
		if p, err = extract.LoadProfile(profilePath); err != nil {
			return nil, err
		}
	} else if cfg.Extract.LabelMatch != "" {
		p.LabelMatch = extract.LabelMatch(cfg.Extract.LabelMatch)
	}

	rules, err := p.Compile()
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", profilePath, err)
	}
	return extract.New(rules, extract.WithMaxFileSize(int64(cfg.Extract.MaxFileSize))), nil
}

func openStore(cfg config.Config) (*storage.Store, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return store, nil
}

func closeStore(store *storage.Store) {
	if err := store.Close(); err != nil {
		printWarning("closing storage: %v", err)
	}
}

// writeJSONOutput writes v as indented JSON to path, or to w when path is
// empty.
func writeJSONOutput(w io.Writer, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = w.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// --- extract ---

var extractCmd = &cobra.Command{
	Use:   "extract <file.docx>",
	Short: "Extract one resume into CV JSON",
	Long: `Extract one .docx resume into CV JSON.

Examples:
  cvextract extract resume.docx
  cvextract extract resume.docx -o resume.json
  cvextract extract resume.docx --profile french.yaml --store`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profilePath, _ := cmd.Flags().GetString("profile")
		out, _ := cmd.Flags().GetString("output")
		store, _ := cmd.Flags().GetBool("store")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ex, err := newExtractor(cfg, profilePath)
		if err != nil {
			return err
		}

		var saver ingest.ExtractionSaver
		if store {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore(st)
			saver = st
		}
		svc := ingest.NewService(ex, saver, nil)

		res, data, err := svc.ExtractFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printWarnings("", res.Warnings)

		if err := writeJSONOutput(cmd.OutOrStdout(), out, res.CV); err != nil {
			return err
		}
		if out != "" {
			printSuccess("Wrote %s", out)
		}

		if store {
			rec, err := svc.Save(args[0], data, res)
			if err != nil {
				return err
			}
			printSuccess("Stored as %s", rec.ID)
		}
		return nil
	},
}

// --- batch ---

type batchLine struct {
	Input string       `json:"input"`
	CV    *cv.Document `json:"cv"`
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir|file>...",
	Short: "Extract many resumes in parallel",
	Long: `Extract every .docx under the given directories and files.

A file that fails is reported and does not stop the rest. Without --out,
results are printed as one JSON object per line.

Examples:
  cvextract batch ./resumes --out ./json
  cvextract batch a.docx b.docx --workers 2 --store`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		workers, _ := cmd.Flags().GetInt("workers")
		profilePath, _ := cmd.Flags().GetString("profile")
		store, _ := cmd.Flags().GetBool("store")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if workers <= 0 {
			workers = cfg.Batch.Workers
		}
		ex, err := newExtractor(cfg, profilePath)
		if err != nil {
			return err
		}

		var saver ingest.ExtractionSaver
		if store {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore(st)
			saver = st
		}
		svc := ingest.NewService(ex, saver, nil)

		runner := &batch.Runner{Extractor: svc, Workers: workers, OutDir: out}
		if store {
			runner.Sink = svc
		}

		items, err := runner.Plan(args)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			printWarning("no .docx files found")
			return nil
		}
		printStep("Extracting %d files with %d workers", len(items), workers)

		results := runner.Run(cmd.Context(), items)
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, r := range results {
			if r.Err != nil {
				printError("%s: %v", r.Input, r.Err)
				continue
			}
			printWarnings(r.Input, r.Result.Warnings)
			if r.Output != "" {
				printSuccess("%s → %s", r.Input, r.Output)
			} else if err := enc.Encode(batchLine{Input: r.Input, CV: &r.Result.CV}); err != nil {
				return err
			}
		}

		if failed := batch.Failed(results); failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(results))
		}
		printSuccess("Extracted %d files", len(results))
		return nil
	},
}

// --- verify ---

var verifyCmd = &cobra.Command{
	Use:   "verify <cv.json>...",
	Short: "Check CV JSON files for schema errors and extraction gaps",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		invalid := 0
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if printIssues(path, verify.Check(data)) > 0 {
				invalid++
				continue
			}
			printSuccess("%s: valid", path)
		}
		if invalid > 0 {
			return fmt.Errorf("%d of %d files invalid", invalid, len(args))
		}
		return nil
	},
}

// --- adjust ---

var adjustCmd = &cobra.Command{
	Use:   "adjust <cv.json>",
	Short: "Rewrite CV content with an LLM, keeping the JSON shape",
	Long: `Rewrite the text of a CV with an LLM served through OpenRouter.

The reply must keep every key and the same experiences; otherwise it is
rejected.

Examples:
  cvextract adjust cv.json --instructions "Emphasize data engineering" -o tailored.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		instructions, _ := cmd.Flags().GetString("instructions")
		model, _ := cmd.Flags().GetString("model")
		out, _ := cmd.Flags().GetString("output")

		if instructions == "" {
			return errors.New("--instructions is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.RequireOpenRouterKey(); err != nil {
			return err
		}
		if model == "" {
			model = cfg.Adjust.Model
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if issues := verify.CheckJSON(data); verify.HasErrors(issues) {
			return fmt.Errorf("%s is not valid CV JSON: %s", args[0], issues[0])
		}
		var doc cv.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}

		printStep("Adjusting with %s", model)
		a := adjust.New(adjust.NewClient(cfg.Adjust.OpenRouterAPIKey, cfg.Adjust.BaseURL), model)
		adjusted, err := a.Adjust(cmd.Context(), doc, instructions)
		if err != nil {
			return err
		}

		if err := writeJSONOutput(cmd.OutOrStdout(), out, adjusted); err != nil {
			return err
		}
		if out != "" {
			printSuccess("Wrote %s", out)
		}
		return nil
	},
}

// --- stored extractions ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored extractions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore(store)

		records, err := store.ListExtractions(limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			printStatus("Extractions", "none")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSOURCE\tCREATED\tSHA256")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.SourceName, r.CreatedAt.Local().Format(time.DateTime), shortSHA(r.SHA256))
		}
		return tw.Flush()
	},
}

func shortSHA(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored extraction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore(store)

		rec, err := store.GetExtraction(args[0])
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("extraction %s not found", args[0])
		}
		if err != nil {
			return err
		}

		printStatus("Source", "%s", rec.SourceName)
		printStatus("Created", "%s", rec.CreatedAt.Local().Format(time.DateTime))
		var warnings []extract.Warning
		if err := json.Unmarshal([]byte(rec.WarningsJSON), &warnings); err == nil {
			printWarnings("", warnings)
		}

		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(rec.CVJSON), "", "  "); err != nil {
			return fmt.Errorf("stored cv is not valid JSON: %w", err)
		}
		buf.WriteByte('\n')
		_, err = buf.WriteTo(cmd.OutOrStdout())
		return err
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored extraction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore(store)

		if err := store.DeleteExtraction(args[0]); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("extraction %s not found", args[0])
			}
			return err
		}
		printSuccess("Deleted %s", args[0])
		return nil
	},
}

// --- submit ---

var submitCmd = &cobra.Command{
	Use:   "submit <file.docx>",
	Short: "Queue a file for extraction by the running server",
	Long: `Queue a file for extraction by the running server's job worker.

Examples:
  cvextract submit ./resume.docx
  cvextract submit ./resume.docx --wait`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetBool("wait")

		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return submitJob(cmd, client, path, wait, 500*time.Millisecond)
	},
}

type jobStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError string `json:"last_error"`
	ResultID  string `json:"result_id"`
}

func submitJob(cmd *cobra.Command, client *apiClient, path string, wait bool, poll time.Duration) error {
	ctx := cmd.Context()
	resp, err := client.post(ctx, "/jobs", map[string]string{"path": path})
	if err != nil {
		return err
	}
	var queued jobStatus
	if err := decodeJSON(resp, &queued); err != nil {
		return withHint(err)
	}
	printSuccess("Queued %s (job %s)", filepath.Base(path), queued.ID)
	if !wait {
		return nil
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		resp, err := client.get(ctx, "/jobs/"+queued.ID)
		if err != nil {
			return err
		}
		var job jobStatus
		if err := decodeJSON(resp, &job); err != nil {
			return err
		}
		switch job.Status {
		case "completed":
			printSuccess("Extraction stored as %s", job.ResultID)
			fmt.Fprintln(cmd.OutOrStdout(), job.ResultID)
			return nil
		case "failed":
			return fmt.Errorf("job %s failed: %s", job.ID, job.LastError)
		}
	}
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Secret keys are written to the secrets file, not config.json.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s", key)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringP("output", "o", "", "write JSON to this file instead of stdout")
	extractCmd.Flags().String("profile", "", "heuristics profile YAML (overrides extract.profile_path)")
	extractCmd.Flags().Bool("store", false, "also store the result in the local database")

	batchCmd.Flags().String("out", "", "directory for JSON outputs")
	batchCmd.Flags().Int("workers", 0, "parallel files (default batch.workers)")
	batchCmd.Flags().String("profile", "", "heuristics profile YAML (overrides extract.profile_path)")
	batchCmd.Flags().Bool("store", false, "also store results in the local database")

	adjustCmd.Flags().String("instructions", "", "what to change")
	adjustCmd.Flags().String("model", "", "OpenRouter model (default adjust.model)")
	adjustCmd.Flags().StringP("output", "o", "", "write JSON to this file instead of stdout")

	listCmd.Flags().Int("limit", 20, "maximum number of extractions")

	submitCmd.Flags().Bool("wait", false, "wait for the job to finish and print the extraction id")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
