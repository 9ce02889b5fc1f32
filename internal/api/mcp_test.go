package api

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/cvextract/internal/cv"
	"github.com/kalambet/cvextract/internal/extract"
	"github.com/kalambet/cvextract/internal/ingest"
	"github.com/kalambet/cvextract/internal/storage"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store := openTestStore(t)
	return MCPDeps{
		Service: ingest.NewService(extract.New(nil), store, nil),
		Store:   store,
		Version: "test",
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPServerRegistersTools(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	s := NewMCPServer(deps)
	tools := s.ListTools()
	for _, name := range []string{"extract_cv", "verify_cv", "get_extraction"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestMCPTool_ExtractCV(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	path := testResume().WriteFile(t, t.TempDir(), "marie.docx")

	result, err := mcpExtractCV(deps)(context.Background(), makeCallToolRequest("extract_cv", map[string]any{
		"path":  path,
		"store": true,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}

	var out struct {
		ID string      `json:"id"`
		CV cv.Document `json:"cv"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &out); err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if out.CV.Identity.FullName != "Marie Curie" {
		t.Errorf("name = %q", out.CV.Identity.FullName)
	}
	rec, err := store.GetExtraction(out.ID)
	if err != nil {
		t.Fatalf("GetExtraction: %v", err)
	}
	if rec.SourceName != "marie.docx" {
		t.Errorf("SourceName = %q", rec.SourceName)
	}
}

func TestMCPTool_ExtractCVErrors(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpExtractCV(deps)

	for _, args := range []map[string]any{
		{},
		{"path": filepath.Join(t.TempDir(), "missing.docx")},
	} {
		result, err := handler(context.Background(), makeCallToolRequest("extract_cv", args))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Errorf("args %v: expected tool error, got %s", args, toolText(t, result))
		}
	}
}

func TestMCPTool_VerifyCV(t *testing.T) {
	handler := mcpVerifyCV()

	result, _ := handler(context.Background(), makeCallToolRequest("verify_cv", map[string]any{"json": `{"overview":""}`}))
	var report verifyResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &report); err != nil {
		t.Fatalf("parsing report: %v", err)
	}
	if report.Valid {
		t.Errorf("incomplete document reported valid: %+v", report)
	}

	result, _ = handler(context.Background(), makeCallToolRequest("verify_cv", map[string]any{}))
	if !result.IsError {
		t.Error("expected error without json argument")
	}
}

func TestMCPTool_GetExtraction(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	saveExtraction(t, store, "e1", "aaa")
	handler := mcpGetExtraction(deps)

	result, _ := handler(context.Background(), makeCallToolRequest("get_extraction", map[string]any{"id": "e1"}))
	if result.IsError || !strings.Contains(toolText(t, result), `"source_name":"e1.docx"`) {
		t.Errorf("result = %s", toolText(t, result))
	}

	result, _ = handler(context.Background(), makeCallToolRequest("get_extraction", map[string]any{"id": "nope"}))
	if !result.IsError || !strings.Contains(toolText(t, result), "not found") {
		t.Errorf("result = %s", toolText(t, result))
	}
}

func TestMCPResource_Recent(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	for i := range 12 {
		saveExtraction(t, store, fmt.Sprintf("e%02d", i), "sha")
	}

	contents, err := mcpResourceRecent(deps)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "cv://recent"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents).Text

	var views []map[string]any
	if err := json.Unmarshal([]byte(text), &views); err != nil {
		t.Fatalf("parsing resource: %v", err)
	}
	if len(views) != recentExtractions {
		t.Errorf("got %d entries, want %d", len(views), recentExtractions)
	}
	if _, ok := views[0]["cv"]; ok {
		t.Error("resource should list metadata only")
	}
}
