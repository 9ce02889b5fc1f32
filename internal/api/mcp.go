package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/cvextract/internal/ingest"
	"github.com/kalambet/cvextract/internal/storage"
)

const recentExtractions = 10

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Service *ingest.Service
	Store   *storage.Store
	Version string
}

// NewMCPServer creates an MCP server exposing extraction, verification and
// stored results.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"cvextract",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("cvextract turns .docx resumes into structured CV JSON."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("extract_cv",
			mcp.WithDescription("Extract a .docx resume on the local filesystem into CV JSON."),
			mcp.WithString("path", mcp.Description("Absolute path to the .docx file"), mcp.Required()),
			mcp.WithBoolean("store", mcp.Description("Persist the result and return its id (default false)")),
		),
		mcpExtractCV(deps),
	)

	s.AddTool(
		mcp.NewTool("verify_cv",
			mcp.WithDescription("Check a CV JSON document for missing keys, wrong types and extraction gaps."),
			mcp.WithString("json", mcp.Description("The CV JSON document"), mcp.Required()),
		),
		mcpVerifyCV(),
	)

	s.AddTool(
		mcp.NewTool("get_extraction",
			mcp.WithDescription("Return a stored extraction by id."),
			mcp.WithString("id", mcp.Description("Extraction id"), mcp.Required()),
		),
		mcpGetExtraction(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"cv://recent",
			"Recent Extractions",
			mcp.WithResourceDescription(fmt.Sprintf("Last %d stored extractions (metadata only)", recentExtractions)),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpExtractCV(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil || path == "" {
			return mcpError("path is required"), nil
		}

		res, data, err := deps.Service.ExtractFile(ctx, path)
		if err != nil {
			return mcpError(fmt.Sprintf("extraction failed: %v", err)), nil
		}

		out := extractResponse{CV: res.CV, Warnings: res.Warnings}
		if req.GetBool("store", false) {
			rec, err := deps.Service.Save(path, data, res)
			if err != nil {
				return mcpError(fmt.Sprintf("extracted but failed to save: %v", err)), nil
			}
			out.ID = rec.ID
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpVerifyCV() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		doc, err := req.RequireString("json")
		if err != nil {
			return mcpError("json is required"), nil
		}

		b, err := json.Marshal(verifyDocument([]byte(doc)))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal report: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetExtraction(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		e, err := deps.Store.GetExtraction(id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("extraction %s not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get extraction: %v", err)), nil
		}

		b, err := json.Marshal(newExtractionView(e, true))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal extraction: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		list, err := deps.Store.ListExtractions(recentExtractions)
		if err != nil {
			return nil, fmt.Errorf("failed to list extractions: %w", err)
		}

		views := make([]extractionView, len(list))
		for i, e := range list {
			views[i] = newExtractionView(e, false)
		}

		b, err := json.Marshal(views)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal extractions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
