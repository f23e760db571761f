// Package mcp dispatches MCP protocol requests (initialize, tools/list,
// tools/call) to the filesystem engine and formats results as tool text.
package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"codebase-context-server/internal/errors"
	"codebase-context-server/internal/models"
	"codebase-context-server/internal/service"
)

const (
	protocolVersion = "2024-11-05"
	serverName      = "codebase-context-server"
	serverVersion   = "1.0.0"
)

// ToolCallParams represents the parameters for a tools/call request.
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Processor handles MCP requests against one engine.
type Processor struct {
	engine service.Engine
}

// NewProcessor creates a Processor.
func NewProcessor(engine service.Engine) *Processor {
	return &Processor{engine: engine}
}

// ProcessRequest handles one JSON-RPC request. Tool-level failures are
// returned as tool results with IsError set; protocol-level failures are
// returned as JSON-RPC errors.
func (p *Processor) ProcessRequest(req models.JSONRPCRequest) (interface{}, *models.JSONRPCError) {
	switch req.Method {
	case "initialize":
		return models.InitializeResponse{
			ProtocolVersion: protocolVersion,
			Capabilities:    models.Capabilities{Tools: models.ToolsCapabilities{}},
			ServerInfo: models.ServerInfo{
				Name:        serverName,
				Version:     serverVersion,
				Description: "Sandboxed codebase inspection and modification over MCP",
			},
		}, nil
	case "tools/list":
		return models.ToolsListResponse{Tools: toolDefinitions()}, nil
	case "tools/call":
		var params ToolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, errors.ToJSONRPCError(
				errors.NewInvalidParamsError("Invalid parameters for tools/call: "+err.Error(), nil))
		}
		return p.handleToolCall(params.Name, params.Arguments), nil
	default:
		return nil, errors.ToJSONRPCError(errors.NewMethodNotFoundError(req.Method))
	}
}

func (p *Processor) handleToolCall(toolName string, toolArgs json.RawMessage) *models.MCPToolResult {
	switch toolName {
	case "analyze_directory":
		var params models.AnalyzeDirectoryRequest
		if err := json.Unmarshal(toolArgs, &params); err != nil {
			return toolError("Invalid parameters for analyze_directory: " + err.Error())
		}
		resp, errDetail := p.engine.AnalyzeDirectory(params)
		if errDetail != nil {
			return toolError(formatError(errDetail))
		}
		return toolText(formatAnalyzeResult(resp))
	case "read_files":
		var params models.ReadFilesRequest
		if err := json.Unmarshal(toolArgs, &params); err != nil {
			return toolError("Invalid parameters for read_files: " + err.Error())
		}
		resp, errDetail := p.engine.ReadFiles(params)
		if errDetail != nil {
			return toolError(formatError(errDetail))
		}
		return toolText(formatReadFilesResult(resp))
	case "write_file":
		var params models.WriteFileRequest
		if err := json.Unmarshal(toolArgs, &params); err != nil {
			return toolError("Invalid parameters for write_file: " + err.Error())
		}
		resp, errDetail := p.engine.WriteFile(params)
		if errDetail != nil {
			return toolError(formatError(errDetail))
		}
		return toolText(formatWriteResult(resp))
	case "edit_file":
		var params models.EditFileRequest
		if err := json.Unmarshal(toolArgs, &params); err != nil {
			return toolError("Invalid parameters for edit_file: " + err.Error())
		}
		resp, errDetail := p.engine.EditFile(params)
		if errDetail != nil {
			return toolError(formatError(errDetail))
		}
		return toolText(resp.Diff)
	default:
		return toolError(fmt.Sprintf("Unknown tool '%s'", toolName))
	}
}

func toolText(text string) *models.MCPToolResult {
	return &models.MCPToolResult{
		Content: []models.MCPToolContent{{Type: "text", Text: text}},
	}
}

func toolError(text string) *models.MCPToolResult {
	return &models.MCPToolResult{
		Content: []models.MCPToolContent{{Type: "text", Text: "Error: " + text}},
		IsError: true,
	}
}

func formatError(errDetail *models.ErrorDetail) string {
	return fmt.Sprintf("%s (code %d)", errDetail.Message, errDetail.Code)
}

func formatAnalyzeResult(resp *models.AnalyzeDirectoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Directory: %s\n", resp.RootPath)
	fmt.Fprintf(&b, "Total files: %d\n", resp.TotalFiles)
	fmt.Fprintf(&b, "Total tokens: %d\n", resp.TotalTokens)
	if len(resp.Files) > 0 {
		b.WriteString("\nFiles:\n")
		for _, f := range resp.Files {
			fmt.Fprintf(&b, "- %s (%d lines, %d tokens)\n", f.Path, f.LineCount, f.TokenCount)
		}
	}
	return b.String()
}

func formatReadFilesResult(resp *models.ReadFilesResponse) string {
	var b strings.Builder
	for i, result := range resp.Results {
		if i > 0 {
			b.WriteString("\n")
		}
		if result.Error != "" {
			fmt.Fprintf(&b, "%s: Error: %s\n", result.Path, result.Error)
			continue
		}
		fmt.Fprintf(&b, "%s:\n%s\n", result.Path, result.Content)
	}
	return b.String()
}

func formatWriteResult(resp *models.WriteFileResponse) string {
	switch resp.Status {
	case "created":
		return fmt.Sprintf("Created %s", resp.Path)
	case "unchanged":
		return fmt.Sprintf("%s unchanged", resp.Path)
	default:
		return resp.Diff
	}
}

func toolDefinitions() []models.ToolDefinition {
	return []models.ToolDefinition{
		{
			Name:        "analyze_directory",
			Description: "Recursively analyze a directory, honoring .gitignore files, and report per-file line and token counts.",
			InputSchema: models.Schema{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{"type": "string", "description": "Directory to analyze"},
				},
				"required": []string{"path"},
			},
			Annotations: models.ToolAnnotations{ReadOnlyHint: true},
		},
		{
			Name:        "read_files",
			Description: "Read multiple files; failures are reported per file without aborting the batch.",
			InputSchema: models.Schema{
				"type": "object",
				"properties": map[string]interface{}{
					"paths": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
				},
				"required": []string{"paths"},
			},
			Annotations: models.ToolAnnotations{ReadOnlyHint: true},
		},
		{
			Name:        "write_file",
			Description: "Write or create a file with the given content; reports a unified diff of the change.",
			InputSchema: models.Schema{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    map[string]interface{}{"type": "string"},
					"content": map[string]interface{}{"type": "string"},
				},
				"required": []string{"path", "content"},
			},
			Annotations: models.ToolAnnotations{DestructiveHint: true},
		},
		{
			Name:        "edit_file",
			Description: "Replace the first exact occurrence of old_text with new_text in a file; returns a unified diff.",
			InputSchema: models.Schema{
				"type": "object",
				"properties": map[string]interface{}{
					"path":     map[string]interface{}{"type": "string"},
					"old_text": map[string]interface{}{"type": "string"},
					"new_text": map[string]interface{}{"type": "string"},
				},
				"required": []string{"path", "old_text", "new_text"},
			},
			Annotations: models.ToolAnnotations{DestructiveHint: true},
		},
	}
}
