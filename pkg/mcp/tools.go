package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNameHistory  = "locfang_history"
	ToolNameClassify = "locfang_classify"
	ToolNameCount    = "locfang_count"
)

// Input size limits.
const (
	// MaxCodeInputBytes is the maximum allowed size for inline code input (1 MB).
	MaxCodeInputBytes = 1 << 20
	// MaxClassifyPaths caps the number of paths per classify call.
	MaxClassifyPaths = 10000
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyCode indicates the code parameter is empty.
	ErrEmptyCode = errors.New("code parameter is required and must not be empty")
	// ErrCodeTooLarge indicates the code input exceeds the size limit.
	ErrCodeTooLarge = errors.New("code input exceeds maximum size")
	// ErrNoPaths indicates the paths parameter is empty.
	ErrNoPaths = errors.New("paths parameter is required and must not be empty")
	// ErrTooManyPaths indicates the paths parameter exceeds the limit.
	ErrTooManyPaths = errors.New("too many paths")
	// ErrEmptyRepoPath indicates the repo_path parameter is empty.
	ErrEmptyRepoPath = errors.New("repo_path parameter is required and must not be empty")
	// ErrRepoPathNotAbsolute indicates the repo_path is not an absolute path.
	ErrRepoPathNotAbsolute = errors.New("repo_path must be an absolute path")
	// ErrRepoNotFound indicates the repository path does not exist.
	ErrRepoNotFound = errors.New("repository path does not exist")
	// ErrNotGitRepo indicates the path is not a git repository.
	ErrNotGitRepo = errors.New("path is not a git repository")
)

// Input types (auto-generate JSON schemas via struct tags).

// HistoryInput is the input schema for the locfang_history tool.
type HistoryInput struct {
	Backend     string   `json:"backend,omitempty"      jsonschema:"line counting backend: auto, cloc or native (default: auto)"`
	Commits     []string `json:"commits,omitempty"      jsonschema:"explicit commit identifiers to process; empty walks from HEAD"`
	Extension   string   `json:"extension,omitempty"    jsonschema:"tracked file extension (default: .c)"`
	FirstParent bool     `json:"first_parent,omitempty" jsonschema:"follow only the first parent of merge commits"`
	Language    string   `json:"language,omitempty"     jsonschema:"tracked language name (default: C)"`
	Limit       int      `json:"limit,omitempty"        jsonschema:"maximum number of commits to walk (default: 1000)"`
	RepoPath    string   `json:"repo_path"              jsonschema:"absolute path to a Git repository"`
	Since       string   `json:"since,omitempty"        jsonschema:"only walk commits after this time (e.g. 24h or 2024-01-01)"`
	Workers     int      `json:"workers,omitempty"      jsonschema:"changes of one commit processed concurrently"`
}

// ClassifyInput is the input schema for the locfang_classify tool.
type ClassifyInput struct {
	Paths []string `json:"paths" jsonschema:"repository-relative paths to classify"`
}

// CountInput is the input schema for the locfang_count tool.
type CountInput struct {
	Code     string `json:"code"               jsonschema:"source code to count"`
	Language string `json:"language,omitempty" jsonschema:"language of the code: C or C++ (default: C)"`
	OldCode  string `json:"old_code,omitempty" jsonschema:"previous revision; enables four-way classification"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
