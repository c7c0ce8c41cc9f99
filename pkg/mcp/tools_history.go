package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/locfang/pkg/config"
	"github.com/Sumatoshi-tech/locfang/pkg/gitlib"
	"github.com/Sumatoshi-tech/locfang/pkg/pipeline"
	"github.com/Sumatoshi-tech/locfang/pkg/report"
)

// defaultMCPCommitLimit is the default commit limit for the history tool.
const defaultMCPCommitLimit = 1000

// handleHistory processes locfang_history tool calls.
func (s *Server) handleHistory(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input HistoryInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateHistoryInput(input)
	if err != nil {
		return errorResult(err)
	}

	opts, err := s.historyOptions(input)
	if err != nil {
		return errorResult(err)
	}

	p, err := pipeline.Open(opts)
	if err != nil {
		return errorResult(err)
	}
	defer p.Close()

	summary, err := p.Run(ctx)
	if err != nil && !pipeline.IsInterrupted(err) {
		return errorResult(err)
	}

	rep := report.New(report.Meta{
		Version:     s.version,
		Repository:  input.RepoPath,
		Extension:   opts.Extension,
		Backend:     p.Backend(),
		GeneratedAt: time.Now(),
	}, summary)

	return jsonResult(rep)
}

// historyOptions overlays tool input on the server defaults.
func (s *Server) historyOptions(input HistoryInput) (pipeline.Options, error) {
	opts := s.defaults
	opts.RepoPath = input.RepoPath
	opts.Commits = input.Commits

	opts.Log.FirstParent = input.FirstParent

	opts.Log.Limit = input.Limit
	if opts.Log.Limit <= 0 {
		opts.Log.Limit = defaultMCPCommitLimit
	}

	if input.Since != "" {
		since, err := config.ParseTime(input.Since, time.Now())
		if err != nil {
			return pipeline.Options{}, err
		}

		opts.Log.Since = &since
	}

	if input.Backend != "" {
		opts.Backend = input.Backend
	}

	if input.Extension != "" {
		opts.Extension = input.Extension
	}

	if input.Language != "" {
		opts.Language = input.Language
	}

	if input.Workers > 0 {
		opts.Workers = input.Workers
	}

	applyFallbacks(&opts)

	return opts, nil
}

func applyFallbacks(opts *pipeline.Options) {
	if opts.Extension == "" {
		opts.Extension = config.DefaultExtension
	}

	if opts.Language == "" {
		opts.Language = config.DefaultLanguage
	}

	if opts.Backend == "" {
		opts.Backend = config.DefaultBackend
	}

	if opts.ClocBinary == "" {
		opts.ClocBinary = config.DefaultClocBinary
	}

	if opts.DiffTimeout <= 0 {
		opts.DiffTimeout = config.DefaultDiffTimeout
	}

	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}

	if opts.Diff == (gitlib.DiffOptions{}) {
		opts.Diff = gitlib.DefaultDiffOptions()
	}
}

// validateHistoryInput validates the history tool input parameters.
func validateHistoryInput(input HistoryInput) error {
	if input.RepoPath == "" {
		return ErrEmptyRepoPath
	}

	if !filepath.IsAbs(input.RepoPath) {
		return ErrRepoPathNotAbsolute
	}

	info, err := os.Stat(input.RepoPath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRepoNotFound, input.RepoPath)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrRepoNotFound, input.RepoPath)
	}

	_, err = os.Stat(filepath.Join(input.RepoPath, ".git"))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotGitRepo, input.RepoPath)
	}

	return nil
}
