package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/afero"

	"github.com/Sumatoshi-tech/locfang/pkg/category"
	"github.com/Sumatoshi-tech/locfang/pkg/config"
	"github.com/Sumatoshi-tech/locfang/pkg/linecount"
)

// PathCategory is one classified path.
type PathCategory struct {
	Path     string `json:"path"`
	Category string `json:"category"`
}

// handleClassify processes locfang_classify tool calls.
func handleClassify(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input ClassifyInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if len(input.Paths) == 0 {
		return errorResult(ErrNoPaths)
	}

	if len(input.Paths) > MaxClassifyPaths {
		return errorResult(fmt.Errorf("%w: %d (max %d)", ErrTooManyPaths, len(input.Paths), MaxClassifyPaths))
	}

	out := make([]PathCategory, 0, len(input.Paths))
	for _, path := range input.Paths {
		out = append(out, PathCategory{Path: path, Category: category.Classify(path).String()})
	}

	return jsonResult(out)
}

// Synthetic file names for inline code.
const (
	countOldName = "/old"
	countNewName = "/new"
)

var languageExtensions = map[string]string{
	"C":   ".c",
	"C++": ".cpp",
}

// handleCount processes locfang_count tool calls with the native backend on
// an in-memory filesystem.
func handleCount(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input CountInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateCodeInput(input.Code)
	if err != nil {
		return errorResult(err)
	}

	language := input.Language
	if language == "" {
		language = config.DefaultLanguage
	}

	ext, ok := languageExtensions[language]
	if !ok {
		return errorResult(fmt.Errorf("%w: %s", linecount.ErrUnsupportedLanguage, language))
	}

	fs := afero.NewMemMapFs()

	native, err := linecount.NewNative(fs, language, config.DefaultDiffTimeout)
	if err != nil {
		return errorResult(err)
	}

	newPath := countNewName + ext

	writeErr := afero.WriteFile(fs, newPath, []byte(input.Code), 0o600)
	if writeErr != nil {
		return errorResult(writeErr)
	}

	if input.OldCode == "" {
		count, censusErr := native.Census(ctx, newPath)
		if censusErr != nil {
			return errorResult(censusErr)
		}

		return jsonResult(count)
	}

	oldErr := validateCodeInput(input.OldCode)
	if oldErr != nil {
		return errorResult(oldErr)
	}

	oldPath := countOldName + ext

	writeErr = afero.WriteFile(fs, oldPath, []byte(input.OldCode), 0o600)
	if writeErr != nil {
		return errorResult(writeErr)
	}

	diff, err := native.DiffCensus(ctx, oldPath, newPath)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(diff)
}

// validateCodeInput checks common code input constraints.
func validateCodeInput(code string) error {
	if code == "" {
		return ErrEmptyCode
	}

	if len(code) > MaxCodeInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrCodeTooLarge, len(code), MaxCodeInputBytes)
	}

	return nil
}
