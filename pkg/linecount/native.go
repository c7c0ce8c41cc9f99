package linecount

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/afero"
	"github.com/src-d/enry/v2"
)

type lineKind uint8

const (
	kindBlank lineKind = iota
	kindComment
	kindCode
)

// sourceLine is one physical line with comments stripped for code lines.
type sourceLine struct {
	text string
	kind lineKind
}

// Native classifies lines in-process: tree-sitter finds comments, enry gates
// the language, go-diff pairs code lines between revisions.
type Native struct {
	fs       afero.Fs
	language string
	timeout  time.Duration
	scanner  *commentScanner
}

// NewNative creates an in-process classifier for language reading files from
// fs. The timeout bounds each DiffCensus; zero means unbounded.
func NewNative(fs afero.Fs, language string, timeout time.Duration) (*Native, error) {
	scanner, err := newCommentScanner(language)
	if err != nil {
		return nil, err
	}

	if fs == nil {
		fs = afero.NewOsFs()
	}

	return &Native{fs: fs, language: language, timeout: timeout, scanner: scanner}, nil
}

// Census classifies every line of path.
func (n *Native) Census(ctx context.Context, path string) (LineCount, error) {
	if !n.tracked(path) {
		return LineCount{}, nil
	}

	lines, err := n.load(ctx, path)
	if err != nil {
		return LineCount{}, err
	}

	return tally(lines), nil
}

// DiffCensus compares two revisions. Code and comment lines are diffed
// separately; blank lines are compared by count.
func (n *Native) DiffCensus(ctx context.Context, oldPath, newPath string) (DiffLineCount, error) {
	if !n.tracked(oldPath) || !n.tracked(newPath) {
		return DiffLineCount{}, nil
	}

	oldLines, err := n.load(ctx, oldPath)
	if err != nil {
		return DiffLineCount{}, err
	}

	newLines, err := n.load(ctx, newPath)
	if err != nil {
		return DiffLineCount{}, err
	}

	ctxErr := ctx.Err()
	if ctxErr != nil {
		return DiffLineCount{}, ctxErr
	}

	code := n.compare(textsOf(oldLines, kindCode), textsOf(newLines, kindCode))
	comment := n.compare(textsOf(oldLines, kindComment), textsOf(newLines, kindComment))
	oldBlank, newBlank := countOf(oldLines, kindBlank), countOf(newLines, kindBlank)

	result := DiffLineCount{
		Same:     LineCount{Code: code.same, Comment: comment.same, Blank: min(oldBlank, newBlank)},
		Modified: LineCount{Code: code.modified, Comment: comment.modified},
		Added:    LineCount{Code: code.added, Comment: comment.added, Blank: max(0, newBlank-oldBlank)},
		Removed:  LineCount{Code: code.removed, Comment: comment.removed, Blank: max(0, oldBlank-newBlank)},
	}

	if code.changed() || comment.changed() || oldBlank != newBlank {
		result.Modified.Files = 1
	} else if len(oldLines) > 0 {
		result.Same.Files = 1
	}

	return result, nil
}

// CheckExtension reports ErrLanguageMismatch when files with extension ext are
// never detected as language. Unknown extensions pass.
func CheckExtension(ext, language string) error {
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}

	candidates := enry.GetLanguagesByExtension("file"+ext, nil, nil)
	if len(candidates) == 0 || slices.Contains(candidates, language) {
		return nil
	}

	return fmt.Errorf("%w: %s is %s, not %s", ErrLanguageMismatch, ext, strings.Join(candidates, "/"), language)
}

func (n *Native) tracked(path string) bool {
	lang, _ := enry.GetLanguageByExtension(path)

	return lang == n.language
}

func (n *Native) load(ctx context.Context, path string) ([]sourceLine, error) {
	src, err := afero.ReadFile(n.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	spans, err := n.scanner.spans(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return splitLines(src, spans), nil
}

// splitLines blanks out comment spans and classifies each physical line.
// A line with any code left after stripping comments is a code line.
func splitLines(src []byte, spans []byteSpan) []sourceLine {
	if len(src) == 0 {
		return nil
	}

	masked := bytes.Clone(src)

	for _, sp := range spans {
		end := min(sp.end, len(masked))
		for i := sp.start; i < end; i++ {
			if masked[i] != '\n' {
				masked[i] = ' '
			}
		}
	}

	original := strings.Split(strings.TrimSuffix(string(src), "\n"), "\n")
	stripped := strings.Split(strings.TrimSuffix(string(masked), "\n"), "\n")
	lines := make([]sourceLine, len(original))

	for i := range original {
		code := strings.TrimSpace(stripped[i])
		text := strings.TrimSpace(original[i])

		switch {
		case code != "":
			lines[i] = sourceLine{text: code, kind: kindCode}
		case text != "":
			lines[i] = sourceLine{text: text, kind: kindComment}
		default:
			lines[i] = sourceLine{kind: kindBlank}
		}
	}

	return lines
}

func tally(lines []sourceLine) LineCount {
	if len(lines) == 0 {
		return LineCount{}
	}

	return LineCount{
		Files:   1,
		Blank:   countOf(lines, kindBlank),
		Comment: countOf(lines, kindComment),
		Code:    countOf(lines, kindCode),
	}
}

func countOf(lines []sourceLine, kind lineKind) int {
	total := 0

	for _, l := range lines {
		if l.kind == kind {
			total++
		}
	}

	return total
}

func textsOf(lines []sourceLine, kind lineKind) []string {
	var out []string

	for _, l := range lines {
		if l.kind == kind {
			out = append(out, l.text)
		}
	}

	return out
}

type relationCounts struct {
	same     int
	modified int
	added    int
	removed  int
}

func (r relationCounts) changed() bool {
	return r.modified+r.added+r.removed > 0
}

// compare pairs deletions with insertions inside each run of changes between
// two equal regions: paired lines are modified, the excess is added or removed.
func (n *Native) compare(oldLines, newLines []string) relationCounts {
	if len(oldLines) == 0 && len(newLines) == 0 {
		return relationCounts{}
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = n.timeout

	src, dst, _ := dmp.DiffLinesToRunes(joinLines(oldLines), joinLines(newLines))
	diffs := dmp.DiffMainRunes(src, dst, false)

	var (
		counts           relationCounts
		pendDel, pendIns int
	)

	flush := func() {
		paired := min(pendDel, pendIns)
		counts.modified += paired
		counts.added += pendIns - paired
		counts.removed += pendDel - paired
		pendDel, pendIns = 0, 0
	}

	for _, d := range diffs {
		lines := len([]rune(d.Text))

		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()

			counts.same += lines
		case diffmatchpatch.DiffDelete:
			pendDel += lines
		case diffmatchpatch.DiffInsert:
			pendIns += lines
		}
	}

	flush()

	return counts
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	return strings.Join(lines, "\n") + "\n"
}
