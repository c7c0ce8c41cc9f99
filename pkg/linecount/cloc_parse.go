package linecount

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const countColumns = 4

// ParseCensus extracts the row for language from a cloc census report.
// A report without such a row is a zero count.
func ParseCensus(out []byte, language string) (LineCount, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))

	for scanner.Scan() {
		rest, ok := cutLanguage(scanner.Text(), language)
		if !ok {
			continue
		}

		fields := strings.Fields(rest)
		if len(fields) != countColumns {
			continue
		}

		return parseRow(fields)
	}

	scanErr := scanner.Err()
	if scanErr != nil {
		return LineCount{}, fmt.Errorf("%w: %w", ErrMalformedOutput, scanErr)
	}

	return LineCount{}, nil
}

// ParseDiff extracts the same/modified/added/removed block for language from
// a cloc diff report. A report without such a block is a zero count.
func ParseDiff(out []byte, language string) (DiffLineCount, error) {
	var (
		result  DiffLineCount
		inBlock bool
	)

	scanner := bufio.NewScanner(bytes.NewReader(out))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if !inBlock {
			inBlock = line == language

			continue
		}

		fields := strings.Fields(line)
		if len(fields) != countColumns+1 {
			break
		}

		count, err := parseRow(fields[1:])
		if err != nil {
			return DiffLineCount{}, err
		}

		if !result.set(fields[0], count) {
			break
		}
	}

	scanErr := scanner.Err()
	if scanErr != nil {
		return DiffLineCount{}, fmt.Errorf("%w: %w", ErrMalformedOutput, scanErr)
	}

	return result, nil
}

// cutLanguage returns the remainder of line when it starts with language
// followed by whitespace. Language names may contain spaces.
func cutLanguage(line, language string) (string, bool) {
	trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)

	rest, ok := strings.CutPrefix(trimmed, language)
	if !ok || rest == "" {
		return "", false
	}

	if !unicode.IsSpace(rune(rest[0])) {
		return "", false
	}

	return rest, true
}

func parseRow(fields []string) (LineCount, error) {
	var values [countColumns]int

	for i, field := range fields {
		v, err := strconv.Atoi(field)
		if err != nil {
			return LineCount{}, fmt.Errorf("%w: column %d: %q", ErrMalformedOutput, i, field)
		}

		values[i] = v
	}

	return LineCount{Files: values[0], Blank: values[1], Comment: values[2], Code: values[3]}, nil
}
