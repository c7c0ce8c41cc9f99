package report

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidReport is returned when a JSON document does not match the
// report schema.
var ErrInvalidReport = errors.New("invalid report")

//go:embed schema.json
var schemaJSON []byte

// Schema returns the JSON schema of the json output format.
func Schema() []byte {
	return schemaJSON
}

// Validate checks a JSON document against the report schema.
func Validate(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		problems = append(problems, verr.Field()+": "+verr.Description())
	}

	return fmt.Errorf("%w: %s", ErrInvalidReport, strings.Join(problems, "; "))
}

// Decode validates data and unmarshals it into a Report.
func Decode(data []byte) (Report, error) {
	validateErr := Validate(data)
	if validateErr != nil {
		return Report{}, validateErr
	}

	var rep Report

	err := json.Unmarshal(data, &rep)
	if err != nil {
		return Report{}, fmt.Errorf("decode report: %w", err)
	}

	return rep, nil
}
