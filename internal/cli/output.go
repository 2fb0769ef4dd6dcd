package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func validateOutputFormat(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return &UsageError{Err: fmt.Errorf("invalid --output %q (text, json, yaml)", format)}
	}
}

// IsJSONOutput reports whether --output json was requested.
func IsJSONOutput() bool { return flagOutput == outputJSON }

// IsYAMLOutput reports whether --output yaml was requested.
func IsYAMLOutput() bool { return flagOutput == outputYAML }

// IsStructuredOutput reports whether the output is for machines.
func IsStructuredOutput() bool { return IsJSONOutput() || IsYAMLOutput() }

// WriteOutput encodes v in the selected structured format.
func WriteOutput(w io.Writer, v any) error {
	if IsYAMLOutput() {
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
