package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// ValidationResult represents the validation outcome for a single script file.
type ValidationResult struct {
	File   string   `json:"file"`
	Valid  bool     `json:"valid"`
	Events int      `json:"events"`
	Millis int64    `json:"millis"`
	Errors []string `json:"errors"`
}

// errInvalidScripts is returned when at least one file failed validation.
var errInvalidScripts = errors.New("one or more scripts are invalid")

var validateFormatFlag string

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate script files without playing them",
	Long: `Validate one or more JSON or YAML scripts without sending anything.

Checks that the file is a list of records, that every record has a known
event type, and that every payload field has the right type (booleans for
states, non-negative integer delays, integer coordinates).

Exit code 0 if all files are valid, 1 if any file has errors.

Formats:
  text   Human-readable output to stderr (default)
  json   Structured JSON to stdout

Examples:
  hid-macro validate login.json
  hid-macro validate a.json b.yaml
  hid-macro validate --format json login.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	validateCmd.Flags().StringVar(&validateFormatFlag, "format", "text",
		"Output format: text, json")
	rootCmd.AddCommand(validateCmd)
}

// runValidate validates each file independently and reports all of them
// before failing.
func runValidate(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(validateFormatFlag)
	switch format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q: valid values are text, json", validateFormatFlag)
	}

	var results []ValidationResult
	hasErrors := false
	for _, path := range args {
		result := validateFile(path)
		results = append(results, result)
		if !result.Valid {
			hasErrors = true
		}
	}

	switch format {
	case "text":
		formatValidateText(cmd.ErrOrStderr(), results)
	case "json":
		if err := formatValidateJSON(cmd.OutOrStdout(), results); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
	}

	if hasErrors {
		return errInvalidScripts
	}
	return nil
}

// validateFile loads a single script and returns its ValidationResult.
func validateFile(path string) ValidationResult {
	scr, err := readScriptFile(path)
	if err != nil {
		return ValidationResult{
			File:   path,
			Valid:  false,
			Errors: []string{err.Error()},
		}
	}

	return ValidationResult{
		File:   path,
		Valid:  true,
		Events: scr.Len(),
		Millis: scr.TotalMillis(),
		Errors: []string{},
	}
}

// formatValidateText writes human-readable validation results.
func formatValidateText(w io.Writer, results []ValidationResult) {
	validCount := 0
	for _, r := range results {
		if r.Valid {
			validCount++
			fmt.Fprintf(w, "✓ %s: valid (%d events, %dms)\n", r.File, r.Events, r.Millis)
		} else {
			fmt.Fprintf(w, "✗ %s:\n", r.File)
			for _, e := range r.Errors {
				fmt.Fprintf(w, "  - %s\n", e)
			}
		}
	}

	if len(results) > 1 {
		fmt.Fprintf(w, "\nResult: %d/%d files valid\n", validCount, len(results))
	}
}

// formatValidateJSON writes JSON-encoded validation results.
func formatValidateJSON(w io.Writer, results []ValidationResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}
