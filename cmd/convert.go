package cmd

import (
	"fmt"

	"github.com/hid-macro/hid-macro/internal/script"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Convert a script between JSON and YAML",
	Long: `Convert a script between JSON and YAML. Formats are picked from the
file extensions (.yaml/.yml for YAML, anything else is JSON). The input is
fully validated first; nothing is written if it is invalid.

Examples:
  hid-macro convert login.json login.yaml
  hid-macro convert login.yaml login.json`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]

	scr, err := readScriptFile(in)
	if err != nil {
		return fmt.Errorf("failed to load script: %w", err)
	}
	if err := writeScriptFile(out, scr); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Converted %s (%s) to %s (%s), %d events\n",
		in, script.FormatFromPath(in), out, script.FormatFromPath(out), scr.Len())
	return nil
}
