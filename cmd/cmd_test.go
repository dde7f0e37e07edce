package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/hid-macro/hid-macro/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const fixtures = "../testdata/scripts"

// makeRoot creates a fresh root with one subcommand for testing. Output is
// captured in the returned buffers.
func makeRoot(sub *cobra.Command) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	root := &cobra.Command{
		Use:           "hid-macro",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(sub)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	return root, &stdout, &stderr
}

func newCommand(use string, args cobra.PositionalArgs, run func(*cobra.Command, []string) error, flags func(*pflag.FlagSet)) *cobra.Command {
	c := &cobra.Command{Use: use, Args: args, RunE: run}
	if flags != nil {
		flags(c.Flags())
	}
	return c
}

// useTestConfig points the package config at a temporary library and
// restores the previous value afterwards.
func useTestConfig(t *testing.T) *config.Config {
	t.Helper()
	prev := cfg
	cfg = config.Default()
	cfg.Library = filepath.Join(t.TempDir(), "library.db")
	t.Cleanup(func() { cfg = prev })
	return cfg
}

func fixture(name string) string {
	return filepath.Join(fixtures, name)
}
