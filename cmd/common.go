package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hid-macro/hid-macro/internal/kvmd"
	"github.com/hid-macro/hid-macro/internal/library"
	"github.com/hid-macro/hid-macro/internal/script"
)

// readScriptFile loads and validates a script, picking the format from the
// file extension.
func readScriptFile(path string) (*script.Script, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided path is expected
	if err != nil {
		return nil, fmt.Errorf("failed to open script file: %w", err)
	}
	defer f.Close()

	return script.Load(f, script.FormatFromPath(path))
}

// writeScriptFile exports scr to path in the format implied by its
// extension.
func writeScriptFile(path string, scr *script.Script) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist: %s", dir)
		}
	}

	data, err := script.Export(scr, script.FormatFromPath(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // scripts are not secret
		return fmt.Errorf("failed to write script file: %w", err)
	}
	return nil
}

func kvmdOptions() kvmd.Options {
	return kvmd.Options{
		BaseURL:  cfg.URL,
		User:     cfg.User,
		Password: cfg.Password,
		Timeout:  cfg.Timeout.Duration,
		Insecure: cfg.Insecure,
	}
}

func openLibrary() (*library.Store, error) {
	store, err := library.Open(cfg.Library)
	if err != nil {
		return nil, fmt.Errorf("failed to open library %s: %w", cfg.Library, err)
	}
	return store, nil
}
