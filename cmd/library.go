package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/hid-macro/hid-macro/internal/script"
	"github.com/spf13/cobra"
)

var libraryShowFormatFlag string

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage named scripts",
	Long: `Store scripts under a name so they can be played with 'hid-macro play --name'.

The library is a SQLite database at the configured library path
(HIDMACRO_LIBRARY overrides it).`,
}

var librarySaveCmd = &cobra.Command{
	Use:   "save <name> <script-file>",
	Short: "Validate a script file and store it under a name",
	Args:  cobra.ExactArgs(2),
	RunE:  runLibrarySave,
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored scripts",
	Args:  cobra.NoArgs,
	RunE:  runLibraryList,
}

var libraryShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a stored script",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibraryShow,
}

var libraryDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a stored script",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibraryDelete,
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	libraryShowCmd.Flags().StringVar(&libraryShowFormatFlag, "format", "json", "Output format: json, yaml")
	libraryCmd.AddCommand(librarySaveCmd, libraryListCmd, libraryShowCmd, libraryDeleteCmd)
	rootCmd.AddCommand(libraryCmd)
}

func runLibrarySave(cmd *cobra.Command, args []string) error {
	name, path := args[0], args[1]

	scr, err := readScriptFile(path)
	if err != nil {
		return fmt.Errorf("failed to load script: %w", err)
	}

	store, err := openLibrary()
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.Save(cmd.Context(), name, scr)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Saved %s as %q (%d events, id %s)\n", path, name, scr.Len(), id)
	return nil
}

func runLibraryList(cmd *cobra.Command, _ []string) error {
	store, err := openLibrary()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "library is empty")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tEVENTS\tDURATION\tUPDATED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", e.Name, e.Events,
			time.Duration(e.Millis)*time.Millisecond, e.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func runLibraryShow(cmd *cobra.Command, args []string) error {
	format, err := script.ParseFormat(libraryShowFormatFlag)
	if err != nil {
		return err
	}

	store, err := openLibrary()
	if err != nil {
		return err
	}
	defer store.Close()

	scr, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	data, err := script.Export(scr, format)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runLibraryDelete(cmd *cobra.Command, args []string) error {
	store, err := openLibrary()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Deleted %q\n", args[0])
	return nil
}
