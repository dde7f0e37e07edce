package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hid-macro/hid-macro/internal/kvmd"
	"github.com/hid-macro/hid-macro/internal/player"
	"github.com/hid-macro/hid-macro/internal/report"
	"github.com/hid-macro/hid-macro/internal/script"
	"github.com/hid-macro/hid-macro/internal/session"
	"github.com/spf13/cobra"
)

var (
	playNameFlag   string
	playLoopFlag   bool
	playReportFlag string
)

// errPlaybackFailed is returned after a failed walk has been reported.
var errPlaybackFailed = errors.New("playback failed")

var playCmd = &cobra.Command{
	Use:   "play [script-file]",
	Short: "Replay a script against the kvmd host",
	Long: `Replay a script against the configured kvmd host with its recorded timing.

Keyboard and mouse events go over the live socket without waiting for an
answer. Paste, ATX and GPIO steps are HTTP requests; playback only moves on
once the host has accepted them, and the first rejected request aborts the
walk. Ctrl-C stops playback; a request already in flight is not retracted.

The script is read from a file or, with --name, from the library.

Reports:
  json   Compact JSON summary to stdout
  junit  JUnit XML to stdout (for CI test report ingestion)

Set HIDMACRO_TRACE=1 to print every dispatched step to stderr.

Examples:
  hid-macro play login.json
  hid-macro play --name login --loop
  hid-macro play login.yaml --report junit > report.xml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	playCmd.Flags().StringVar(&playNameFlag, "name", "", "play a script stored in the library")
	playCmd.Flags().BoolVar(&playLoopFlag, "loop", false, "restart the script until interrupted (default from config)")
	playCmd.Flags().StringVar(&playReportFlag, "report", "", "Report format: json, junit")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	reportFormat := strings.ToLower(playReportFlag)
	switch reportFormat {
	case "", "json", "junit":
	default:
		return fmt.Errorf("invalid report format %q: valid values are json, junit", playReportFlag)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name, scr, err := loadPlayScript(ctx, args)
	if err != nil {
		return err
	}

	opts := kvmdOptions()
	sink, err := kvmd.NewSink(opts)
	if err != nil {
		return err
	}
	conn, err := kvmd.Dial(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", opts.BaseURL, err)
	}
	defer conn.Close()

	sess := session.New(
		session.WithTransport(conn),
		session.WithSink(sink),
		session.WithTrace(player.TraceFromEnv()),
		session.WithLogger(slog.Default()),
	)
	if err := sess.SetScript(scr); err != nil {
		return err
	}
	loop := cfg.Loop
	if cmd.Flags().Changed("loop") {
		loop = playLoopFlag
	}
	sess.SetLoop(loop)

	walkDone := make(chan struct{})
	defer close(walkDone)
	go func() {
		select {
		case <-conn.Done():
			sess.SetTransport(nil)
		case <-walkDone:
		}
	}()

	fmt.Fprintf(cmd.ErrOrStderr(), "hid-macro: playing %s (%d events, %s) on %s\n",
		name, scr.Len(), scr.Duration(), opts.BaseURL)

	started := time.Now().UTC()
	res, runErr := sess.Play(ctx)
	if runErr == nil {
		if connErr := conn.Err(); connErr != nil {
			runErr = fmt.Errorf("connection to %s lost: %w", opts.BaseURL, connErr)
		}
	}

	if reportFormat != "" {
		result := report.Build(name, sess.ID(), scr, res, runErr)
		var fmtErr error
		if reportFormat == "json" {
			fmtErr = report.FormatJSON(cmd.OutOrStdout(), result)
		} else {
			fmtErr = report.FormatJUnit(cmd.OutOrStdout(), result, name, started)
		}
		if fmtErr != nil {
			return fmt.Errorf("failed to write report: %w", fmtErr)
		}
	}

	var dErr *player.DispatchError
	switch {
	case errors.As(runErr, &dErr):
		fmt.Fprint(cmd.ErrOrStderr(), player.FormatDispatchError(dErr))
		return errPlaybackFailed
	case runErr != nil:
		return runErr
	}

	if res.Passes == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Stopped %s after %d event(s)\n", name, res.Dispatched)
		return nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Played %s: %d pass(es), %d event(s) sent\n", name, res.Passes, res.Dispatched)
	return nil
}

// loadPlayScript returns a display name and the script to play.
func loadPlayScript(ctx context.Context, args []string) (string, *script.Script, error) {
	switch {
	case playNameFlag != "" && len(args) > 0:
		return "", nil, errors.New("pass either a script file or --name, not both")
	case playNameFlag != "":
		store, err := openLibrary()
		if err != nil {
			return "", nil, err
		}
		defer store.Close()
		scr, err := store.Get(ctx, playNameFlag)
		if err != nil {
			return "", nil, err
		}
		return playNameFlag, scr, nil
	case len(args) == 1:
		scr, err := readScriptFile(args[0])
		if err != nil {
			return "", nil, fmt.Errorf("failed to load script: %w", err)
		}
		return filepath.Base(args[0]), scr, nil
	default:
		return "", nil, errors.New("no script specified: pass a file or --name")
	}
}
