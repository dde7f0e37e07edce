package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hid-macro/hid-macro/internal/kvmd"
	"github.com/hid-macro/hid-macro/internal/recorder"
	"github.com/hid-macro/hid-macro/internal/script"
	"github.com/hid-macro/hid-macro/internal/session"
	"github.com/spf13/cobra"
)

var (
	recordOutputFlag  string
	recordForwardFlag bool
	recordSaveFlag    string
)

var recordCmd = &cobra.Command{
	Use:   "record --output FILE [--forward]",
	Short: "Record a live event stream into a timed script",
	Long: `Record reads a JSON-lines event stream on stdin, one
{"event_type": ..., "event": ...} record per line, and captures it with the
real gaps between events inserted as delay steps.

Recording stops at end of input or on Ctrl-C; the script is then written to
--output (JSON or YAML by extension). With --forward every event is also
delivered to the configured kvmd host as it arrives. With --save the script
is also stored in the library under that name.

Examples:
  # Capture from a file of events
  hid-macro record --output login.json < events.jsonl

  # Drive the host live while recording
  some-input-source | hid-macro record --forward --output login.yaml`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	recordCmd.Flags().StringVarP(&recordOutputFlag, "output", "o", "", "output script path (required)")
	recordCmd.Flags().BoolVar(&recordForwardFlag, "forward", false, "also deliver each event to the kvmd host")
	recordCmd.Flags().StringVar(&recordSaveFlag, "save", "", "also store the script in the library under this name")
	_ = recordCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, _ []string) error {
	if recordOutputFlag == "" {
		return fmt.Errorf("--output flag is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	forward, closeForward, err := newForwarder(ctx)
	if err != nil {
		return err
	}
	defer closeForward()

	sess := session.New(session.WithLogger(slog.Default()))
	sess.Record()

	done := make(chan error, 1)
	go func() {
		_, err := recorder.ReadEventStream(cmd.InOrStdin(), func(ev script.Event) error {
			if ev.Kind() == script.KindDelay {
				slog.Warn("ignoring delay event in live stream")
				return nil
			}
			sess.Capture(ev)
			return forward(ctx, ev)
		})
		done <- err
	}()

	var streamErr error
	select {
	case streamErr = <-done:
	case <-ctx.Done():
		fmt.Fprintln(cmd.ErrOrStderr(), "interrupted, writing script")
	}
	sess.Stop()

	scr := sess.Script()
	if scr == nil || scr.Len() == 0 {
		if streamErr != nil {
			return fmt.Errorf("failed to read event stream: %w", streamErr)
		}
		return errors.New("no events recorded")
	}

	if err := writeScriptFile(recordOutputFlag, scr); err != nil {
		return err
	}
	if recordSaveFlag != "" {
		if err := saveToLibrary(context.WithoutCancel(ctx), recordSaveFlag, scr); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Recorded %d event(s) to %s\n", scr.Len(), recordOutputFlag)
	fmt.Fprintf(cmd.ErrOrStderr(), "  Duration: %s\n", scr.Duration())

	if streamErr != nil {
		return fmt.Errorf("event stream ended with an error (script kept): %w", streamErr)
	}
	return nil
}

type forwardFunc func(context.Context, script.Event) error

// newForwarder returns the per-event delivery used with --forward, or a
// no-op when forwarding is off.
func newForwarder(ctx context.Context) (forwardFunc, func(), error) {
	if !recordForwardFlag {
		return func(context.Context, script.Event) error { return nil }, func() {}, nil
	}

	opts := kvmdOptions()
	sink, err := kvmd.NewSink(opts)
	if err != nil {
		return nil, nil, err
	}
	conn, err := kvmd.Dial(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", opts.BaseURL, err)
	}

	forward := func(ctx context.Context, ev script.Event) error {
		delivery, err := script.DeliveryOf(ev)
		if err != nil {
			return err
		}
		if delivery == script.MustComplete {
			return sink.Do(ctx, ev)
		}
		return conn.Send(ctx, ev)
	}
	return forward, func() { _ = conn.Close() }, nil
}

func saveToLibrary(ctx context.Context, name string, scr *script.Script) error {
	store, err := openLibrary()
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.Save(ctx, name, scr); err != nil {
		return err
	}
	slog.Info("script saved to library", "name", name, "path", cfg.Library)
	return nil
}
