package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/tickworld/internal/demo"
	"github.com/randalmurphal/tickworld/pkg/tickworld"
	"github.com/randalmurphal/tickworld/pkg/tickworld/config"
	"github.com/randalmurphal/tickworld/pkg/tickworld/journal"
)

func replayCmd() *cobra.Command {
	var (
		f    worldFlags
		upTo uint64
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute a journaled run and verify every batch",
		Long: `Rebuild the scenario, feed it the journaled inputs and check that every
batch matches the journal byte for byte. The strategy may differ from the
one the run was recorded with.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.journalPath == "" || f.runID == "" {
				return fmt.Errorf("--journal and --run-id are required")
			}
			settings, scenarioCfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			logger, err := f.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			store, err := journal.NewSQLiteStore(f.journalPath)
			if err != nil {
				return err
			}
			defer store.Close()

			var opts []tickworld.ReplayOption
			if upTo > 0 {
				opts = append(opts, tickworld.ReplayUpTo(upTo))
			}

			build := func() (*tickworld.World[demo.Msg], error) {
				return buildReplayWorld(&f, settings, scenarioCfg, logger)
			}
			report, err := tickworld.Replay(cmd.Context(), store, f.runID, journal.JSONCodec[demo.Msg]{}, build, opts...)

			var mismatch *tickworld.ReplayMismatchError
			if errors.As(err, &mismatch) {
				printReplay(cmd.OutOrStdout(), report, mismatch)
			}
			if err != nil {
				return err
			}
			printReplay(cmd.OutOrStdout(), report, nil)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().Uint64Var(&upTo, "up-to", 0, "stop after verifying this tick")
	return cmd
}

// buildReplayWorld mirrors run's world construction without input or journal.
func buildReplayWorld(f *worldFlags, settings tickworld.Settings, cfg config.Config, logger *slog.Logger) (*tickworld.World[demo.Msg], error) {
	sc, err := demo.Catalog().Build(f.scenario, cfg)
	if err != nil {
		return nil, err
	}
	w, err := tickworld.New[demo.Msg](
		tickworld.WithSettings(settings),
		tickworld.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	if f.idle {
		if err := w.SetIdleMessage(demo.Idle); err != nil {
			w.Close()
			return nil, err
		}
	}
	if err := sc.Populate(w); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func printReplay(out io.Writer, report *tickworld.ReplayReport, mismatch *tickworld.ReplayMismatchError) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if report != nil {
		fmt.Fprintf(tw, "run\t%s\n", report.RunID)
		fmt.Fprintf(tw, "verified\t%d entries\n", report.Entries)
		fmt.Fprintf(tw, "ticks\t%d\n", report.Ticks)
	}
	if mismatch != nil {
		fmt.Fprintf(tw, "diverged\ttick %d, message %d (want %d messages, got %d)\n",
			mismatch.Tick, mismatch.Index, mismatch.Want, mismatch.Got)
	} else {
		fmt.Fprintf(tw, "result\tmatch\n")
	}
	tw.Flush()
}
