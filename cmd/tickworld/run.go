package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/tickworld/internal/demo"
	"github.com/randalmurphal/tickworld/pkg/tickworld"
	"github.com/randalmurphal/tickworld/pkg/tickworld/journal"
)

func runCmd() *cobra.Command {
	var (
		f            worldFlags
		maxTicks     uint64
		tickInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario until it stops",
		Long: `Run a scenario until a stop condition holds: a shutdown message, an
observer quitting, no agents left, or --max-ticks. Ctrl-C stops after the
tick in progress.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, scenarioCfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-ticks") {
				settings.MaxTicks = maxTicks
			}
			if cmd.Flags().Changed("tick-interval") {
				settings.TickInterval = tickInterval
			}
			logger, err := f.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			sc, err := demo.Catalog().Build(f.scenario, scenarioCfg)
			if err != nil {
				return err
			}

			sink := tickworld.NewMemorySink(1000)
			w, err := tickworld.New[demo.Msg](
				tickworld.WithSettings(settings),
				tickworld.WithLogger(logger),
				tickworld.WithDiagnostics(sink),
			)
			if err != nil {
				return err
			}
			defer w.Close()

			if f.journalPath != "" {
				store, err := journal.NewSQLiteStore(f.journalPath)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := w.Record(store, journal.JSONCodec[demo.Msg]{}); err != nil {
					return err
				}
			}
			if f.idle {
				if err := w.SetIdleMessage(demo.Idle); err != nil {
					return err
				}
			}
			if err := sc.Seed(w); err != nil {
				return err
			}
			if f.printBatches {
				if err := w.Observe(batchPrinter(cmd.OutOrStdout())); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				w.Stop()
			}()

			start := time.Now()
			if err := w.Run(context.WithoutCancel(ctx)); err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), w, sc.Observers, sink, time.Since(start))
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().Uint64Var(&maxTicks, "max-ticks", 0, "stop after this many ticks (0 = no limit)")
	cmd.Flags().DurationVar(&tickInterval, "tick-interval", 0, "pace ticks to at most one per interval")
	return cmd
}

// batchPrinter prints every finalized batch with the tick that delivers it.
func batchPrinter(out io.Writer) tickworld.Observer[demo.Msg] {
	return tickworld.ObserverFunc[demo.Msg](func(tick uint64, batch []demo.Msg) tickworld.Response {
		fmt.Fprintf(out, "tick %d: %d messages\n", tick, len(batch))
		for _, m := range batch {
			fmt.Fprintf(out, "  %s\n", m)
		}
		return tickworld.ResponseContinue
	})
}

func printSummary(out io.Writer, w *tickworld.World[demo.Msg], observers []tickworld.Observer[demo.Msg], sink *tickworld.MemorySink, elapsed time.Duration) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", w.RunID())
	fmt.Fprintf(tw, "strategy\t%s\n", w.Strategy())
	fmt.Fprintf(tw, "ticks\t%d\n", w.Tick())
	fmt.Fprintf(tw, "agents\t%d\n", w.Len())
	fmt.Fprintf(tw, "pending\t%d\n", len(w.Current()))
	fmt.Fprintf(tw, "elapsed\t%s\n", elapsed.Round(time.Microsecond))

	counts := map[tickworld.DiagnosticKind]int{}
	for _, d := range sink.All() {
		counts[d.Kind] += d.Count
	}
	for _, kind := range []tickworld.DiagnosticKind{
		tickworld.DiagAgentFault,
		tickworld.DiagUndeliverable,
		tickworld.DiagNotDelivered,
		tickworld.DiagBatchDropped,
		tickworld.DiagSpawnRejected,
		tickworld.DiagJournalFailed,
	} {
		if counts[kind] > 0 {
			fmt.Fprintf(tw, "%s\t%d\n", kind, counts[kind])
		}
	}
	for _, o := range observers {
		if s, ok := o.(fmt.Stringer); ok {
			fmt.Fprintf(tw, "result\t%s\n", s)
		}
	}
	tw.Flush()
}
