package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/tickworld/internal/demo"
	"github.com/randalmurphal/tickworld/pkg/tickworld"
	"github.com/randalmurphal/tickworld/pkg/tickworld/journal"
)

func runsCmd() *cobra.Command {
	var (
		journalPath string
		jsonOutput  bool
		deleteRun   string
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the runs stored in a journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if journalPath == "" {
				return fmt.Errorf("--journal is required")
			}
			store, err := journal.NewSQLiteStore(journalPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if deleteRun != "" {
				if err := store.DeleteRun(deleteRun); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run: %s\n", deleteRun)
				return nil
			}

			type runInfo struct {
				RunID   string `json:"run_id"`
				Entries int    `json:"entries"`
				Bytes   int64  `json:"bytes"`
				Last    uint64 `json:"last_tick"`
			}
			ids, err := store.Runs()
			if err != nil {
				return err
			}
			infos := make([]runInfo, 0, len(ids))
			for _, id := range ids {
				entries, err := store.List(id)
				if err != nil {
					return err
				}
				ri := runInfo{RunID: id, Entries: len(entries)}
				for _, e := range entries {
					ri.Bytes += e.Size
					ri.Last = max(ri.Last, e.Tick)
				}
				infos = append(infos, ri)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			if len(infos) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tENTRIES\tLAST TICK\tBYTES")
			for _, ri := range infos {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", ri.RunID, ri.Entries, ri.Last, ri.Bytes)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&journalPath, "journal", "", "SQLite journal file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&deleteRun, "delete", "", "delete the named run instead of listing")
	return cmd
}

func scenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "scenarios",
		Aliases: []string{"list"},
		Short:   "List scenarios and runner strategies",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			c := demo.Catalog()
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SCENARIO\tDESCRIPTION")
			for _, name := range c.Names() {
				desc, _ := c.Describe(name)
				fmt.Fprintf(tw, "%s\t%s\n", name, desc)
			}
			tw.Flush()

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Strategies:")
			for _, s := range tickworld.Strategies() {
				fmt.Fprintf(out, "  %s\n", s)
			}
		},
	}
}
