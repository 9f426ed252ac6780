package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent cache events from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			led, err := ctx.ensureLedger()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if led == nil {
				fmt.Fprintln(out, "Ledger is disabled; enable it with ledger.enabled = true")
				return nil
			}

			events, err := led.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "No recorded cache events")
				return nil
			}

			const stampLayout = "2006-01-02 15:04:05"
			rows := make([][]string, 0, len(events))
			for _, ev := range events {
				size := ""
				if ev.SizeBytes > 0 {
					size = humanBytes(ev.SizeBytes)
				}
				rows = append(rows, []string{
					ev.CreatedAt.Local().Format(stampLayout),
					ev.Event,
					ev.Namespace,
					ev.Key,
					size,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Time", "Event", "Namespace", "Key", "Size"},
				rows,
				[]int{4},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events to show")
	return cmd
}
