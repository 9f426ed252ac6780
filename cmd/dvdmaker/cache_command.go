package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dvdmaker/internal/cachestore"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the artifact cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheSweepCommand(ctx))
	cacheCmd.AddCommand(newCacheInvalidateCommand(ctx))
	cacheCmd.AddCommand(newCacheVerifyCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage by namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			stats, err := store.Stats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(stats.Namespaces) == 0 {
				fmt.Fprintln(out, "Cache is empty")
			} else {
				rows := make([][]string, 0, len(stats.Namespaces))
				for _, ns := range stats.Namespaces {
					rows = append(rows, []string{
						ns.Namespace,
						fmt.Sprintf("%d", ns.Entries),
						humanBytes(ns.Bytes),
						fmt.Sprintf("%d", ns.Staging),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Namespace", "Entries", "Size", "In-flight"},
					rows,
					[]int{1, 2, 3},
				))
			}
			fmt.Fprintf(out, "Total: %s\n", humanBytes(stats.TotalBytes))
			fmt.Fprintf(out, "Disk:  %s free (%.1f%%)\n",
				humanBytes(int64(stats.FSFreeBytes)), stats.FreeRatio()*100)
			return nil
		},
	}
}

func newCacheSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove orphaned staging files left by crashed writers",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			result, err := store.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Removed) == 0 && len(result.Errors) == 0 {
				fmt.Fprintln(out, "No orphaned staging files found")
				return nil
			}
			for _, path := range result.Removed {
				fmt.Fprintf(out, "removed %s\n", path)
			}
			for _, pe := range result.Errors {
				fmt.Fprintf(out, "failed  %s: %v\n", pe.Path, pe.Error)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("sweep finished with %d error(s)", len(result.Errors))
			}
			return nil
		},
	}
}

func newCacheInvalidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate NAMESPACE KEY",
		Short: "Remove one cache entry and its metadata",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			if err := store.Invalidate(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %s/%s\n", args[0], args[1])
			return nil
		},
	}
}

func newCacheVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify NAMESPACE KEY",
		Short: "Re-checksum one cache entry against its recorded digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			err = store.Verify(cmd.Context(), args[0], args[1])
			out := cmd.OutOrStdout()
			switch {
			case err == nil:
				fmt.Fprintf(out, "%s/%s: checksum OK\n", args[0], args[1])
				return nil
			case errors.Is(err, cachestore.ErrNotFound):
				fmt.Fprintf(out, "%s/%s: not cached\n", args[0], args[1])
				return nil
			case errors.Is(err, cachestore.ErrIntegrityMismatch):
				return fmt.Errorf("%s/%s: content diverged from recorded checksum; run `dvdmaker cache invalidate %s %s`",
					args[0], args[1], args[0], args[1])
			default:
				return err
			}
		},
		Args: cobra.ExactArgs(2),
	}
}
