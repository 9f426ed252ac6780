package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dvdmaker/internal/cachestore"
	"dvdmaker/internal/cleanup"
	"dvdmaker/internal/config"
	"dvdmaker/internal/logging"
)

// cleanupCategories maps user-facing category names to the targets they clean.
func cleanupCategories(cfg *config.Config, store *cachestore.Store) map[string][]cleanup.Target {
	return map[string][]cleanup.Target{
		"downloads": {{
			Label: "downloads",
			Dir:   store.NamespaceDir(cachestore.NamespaceDownloads),
			Kind:  cleanup.KindEntries,
		}},
		"conversions": {{
			Label: "conversions",
			Dir:   store.NamespaceDir(cachestore.NamespaceConverted),
			Kind:  cleanup.KindEntries,
		}},
		"dvd-output": {{
			Label: "dvd-output",
			Dir:   cfg.Paths.OutputDir,
			Kind:  cleanup.KindVideoTS,
		}},
		"isos": {{
			Label: "isos",
			Dir:   cfg.Paths.OutputDir,
			Kind:  cleanup.KindISO,
		}},
	}
}

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var olderThanHours int

	cmd := &cobra.Command{
		Use:   "cleanup CATEGORY...",
		Short: "Remove cached and generated artifacts by category",
		Long: `Remove cached and generated artifacts by category.

Categories:
  downloads    cached source downloads
  conversions  cached converted videos
  dvd-output   authored DVD trees (directories containing VIDEO_TS)
  isos         generated .iso images
  all          every category above

The filename mapping document and cached metadata are never removed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}

			targets, err := resolveCategories(args, cleanupCategories(cfg, store))
			if err != nil {
				return err
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			engine := cleanup.NewEngine(logger, time.Duration(olderThanHours)*time.Hour)
			plan, err := engine.Preview(targets...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(plan.Items) == 0 {
				fmt.Fprintln(out, "Nothing to remove")
				return nil
			}

			if isTerminal(out) {
				rows := make([][]string, 0, len(plan.Items))
				for _, item := range plan.Items {
					kind := "file"
					if item.IsDir {
						kind = "dir"
					}
					rows = append(rows, []string{item.Path, kind, humanBytes(item.Bytes)})
				}
				fmt.Fprintln(out, renderTable([]string{"Path", "Type", "Size"}, rows, []int{2}))
			} else {
				for _, item := range plan.Items {
					fmt.Fprintln(out, item.Path)
				}
			}
			fmt.Fprintf(out, "Total: %d item(s), %s\n", len(plan.Items), humanBytes(plan.TotalBytes))

			if dryRun {
				fmt.Fprintln(out, "Dry run; nothing removed")
				return nil
			}

			result := engine.Execute(plan)
			if led, err := ctx.ensureLedger(); err == nil && led != nil {
				labels := make([]string, 0, len(targets))
				for _, target := range targets {
					labels = append(labels, target.Label)
				}
				if err := led.Record(cmd.Context(), "cleanup", strings.Join(labels, ","), "cleanup", result.BytesFreed, ""); err != nil {
					logger.Warn("failed to record cleanup event", logging.Error(err))
				}
			}
			fmt.Fprintf(out, "Removed %d file(s) and %d director%s, freed %s\n",
				result.FilesRemoved,
				result.DirsRemoved,
				pluralY(result.DirsRemoved),
				humanBytes(result.BytesFreed),
			)
			for _, err := range result.Errors {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("cleanup finished with %d error(s)", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would be removed without removing it")
	cmd.Flags().IntVar(&olderThanHours, "older-than", 0, "Only remove artifacts older than this many hours")
	return cmd
}

func resolveCategories(args []string, categories map[string][]cleanup.Target) ([]cleanup.Target, error) {
	known := make([]string, 0, len(categories))
	for name := range categories {
		known = append(known, name)
	}
	sort.Strings(known)

	seen := make(map[string]bool)
	var targets []cleanup.Target
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		targets = append(targets, categories[name]...)
	}

	for _, arg := range args {
		name := strings.ToLower(strings.TrimSpace(arg))
		if name == "all" {
			for _, known := range known {
				add(known)
			}
			continue
		}
		if _, ok := categories[name]; !ok {
			return nil, fmt.Errorf("unknown category %q (expected one of: %s, all)",
				arg, strings.Join(known, ", "))
		}
		add(name)
	}
	return targets, nil
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
