package cleanup

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"dvdmaker/internal/logging"
	"dvdmaker/internal/namemap"
)

// Engine plans and executes removals. A zero MaxAge considers every candidate;
// a positive MaxAge keeps anything modified more recently.
type Engine struct {
	logger *slog.Logger
	maxAge time.Duration
}

// Plan is the concrete outcome of a Preview: what would be removed and how
// much space it frees.
type Plan struct {
	Items      []Item
	TotalBytes int64
}

// Result summarizes an executed plan.
type Result struct {
	FilesRemoved int
	DirsRemoved  int
	BytesFreed   int64
	Errors       []error
}

// NewEngine builds an engine. maxAge of zero disables the age filter.
func NewEngine(logger *slog.Logger, maxAge time.Duration) *Engine {
	return &Engine{
		logger: logging.NewComponentLogger(logger, "cleanup"),
		maxAge: maxAge,
	}
}

// Preview walks targets and returns the plan without touching anything.
// Previewing the same targets twice yields the same plan, and previewing
// already-clean targets yields an empty one.
func (e *Engine) Preview(targets ...Target) (Plan, error) {
	var plan Plan
	cutoff := time.Time{}
	if e.maxAge > 0 {
		cutoff = time.Now().Add(-e.maxAge)
	}

	for _, target := range targets {
		items, err := target.collect()
		if err != nil {
			return Plan{}, err
		}
		for _, item := range items {
			if !cutoff.IsZero() && item.ModTime.After(cutoff) {
				continue
			}
			plan.Items = append(plan.Items, item)
			plan.TotalBytes += item.Bytes
		}
	}

	sort.Slice(plan.Items, func(i, j int) bool {
		return plan.Items[i].Path < plan.Items[j].Path
	})
	return plan, nil
}

// Execute removes every item in the plan. Items that vanished since the
// preview count as already removed; other failures are collected per item so
// one stubborn path does not abort the rest.
func (e *Engine) Execute(plan Plan) Result {
	var result Result

	for _, item := range plan.Items {
		// The mapping document must survive every cleanup, even a plan
		// built by hand.
		if filepath.Base(item.Path) == namemap.MappingFileName {
			continue
		}

		var err error
		if item.IsDir {
			err = os.RemoveAll(item.Path)
		} else {
			err = os.Remove(item.Path)
			if os.IsNotExist(err) {
				err = nil
			}
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("cleanup: remove %q: %w", item.Path, err))
			logging.WarnWithContext(e.logger, "failed to remove artifact", "cleanup_remove_failed",
				logging.String("path", item.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the cache and output directories"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}

		if item.IsDir {
			result.DirsRemoved++
		} else {
			result.FilesRemoved++
		}
		result.BytesFreed += item.Bytes
		e.logger.Info("removed artifact",
			logging.String("path", item.Path),
			logging.Int64("bytes", item.Bytes),
			logging.Bool("dir", item.IsDir),
			logging.String(logging.FieldEventType, "cleanup_remove"),
		)
	}

	return result
}
