package cachestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"dvdmaker/internal/atomicfile"
)

// NamespaceStats summarizes one namespace's committed entries.
type NamespaceStats struct {
	Namespace string
	Entries   int
	Bytes     int64
	Staging   int
}

// Stats summarizes the whole cache plus the filesystem it lives on.
type Stats struct {
	Namespaces []NamespaceStats
	TotalBytes int64

	FSTotalBytes uint64
	FSFreeBytes  uint64
}

// FreeRatio reports the fraction of the cache filesystem still free.
func (s Stats) FreeRatio() float64 {
	if s.FSTotalBytes == 0 {
		return 0
	}
	return float64(s.FSFreeBytes) / float64(s.FSTotalBytes)
}

// Stats walks every namespace and counts committed payloads. Sidecars, lock
// files, and staging files are bookkeeping, not cached bytes; staged writes
// are reported separately as a count.
func (s *Store) Stats() (Stats, error) {
	var stats Stats

	namespaces, err := s.Namespaces()
	if err != nil {
		return stats, err
	}
	sort.Strings(namespaces)

	for _, ns := range namespaces {
		nsStats, err := s.namespaceStats(ns)
		if err != nil {
			return stats, err
		}
		stats.Namespaces = append(stats.Namespaces, nsStats)
		stats.TotalBytes += nsStats.Bytes
	}

	var fs unix.Statfs_t
	if err := unix.Statfs(s.root, &fs); err != nil {
		return stats, fmt.Errorf("cachestore: statfs %q: %w", s.root, err)
	}
	stats.FSTotalBytes = fs.Blocks * uint64(fs.Bsize)
	stats.FSFreeBytes = fs.Bavail * uint64(fs.Bsize)

	return stats, nil
}

func (s *Store) namespaceStats(namespace string) (NamespaceStats, error) {
	nsStats := NamespaceStats{Namespace: namespace}
	dir := s.NamespaceDir(namespace)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nsStats, nil
		}
		return nsStats, fmt.Errorf("cachestore: read namespace %q: %w", namespace, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() || strings.HasSuffix(name, MetaSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nsStats, fmt.Errorf("cachestore: stat %q: %w", filepath.Join(dir, name), err)
		}
		nsStats.Entries++
		nsStats.Bytes += info.Size()
	}

	staged, err := os.ReadDir(filepath.Join(dir, atomicfile.StagingDirName))
	if err == nil {
		for _, entry := range staged {
			if !entry.IsDir() {
				nsStats.Staging++
			}
		}
	}

	return nsStats, nil
}
