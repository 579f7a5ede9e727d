package cache

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/jekyllbuildr/buildr/observe"
	"github.com/jekyllbuildr/buildr/store"
)

// EvictionReport summarizes one eviction pass.
type EvictionReport struct {
	// Entries is the number of entries seen before eviction.
	Entries int

	// BytesBefore is the aggregate size before eviction.
	BytesBefore int64

	// BytesAfter is the aggregate size after eviction.
	BytesAfter int64

	// Removed lists the evicted entry names, oldest first.
	Removed []string
}

// Stats describes the current cache footprint.
type Stats struct {
	Entries  int
	Bytes    int64
	MaxBytes int64
}

// Stats returns the number of entries and their aggregate size.
func (c *DiskCache) Stats(ctx context.Context) (Stats, error) {
	entries, err := c.entries(ctx)
	if err != nil {
		return Stats{MaxBytes: c.policy.MaxBytes}, err
	}
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	return Stats{Entries: len(entries), Bytes: total, MaxBytes: c.policy.MaxBytes}, nil
}

// Evict enforces the size budget. When the aggregate size exceeds MaxBytes,
// entries are removed oldest-written first until the size is at or below
// the low-water mark. The scan-and-delete sequence holds the directory lock.
func (c *DiskCache) Evict(ctx context.Context) (EvictionReport, error) {
	var report EvictionReport
	if c.policy.MaxBytes <= 0 {
		return report, nil
	}

	unlock, err := c.dir.Lock(ctx)
	if err != nil {
		return report, err
	}
	defer unlock()

	entries, err := c.entries(ctx)
	if err != nil {
		return report, err
	}

	report.Entries = len(entries)
	for _, e := range entries {
		report.BytesBefore += e.Size
	}
	report.BytesAfter = report.BytesBefore

	if report.BytesBefore <= c.policy.MaxBytes {
		return report, nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ModTime.Equal(entries[j].ModTime) {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ModTime.Before(entries[j].ModTime)
	})

	target := c.policy.LowWaterBytes()
	for _, e := range entries {
		if report.BytesAfter <= target {
			break
		}
		if err := c.dir.Remove(ctx, e.Name); err != nil {
			return report, err
		}
		report.BytesAfter -= e.Size
		report.Removed = append(report.Removed, e.Name)
	}

	if len(report.Removed) > 0 {
		c.metrics.RecordEviction(ctx, len(report.Removed), report.BytesBefore-report.BytesAfter)
		c.logger.Debug(ctx, "cache evicted",
			observe.F("removed", len(report.Removed)),
			observe.F("bytes_before", report.BytesBefore),
			observe.F("bytes_after", report.BytesAfter),
		)
	}
	return report, nil
}

// maybeEvict runs Evict after a write and swallows failures.
func (c *DiskCache) maybeEvict(ctx context.Context) {
	if _, err := c.Evict(ctx); err != nil {
		if errors.Is(err, store.ErrLocked) {
			c.logger.Debug(ctx, "cache eviction skipped, directory locked")
			return
		}
		c.logger.Warn(ctx, "cache eviction failed", observe.Err(err))
	}
}

// entries lists cache entry files, ignoring anything else in the directory.
func (c *DiskCache) entries(ctx context.Context) ([]store.Entry, error) {
	all, err := c.dir.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if strings.HasSuffix(e.Name, entrySuffix) {
			out = append(out, e)
		}
	}
	return out, nil
}
