package results

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/JakeFAU/crawlersvc/internal/metrics"
	"github.com/JakeFAU/crawlersvc/internal/storage"
)

// CleanupReport summarizes one retention sweep.
type CleanupReport struct {
	Scanned        int   `json:"scanned"`
	ExpiredDeleted int   `json:"expired_deleted"`
	SizeDeleted    int   `json:"size_deleted"`
	Failed         int   `json:"failed"`
	BytesFreed     int64 `json:"bytes_freed"`
	RemainingBytes int64 `json:"remaining_bytes"`
}

// Cleanup enforces retention in two passes. First every object older than
// MaxAge is removed. Then, while the remaining total exceeds MaxBytes, the
// oldest objects are removed until it no longer does. Per-object failures
// and unreadable entries are logged, counted in Failed and skipped; only a
// failure to list the store at all is returned.
func (s *Store) Cleanup(ctx context.Context) (CleanupReport, error) {
	var report CleanupReport

	objects, err := s.backend.ListObjects(ctx, "")
	var partial *storage.PartialListError
	switch {
	case err == nil:
	case errors.As(err, &partial):
		report.Failed += len(partial.Skipped)
		s.logger.Warn("skipped unreadable stored results", zap.Int("skipped", len(partial.Skipped)), zap.Error(err))
	case errors.Is(err, storage.ErrNotFound):
		return report, nil
	default:
		return report, fmt.Errorf("list stored results: %w", err)
	}
	report.Scanned = len(objects)

	cutoff := s.clock.Now().Add(-s.cfg.MaxAge)
	remaining := make([]storage.ObjectInfo, 0, len(objects))
	var total int64
	for _, obj := range objects {
		if !obj.ModTime.Before(cutoff) {
			remaining = append(remaining, obj)
			total += obj.Size
			continue
		}
		switch deleted, err := s.remove(ctx, obj, "age"); {
		case deleted:
			report.ExpiredDeleted++
			report.BytesFreed += obj.Size
		case err != nil:
			report.Failed++
			remaining = append(remaining, obj)
			total += obj.Size
		}
	}
	metrics.ObserveCleanup("age", report.ExpiredDeleted, report.BytesFreed)

	if total > s.cfg.MaxBytes {
		var freed int64
		sort.Slice(remaining, func(i, j int) bool {
			if remaining[i].ModTime.Equal(remaining[j].ModTime) {
				return remaining[i].Key < remaining[j].Key
			}
			return remaining[i].ModTime.Before(remaining[j].ModTime)
		})
		s.logger.Info("stored results exceed size cap",
			zap.Int64("total_bytes", total),
			zap.Int64("max_bytes", s.cfg.MaxBytes),
		)
		for _, obj := range remaining {
			if total <= s.cfg.MaxBytes {
				break
			}
			deleted, err := s.remove(ctx, obj, "size")
			if err != nil {
				report.Failed++
				continue
			}
			total -= obj.Size
			if deleted {
				report.SizeDeleted++
				freed += obj.Size
			}
		}
		report.BytesFreed += freed
		metrics.ObserveCleanup("size", report.SizeDeleted, freed)
	}

	report.RemainingBytes = total
	s.logger.Info("result cleanup finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("expired_deleted", report.ExpiredDeleted),
		zap.Int("size_deleted", report.SizeDeleted),
		zap.Int("failed", report.Failed),
		zap.Int64("bytes_freed", report.BytesFreed),
	)
	return report, nil
}

// remove deletes one object. An object that is already gone counts as
// neither deleted nor failed.
func (s *Store) remove(ctx context.Context, obj storage.ObjectInfo, pass string) (bool, error) {
	err := s.backend.DeleteObject(ctx, obj.Key)
	switch {
	case err == nil:
		s.logger.Debug("deleted stored result", zap.String("key", obj.Key), zap.String("pass", pass))
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		s.logger.Warn("delete stored result failed",
			zap.String("key", obj.Key),
			zap.String("pass", pass),
			zap.Error(err),
		)
		return false, err
	}
}
