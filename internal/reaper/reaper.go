// Package reaper is the Storage Reaper (C5): one goroutine per camera
// group that enforces a storage budget by deleting the oldest files
// once usage exceeds it. It wakes on a timer, fetches up to 100 of the
// group's oldest files alongside the group's budget and current usage,
// and deletes from the front of that list until the deletion amount is
// exhausted.
package reaper

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/dmattli/go-exopticon/internal/db"
)

// tickInterval matches FileDeletionActor's notify_later(StartWork{},
// Duration::from_millis(5000)).
const tickInterval = 5 * time.Second

// fetchBatchSize matches the original's fixed count: 100 per pass.
const fetchBatchSize = 100

// Reaper enforces one camera group's storage budget.
type Reaper struct {
	groupID int32
	gw      *db.Gateway
	log     *slog.Logger
}

// New creates a Reaper for groupID.
func New(groupID int32, gw *db.Gateway, log *slog.Logger) *Reaper {
	return &Reaper{groupID: groupID, gw: gw, log: log.With("camera_group_id", groupID)}
}

// Run ticks every tickInterval until ctx is cancelled, reaping on each
// tick.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reaper) tick(ctx context.Context) {
	group, err := r.gw.FetchCameraGroupFiles(ctx, r.groupID, fetchBatchSize)
	if err != nil {
		r.log.Error("failed to fetch camera group files", "error", err)
		return
	}

	for _, f := range selectFilesToDelete(group) {
		switch err := os.Remove(f.File.Filename); {
		case err == nil:
			r.log.Debug("removed video file", "filename", f.File.Filename, "size", f.File.SizeBytes)
		case errors.Is(err, os.ErrNotExist):
			r.log.Info("attempted to delete non-existent file", "video_file_id", f.File.ID)
		default:
			r.log.Error("failed to delete video file", "video_file_id", f.File.ID, "filename", f.File.Filename, "error", err)
			continue
		}

		if err := r.gw.DeleteVideoUnitFiles(ctx, f.VideoUnit.ID, f.File.ID); err != nil {
			r.log.Error("failed to delete video unit/file rows", "video_unit_id", f.VideoUnit.ID, "video_file_id", f.File.ID, "error", err)
			continue
		}
		r.log.Debug("removed video file", "filename", f.File.Filename, "size", f.File.SizeBytes)
	}
}

// selectFilesToDelete walks files oldest-first, accumulating until the
// running deletion amount (current usage minus budget) is exhausted,
// mirroring FileDeletionActor.handle_files's delete_amount loop.
func selectFilesToDelete(group db.GroupFiles) []db.CameraVideoFile {
	deleteAmount := group.CurrentBytes - group.MaxStorageBytes
	if deleteAmount <= 0 {
		return nil
	}

	var selected []db.CameraVideoFile
	for _, f := range group.Files {
		if deleteAmount <= 0 {
			break
		}
		deleteAmount -= f.File.SizeBytes
		selected = append(selected, f)
	}
	return selected
}
