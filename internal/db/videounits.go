package db

import (
	"context"
	"errors"
	"time"

	"github.com/dmattli/go-exopticon/internal/model"
	"github.com/dmattli/go-exopticon/internal/xerrors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateVideoUnit inserts the metadata row for a newly opened segment,
// the monotonic_index strictly increasing per camera.
func (g *Gateway) CreateVideoUnit(ctx context.Context, camID int32, monotonicIndex int64, begin time.Time) (model.VideoUnit, error) {
	var out model.VideoUnit
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		row := pool.QueryRow(ctx, `
			insert into video_units (camera_id, monotonic_index, begin_time, end_time)
			values ($1, $2, $3, $3)
			returning id, camera_id, monotonic_index, begin_time, end_time, inserted_at, updated_at`,
			camID, monotonicIndex, begin)
		return row.Scan(&out.ID, &out.CameraID, &out.MonotonicIndex, &out.BeginTime, &out.EndTime, &out.Created, &out.Updated)
	})
	if err != nil {
		return model.VideoUnit{}, xerrors.NewInternal("create_video_unit", err)
	}
	return out, nil
}

// CloseVideoUnit stamps a segment's end_time once capture moves on to
// the next file.
func (g *Gateway) CloseVideoUnit(ctx context.Context, id int32, end time.Time) error {
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `update video_units set end_time = $2, updated_at = now() where id = $1`, id, end)
		return err
	})
	if err != nil {
		return xerrors.NewInternal("close_video_unit", err)
	}
	return nil
}

// CreateVideoFile inserts the on-disk counterpart of a video unit.
// SizeBytes is model.SizeUnknown until the file closes.
func (g *Gateway) CreateVideoFile(ctx context.Context, unitID int32, filename string, size int64) (model.VideoFile, error) {
	var out model.VideoFile
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		row := pool.QueryRow(ctx, `
			insert into video_files (video_unit_id, filename, size)
			values ($1, $2, $3)
			returning id, video_unit_id, filename, size`, unitID, filename, size)
		return row.Scan(&out.ID, &out.VideoUnitID, &out.Filename, &out.SizeBytes)
	})
	if err != nil {
		return model.VideoFile{}, xerrors.NewInternal("create_video_file", err)
	}
	return out, nil
}

// SetVideoFileSize stamps a file's final size once capture closes it.
func (g *Gateway) SetVideoFileSize(ctx context.Context, id int32, size int64) error {
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, `update video_files set size = $2 where id = $1`, id, size)
		return err
	})
	if err != nil {
		return xerrors.NewInternal("set_video_file_size", err)
	}
	return nil
}

// FetchFirstVideoFile returns the first file associated with
// videoUnitID, the file the Websocket Session's StartPlayback handler
// hands to the Playback Supervisor.
func (g *Gateway) FetchFirstVideoFile(ctx context.Context, videoUnitID int32) (model.VideoFile, error) {
	var out model.VideoFile
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		row := pool.QueryRow(ctx, `
			select id, video_unit_id, filename, size
			from video_files where video_unit_id = $1 order by id limit 1`, videoUnitID)
		return row.Scan(&out.ID, &out.VideoUnitID, &out.Filename, &out.SizeBytes)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.VideoFile{}, xerrors.NewNotFound("fetch_first_video_file", err)
		}
		return model.VideoFile{}, xerrors.NewInternal("fetch_first_video_file", err)
	}
	return out, nil
}

// EmptyVideoFile pairs a file still at model.SizeUnknown with the name
// of the camera directory it was written under, enough for the Capture
// Supervisor's sweep to stat it on disk (storage layout is
// storage_root/camera.Name/filename, per spec.md §6).
type EmptyVideoFile struct {
	File       model.VideoFile
	CameraName string
}

// FetchEmptyVideoFiles returns files whose size is still SizeUnknown
// and whose video unit's begin_time is older than cutoff: candidates
// for the Capture Supervisor's reconciliation sweep to close out after
// an unclean subprocess exit.
func (g *Gateway) FetchEmptyVideoFiles(ctx context.Context, cutoff time.Time) ([]EmptyVideoFile, error) {
	var out []EmptyVideoFile
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		rows, err := pool.Query(ctx, `
			select vf.id, vf.video_unit_id, vf.filename, vf.size, c.name
			from video_files vf
			join video_units vu on vu.id = vf.video_unit_id
			join cameras c on c.id = vu.camera_id
			where vf.size = $1 and vu.begin_time < $2`, model.SizeUnknown, cutoff)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var f EmptyVideoFile
			if err := rows.Scan(&f.File.ID, &f.File.VideoUnitID, &f.File.Filename, &f.File.SizeBytes, &f.CameraName); err != nil {
				return err
			}
			out = append(out, f)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, xerrors.NewInternal("fetch_empty_video_files", err)
	}
	return out, nil
}
