package db

import (
	"context"

	"github.com/dmattli/go-exopticon/internal/model"
	"github.com/dmattli/go-exopticon/internal/xerrors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateCameraGroup inserts a new group and returns it with its
// assigned id and timestamps.
func (g *Gateway) CreateCameraGroup(ctx context.Context, group model.CameraGroup) (model.CameraGroup, error) {
	var out model.CameraGroup
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		row := pool.QueryRow(ctx, `
			insert into camera_groups (name, storage_path, max_storage_size)
			values ($1, $2, $3)
			returning id, name, storage_path, max_storage_size, inserted_at, updated_at`,
			group.Name, group.StoragePath, group.MaxStorageMB)
		return scanCameraGroup(row, &out)
	})
	if err != nil {
		return model.CameraGroup{}, xerrors.NewInternal("create_camera_group", err)
	}
	return out, nil
}

// FetchCameraGroup returns one group by id.
func (g *Gateway) FetchCameraGroup(ctx context.Context, id int32) (model.CameraGroup, error) {
	var out model.CameraGroup
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		row := pool.QueryRow(ctx, `
			select id, name, storage_path, max_storage_size, inserted_at, updated_at
			from camera_groups where id = $1`, id)
		return scanCameraGroup(row, &out)
	})
	if err == pgx.ErrNoRows {
		return model.CameraGroup{}, xerrors.NewNotFound("fetch_camera_group", err)
	}
	if err != nil {
		return model.CameraGroup{}, xerrors.NewInternal("fetch_camera_group", err)
	}
	return out, nil
}

// FetchAllCameraGroupAndCameras returns every group paired with its
// cameras, the shape the Root Supervisor needs to start capture
// workers.
func (g *Gateway) FetchAllCameraGroupAndCameras(ctx context.Context) ([]model.CameraGroupAndCameras, error) {
	var out []model.CameraGroupAndCameras
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		rows, err := pool.Query(ctx, `
			select id, name, storage_path, max_storage_size, inserted_at, updated_at
			from camera_groups order by id`)
		if err != nil {
			return err
		}
		var groups []model.CameraGroup
		for rows.Next() {
			var grp model.CameraGroup
			if err := scanCameraGroup(rows, &grp); err != nil {
				rows.Close()
				return err
			}
			groups = append(groups, grp)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, grp := range groups {
			cams, err := fetchCamerasByGroup(ctx, pool, grp.ID)
			if err != nil {
				return err
			}
			out = append(out, model.CameraGroupAndCameras{Group: grp, Cameras: cams})
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.NewInternal("fetch_all_camera_group_and_cameras", err)
	}
	return out, nil
}

// GroupFiles is the result of a storage-budget query: the group's
// budget in bytes, its current usage in bytes, and files ordered
// oldest-first up to limit.
type GroupFiles struct {
	MaxStorageBytes int64
	CurrentBytes    int64
	Files           []CameraVideoFile
}

// CameraVideoFile pairs a video file with the camera and unit it
// belongs to, enough for the Storage Reaper to log and unlink it.
type CameraVideoFile struct {
	Camera    model.Camera
	VideoUnit model.VideoUnit
	File      model.VideoFile
}

// FetchCameraGroupFiles computes a group's storage budget and usage
// and returns up to limit of its oldest on-disk files, mirroring the
// original implementation's combined budget+listing query so the
// Storage Reaper can decide how many files to delete in one pass.
func (g *Gateway) FetchCameraGroupFiles(ctx context.Context, groupID int32, limit int64) (GroupFiles, error) {
	var out GroupFiles
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		maxMB := int64(0)
		if err := pool.QueryRow(ctx, `select max_storage_size from camera_groups where id = $1`, groupID).Scan(&maxMB); err != nil {
			return err
		}
		out.MaxStorageBytes = maxMB * (1 << 20)

		if err := pool.QueryRow(ctx, `
			select coalesce(sum(vf.size), 0)
			from video_files vf
			join video_units vu on vu.id = vf.video_unit_id
			join cameras c on c.id = vu.camera_id
			where c.camera_group_id = $1 and vf.size <> -1`, groupID).Scan(&out.CurrentBytes); err != nil {
			return err
		}

		rows, err := pool.Query(ctx, `
			select c.id, c.camera_group_id, c.name, c.ip, c.onvif_port, c.mac, c.username, c.password,
			       c.rtsp_url, c.ptz_type, c.ptz_profile_token, c.enabled, c.inserted_at, c.updated_at,
			       vu.id, vu.camera_id, vu.monotonic_index, vu.begin_time, vu.end_time, vu.inserted_at, vu.updated_at,
			       vf.id, vf.video_unit_id, vf.filename, vf.size
			from cameras c
			join video_units vu on vu.camera_id = c.id
			join video_files vf on vf.video_unit_id = vu.id
			where c.camera_group_id = $1 and vf.size > 0
			order by vu.begin_time asc
			limit $2`, groupID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var cvf CameraVideoFile
			if err := rows.Scan(
				&cvf.Camera.ID, &cvf.Camera.GroupID, &cvf.Camera.Name, &cvf.Camera.IP, &cvf.Camera.ONVIFPort,
				&cvf.Camera.MAC, &cvf.Camera.Username, &cvf.Camera.Password, &cvf.Camera.RTSPURL,
				&cvf.Camera.PTZType, &cvf.Camera.PTZProfileToken, &cvf.Camera.Enabled,
				&cvf.Camera.Created, &cvf.Camera.Updated,
				&cvf.VideoUnit.ID, &cvf.VideoUnit.CameraID, &cvf.VideoUnit.MonotonicIndex,
				&cvf.VideoUnit.BeginTime, &cvf.VideoUnit.EndTime, &cvf.VideoUnit.Created, &cvf.VideoUnit.Updated,
				&cvf.File.ID, &cvf.File.VideoUnitID, &cvf.File.Filename, &cvf.File.SizeBytes,
			); err != nil {
				return err
			}
			out.Files = append(out.Files, cvf)
		}
		return rows.Err()
	})
	if err != nil {
		return GroupFiles{}, xerrors.NewInternal("fetch_camera_group_files", err)
	}
	return out, nil
}

// DeleteVideoUnitFiles removes a video file row together with its
// owning video unit row in one transaction, mirroring
// file_deletion_actor.rs's DeleteVideoUnitFiles and spec.md §3's "A
// VideoFile is co-deleted with its VideoUnit." Deleting the file
// before the unit satisfies the foreign key from video_files to
// video_units.
func (g *Gateway) DeleteVideoUnitFiles(ctx context.Context, videoUnitID, videoFileID int32) error {
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `delete from video_files where id = $1`, videoFileID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `delete from video_units where id = $1`, videoUnitID); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return xerrors.NewInternal("delete_video_unit_files", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCameraGroup(row rowScanner, out *model.CameraGroup) error {
	return row.Scan(&out.ID, &out.Name, &out.StoragePath, &out.MaxStorageMB, &out.Created, &out.Updated)
}

func fetchCamerasByGroup(ctx context.Context, pool *pgxpool.Pool, groupID int32) ([]model.Camera, error) {
	rows, err := pool.Query(ctx, `
		select id, camera_group_id, name, ip, onvif_port, mac, username, password,
		       rtsp_url, ptz_type, ptz_profile_token, enabled, inserted_at, updated_at
		from cameras where camera_group_id = $1 order by id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cams []model.Camera
	for rows.Next() {
		var c model.Camera
		if err := rows.Scan(
			&c.ID, &c.GroupID, &c.Name, &c.IP, &c.ONVIFPort, &c.MAC, &c.Username, &c.Password,
			&c.RTSPURL, &c.PTZType, &c.PTZProfileToken, &c.Enabled, &c.Created, &c.Updated,
		); err != nil {
			return nil, err
		}
		cams = append(cams, c)
	}
	return cams, rows.Err()
}
