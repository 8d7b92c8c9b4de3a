package db

import (
	"context"

	"github.com/dmattli/go-exopticon/internal/model"
	"github.com/dmattli/go-exopticon/internal/xerrors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateCamera inserts a new camera under an existing group.
func (g *Gateway) CreateCamera(ctx context.Context, cam model.Camera) (model.Camera, error) {
	var out model.Camera
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		row := pool.QueryRow(ctx, `
			insert into cameras (camera_group_id, name, ip, onvif_port, mac, username, password,
			                     rtsp_url, ptz_type, ptz_profile_token, enabled)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			returning id, camera_group_id, name, ip, onvif_port, mac, username, password,
			          rtsp_url, ptz_type, ptz_profile_token, enabled, inserted_at, updated_at`,
			cam.GroupID, cam.Name, cam.IP, cam.ONVIFPort, cam.MAC, cam.Username, cam.Password,
			cam.RTSPURL, cam.PTZType, cam.PTZProfileToken, cam.Enabled)
		return scanCamera(row, &out)
	})
	if err != nil {
		return model.Camera{}, xerrors.NewInternal("create_camera", err)
	}
	return out, nil
}

// FetchCamera returns one camera by id.
func (g *Gateway) FetchCamera(ctx context.Context, id int32) (model.Camera, error) {
	var out model.Camera
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		row := pool.QueryRow(ctx, `
			select id, camera_group_id, name, ip, onvif_port, mac, username, password,
			       rtsp_url, ptz_type, ptz_profile_token, enabled, inserted_at, updated_at
			from cameras where id = $1`, id)
		return scanCamera(row, &out)
	})
	if err == pgx.ErrNoRows {
		return model.Camera{}, xerrors.NewNotFound("fetch_camera", err)
	}
	if err != nil {
		return model.Camera{}, xerrors.NewInternal("fetch_camera", err)
	}
	return out, nil
}

// SetCameraEnabled flips a camera's enabled flag, the Root Supervisor's
// handle for starting/stopping its capture worker on the next
// reconciliation tick.
func (g *Gateway) SetCameraEnabled(ctx context.Context, id int32, enabled bool) error {
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		tag, err := pool.Exec(ctx, `update cameras set enabled = $2, updated_at = now() where id = $1`, id, enabled)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err == pgx.ErrNoRows {
		return xerrors.NewNotFound("set_camera_enabled", err)
	}
	if err != nil {
		return xerrors.NewInternal("set_camera_enabled", err)
	}
	return nil
}

func scanCamera(row rowScanner, out *model.Camera) error {
	return row.Scan(
		&out.ID, &out.GroupID, &out.Name, &out.IP, &out.ONVIFPort, &out.MAC, &out.Username, &out.Password,
		&out.RTSPURL, &out.PTZType, &out.PTZProfileToken, &out.Enabled, &out.Created, &out.Updated,
	)
}
