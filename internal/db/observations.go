package db

import (
	"context"

	"github.com/dmattli/go-exopticon/internal/model"
	"github.com/dmattli/go-exopticon/internal/xerrors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InsertObservations inserts a batch of observations from an analysis
// worker as one gateway request, running one insert statement (one
// round trip) per observation and returning the stored rows in order.
func (g *Gateway) InsertObservations(ctx context.Context, obs []model.Observation) ([]model.Observation, error) {
	if len(obs) == 0 {
		return nil, nil
	}
	out := make([]model.Observation, len(obs))
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		for i, o := range obs {
			row := pool.QueryRow(ctx, `
				insert into observations
					(video_unit_id, camera_id, frame_offset_us, tag, details, score, ul_x, ul_y, lr_x, lr_y)
				values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				returning id, video_unit_id, camera_id, frame_offset_us, tag, details, score,
				          ul_x, ul_y, lr_x, lr_y, inserted_at`,
				o.VideoUnitID, o.CameraID, o.FrameOffsetUS, o.Tag, o.Details, o.Score,
				o.BBox.ULX, o.BBox.ULY, o.BBox.LRX, o.BBox.LRY)
			if err := row.Scan(
				&out[i].ID, &out[i].VideoUnitID, &out[i].CameraID, &out[i].FrameOffsetUS, &out[i].Tag,
				&out[i].Details, &out[i].Score,
				&out[i].BBox.ULX, &out[i].BBox.ULY, &out[i].BBox.LRX, &out[i].BBox.LRY, &out[i].InsertedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.NewInternal("insert_observations", err)
	}
	return out, nil
}

// FetchObservationsPage returns observations for a video unit ordered
// by frame offset, paginated by limit/offset.
func (g *Gateway) FetchObservationsPage(ctx context.Context, videoUnitID int32, limit, offset int32) ([]model.Observation, error) {
	var out []model.Observation
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		rows, err := pool.Query(ctx, `
			select id, video_unit_id, camera_id, frame_offset_us, tag, details, score,
			       ul_x, ul_y, lr_x, lr_y, inserted_at
			from observations
			where video_unit_id = $1
			order by frame_offset_us asc
			limit $2 offset $3`, videoUnitID, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var o model.Observation
			if err := rows.Scan(
				&o.ID, &o.VideoUnitID, &o.CameraID, &o.FrameOffsetUS, &o.Tag, &o.Details, &o.Score,
				&o.BBox.ULX, &o.BBox.ULY, &o.BBox.LRX, &o.BBox.LRY, &o.InsertedAt,
			); err != nil {
				return err
			}
			out = append(out, o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, xerrors.NewInternal("fetch_observations_page", err)
	}
	return out, nil
}
