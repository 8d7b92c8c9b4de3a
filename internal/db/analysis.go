package db

import (
	"context"

	"github.com/dmattli/go-exopticon/internal/model"
	"github.com/dmattli/go-exopticon/internal/xerrors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FetchAllAnalysisEngines returns every configured analysis engine,
// keyed by id by the caller as needed.
func (g *Gateway) FetchAllAnalysisEngines(ctx context.Context) ([]model.AnalysisEngine, error) {
	var out []model.AnalysisEngine
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		rows, err := pool.Query(ctx, `select id, name, version, entry_point from analysis_engines order by id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e model.AnalysisEngine
			if err := rows.Scan(&e.ID, &e.Name, &e.Version, &e.EntryPoint); err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, xerrors.NewInternal("fetch_all_analysis_engines", err)
	}
	return out, nil
}

// FetchAllAnalysisInstances returns every configured analysis
// instance with its subscriptions and per-subscription masks, the
// shape the Analysis Supervisor reconciles its running worker set
// against.
func (g *Gateway) FetchAllAnalysisInstances(ctx context.Context) ([]model.AnalysisInstance, error) {
	var out []model.AnalysisInstance
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		rows, err := pool.Query(ctx, `select id, engine_id, name, max_fps, enabled from analysis_instances order by id`)
		if err != nil {
			return err
		}
		var instances []model.AnalysisInstance
		for rows.Next() {
			var i model.AnalysisInstance
			if err := rows.Scan(&i.ID, &i.EngineID, &i.Name, &i.MaxFPS, &i.Enabled); err != nil {
				rows.Close()
				return err
			}
			instances = append(instances, i)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for idx := range instances {
			subs, err := fetchSubscriptions(ctx, pool, instances[idx].ID)
			if err != nil {
				return err
			}
			instances[idx].Subscriptions = subs
		}
		out = instances
		return nil
	})
	if err != nil {
		return nil, xerrors.NewInternal("fetch_all_analysis_instances", err)
	}
	return out, nil
}

func fetchSubscriptions(ctx context.Context, pool *pgxpool.Pool, instanceID int32) ([]model.Subscription, error) {
	rows, err := pool.Query(ctx, `
		select source_kind, source_id
		from analysis_subscriptions
		where analysis_instance_id = $1
		order by id`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		var sub model.Subscription
		var kind int32
		if err := rows.Scan(&kind, &sub.Source.ID); err != nil {
			return nil, err
		}
		sub.Source.Kind = model.FrameSourceKind(kind)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range subs {
		masks, err := fetchMasks(ctx, pool, instanceID, subs[i].Source)
		if err != nil {
			return nil, err
		}
		subs[i].Masks = masks
	}
	return subs, nil
}

func fetchMasks(ctx context.Context, pool *pgxpool.Pool, instanceID int32, source model.FrameSource) ([]model.Rect, error) {
	rows, err := pool.Query(ctx, `
		select ul_x, ul_y, lr_x, lr_y
		from analysis_subscription_masks
		where analysis_instance_id = $1 and source_kind = $2 and source_id = $3`,
		instanceID, int32(source.Kind), source.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var masks []model.Rect
	for rows.Next() {
		var r model.Rect
		if err := rows.Scan(&r.ULX, &r.ULY, &r.LRX, &r.LRY); err != nil {
			return nil, err
		}
		masks = append(masks, r)
	}
	return masks, rows.Err()
}
