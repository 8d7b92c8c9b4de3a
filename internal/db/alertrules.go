package db

import (
	"context"

	"github.com/dmattli/go-exopticon/internal/model"
	"github.com/dmattli/go-exopticon/internal/xerrors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateAlertRule inserts a rule and its camera scope rows in one
// transaction, grounded on the original handler's
// conn.transaction(insert rule, insert each alert_rule_camera row).
func (g *Gateway) CreateAlertRule(ctx context.Context, rule model.AlertRule) (model.AlertRule, error) {
	var out model.AlertRule
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		row := tx.QueryRow(ctx, `
			insert into alert_rules
				(name, analysis_instance_id, tag, details, min_score, min_cluster_size,
				 cool_down_time, notifier_id, notification_topic)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			returning id, name, analysis_instance_id, tag, details, min_score, min_cluster_size,
			          cool_down_time, notifier_id, notification_topic`,
			rule.Name, rule.AnalysisInstanceID, rule.Tag, rule.Details, rule.MinScore,
			rule.MinClusterSize, rule.CoolDownUS, rule.NotifierID, rule.NotificationTopic)
		if err := row.Scan(
			&out.ID, &out.Name, &out.AnalysisInstanceID, &out.Tag, &out.Details, &out.MinScore,
			&out.MinClusterSize, &out.CoolDownUS, &out.NotifierID, &out.NotificationTopic,
		); err != nil {
			return err
		}

		for _, camID := range rule.CameraIDs {
			if _, err := tx.Exec(ctx, `insert into alert_rule_cameras (alert_rule_id, camera_id) values ($1, $2)`, out.ID, camID); err != nil {
				return err
			}
		}
		out.CameraIDs = append([]int32(nil), rule.CameraIDs...)

		return tx.Commit(ctx)
	})
	if err != nil {
		return model.AlertRule{}, xerrors.NewInternal("create_alert_rule", err)
	}
	return out, nil
}

// FetchAllAlertRules returns every rule with its camera scope, the
// "rules grouped by camera ids" join the original handler performs
// with grouped_by.
func (g *Gateway) FetchAllAlertRules(ctx context.Context) ([]model.AlertRule, error) {
	var out []model.AlertRule
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		rows, err := pool.Query(ctx, `
			select id, name, analysis_instance_id, tag, details, min_score, min_cluster_size,
			       cool_down_time, notifier_id, notification_topic
			from alert_rules order by id`)
		if err != nil {
			return err
		}
		var rules []model.AlertRule
		for rows.Next() {
			var r model.AlertRule
			if err := rows.Scan(
				&r.ID, &r.Name, &r.AnalysisInstanceID, &r.Tag, &r.Details, &r.MinScore,
				&r.MinClusterSize, &r.CoolDownUS, &r.NotifierID, &r.NotificationTopic,
			); err != nil {
				rows.Close()
				return err
			}
			rules = append(rules, r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for i := range rules {
			camRows, err := pool.Query(ctx, `select camera_id from alert_rule_cameras where alert_rule_id = $1`, rules[i].ID)
			if err != nil {
				return err
			}
			for camRows.Next() {
				var camID int32
				if err := camRows.Scan(&camID); err != nil {
					camRows.Close()
					return err
				}
				rules[i].CameraIDs = append(rules[i].CameraIDs, camID)
			}
			camRows.Close()
			if err := camRows.Err(); err != nil {
				return err
			}
		}
		out = rules
		return nil
	})
	if err != nil {
		return nil, xerrors.NewInternal("fetch_all_alert_rules", err)
	}
	return out, nil
}
