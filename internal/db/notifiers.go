package db

import (
	"context"

	"github.com/dmattli/go-exopticon/internal/model"
	"github.com/dmattli/go-exopticon/internal/xerrors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FetchAllNotifiers returns every configured notifier, the set the
// Notifier Supervisor reconciles its worker map against on every sync.
func (g *Gateway) FetchAllNotifiers(ctx context.Context) ([]model.Notifier, error) {
	var out []model.Notifier
	err := g.submit(ctx, func(ctx context.Context, pool *pgxpool.Pool) error {
		rows, err := pool.Query(ctx, `
			select id, name, hostname, port, username, password from notifiers order by id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var n model.Notifier
			if err := rows.Scan(&n.ID, &n.Name, &n.Hostname, &n.Port, &n.Username, &n.Password); err != nil {
				return err
			}
			out = append(out, n)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, xerrors.NewInternal("fetch_all_notifiers", err)
	}
	return out, nil
}
