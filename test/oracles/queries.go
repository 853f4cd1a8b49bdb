package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the integrity checks; each query must return zero rows.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_applied_stage",
			SQL: `SELECT a.id, COUNT(s.id) FILTER (WHERE s.stage_type = 'APPLIED') AS applied
                  FROM applications a
                  LEFT JOIN interview_stages s ON s.application_id = a.id
                  GROUP BY a.id
                  HAVING COUNT(s.id) FILTER (WHERE s.stage_type = 'APPLIED') <> 1`,
		},
		{
			Name: "O2_dense_stage_order",
			SQL: `SELECT application_id, COUNT(*), MIN(order_index), MAX(order_index)
                  FROM interview_stages
                  GROUP BY application_id
                  HAVING MIN(order_index) <> 0
                      OR MAX(order_index) <> COUNT(*) - 1
                      OR COUNT(DISTINCT order_index) <> COUNT(*)`,
		},
		{
			Name: "O3_last_activity_not_behind_children",
			SQL: `SELECT a.id, a.last_activity_at, MAX(GREATEST(s.updated_at, e.updated_at)) AS latest
                  FROM applications a
                  JOIN interview_stages s ON s.application_id = a.id
                  LEFT JOIN interview_events e ON e.stage_id = s.id
                  GROUP BY a.id, a.last_activity_at
                  HAVING a.last_activity_at < MAX(GREATEST(s.updated_at, e.updated_at))`,
		},
		{
			Name: "O4_terminal_has_closed_at",
			SQL: `SELECT id, status FROM applications
                  WHERE status IN ('HIRED', 'REJECTED', 'GHOSTED') AND closed_at IS NULL`,
		},
		{
			Name: "O5_open_has_no_closed_at",
			SQL:  `SELECT id FROM applications WHERE status = 'OPEN' AND closed_at IS NOT NULL`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}
