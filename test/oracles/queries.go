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

// All returns invariant queries that must yield zero rows at any point in
// time, no matter how the concurrent actors interleave.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_terminal_entry",
			SQL: `SELECT transaction_id, COUNT(*) FROM stage_history
                  WHERE to_stage IN ('completed','canceled')
                  GROUP BY transaction_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_no_departure_from_terminal",
			SQL: `SELECT * FROM stage_history
                  WHERE from_stage IN ('completed','canceled')`,
		},
		{
			Name: "O3_history_seq_monotonic",
			SQL: `WITH seqs AS (
                      SELECT transaction_id, seq,
                             LAG(seq) OVER (PARTITION BY transaction_id ORDER BY seq) AS prev
                      FROM stage_history)
                  SELECT * FROM seqs WHERE prev IS NOT NULL AND seq <= prev`,
		},
		{
			Name: "O4_history_chains",
			SQL: `WITH chain AS (
                      SELECT transaction_id, seq, from_stage, to_stage,
                             LAG(to_stage) OVER (PARTITION BY transaction_id ORDER BY seq) AS prev_to
                      FROM stage_history)
                  SELECT * FROM chain WHERE prev_to IS NOT NULL AND from_stage <> prev_to`,
		},
		{
			Name: "O5_stage_matches_last_entry",
			SQL: `SELECT t.id, t.stage, h.to_stage FROM transactions t
                  JOIN LATERAL (
                      SELECT to_stage FROM stage_history
                      WHERE transaction_id = t.id
                      ORDER BY seq DESC LIMIT 1
                  ) h ON true
                  WHERE t.stage <> h.to_stage`,
		},
		{
			Name: "O6_breakdown_conservation",
			SQL: `SELECT t.id FROM transactions t
                  WHERE t.stage = 'completed'
                    AND t.agency_amount + COALESCE(
                        (SELECT SUM(s.amount) FROM agent_shares s WHERE s.transaction_id = t.id), 0
                    ) <> t.total_service_fee`,
		},
		{
			Name: "O7_breakdown_only_when_completed",
			SQL: `SELECT id FROM transactions
                  WHERE stage <> 'completed'
                    AND (agency_amount IS NOT NULL
                         OR EXISTS (SELECT 1 FROM agent_shares WHERE transaction_id = transactions.id))`,
		},
	}
}

// Check runs every oracle and returns an error naming the first violated one.
func Check(ctx context.Context, pool *pgxpool.Pool) error {
	for _, oracle := range All() {
		rows, err := pool.Query(ctx, oracle.SQL)
		if err != nil {
			return fmt.Errorf("oracle %s query: %w", oracle.Name, err)
		}
		violated := rows.Next()
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("oracle %s rows: %w", oracle.Name, err)
		}
		if violated {
			return fmt.Errorf("oracle %s violated", oracle.Name)
		}
	}
	return nil
}
