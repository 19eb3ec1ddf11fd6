package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no transaction row exists for the identifier.
var ErrNotFound = errors.New("transaction: not found")

// Repository defines the data access the service requires. Methods taking a
// pgx.Tx run inside the caller's transaction so that validate, stage update,
// history append and breakdown freeze commit or roll back together.
type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, rec Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Record, error)
	UpdateStage(ctx context.Context, tx pgx.Tx, id string, next Stage, changedAt time.Time) error
	AppendHistory(ctx context.Context, tx pgx.Tx, id string, entry StageHistoryEntry) error
	SaveBreakdown(ctx context.Context, tx pgx.Tx, id string, breakdown FinancialBreakdown) error
	List(ctx context.Context, filters Filters) ([]Record, int, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed transaction repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const recordColumns = `id::text, stage, total_service_fee::text, currency, listing_agent_id::text, selling_agent_id::text, agency_amount::text, created_at, updated_at`

// Create inserts a new transaction row. History and breakdown start empty.
func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, rec Record) (Record, error) {
	const insertSQL = `
		INSERT INTO transactions (id, stage, total_service_fee, currency, listing_agent_id, selling_agent_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + recordColumns

	created, err := scanRecord(tx.QueryRow(ctx, insertSQL,
		rec.ID,
		rec.Stage,
		rec.TotalServiceFee.String(),
		rec.Currency,
		rec.ListingAgentID,
		rec.SellingAgentID,
	))
	if err != nil {
		return Record{}, fmt.Errorf("transaction: insert: %w", err)
	}
	return created, nil
}

// Get loads a transaction with its stage history and, when frozen, its
// financial breakdown.
func (r *PGRepository) Get(ctx context.Context, id string) (Record, error) {
	const selectSQL = `SELECT ` + recordColumns + ` FROM transactions WHERE id = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("transaction: get: %w", err)
	}

	history, err := r.loadHistory(ctx, id)
	if err != nil {
		return Record{}, err
	}
	rec.StageHistory = history

	if rec.FinancialBreakdown != nil {
		shares, err := r.loadShares(ctx, id)
		if err != nil {
			return Record{}, err
		}
		rec.FinancialBreakdown.AgentShares = shares
	}

	return rec, nil
}

// GetForUpdate locks the transaction row so concurrent stage mutations on the
// same record serialize behind the caller's transaction.
func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Record, error) {
	const selectSQL = `SELECT ` + recordColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`

	rec, err := scanRecord(tx.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("transaction: get for update: %w", err)
	}
	return rec, nil
}

// UpdateStage moves the row to next. Legality is the caller's concern; the
// repository only writes.
func (r *PGRepository) UpdateStage(ctx context.Context, tx pgx.Tx, id string, next Stage, changedAt time.Time) error {
	tag, err := tx.Exec(ctx, `UPDATE transactions SET stage = $1, updated_at = $2 WHERE id = $3`, next, changedAt, id)
	if err != nil {
		return fmt.Errorf("transaction: update stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendHistory writes one audit entry with the next per-transaction seq.
// Rows are insert-only; nothing updates or deletes them.
func (r *PGRepository) AppendHistory(ctx context.Context, tx pgx.Tx, id string, entry StageHistoryEntry) error {
	const insertSQL = `
		INSERT INTO stage_history (transaction_id, seq, from_stage, to_stage, changed_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4
		FROM stage_history WHERE transaction_id = $1
	`
	if _, err := tx.Exec(ctx, insertSQL, id, entry.FromStage, entry.ToStage, entry.ChangedAt); err != nil {
		return fmt.Errorf("transaction: append history: %w", err)
	}
	return nil
}

// SaveBreakdown freezes the computed split onto the transaction.
func (r *PGRepository) SaveBreakdown(ctx context.Context, tx pgx.Tx, id string, breakdown FinancialBreakdown) error {
	if _, err := tx.Exec(ctx, `UPDATE transactions SET agency_amount = $1 WHERE id = $2`,
		breakdown.AgencyAmount.String(), id); err != nil {
		return fmt.Errorf("transaction: save agency amount: %w", err)
	}

	for i, share := range breakdown.AgentShares {
		if _, err := tx.Exec(ctx, `
			INSERT INTO agent_shares (transaction_id, position, agent_id, role, amount)
			VALUES ($1, $2, $3, $4, $5)
		`, id, i, share.AgentID, share.Role, share.Amount.String()); err != nil {
			return fmt.Errorf("transaction: save agent share: %w", err)
		}
	}
	return nil
}

// List returns a page of transactions matching filters plus the total count.
func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Record, int, error) {
	where := " WHERE 1=1"
	args := []any{}

	if filters.Stage != "" {
		args = append(args, filters.Stage)
		where += fmt.Sprintf(" AND stage = $%d", len(args))
	}
	if filters.AgentID != "" {
		args = append(args, filters.AgentID)
		where += fmt.Sprintf(" AND (listing_agent_id = $%d OR selling_agent_id = $%d)", len(args), len(args))
	}
	if filters.FromDate != nil {
		args = append(args, *filters.FromDate)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filters.ToDate != nil {
		args = append(args, *filters.ToDate)
		where += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	countArgs := make([]any, len(args))
	copy(countArgs, args)

	args = append(args, filters.PageSize)
	limitPos := len(args)
	args = append(args, (filters.Page-1)*filters.PageSize)
	offsetPos := len(args)

	query := `SELECT ` + recordColumns + ` FROM transactions` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", limitPos, offsetPos)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("transaction: list: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("transaction: list rows: %w", err)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM transactions` + where
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (r *PGRepository) loadHistory(ctx context.Context, id string) ([]StageHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT from_stage, to_stage, changed_at
		FROM stage_history
		WHERE transaction_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("transaction: load history: %w", err)
	}
	defer rows.Close()

	history := []StageHistoryEntry{}
	for rows.Next() {
		var entry StageHistoryEntry
		if err := rows.Scan(&entry.FromStage, &entry.ToStage, &entry.ChangedAt); err != nil {
			return nil, err
		}
		history = append(history, entry)
	}
	return history, rows.Err()
}

func (r *PGRepository) loadShares(ctx context.Context, id string) ([]AgentShare, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT agent_id::text, role, amount::text
		FROM agent_shares
		WHERE transaction_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("transaction: load shares: %w", err)
	}
	defer rows.Close()

	shares := []AgentShare{}
	for rows.Next() {
		var (
			share  AgentShare
			amount string
		)
		if err := rows.Scan(&share.AgentID, &share.Role, &amount); err != nil {
			return nil, err
		}
		share.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("transaction: parse share amount: %w", err)
		}
		shares = append(shares, share)
	}
	return shares, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec          Record
		fee          string
		agencyAmount *string
	)
	err := row.Scan(
		&rec.ID,
		&rec.Stage,
		&fee,
		&rec.Currency,
		&rec.ListingAgentID,
		&rec.SellingAgentID,
		&agencyAmount,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}

	rec.TotalServiceFee, err = decimal.NewFromString(fee)
	if err != nil {
		return Record{}, fmt.Errorf("transaction: parse fee: %w", err)
	}

	if agencyAmount != nil {
		amount, err := decimal.NewFromString(*agencyAmount)
		if err != nil {
			return Record{}, fmt.Errorf("transaction: parse agency amount: %w", err)
		}
		rec.FinancialBreakdown = &FinancialBreakdown{AgencyAmount: amount}
	}

	return rec, nil
}
