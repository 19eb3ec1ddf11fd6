package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals that no agent exists for the identifier.
var ErrNotFound = errors.New("agent: not found")

// Repository abstracts agent data access for the service.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Agent, error)
	GetByID(ctx context.Context, id string) (Agent, error)
	List(ctx context.Context, limit int) ([]Agent, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed agent repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Agent, error) {
	const insertSQL = `
		INSERT INTO agents (first_name, last_name)
		VALUES ($1, $2)
		RETURNING id::text, first_name, last_name, created_at, updated_at
	`

	a, err := scanAgent(r.pool.QueryRow(ctx, insertSQL, params.FirstName, params.LastName))
	if err != nil {
		return Agent{}, fmt.Errorf("agent: create: %w", err)
	}
	return a, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Agent, error) {
	const selectSQL = `
		SELECT id::text, first_name, last_name, created_at, updated_at
		FROM agents
		WHERE id = $1
	`

	a, err := scanAgent(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agent{}, ErrNotFound
		}
		return Agent{}, fmt.Errorf("agent: get by id: %w", err)
	}
	return a, nil
}

func (r *PGRepository) List(ctx context.Context, limit int) ([]Agent, error) {
	const selectSQL = `
		SELECT id::text, first_name, last_name, created_at, updated_at
		FROM agents
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, selectSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("agent: list: %w", err)
	}
	defer rows.Close()

	agents := []Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func scanAgent(row pgx.Row) (Agent, error) {
	var a Agent
	if err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Agent{}, err
	}
	return a, nil
}
