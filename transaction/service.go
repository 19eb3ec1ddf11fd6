package transaction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service orchestrates the sale lifecycle: it validates every stage change
// against the transition table before mutating, appends the audit entry in
// the same database transaction, and freezes the commission breakdown when a
// sale completes. The FOR UPDATE row lock taken by the repository serializes
// concurrent mutations per transaction record.
type Service struct {
	pool        TxBeginner
	repo        Repository
	idGenerator func() string
	now         func() time.Time
}

// CreateParams contains the caller-supplied fields for a new transaction.
type CreateParams struct {
	TotalServiceFee decimal.Decimal
	Currency        string
	ListingAgentID  string
	SellingAgentID  string
}

// ListResult bundles a page of records with the unpaged total.
type ListResult struct {
	Items []Record
	Total int
}

// DefaultCurrency is applied when a create request omits the currency code.
const DefaultCurrency = "GBP"

// NewService builds a Service. A nil repo defaults to the PostgreSQL
// implementation over pool.
func NewService(pool *pgxpool.Pool, repo Repository) *Service {
	if repo == nil {
		repo = NewRepository(pool)
	}
	return &Service{
		pool:        pool,
		repo:        repo,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

// NewServiceWith builds a Service around explicit collaborators, used by
// tests that substitute fakes.
func NewServiceWith(pool TxBeginner, repo Repository) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create opens a new transaction in the agreement stage with empty history
// and no breakdown.
func (s *Service) Create(ctx context.Context, params CreateParams) (Record, error) {
	if params.TotalServiceFee.IsNegative() {
		return Record{}, ErrNegativeFee
	}
	if params.ListingAgentID == "" || params.SellingAgentID == "" {
		return Record{}, fmt.Errorf("transaction: listing and selling agent ids required")
	}

	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("transaction: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := s.repo.Create(ctx, tx, Record{
		ID:              s.idGenerator(),
		Stage:           StageAgreement,
		TotalServiceFee: params.TotalServiceFee,
		Currency:        currency,
		ListingAgentID:  params.ListingAgentID,
		SellingAgentID:  params.SellingAgentID,
	})
	if err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("transaction: commit tx: %w", err)
	}

	return created, nil
}

// Get returns the transaction with its history and any frozen breakdown.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("transaction: missing id")
	}
	return s.repo.Get(ctx, id)
}

// GetWithEstimate returns the transaction plus a speculative breakdown when
// the record has not reached a terminal stage. The estimate is computed on
// the fly and never persisted; terminal records carry their frozen breakdown
// instead and get no estimate.
func (s *Service) GetWithEstimate(ctx context.Context, id string) (Record, *FinancialBreakdown, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return Record{}, nil, err
	}

	if rec.Terminal() {
		return rec, nil, nil
	}

	estimate, err := CalculateCommission(rec.TotalServiceFee, rec.ListingAgentID, rec.SellingAgentID)
	if err != nil {
		return Record{}, nil, err
	}
	return rec, &estimate, nil
}

// List returns transactions matching filters with pagination applied.
func (s *Service) List(ctx context.Context, filters Filters) (ListResult, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}
	if filters.Stage != "" && !ValidStage(filters.Stage) {
		return ListResult{}, fmt.Errorf("transaction: unknown stage %q", filters.Stage)
	}

	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total}, nil
}

// UpdateStage applies a one-step stage transition after checking it against
// the transition table.
func (s *Service) UpdateStage(ctx context.Context, id string, target Stage) (Record, error) {
	if !ValidStage(target) {
		return Record{}, fmt.Errorf("transaction: unknown stage %q", target)
	}
	return s.transition(ctx, id, func(current Stage) (Stage, error) {
		if err := ValidateTransition(current, target); err != nil {
			return "", err
		}
		return target, nil
	})
}

// Cancel moves the transaction to canceled through the normal transition
// rules, so it fails from terminal stages like any other move.
func (s *Service) Cancel(ctx context.Context, id string) (Record, error) {
	return s.UpdateStage(ctx, id, StageCanceled)
}

// FastComplete jumps the transaction straight to completed from any
// non-terminal stage. Exactly one history entry is recorded, from the stage
// at the moment of the call; skipped intermediate stages do not appear.
func (s *Service) FastComplete(ctx context.Context, id string) (Record, error) {
	return s.transition(ctx, id, func(current Stage) (Stage, error) {
		if err := ValidateFastComplete(current); err != nil {
			return "", err
		}
		return StageCompleted, nil
	})
}

// transition runs the validate-mutate-append sequence inside one database
// transaction. decide inspects the locked current stage and either returns
// the stage to move to or the validation error to surface unchanged. On
// entering completed the commission breakdown is computed and frozen in the
// same transaction, so a failure anywhere leaves no partial state.
func (s *Service) transition(ctx context.Context, id string, decide func(current Stage) (Stage, error)) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("transaction: missing id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("transaction: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Record{}, err
	}

	next, err := decide(rec.Stage)
	if err != nil {
		return Record{}, err
	}

	changedAt := s.now()
	if err := s.repo.UpdateStage(ctx, tx, id, next, changedAt); err != nil {
		return Record{}, err
	}
	if err := s.repo.AppendHistory(ctx, tx, id, StageHistoryEntry{
		FromStage: rec.Stage,
		ToStage:   next,
		ChangedAt: changedAt,
	}); err != nil {
		return Record{}, err
	}

	if next == StageCompleted {
		breakdown, err := CalculateCommission(rec.TotalServiceFee, rec.ListingAgentID, rec.SellingAgentID)
		if err != nil {
			return Record{}, err
		}
		if err := s.repo.SaveBreakdown(ctx, tx, id, breakdown); err != nil {
			return Record{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("transaction: commit tx: %w", err)
	}

	return s.repo.Get(ctx, id)
}
