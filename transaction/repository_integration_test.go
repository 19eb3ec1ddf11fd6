package transaction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// TestLifecycle_Integration connects to a real PostgreSQL via DATABASE_URL
// and walks a transaction from agreement to completed, verifying the audit
// trail and the frozen breakdown survive the round trip.
func TestLifecycle_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	if !tableExists(ctx, t, pool, "transactions") || !tableExists(ctx, t, pool, "stage_history") || !tableExists(ctx, t, pool, "agent_shares") {
		t.Skip("database schema missing; apply files under migrations/ first")
	}

	var listingAgent, sellingAgent string
	if err := pool.QueryRow(ctx, `INSERT INTO agents (first_name, last_name) VALUES ($1, $2) RETURNING id::text`,
		"Nina", fmt.Sprintf("Lister-%d", time.Now().UnixNano())).Scan(&listingAgent); err != nil {
		t.Fatalf("seed listing agent: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO agents (first_name, last_name) VALUES ($1, $2) RETURNING id::text`,
		"Omar", fmt.Sprintf("Seller-%d", time.Now().UnixNano())).Scan(&sellingAgent); err != nil {
		t.Fatalf("seed selling agent: %v", err)
	}

	svc := NewService(pool, nil)

	created, err := svc.Create(ctx, CreateParams{
		TotalServiceFee: decimal.RequireFromString("1000.75"),
		ListingAgentID:  listingAgent,
		SellingAgentID:  sellingAgent,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		_, _ = pool.Exec(ctx2, `DELETE FROM agent_shares WHERE transaction_id=$1`, created.ID)
		_, _ = pool.Exec(ctx2, `DELETE FROM stage_history WHERE transaction_id=$1`, created.ID)
		_, _ = pool.Exec(ctx2, `DELETE FROM transactions WHERE id=$1`, created.ID)
		_, _ = pool.Exec(ctx2, `DELETE FROM agents WHERE id IN ($1,$2)`, listingAgent, sellingAgent)
	})

	for _, target := range []Stage{StageEarnestMoney, StageTitleDeed, StageCompleted} {
		if _, err := svc.UpdateStage(ctx, created.ID, target); err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
	}

	rec, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Stage != StageCompleted {
		t.Fatalf("stage = %s, want completed", rec.Stage)
	}
	if len(rec.StageHistory) != 3 {
		t.Fatalf("history length = %d, want 3", len(rec.StageHistory))
	}
	for i, want := range []struct{ from, to Stage }{
		{StageAgreement, StageEarnestMoney},
		{StageEarnestMoney, StageTitleDeed},
		{StageTitleDeed, StageCompleted},
	} {
		entry := rec.StageHistory[i]
		if entry.FromStage != want.from || entry.ToStage != want.to {
			t.Errorf("history[%d] = %s -> %s, want %s -> %s", i, entry.FromStage, entry.ToStage, want.from, want.to)
		}
	}

	if rec.FinancialBreakdown == nil {
		t.Fatal("expected frozen breakdown")
	}
	if !rec.FinancialBreakdown.AgencyAmount.Equal(decimal.RequireFromString("500.375")) {
		t.Errorf("agency amount = %s, want 500.375", rec.FinancialBreakdown.AgencyAmount)
	}
	sum := rec.FinancialBreakdown.AgencyAmount
	for _, share := range rec.FinancialBreakdown.AgentShares {
		sum = sum.Add(share.Amount)
	}
	if !sum.Equal(rec.TotalServiceFee) {
		t.Errorf("agency + shares = %s, want %s", sum, rec.TotalServiceFee)
	}

	// terminal record rejects further moves
	_, err = svc.Cancel(ctx, created.ID)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)`, name).Scan(&exists); err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
