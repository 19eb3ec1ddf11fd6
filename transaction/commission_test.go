package transaction

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func TestCalculateCommission_DistinctAgents(t *testing.T) {
	fee := mustDecimal(t, "10000")

	breakdown, err := CalculateCommission(fee, "agent-listing", "agent-selling")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if !breakdown.AgencyAmount.Equal(mustDecimal(t, "5000")) {
		t.Errorf("agency amount = %s, want 5000", breakdown.AgencyAmount)
	}
	if len(breakdown.AgentShares) != 2 {
		t.Fatalf("expected 2 agent shares, got %d", len(breakdown.AgentShares))
	}

	listing := breakdown.AgentShares[0]
	if listing.AgentID != "agent-listing" || listing.Role != RoleListingAgent {
		t.Errorf("unexpected first share: %+v", listing)
	}
	if !listing.Amount.Equal(mustDecimal(t, "2500")) {
		t.Errorf("listing share = %s, want 2500", listing.Amount)
	}

	selling := breakdown.AgentShares[1]
	if selling.AgentID != "agent-selling" || selling.Role != RoleSellingAgent {
		t.Errorf("unexpected second share: %+v", selling)
	}
	if !selling.Amount.Equal(mustDecimal(t, "2500")) {
		t.Errorf("selling share = %s, want 2500", selling.Amount)
	}
}

func TestCalculateCommission_SameAgentCollapsesToOneShare(t *testing.T) {
	fee := mustDecimal(t, "10000")

	breakdown, err := CalculateCommission(fee, "agent-x", "agent-x")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if !breakdown.AgencyAmount.Equal(mustDecimal(t, "5000")) {
		t.Errorf("agency amount = %s, want 5000", breakdown.AgencyAmount)
	}
	if len(breakdown.AgentShares) != 1 {
		t.Fatalf("expected single agent share, got %d", len(breakdown.AgentShares))
	}

	share := breakdown.AgentShares[0]
	if share.AgentID != "agent-x" {
		t.Errorf("share agent = %s, want agent-x", share.AgentID)
	}
	if share.Role != RoleListingAgent {
		t.Errorf("share role = %s, want %s", share.Role, RoleListingAgent)
	}
	if !share.Amount.Equal(mustDecimal(t, "5000")) {
		t.Errorf("share amount = %s, want 5000", share.Amount)
	}
}

func TestCalculateCommission_FractionalFeeExactness(t *testing.T) {
	fee := mustDecimal(t, "1000.75")

	breakdown, err := CalculateCommission(fee, "a", "b")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if !breakdown.AgencyAmount.Equal(mustDecimal(t, "500.375")) {
		t.Errorf("agency amount = %s, want 500.375", breakdown.AgencyAmount)
	}
	for i, share := range breakdown.AgentShares {
		if !share.Amount.Equal(mustDecimal(t, "250.1875")) {
			t.Errorf("share %d amount = %s, want 250.1875", i, share.Amount)
		}
	}
}

func TestCalculateCommission_SumReassemblesFee(t *testing.T) {
	fees := []string{"0", "1", "3", "10000", "1000.75", "0.01", "0.333", "99999999.999999", "123456.789123456789"}

	for _, raw := range fees {
		fee := mustDecimal(t, raw)

		for _, same := range []bool{true, false} {
			selling := "agent-b"
			if same {
				selling = "agent-a"
			}
			breakdown, err := CalculateCommission(fee, "agent-a", selling)
			if err != nil {
				t.Fatalf("fee %s: %v", raw, err)
			}

			sum := breakdown.AgencyAmount
			for _, share := range breakdown.AgentShares {
				sum = sum.Add(share.Amount)
			}
			if !sum.Equal(fee) {
				t.Errorf("fee %s (same=%v): agency + shares = %s, want %s", raw, same, sum, fee)
			}
		}
	}
}

func TestCalculateCommission_ZeroFee(t *testing.T) {
	breakdown, err := CalculateCommission(decimal.Zero, "a", "b")
	if err != nil {
		t.Fatalf("expected zero fee to be accepted, got %v", err)
	}
	if !breakdown.AgencyAmount.IsZero() {
		t.Errorf("agency amount = %s, want 0", breakdown.AgencyAmount)
	}
	for _, share := range breakdown.AgentShares {
		if !share.Amount.IsZero() {
			t.Errorf("share amount = %s, want 0", share.Amount)
		}
	}
}

func TestCalculateCommission_NegativeFee(t *testing.T) {
	_, err := CalculateCommission(mustDecimal(t, "-0.01"), "a", "b")
	if !errors.Is(err, ErrNegativeFee) {
		t.Fatalf("expected ErrNegativeFee, got %v", err)
	}
}
