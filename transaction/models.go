package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stage is one discrete position in the sale lifecycle.
type Stage string

const (
	StageAgreement    Stage = "agreement"
	StageEarnestMoney Stage = "earnest_money"
	StageTitleDeed    Stage = "title_deed"
	StageCompleted    Stage = "completed"
	StageCanceled     Stage = "canceled"
)

// ShareRole labels which side of the deal an agent share compensates.
type ShareRole string

const (
	RoleListingAgent ShareRole = "listing_agent"
	RoleSellingAgent ShareRole = "selling_agent"
)

// StageHistoryEntry is one append-only audit record of a stage change.
// Entries are never mutated or removed; append order is chronological order.
type StageHistoryEntry struct {
	FromStage Stage
	ToStage   Stage
	ChangedAt time.Time
}

// AgentShare is one agent's cut of the service fee.
type AgentShare struct {
	AgentID string
	Role    ShareRole
	Amount  decimal.Decimal
}

// FinancialBreakdown splits a total service fee between the agency and one or
// two agents. AgencyAmount plus the sum of share amounts always equals the
// fee it was computed from.
type FinancialBreakdown struct {
	AgencyAmount decimal.Decimal
	AgentShares  []AgentShare
}

// Record mirrors the transactions table plus its history and breakdown rows.
// FinancialBreakdown is nil until the transaction completes.
type Record struct {
	ID                 string
	Stage              Stage
	TotalServiceFee    decimal.Decimal
	Currency           string
	ListingAgentID     string
	SellingAgentID     string
	FinancialBreakdown *FinancialBreakdown
	StageHistory       []StageHistoryEntry
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Terminal reports whether the record can no longer change stage.
func (r Record) Terminal() bool {
	return IsTerminal(r.Stage)
}

// Filters narrows List results. AgentID matches either side of the deal.
type Filters struct {
	Stage    Stage
	AgentID  string
	FromDate *time.Time
	ToDate   *time.Time
	Page     int
	PageSize int
}
