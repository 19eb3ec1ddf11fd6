package main

import (
	"time"

	"dealtrack/agent"
	"dealtrack/auth"
	"dealtrack/transaction"
)

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

func userResponseFrom(u auth.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

type agentResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func agentResponseFrom(a agent.Agent) agentResponse {
	return agentResponse{
		ID:        a.ID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.Format(time.RFC3339),
	}
}

type agentShareResponse struct {
	AgentID string `json:"agentId"`
	Role    string `json:"role"`
	Amount  string `json:"amount"`
}

type breakdownResponse struct {
	AgencyAmount string               `json:"agencyAmount"`
	AgentShares  []agentShareResponse `json:"agentShares"`
}

func breakdownResponseFrom(b transaction.FinancialBreakdown) breakdownResponse {
	shares := make([]agentShareResponse, 0, len(b.AgentShares))
	for _, share := range b.AgentShares {
		shares = append(shares, agentShareResponse{
			AgentID: share.AgentID,
			Role:    string(share.Role),
			Amount:  share.Amount.String(),
		})
	}
	return breakdownResponse{
		AgencyAmount: b.AgencyAmount.String(),
		AgentShares:  shares,
	}
}

type stageHistoryResponse struct {
	FromStage string `json:"fromStage"`
	ToStage   string `json:"toStage"`
	ChangedAt string `json:"changedAt"`
}

type transactionResponse struct {
	ID                 string                 `json:"id"`
	Stage              string                 `json:"stage"`
	TotalServiceFee    string                 `json:"totalServiceFee"`
	Currency           string                 `json:"currency"`
	ListingAgentID     string                 `json:"listingAgentId"`
	SellingAgentID     string                 `json:"sellingAgentId"`
	FinancialBreakdown *breakdownResponse     `json:"financialBreakdown,omitempty"`
	EstimatedBreakdown *breakdownResponse     `json:"estimatedBreakdown,omitempty"`
	StageHistory       []stageHistoryResponse `json:"stageHistory"`
	CreatedAt          string                 `json:"createdAt"`
	UpdatedAt          string                 `json:"updatedAt"`
}

func transactionResponseFrom(rec transaction.Record, estimate *transaction.FinancialBreakdown) transactionResponse {
	resp := transactionResponse{
		ID:              rec.ID,
		Stage:           string(rec.Stage),
		TotalServiceFee: rec.TotalServiceFee.String(),
		Currency:        rec.Currency,
		ListingAgentID:  rec.ListingAgentID,
		SellingAgentID:  rec.SellingAgentID,
		StageHistory:    make([]stageHistoryResponse, 0, len(rec.StageHistory)),
		CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       rec.UpdatedAt.Format(time.RFC3339),
	}
	for _, entry := range rec.StageHistory {
		resp.StageHistory = append(resp.StageHistory, stageHistoryResponse{
			FromStage: string(entry.FromStage),
			ToStage:   string(entry.ToStage),
			ChangedAt: entry.ChangedAt.Format(time.RFC3339),
		})
	}
	if rec.FinancialBreakdown != nil {
		frozen := breakdownResponseFrom(*rec.FinancialBreakdown)
		resp.FinancialBreakdown = &frozen
	}
	if estimate != nil {
		estimated := breakdownResponseFrom(*estimate)
		resp.EstimatedBreakdown = &estimated
	}
	return resp
}
