package transaction

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNegativeFee signals a negative service fee passed to the commission
// engine. Negative fees are rejected, never clamped.
var ErrNegativeFee = errors.New("transaction: total service fee cannot be negative")

var two = decimal.NewFromInt(2)

// CalculateCommission splits fee between the agency and the agent(s). The
// agency retains exactly half; the remaining half goes to a single
// listing_agent share when the same agent holds both sides, otherwise it is
// split evenly between a listing_agent and a selling_agent share.
//
// Remainders are taken by subtraction rather than a second division, so the
// agency amount plus the share amounts always reassemble fee exactly, for
// integral and fractional fees alike. No currency rounding is applied here;
// display rounding belongs to the presentation layer.
//
// The function is pure and safe to call speculatively, e.g. to show an
// estimated breakdown before completion.
func CalculateCommission(fee decimal.Decimal, listingAgentID, sellingAgentID string) (FinancialBreakdown, error) {
	if fee.IsNegative() {
		return FinancialBreakdown{}, ErrNegativeFee
	}

	agencyAmount := fee.Div(two)
	totalAgentAmount := fee.Sub(agencyAmount)

	if listingAgentID == sellingAgentID {
		return FinancialBreakdown{
			AgencyAmount: agencyAmount,
			AgentShares: []AgentShare{
				{AgentID: listingAgentID, Role: RoleListingAgent, Amount: totalAgentAmount},
			},
		}, nil
	}

	listingAmount := totalAgentAmount.Div(two)
	sellingAmount := totalAgentAmount.Sub(listingAmount)

	return FinancialBreakdown{
		AgencyAmount: agencyAmount,
		AgentShares: []AgentShare{
			{AgentID: listingAgentID, Role: RoleListingAgent, Amount: listingAmount},
			{AgentID: sellingAgentID, Role: RoleSellingAgent, Amount: sellingAmount},
		},
	}, nil
}
