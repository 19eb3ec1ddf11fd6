package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"dealtrack/transaction"
)

// stop-aware sleep shared by all actors
func pause(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	case <-time.After(d):
		return true
	}
}

// expected reports whether err is a contention outcome rather than a bug:
// another actor won the race and the transition table rejected this move.
func expected(err error) bool {
	var invalid *transaction.InvalidTransitionError
	return errors.As(err, &invalid) ||
		errors.Is(err, transaction.ErrAlreadyCompleted) ||
		errors.Is(err, transaction.ErrCannotCompleteCanceled)
}

// Advancer repeatedly tries to push the transaction one legal step forward.
// Under contention most attempts lose the row lock race and get rejected;
// only the table-legal winner may mutate.
func Advancer(ctx context.Context, svc *transaction.Service, txnID string, stop <-chan struct{}) error {
	next := map[transaction.Stage]transaction.Stage{
		transaction.StageAgreement:    transaction.StageEarnestMoney,
		transaction.StageEarnestMoney: transaction.StageTitleDeed,
		transaction.StageTitleDeed:    transaction.StageCompleted,
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		rec, err := svc.Get(ctx, txnID)
		if err != nil {
			return fmt.Errorf("advancer get: %w", err)
		}
		if rec.Terminal() {
			if !pause(ctx, stop, time.Duration(20+rand.Intn(30))*time.Millisecond) {
				return nil
			}
			continue
		}

		if _, err := svc.UpdateStage(ctx, txnID, next[rec.Stage]); err != nil && !expected(err) {
			return fmt.Errorf("advancer update: %w", err)
		}
		if !pause(ctx, stop, time.Duration(5+rand.Intn(15))*time.Millisecond) {
			return nil
		}
	}
}

// FastCompleter races the advancers by jumping straight to completed.
func FastCompleter(ctx context.Context, svc *transaction.Service, txnID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		if _, err := svc.FastComplete(ctx, txnID); err != nil && !expected(err) {
			return fmt.Errorf("fast-completer: %w", err)
		}
		if !pause(ctx, stop, time.Duration(30+rand.Intn(60))*time.Millisecond) {
			return nil
		}
	}
}

// Canceler races everyone else toward the other terminal stage.
func Canceler(ctx context.Context, svc *transaction.Service, txnID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		if _, err := svc.Cancel(ctx, txnID); err != nil && !expected(err) {
			return fmt.Errorf("canceler: %w", err)
		}
		if !pause(ctx, stop, time.Duration(40+rand.Intn(80))*time.Millisecond) {
			return nil
		}
	}
}

// EstimateReader continuously reads the transaction with its speculative
// breakdown, checking the estimate never leaks into persisted state and the
// split always reassembles the fee.
func EstimateReader(ctx context.Context, svc *transaction.Service, txnID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		rec, estimate, err := svc.GetWithEstimate(ctx, txnID)
		if err != nil {
			return fmt.Errorf("estimate reader: %w", err)
		}

		if rec.Terminal() && estimate != nil {
			return fmt.Errorf("estimate reader: terminal transaction %s got an estimate", txnID)
		}
		if !rec.Terminal() && rec.FinancialBreakdown != nil {
			return fmt.Errorf("estimate reader: non-terminal transaction %s has a frozen breakdown", txnID)
		}
		if estimate != nil {
			sum := estimate.AgencyAmount
			for _, share := range estimate.AgentShares {
				sum = sum.Add(share.Amount)
			}
			if !sum.Equal(rec.TotalServiceFee) {
				return fmt.Errorf("estimate reader: estimate sums to %s, fee is %s", sum, rec.TotalServiceFee)
			}
		}

		if !pause(ctx, stop, time.Duration(10+rand.Intn(20))*time.Millisecond) {
			return nil
		}
	}
}
