package transaction

import (
	"errors"
	"fmt"
)

// allowedTransitions is the single source of truth for one-step stage moves.
// Every stage has an entry; terminal stages map to an empty set.
var allowedTransitions = map[Stage][]Stage{
	StageAgreement:    {StageEarnestMoney, StageCanceled},
	StageEarnestMoney: {StageTitleDeed, StageCanceled},
	StageTitleDeed:    {StageCompleted, StageCanceled},
	StageCompleted:    {},
	StageCanceled:     {},
}

var (
	// ErrAlreadyCompleted signals fast-complete on a completed transaction.
	ErrAlreadyCompleted = errors.New("transaction: already completed")
	// ErrCannotCompleteCanceled signals fast-complete on a canceled transaction.
	ErrCannotCompleteCanceled = errors.New("transaction: cannot complete a canceled transaction")
)

// InvalidTransitionError reports a stage change that is not in the
// transition table, including any attempt to leave a terminal stage.
type InvalidTransitionError struct {
	From Stage
	To   Stage
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transaction: invalid stage transition from %s to %s", e.From, e.To)
}

// ValidStage reports whether s is a member of the stage enumeration.
func ValidStage(s Stage) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsTerminal reports whether s has no outgoing transitions.
func IsTerminal(s Stage) bool {
	return s == StageCompleted || s == StageCanceled
}

// ValidateTransition decides whether moving from current to target is a legal
// one-step transition. It is pure: no state, no side effects.
func ValidateTransition(current, target Stage) error {
	for _, allowed := range allowedTransitions[current] {
		if allowed == target {
			return nil
		}
	}
	return &InvalidTransitionError{From: current, To: target}
}

// ValidateFastComplete decides whether the transaction may jump straight to
// completed from current, bypassing intermediate stages. This is a deliberate
// shortcut distinct from the one-step rule, so it is not an entry in the
// transition table.
func ValidateFastComplete(current Stage) error {
	switch current {
	case StageCompleted:
		return ErrAlreadyCompleted
	case StageCanceled:
		return ErrCannotCompleteCanceled
	default:
		return nil
	}
}
