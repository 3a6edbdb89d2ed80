package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyDescription   = errors.New("description is required")
	ErrNonPositiveTotal   = errors.New("total amount must be positive")
	ErrNoSplits           = errors.New("at least one split required")
	ErrNonPositiveSplit   = errors.New("split amounts must be greater than 0")
	ErrSplitSumMismatch   = errors.New("split amounts must add up to total amount")
	ErrUnknownParticipant = errors.New("one or more participants are not in this pot")
)

// Reason codes reported to API clients.
const (
	ReasonEmptyDescription   = "empty_description"
	ReasonNonPositiveTotal   = "non_positive_total"
	ReasonNoSplits           = "no_splits"
	ReasonNonPositiveSplit   = "non_positive_split"
	ReasonSplitSumMismatch   = "split_sum_mismatch"
	ReasonUnknownParticipant = "unknown_participant"
	ReasonInvalidInput       = "invalid_input"
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrEmptyDescription, ReasonEmptyDescription},
	{ErrNonPositiveTotal, ReasonNonPositiveTotal},
	{ErrNoSplits, ReasonNoSplits},
	{ErrNonPositiveSplit, ReasonNonPositiveSplit},
	{ErrSplitSumMismatch, ReasonSplitSumMismatch},
	{ErrUnknownParticipant, ReasonUnknownParticipant},
	{ErrParticipantNotInPot, ReasonUnknownParticipant},
}

var inputErrors = []error{
	ErrInvalidAmount,
	ErrEmptyPotName,
	ErrEmptyInviteCode,
	ErrEmptyName,
	ErrNameTooLong,
	ErrNoteTooLong,
	ErrMissingPot,
	ErrMissingParticipant,
	ErrMissingExpense,
	ErrInvalidSplitMode,
}

// ExpenseDraft is an expense as proposed by a caller, before validation.
type ExpenseDraft struct {
	Description string
	Total       Money
	PayerID     string
	Splits      []Split
}

// ParticipantSet holds the authoritative member ids of a pot.
type ParticipantSet map[string]struct{}

// NewParticipantSet builds a set from ids.
func NewParticipantSet(ids ...string) ParticipantSet {
	set := make(ParticipantSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains reports membership.
func (s ParticipantSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// ValidateExpense is the gate every expense passes before it is persisted,
// on create and on every update. Checks run in a fixed order and the first
// failure is returned; see ReasonFor for the client-facing code.
func ValidateExpense(d ExpenseDraft, members ParticipantSet) error {
	if strings.TrimSpace(d.Description) == "" {
		return ErrEmptyDescription
	}
	if !d.Total.IsPositive() {
		return ErrNonPositiveTotal
	}
	if d.Total.Cents > MaxCents {
		return fmt.Errorf("%w: total %s exceeds %s", ErrInvalidAmount, d.Total, Money{Cents: MaxCents})
	}
	if len(d.Splits) == 0 {
		return ErrNoSplits
	}
	for _, s := range d.Splits {
		if !s.Amount.IsPositive() {
			return ErrNonPositiveSplit
		}
	}
	sum, ok := SumSplits(d.Splits)
	if !ok {
		return fmt.Errorf("%w (splits overflow, total %s)", ErrSplitSumMismatch, d.Total)
	}
	if sum != d.Total {
		return fmt.Errorf("%w (splits %s, total %s)", ErrSplitSumMismatch, sum, d.Total)
	}
	if d.PayerID != "" && !members.Contains(d.PayerID) {
		return ErrUnknownParticipant
	}
	for _, s := range d.Splits {
		if !members.Contains(s.ParticipantID) {
			return ErrUnknownParticipant
		}
	}
	return nil
}

// SumSplits adds split amounts in cents. It reports false when the running
// sum leaves the int64 range.
func SumSplits(splits []Split) (Money, bool) {
	var total Money
	for _, s := range splits {
		var ok bool
		if total, ok = total.CheckedAdd(s.Amount); !ok {
			return Money{}, false
		}
	}
	return total, true
}

// EqualSplit distributes total over participants in cents. The first
// total%n participants receive one extra cent, so the shares add up to the
// total exactly and differ by at most one cent. An empty participant list or a
// non-positive total yields no splits.
func EqualSplit(total Money, participantIDs []string) []Split {
	n := int64(len(participantIDs))
	if n == 0 || total.Cents <= 0 {
		return nil
	}
	base := total.Cents / n
	remainder := total.Cents % n

	splits := make([]Split, 0, n)
	for i, id := range participantIDs {
		share := base
		if int64(i) < remainder {
			share++
		}
		splits = append(splits, Split{ParticipantID: id, Amount: Money{Cents: share}})
	}
	return splits
}

// ReasonFor maps a validation error to its reason code. It returns "" for
// errors that are not validation failures.
func ReasonFor(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	for _, e := range inputErrors {
		if errors.Is(err, e) {
			return ReasonInvalidInput
		}
	}
	return ""
}

// IsValidation reports whether err is a caller input error.
func IsValidation(err error) bool {
	return ReasonFor(err) != ""
}

// IsReferential reports whether err is a pot membership failure, which
// callers render differently from amount errors.
func IsReferential(err error) bool {
	return errors.Is(err, ErrUnknownParticipant) || errors.Is(err, ErrParticipantNotInPot)
}
