// Package core holds the pot ledger's domain: money in integer cents, the
// domain records, the ledger aggregator that turns contributions and splits
// into balances, and the split validator every expense passes before it is
// stored.
package core

import (
	"errors"
	"strings"
	"time"
)

// Split modes accepted when composing an expense.
const (
	SplitModeCustom SplitMode = "custom"
	SplitModeEqual  SplitMode = "equal"
)

const (
	maxNameLength = 100
	maxNoteLength = 500
)

type (
	SplitMode string

	Money struct {
		Cents int64
	}

	Pot struct {
		ID         string    `json:"id"`
		Name       string    `json:"name"`
		InviteCode string    `json:"invite_code"`
		CreatedAt  time.Time `json:"created_at"`
	}

	Participant struct {
		ID        string    `json:"id"`
		PotID     string    `json:"pot_id,omitempty"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}

	Contribution struct {
		ID            string    `json:"id"`
		PotID         string    `json:"pot_id"`
		ParticipantID string    `json:"participant_id"`
		Amount        Money     `json:"amount"`
		Note          string    `json:"note,omitempty"`
		OccurredAt    time.Time `json:"occurred_at"`
		CreatedAt     time.Time `json:"created_at"`
	}

	// Split is one participant's share of an expense as proposed by a caller.
	Split struct {
		ParticipantID string `json:"participant_id"`
		Amount        Money  `json:"amount"`
	}

	Expense struct {
		ID          string         `json:"id"`
		PotID       string         `json:"pot_id"`
		Description string         `json:"description"`
		Total       Money          `json:"total_amount"`
		PayerID     string         `json:"paid_by_participant_id,omitempty"`
		PayerName   string         `json:"paid_by_participant_name,omitempty"`
		OccurredAt  time.Time      `json:"occurred_at"`
		CreatedAt   time.Time      `json:"created_at"`
		Splits      []ExpenseSplit `json:"splits"`
	}

	ExpenseSplit struct {
		ExpenseID       string `json:"expense_id,omitempty"`
		PotID           string `json:"pot_id,omitempty"`
		ParticipantID   string `json:"participant_id"`
		ParticipantName string `json:"participant_name,omitempty"`
		Amount          Money  `json:"amount"`
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyPotName        = errors.New("pot name is required")
	ErrEmptyInviteCode     = errors.New("invite code is required")
	ErrEmptyName           = errors.New("name is required")
	ErrNameTooLong         = errors.New("name too long (max 100 characters)")
	ErrNoteTooLong         = errors.New("note too long (max 500 characters)")
	ErrMissingPot          = errors.New("pot_id is required")
	ErrMissingParticipant  = errors.New("participant_id is required")
	ErrMissingExpense      = errors.New("expense id is required")
	ErrParticipantNotInPot = errors.New("participant does not belong to this pot")
	ErrInvalidSplitMode    = errors.New("split mode must be equal or custom")
)

// NormalizeInviteCode trims surrounding whitespace; codes are case sensitive.
func NormalizeInviteCode(code string) string {
	return strings.TrimSpace(code)
}

func (p Pot) Validate() error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return ErrEmptyPotName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

func (p Participant) Validate() error {
	if strings.TrimSpace(p.PotID) == "" {
		return ErrMissingPot
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// Validate checks the contribution's own fields. Pot membership of the
// participant is checked against the store by the caller.
func (c Contribution) Validate() error {
	if strings.TrimSpace(c.PotID) == "" {
		return ErrMissingPot
	}
	if strings.TrimSpace(c.ParticipantID) == "" {
		return ErrMissingParticipant
	}
	if !c.Amount.IsPositive() || c.Amount.Cents > MaxCents {
		return ErrInvalidAmount
	}
	if len(c.Note) > maxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

// Valid reports whether the mode is known. The empty mode means custom.
func (m SplitMode) Valid() bool {
	switch m {
	case "", SplitModeCustom, SplitModeEqual:
		return true
	default:
		return false
	}
}
