package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"potshare/internal/amqp"
	"potshare/internal/core"
)

// ExpenseInput is an expense as submitted by a client. In equal mode the
// splits are derived from ParticipantIDs; in custom mode Splits is used as is.
type ExpenseInput struct {
	PotID          string
	Description    string
	Total          core.Money
	PayerID        string
	OccurredAt     time.Time
	Mode           core.SplitMode
	ParticipantIDs []string
	Splits         []core.Split
}

// Draft resolves the split mode into a validator draft.
func (in ExpenseInput) Draft() (core.ExpenseDraft, error) {
	if !in.Mode.Valid() {
		return core.ExpenseDraft{}, core.ErrInvalidSplitMode
	}
	splits := in.Splits
	if in.Mode == core.SplitModeEqual {
		splits = core.EqualSplit(in.Total, in.ParticipantIDs)
	}
	return core.ExpenseDraft{
		Description: strings.TrimSpace(in.Description),
		Total:       in.Total,
		PayerID:     strings.TrimSpace(in.PayerID),
		Splits:      splits,
	}, nil
}

// ExpenseService validates expenses against the pot's members and persists
// them together with their splits.
type ExpenseService struct {
	store    ExpenseStore
	notifier *Notifier
}

func NewExpenseService(store ExpenseStore, notifier *Notifier) *ExpenseService {
	return &ExpenseService{store: store, notifier: notifier}
}

func (s *ExpenseService) prepare(ctx context.Context, in ExpenseInput) (core.Expense, []core.Split, error) {
	potID := strings.TrimSpace(in.PotID)
	if potID == "" {
		return core.Expense{}, nil, core.ErrMissingPot
	}

	draft, err := in.Draft()
	if err != nil {
		return core.Expense{}, nil, err
	}

	members, err := s.store.ParticipantSet(ctx, potID)
	if err != nil {
		return core.Expense{}, nil, fmt.Errorf("load pot participants: %w", err)
	}
	if err := core.ValidateExpense(draft, members); err != nil {
		return core.Expense{}, nil, err
	}

	e := core.Expense{
		PotID:       potID,
		Description: draft.Description,
		Total:       draft.Total,
		PayerID:     draft.PayerID,
		OccurredAt:  in.OccurredAt,
	}
	return e, draft.Splits, nil
}

// Create validates and stores a new expense. Nothing is written when
// validation fails.
func (s *ExpenseService) Create(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	e, splits, err := s.prepare(ctx, in)
	if err != nil {
		return core.Expense{}, err
	}

	saved, err := s.store.CreateExpense(ctx, e, splits)
	if err != nil {
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Expense recorded",
		"expense_id", saved.ID,
		"pot_id", saved.PotID,
		"mode", modeOrDefault(in.Mode),
		"splits", len(splits))
	s.notifier.Committed(ctx, amqp.EventExpenseCreated, saved.PotID, saved.ID)
	return saved, nil
}

// Update re-validates the full new split set and replaces the stored expense
// and splits in one step. On failure the stored expense is unchanged.
func (s *ExpenseService) Update(ctx context.Context, id string, in ExpenseInput) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.ErrMissingExpense
	}

	e, splits, err := s.prepare(ctx, in)
	if err != nil {
		return err
	}
	e.ID = id

	if err := s.store.UpdateExpense(ctx, e, splits); err != nil {
		return err
	}
	s.notifier.Committed(ctx, amqp.EventExpenseUpdated, e.PotID, e.ID)
	return nil
}

func (s *ExpenseService) Get(ctx context.Context, potID, id string) (core.Expense, error) {
	if strings.TrimSpace(potID) == "" {
		return core.Expense{}, core.ErrMissingPot
	}
	return s.store.GetExpense(ctx, potID, id)
}

func (s *ExpenseService) List(ctx context.Context, potID string) ([]core.Expense, error) {
	if strings.TrimSpace(potID) == "" {
		return nil, core.ErrMissingPot
	}
	return s.store.ListExpenses(ctx, potID)
}

func modeOrDefault(m core.SplitMode) core.SplitMode {
	if m == "" {
		return core.SplitModeCustom
	}
	return m
}
