package services

import (
	"context"

	"potshare/internal/amqp"
	"potshare/internal/core"
)

// PotStore persists pots. CreatePot returns storage.ErrInviteCodeTaken when
// the code collides.
type PotStore interface {
	CreatePot(ctx context.Context, name, inviteCode string) (core.Pot, error)
	GetPot(ctx context.Context, id string) (core.Pot, error)
	GetPotByInviteCode(ctx context.Context, code string) (core.Pot, error)
	ListPots(ctx context.Context) ([]core.Pot, error)
}

// MembershipStore answers which participants belong to a pot.
type MembershipStore interface {
	ParticipantSet(ctx context.Context, potID string) (core.ParticipantSet, error)
}

type ParticipantStore interface {
	MembershipStore
	CreateParticipant(ctx context.Context, potID, name string) (core.Participant, error)
	ListParticipants(ctx context.Context, potID string) ([]core.Participant, error)
}

type ContributionStore interface {
	MembershipStore
	CreateContribution(ctx context.Context, c core.Contribution) (core.Contribution, error)
	ListContributions(ctx context.Context, potID string) ([]core.Contribution, error)
}

// ExpenseStore writes an expense and its splits as one unit.
type ExpenseStore interface {
	MembershipStore
	CreateExpense(ctx context.Context, e core.Expense, splits []core.Split) (core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense, splits []core.Split) error
	GetExpense(ctx context.Context, potID, id string) (core.Expense, error)
	ListExpenses(ctx context.Context, potID string) ([]core.Expense, error)
}

// BalanceStore provides the three inputs of the ledger aggregation.
type BalanceStore interface {
	ListParticipants(ctx context.Context, potID string) ([]core.Participant, error)
	ContributionEntries(ctx context.Context, potID string) ([]core.AmountEntry, error)
	SplitEntries(ctx context.Context, potID string) ([]core.AmountEntry, error)
}

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	Publish(ctx context.Context, event amqp.LedgerEvent) error
}
