package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potshare/internal/amqp"
	"potshare/internal/cache"
	"potshare/internal/core"
	"potshare/internal/metrics"
	"potshare/internal/storage"
)

type fixture struct {
	store     *memStore
	publisher *recordingPublisher
	balances  *BalanceService
	pots      *PotService
	people    *ParticipantService
	contribs  *ContributionService
	expenses  *ExpenseService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	pub := &recordingPublisher{}
	m := metrics.New()
	balances := NewBalanceService(store, cache.NewLRUCache[PotBalances](8, time.Minute), m)
	notifier := NewNotifier(pub, balances, m)
	return &fixture{
		store:     store,
		publisher: pub,
		balances:  balances,
		pots:      NewPotService(store),
		people:    NewParticipantService(store, store, balances),
		contribs:  NewContributionService(store, notifier),
		expenses:  NewExpenseService(store, notifier),
	}
}

func (f *fixture) pot(t *testing.T, names ...string) (core.Pot, []core.Participant) {
	t.Helper()
	ctx := context.Background()
	pot, err := f.pots.Create(ctx, "Trip")
	require.NoError(t, err)
	var ps []core.Participant
	for _, n := range names {
		p, err := f.people.Add(ctx, pot.ID, n)
		require.NoError(t, err)
		ps = append(ps, p)
	}
	return pot, ps
}

func TestPotService_CreateRetriesOnCollision(t *testing.T) {
	store := newMemStore()
	store.takenCodes["dup"] = true
	svc := NewPotService(store)

	codes := []string{"dup", "dup", "fresh"}
	svc.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	pot, err := svc.Create(context.Background(), "  Flat  ")
	require.NoError(t, err)
	assert.Equal(t, "fresh", pot.InviteCode)
	assert.Equal(t, "Flat", pot.Name)
	assert.Equal(t, 3, store.calls["CreatePot"])
}

func TestPotService_CreateGivesUpAfterFiveAttempts(t *testing.T) {
	store := newMemStore()
	store.takenCodes["dup"] = true
	svc := NewPotService(store)
	svc.newCode = func() (string, error) { return "dup", nil }

	_, err := svc.Create(context.Background(), "Flat")
	assert.ErrorIs(t, err, ErrInviteCodeExhausted)
	assert.Equal(t, 5, store.calls["CreatePot"])
}

func TestPotService_CreateRejectsBlankName(t *testing.T) {
	svc := NewPotService(newMemStore())
	_, err := svc.Create(context.Background(), "   ")
	assert.ErrorIs(t, err, core.ErrEmptyPotName)
}

func TestGenerateInviteCode(t *testing.T) {
	a, err := generateInviteCode()
	require.NoError(t, err)
	b, err := generateInviteCode()
	require.NoError(t, err)
	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "/")
}

func TestPotService_Join(t *testing.T) {
	f := newFixture(t)
	pot, _ := f.pot(t)

	got, err := f.pots.Join(context.Background(), " "+pot.InviteCode+" ")
	require.NoError(t, err)
	assert.Equal(t, pot.ID, got.ID)

	_, err = f.pots.Join(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrEmptyInviteCode)

	_, err = f.pots.Join(context.Background(), "unknown")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestParticipantService_AddRequiresPot(t *testing.T) {
	f := newFixture(t)
	_, err := f.people.Add(context.Background(), "missing", "Alice")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = f.people.Add(context.Background(), "", "Alice")
	assert.ErrorIs(t, err, core.ErrMissingPot)
}

func TestContributionService_Record(t *testing.T) {
	f := newFixture(t)
	pot, ps := f.pot(t, "Alice")
	_, others := f.pot(t, "Mallory")

	c, err := f.contribs.Record(context.Background(), core.Contribution{
		PotID: pot.ID, ParticipantID: ps[0].ID, Amount: core.Cents(2500),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, amqp.EventContributionCreated, f.publisher.events[0].Type)

	_, err = f.contribs.Record(context.Background(), core.Contribution{
		PotID: pot.ID, ParticipantID: others[0].ID, Amount: core.Cents(100),
	})
	assert.ErrorIs(t, err, core.ErrParticipantNotInPot)
	assert.True(t, core.IsReferential(err))

	_, err = f.contribs.Record(context.Background(), core.Contribution{
		PotID: pot.ID, ParticipantID: ps[0].ID, Amount: core.Cents(0),
	})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestContributionService_PublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errBoom
	pot, ps := f.pot(t, "Alice")

	_, err := f.contribs.Record(context.Background(), core.Contribution{
		PotID: pot.ID, ParticipantID: ps[0].ID, Amount: core.Cents(100),
	})
	assert.NoError(t, err)

	list, err := f.contribs.List(context.Background(), pot.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestExpenseService_CreateCustom(t *testing.T) {
	f := newFixture(t)
	pot, ps := f.pot(t, "Alice", "Bob")

	e, err := f.expenses.Create(context.Background(), ExpenseInput{
		PotID:       pot.ID,
		Description: "Groceries",
		Total:       core.Cents(10000),
		PayerID:     ps[0].ID,
		Splits: []core.Split{
			{ParticipantID: ps[0].ID, Amount: core.Cents(5000)},
			{ParticipantID: ps[1].ID, Amount: core.Cents(5000)},
		},
	})
	require.NoError(t, err)
	assert.Len(t, f.store.splits[e.ID], 2)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, amqp.EventExpenseCreated, f.publisher.events[0].Type)
}

func TestExpenseService_CreateEqual(t *testing.T) {
	f := newFixture(t)
	pot, ps := f.pot(t, "A", "B", "C")

	e, err := f.expenses.Create(context.Background(), ExpenseInput{
		PotID:          pot.ID,
		Description:    "Dinner",
		Total:          core.Cents(1000),
		Mode:           core.SplitModeEqual,
		ParticipantIDs: []string{ps[0].ID, ps[1].ID, ps[2].ID},
	})
	require.NoError(t, err)

	splits := f.store.splits[e.ID]
	require.Len(t, splits, 3)
	assert.Equal(t, core.Cents(334), splits[0].Amount)
	assert.Equal(t, core.Cents(333), splits[1].Amount)
	assert.Equal(t, core.Cents(333), splits[2].Amount)
}

func TestExpenseService_CreateRejectsWithoutWriting(t *testing.T) {
	f := newFixture(t)
	pot, ps := f.pot(t, "A", "B")

	tests := []struct {
		name   string
		in     ExpenseInput
		reason string
	}{
		{
			name: "sum mismatch",
			in: ExpenseInput{PotID: pot.ID, Description: "x", Total: core.Cents(10000), Splits: []core.Split{
				{ParticipantID: ps[0].ID, Amount: core.Cents(4000)},
				{ParticipantID: ps[1].ID, Amount: core.Cents(5000)},
			}},
			reason: core.ReasonSplitSumMismatch,
		},
		{
			name: "equal mode without participants",
			in: ExpenseInput{PotID: pot.ID, Description: "x", Total: core.Cents(1000),
				Mode: core.SplitModeEqual},
			reason: core.ReasonNoSplits,
		},
		{
			name: "payer outside pot",
			in: ExpenseInput{PotID: pot.ID, Description: "x", Total: core.Cents(100), PayerID: "ghost",
				Splits: []core.Split{{ParticipantID: ps[0].ID, Amount: core.Cents(100)}}},
			reason: core.ReasonUnknownParticipant,
		},
		{
			name:   "unknown mode",
			in:     ExpenseInput{PotID: pot.ID, Description: "x", Total: core.Cents(100), Mode: "weighted"},
			reason: core.ReasonInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.expenses.Create(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.reason, core.ReasonFor(err))
		})
	}
	assert.Zero(t, f.store.calls["CreateExpense"])
	assert.Empty(t, f.publisher.events)

	_, err := f.expenses.Create(context.Background(), ExpenseInput{Description: "x"})
	assert.ErrorIs(t, err, core.ErrMissingPot)
}

func TestExpenseService_StoreFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	pot, ps := f.pot(t, "A")
	f.store.failExpense = errBoom

	_, err := f.expenses.Create(context.Background(), ExpenseInput{
		PotID: pot.ID, Description: "x", Total: core.Cents(100),
		Splits: []core.Split{{ParticipantID: ps[0].ID, Amount: core.Cents(100)}},
	})
	assert.True(t, errors.Is(err, errBoom))
	assert.False(t, core.IsValidation(err))
	assert.Empty(t, f.publisher.events)
}

func TestExpenseService_Update(t *testing.T) {
	f := newFixture(t)
	pot, ps := f.pot(t, "A", "B")
	ctx := context.Background()

	e, err := f.expenses.Create(ctx, ExpenseInput{
		PotID: pot.ID, Description: "Taxi", Total: core.Cents(1000),
		Splits: []core.Split{{ParticipantID: ps[0].ID, Amount: core.Cents(1000)}},
	})
	require.NoError(t, err)

	// invalid new split set leaves the old one in place
	err = f.expenses.Update(ctx, e.ID, ExpenseInput{
		PotID: pot.ID, Description: "Taxi", Total: core.Cents(1000),
		Splits: []core.Split{{ParticipantID: ps[0].ID, Amount: core.Cents(999)}},
	})
	assert.ErrorIs(t, err, core.ErrSplitSumMismatch)
	assert.Equal(t, core.Cents(1000), f.store.splits[e.ID][0].Amount)

	err = f.expenses.Update(ctx, e.ID, ExpenseInput{
		PotID: pot.ID, Description: "Taxi", Total: core.Cents(1000), Mode: core.SplitModeEqual,
		ParticipantIDs: []string{ps[0].ID, ps[1].ID},
	})
	require.NoError(t, err)
	assert.Len(t, f.store.splits[e.ID], 2)
	assert.Equal(t, amqp.EventExpenseUpdated, f.publisher.events[len(f.publisher.events)-1].Type)

	err = f.expenses.Update(ctx, "missing", ExpenseInput{
		PotID: pot.ID, Description: "Taxi", Total: core.Cents(1000),
		Splits: []core.Split{{ParticipantID: ps[0].ID, Amount: core.Cents(1000)}},
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBalanceService_OrderedByNameWithSummary(t *testing.T) {
	f := newFixture(t)
	pot, ps := f.pot(t, "Carol", "Alice", "Bob")
	ctx := context.Background()

	_, err := f.contribs.Record(ctx, core.Contribution{PotID: pot.ID, ParticipantID: ps[1].ID, Amount: core.Cents(9000)})
	require.NoError(t, err)
	_, err = f.expenses.Create(ctx, ExpenseInput{
		PotID: pot.ID, Description: "Hotel", Total: core.Cents(9000), Mode: core.SplitModeEqual,
		ParticipantIDs: []string{ps[0].ID, ps[1].ID, ps[2].ID},
	})
	require.NoError(t, err)

	got, err := f.balances.Balances(ctx, pot.ID)
	require.NoError(t, err)
	require.Len(t, got.Balances, 3)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"},
		[]string{got.Balances[0].Name, got.Balances[1].Name, got.Balances[2].Name})
	assert.Equal(t, core.Cents(6000), got.Balances[0].Balance)
	assert.Equal(t, core.Cents(-3000), got.Balances[1].Balance)
	assert.Equal(t, core.Cents(9000), got.Summary.TotalContributed)
	assert.Equal(t, core.Cents(0), got.Summary.NetBalance)
}

func TestBalanceService_CacheInvalidatedOnWrite(t *testing.T) {
	f := newFixture(t)
	pot, ps := f.pot(t, "Alice")
	ctx := context.Background()

	_, err := f.balances.Balances(ctx, pot.ID)
	require.NoError(t, err)
	_, err = f.balances.Balances(ctx, pot.ID)
	require.NoError(t, err)
	loads := f.store.calls["ListParticipants"]

	_, err = f.contribs.Record(ctx, core.Contribution{PotID: pot.ID, ParticipantID: ps[0].ID, Amount: core.Cents(500)})
	require.NoError(t, err)

	got, err := f.balances.Balances(ctx, pot.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Cents(500), got.Balances[0].Contributed)
	assert.Greater(t, f.store.calls["ListParticipants"], loads)
}

func TestParticipantService_AddInvalidatesBalances(t *testing.T) {
	f := newFixture(t)
	pot, _ := f.pot(t, "Alice")
	ctx := context.Background()

	before, err := f.balances.Balances(ctx, pot.ID)
	require.NoError(t, err)
	require.Len(t, before.Balances, 1)

	_, err = f.people.Add(ctx, pot.ID, "Bob")
	require.NoError(t, err)

	after, err := f.balances.Balances(ctx, pot.ID)
	require.NoError(t, err)
	assert.Len(t, after.Balances, 2)
}

func TestBalanceService_EmptyPot(t *testing.T) {
	svc := NewBalanceService(newMemStore(), nil, nil)
	got, err := svc.Balances(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got.Balances)

	_, err = svc.Balances(context.Background(), " ")
	assert.ErrorIs(t, err, core.ErrMissingPot)
}

func TestNotifier_InvalidatesAndTolerates(t *testing.T) {
	inv := &recordingInvalidator{}
	n := NewNotifier(nil, inv, nil)
	n.Committed(context.Background(), amqp.EventExpenseCreated, "pot-1", "e-1")
	assert.Equal(t, []string{"pot-1"}, inv.pots)

	var nilNotifier *Notifier
	assert.NotPanics(t, func() {
		nilNotifier.Committed(context.Background(), amqp.EventExpenseCreated, "p", "e")
	})
}
