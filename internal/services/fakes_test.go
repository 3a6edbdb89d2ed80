package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"potshare/internal/amqp"
	"potshare/internal/core"
	"potshare/internal/storage"
)

// memStore is an in-memory implementation of every store port.
type memStore struct {
	mu            sync.Mutex
	seq           int
	pots          map[string]core.Pot
	participants  []core.Participant
	contributions []core.Contribution
	expenses      map[string]core.Expense
	splits        map[string][]core.Split

	takenCodes  map[string]bool
	failExpense error
	calls       map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		pots:       map[string]core.Pot{},
		expenses:   map[string]core.Expense{},
		splits:     map[string][]core.Split{},
		takenCodes: map[string]bool{},
		calls:      map[string]int{},
	}
}

func (m *memStore) id(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) CreatePot(ctx context.Context, name, code string) (core.Pot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["CreatePot"]++
	if m.takenCodes[code] {
		return core.Pot{}, storage.ErrInviteCodeTaken
	}
	m.takenCodes[code] = true
	p := core.Pot{ID: m.id("pot"), Name: name, InviteCode: code, CreatedAt: time.Now()}
	m.pots[p.ID] = p
	return p, nil
}

func (m *memStore) GetPot(ctx context.Context, id string) (core.Pot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pots[id]
	if !ok {
		return core.Pot{}, storage.ErrNotFound
	}
	return p, nil
}

func (m *memStore) GetPotByInviteCode(ctx context.Context, code string) (core.Pot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pots {
		if p.InviteCode == code {
			return p, nil
		}
	}
	return core.Pot{}, storage.ErrNotFound
}

func (m *memStore) ListPots(ctx context.Context) ([]core.Pot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Pot
	for _, p := range m.pots {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) CreateParticipant(ctx context.Context, potID, name string) (core.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := core.Participant{ID: m.id("part"), PotID: potID, Name: name}
	m.participants = append(m.participants, p)
	return p, nil
}

func (m *memStore) ListParticipants(ctx context.Context, potID string) ([]core.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["ListParticipants"]++
	out := []core.Participant{}
	for _, p := range m.participants {
		if p.PotID == potID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ParticipantSet(ctx context.Context, potID string) (core.ParticipantSet, error) {
	ps, _ := m.ListParticipants(ctx, potID)
	set := core.NewParticipantSet()
	for _, p := range ps {
		set[p.ID] = struct{}{}
	}
	return set, nil
}

func (m *memStore) CreateContribution(ctx context.Context, c core.Contribution) (core.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id("contrib")
	m.contributions = append(m.contributions, c)
	return c, nil
}

func (m *memStore) ListContributions(ctx context.Context, potID string) ([]core.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Contribution
	for _, c := range m.contributions {
		if c.PotID == potID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) ContributionEntries(ctx context.Context, potID string) ([]core.AmountEntry, error) {
	cs, _ := m.ListContributions(ctx, potID)
	var out []core.AmountEntry
	for _, c := range cs {
		out = append(out, core.AmountEntry{ParticipantID: c.ParticipantID, Amount: c.Amount})
	}
	return out, nil
}

func (m *memStore) SplitEntries(ctx context.Context, potID string) ([]core.AmountEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.AmountEntry
	for id, e := range m.expenses {
		if e.PotID != potID {
			continue
		}
		for _, s := range m.splits[id] {
			out = append(out, core.AmountEntry{ParticipantID: s.ParticipantID, Amount: s.Amount})
		}
	}
	return out, nil
}

func (m *memStore) CreateExpense(ctx context.Context, e core.Expense, splits []core.Split) (core.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["CreateExpense"]++
	if m.failExpense != nil {
		return core.Expense{}, m.failExpense
	}
	e.ID = m.id("exp")
	m.expenses[e.ID] = e
	m.splits[e.ID] = append([]core.Split(nil), splits...)
	return e, nil
}

func (m *memStore) UpdateExpense(ctx context.Context, e core.Expense, splits []core.Split) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["UpdateExpense"]++
	old, ok := m.expenses[e.ID]
	if !ok || old.PotID != e.PotID {
		return storage.ErrNotFound
	}
	m.expenses[e.ID] = e
	m.splits[e.ID] = append([]core.Split(nil), splits...)
	return nil
}

func (m *memStore) GetExpense(ctx context.Context, potID, id string) (core.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[id]
	if !ok || e.PotID != potID {
		return core.Expense{}, storage.ErrNotFound
	}
	return e, nil
}

func (m *memStore) ListExpenses(ctx context.Context, potID string) ([]core.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []core.Expense{}
	for _, e := range m.expenses {
		if e.PotID == potID {
			out = append(out, e)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type recordingInvalidator struct{ pots []string }

func (r *recordingInvalidator) Invalidate(potID string) { r.pots = append(r.pots, potID) }

var errBoom = errors.New("boom")
