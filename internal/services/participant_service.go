package services

import (
	"context"
	"strings"

	"potshare/internal/core"
)

type ParticipantService struct {
	store       ParticipantStore
	pots        PotStore
	invalidator Invalidator
}

// NewParticipantService takes the balance cache invalidator, which may be nil.
func NewParticipantService(store ParticipantStore, pots PotStore, invalidator Invalidator) *ParticipantService {
	return &ParticipantService{store: store, pots: pots, invalidator: invalidator}
}

// Add creates a participant in an existing pot.
func (s *ParticipantService) Add(ctx context.Context, potID, name string) (core.Participant, error) {
	p := core.Participant{PotID: strings.TrimSpace(potID), Name: strings.TrimSpace(name)}
	if err := p.Validate(); err != nil {
		return core.Participant{}, err
	}
	if _, err := s.pots.GetPot(ctx, p.PotID); err != nil {
		return core.Participant{}, err
	}
	created, err := s.store.CreateParticipant(ctx, p.PotID, p.Name)
	if err != nil {
		return core.Participant{}, err
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(created.PotID)
	}
	return created, nil
}

func (s *ParticipantService) List(ctx context.Context, potID string) ([]core.Participant, error) {
	if strings.TrimSpace(potID) == "" {
		return nil, core.ErrMissingPot
	}
	return s.store.ListParticipants(ctx, potID)
}
