package services

import (
	"context"
	"fmt"
	"strings"

	"potshare/internal/amqp"
	"potshare/internal/core"
)

type ContributionService struct {
	store    ContributionStore
	notifier *Notifier
}

func NewContributionService(store ContributionStore, notifier *Notifier) *ContributionService {
	return &ContributionService{store: store, notifier: notifier}
}

// Record appends a contribution after checking the participant belongs to
// the pot. Contributions are never edited.
func (s *ContributionService) Record(ctx context.Context, c core.Contribution) (core.Contribution, error) {
	c.PotID = strings.TrimSpace(c.PotID)
	c.ParticipantID = strings.TrimSpace(c.ParticipantID)
	c.Note = strings.TrimSpace(c.Note)
	if err := c.Validate(); err != nil {
		return core.Contribution{}, err
	}

	members, err := s.store.ParticipantSet(ctx, c.PotID)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("load pot participants: %w", err)
	}
	if !members.Contains(c.ParticipantID) {
		return core.Contribution{}, core.ErrParticipantNotInPot
	}

	saved, err := s.store.CreateContribution(ctx, c)
	if err != nil {
		return core.Contribution{}, err
	}
	s.notifier.Committed(ctx, amqp.EventContributionCreated, saved.PotID, saved.ID)
	return saved, nil
}

func (s *ContributionService) List(ctx context.Context, potID string) ([]core.Contribution, error) {
	if strings.TrimSpace(potID) == "" {
		return nil, core.ErrMissingPot
	}
	return s.store.ListContributions(ctx, potID)
}
