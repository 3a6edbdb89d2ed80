package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"potshare/internal/core"
	"potshare/internal/storage"
)

const (
	inviteCodeBytes    = 6 // 8 base64url characters
	inviteCodeAttempts = 5
)

var ErrInviteCodeExhausted = errors.New("could not generate a unique invite code")

type PotService struct {
	store   PotStore
	newCode func() (string, error)
}

func NewPotService(store PotStore) *PotService {
	return &PotService{store: store, newCode: generateInviteCode}
}

func generateInviteCode() (string, error) {
	b := make([]byte, inviteCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create stores a new pot under a fresh invite code. Collisions are retried
// a bounded number of times; any other storage error is returned at once.
func (s *PotService) Create(ctx context.Context, name string) (core.Pot, error) {
	name = strings.TrimSpace(name)
	if err := (core.Pot{Name: name}).Validate(); err != nil {
		return core.Pot{}, err
	}

	for attempt := 1; attempt <= inviteCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return core.Pot{}, err
		}
		pot, err := s.store.CreatePot(ctx, name, code)
		if err == nil {
			slog.InfoContext(ctx, "Pot created", "pot_id", pot.ID, "attempt", attempt)
			return pot, nil
		}
		if !errors.Is(err, storage.ErrInviteCodeTaken) {
			return core.Pot{}, err
		}
		slog.WarnContext(ctx, "Invite code collision, retrying", "attempt", attempt)
	}
	return core.Pot{}, ErrInviteCodeExhausted
}

// Join resolves an invite code to its pot.
func (s *PotService) Join(ctx context.Context, code string) (core.Pot, error) {
	code = core.NormalizeInviteCode(code)
	if code == "" {
		return core.Pot{}, core.ErrEmptyInviteCode
	}
	return s.store.GetPotByInviteCode(ctx, code)
}

func (s *PotService) Get(ctx context.Context, id string) (core.Pot, error) {
	if strings.TrimSpace(id) == "" {
		return core.Pot{}, core.ErrMissingPot
	}
	return s.store.GetPot(ctx, id)
}

func (s *PotService) List(ctx context.Context) ([]core.Pot, error) {
	return s.store.ListPots(ctx)
}
