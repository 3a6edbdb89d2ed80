// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for decoding and normalizing request data:
// JSON bodies, the pot_id query parameter, dates and free-text input.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"potshare/internal/core"
	"potshare/internal/services"
)

const maxBodyBytes = 1 << 20

var (
	errInvalidBody = errors.New("invalid request body")
	errInvalidDate = errors.New("occurred_at must be RFC 3339 or YYYY-MM-DD")
)

type potRequest struct {
	Name string `json:"name"`
}

type joinRequest struct {
	InviteCode string `json:"invite_code"`
}

type participantRequest struct {
	PotID string `json:"pot_id"`
	Name  string `json:"name"`
}

type contributionRequest struct {
	PotID         string     `json:"pot_id"`
	ParticipantID string     `json:"participant_id"`
	Amount        core.Money `json:"amount"`
	Note          string     `json:"note"`
	OccurredAt    string     `json:"occurred_at"`
}

type expenseRequest struct {
	PotID          string         `json:"pot_id"`
	Description    string         `json:"description"`
	TotalAmount    core.Money     `json:"total_amount"`
	PaidBy         string         `json:"paid_by_participant_id"`
	OccurredAt     string         `json:"occurred_at"`
	SplitMode      core.SplitMode `json:"split_mode"`
	ParticipantIDs []string       `json:"participant_ids"`
	Splits         []core.Split   `json:"splits"`
}

type equalSplitRequest struct {
	TotalAmount    core.Money `json:"total_amount"`
	ParticipantIDs []string   `json:"participant_ids"`
}

// decodeJSON reads a bounded JSON body into dst. Unknown fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errInvalidBody)
		}
		if errors.Is(err, core.ErrInvalidAmount) {
			return err
		}
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

// potIDParam returns the pot_id query parameter, trimmed.
func potIDParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("pot_id"))
}

// parseOccurredAt accepts an RFC 3339 timestamp or a calendar date. The
// empty string yields the zero time so the store stamps the write time.
func parseOccurredAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, errInvalidDate
}

// sanitizeInput trims whitespace and removes control characters except tab,
// newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

func trimAll(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strings.TrimSpace(id))
	}
	return out
}

// toInput converts the wire form of an expense into a service input. A
// pot_id query parameter fills in a missing body field.
func (req expenseRequest) toInput(r *http.Request) (services.ExpenseInput, error) {
	occurred, err := parseOccurredAt(req.OccurredAt)
	if err != nil {
		return services.ExpenseInput{}, err
	}
	potID := strings.TrimSpace(req.PotID)
	if potID == "" {
		potID = potIDParam(r)
	}
	splits := make([]core.Split, 0, len(req.Splits))
	for _, s := range req.Splits {
		splits = append(splits, core.Split{ParticipantID: strings.TrimSpace(s.ParticipantID), Amount: s.Amount})
	}
	return services.ExpenseInput{
		PotID:          potID,
		Description:    sanitizeInput(req.Description),
		Total:          req.TotalAmount,
		PayerID:        strings.TrimSpace(req.PaidBy),
		OccurredAt:     occurred,
		Mode:           req.SplitMode,
		ParticipantIDs: trimAll(req.ParticipantIDs),
		Splits:         splits,
	}, nil
}
