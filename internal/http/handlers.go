package http

import (
	"net/http"

	"potshare/internal/core"
	applog "potshare/internal/log"
)

func (s *Server) handleCreatePot(w http.ResponseWriter, r *http.Request) {
	var req potRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, "", err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	pot, err := s.svc.Pots.Create(ctx, sanitizeInput(req.Name))
	if err != nil {
		s.fail(w, r, applog.OpCreate, "", err)
		return
	}
	applog.FromContext(ctx).InfoContext(ctx, "Pot created", applog.FieldPotID, pot.ID)
	Created("pot", pot).Write(w)
}

func (s *Server) handleJoinPot(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpJoin, "", err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	pot, err := s.svc.Pots.Join(ctx, req.InviteCode)
	if err != nil {
		s.fail(w, r, applog.OpJoin, "", err)
		return
	}
	OK("pot", pot).Write(w)
}

func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	potID := potIDParam(r)
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	participants, err := s.svc.Participants.List(ctx, potID)
	if err != nil {
		s.fail(w, r, applog.OpList, potID, err)
		return
	}
	OK("participants", participants).Write(w)
}

func (s *Server) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, "", err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	p, err := s.svc.Participants.Add(ctx, req.PotID, sanitizeInput(req.Name))
	if err != nil {
		s.fail(w, r, applog.OpCreate, req.PotID, err)
		return
	}
	Created("participant", p).Write(w)
}

func (s *Server) handleListContributions(w http.ResponseWriter, r *http.Request) {
	potID := potIDParam(r)
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	contributions, err := s.svc.Contributions.List(ctx, potID)
	if err != nil {
		s.fail(w, r, applog.OpList, potID, err)
		return
	}
	OK("contributions", contributions).Write(w)
}

func (s *Server) handleRecordContribution(w http.ResponseWriter, r *http.Request) {
	var req contributionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, "", err)
		return
	}
	occurred, err := parseOccurredAt(req.OccurredAt)
	if err != nil {
		s.fail(w, r, applog.OpCreate, req.PotID, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	c, err := s.svc.Contributions.Record(ctx, core.Contribution{
		PotID:         req.PotID,
		ParticipantID: req.ParticipantID,
		Amount:        req.Amount,
		Note:          sanitizeInput(req.Note),
		OccurredAt:    occurred,
	})
	if err != nil {
		s.fail(w, r, applog.OpCreate, req.PotID, err)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogLedgerWrite(ctx, "contribution", c.PotID, c.ParticipantID, c.Amount.Cents)
	Created("contribution", c).Write(w)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	potID := potIDParam(r)
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	result, err := s.svc.Balances.Balances(ctx, potID)
	if err != nil {
		s.fail(w, r, applog.OpRead, potID, err)
		return
	}
	NewJSONResponse().Body(result).Write(w)
}

// handleEqualSplit previews an equal split without touching the store.
func (s *Server) handleEqualSplit(w http.ResponseWriter, r *http.Request) {
	var req equalSplitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpValidate, "", err)
		return
	}
	splits := core.EqualSplit(req.TotalAmount, trimAll(req.ParticipantIDs))
	if splits == nil {
		splits = []core.Split{}
	}
	OK("splits", splits).Write(w)
}
