package http

import (
	"net/http"

	applog "potshare/internal/log"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	potID := potIDParam(r)
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	expenses, err := s.svc.Expenses.List(ctx, potID)
	if err != nil {
		s.fail(w, r, applog.OpList, potID, err)
		return
	}
	OK("expenses", expenses).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	potID := potIDParam(r)
	ctx, cancel := s.withTimeout(r)
	defer cancel()

	e, err := s.svc.Expenses.Get(ctx, potID, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, applog.OpRead, potID, err)
		return
	}
	OK("expense", e).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, "", err)
		return
	}
	in, err := req.toInput(r)
	if err != nil {
		s.fail(w, r, applog.OpCreate, req.PotID, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	e, err := s.svc.Expenses.Create(ctx, in)
	if err != nil {
		s.fail(w, r, applog.OpCreate, in.PotID, err)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogLedgerWrite(ctx, "expense", e.PotID, e.PayerID, e.Total.Cents)
	Created("expense", e).Write(w)
}

// handleUpdateExpense replaces the expense and its whole split set.
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, "", err)
		return
	}
	in, err := req.toInput(r)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, req.PotID, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	id := r.PathValue("id")
	if err := s.svc.Expenses.Update(ctx, id, in); err != nil {
		s.fail(w, r, applog.OpUpdate, in.PotID, err)
		return
	}
	applog.FromContext(ctx).InfoContext(ctx, "Expense updated",
		applog.FieldPotID, in.PotID,
		applog.FieldExpenseID, id)
	OK("success", true).Write(w)
}
