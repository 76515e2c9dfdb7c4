package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/calendar"
	"finledger/internal/core"
	"finledger/internal/ledger"
	"finledger/internal/log"
	"finledger/internal/query"
	"finledger/internal/remote"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if _, err := s.store.List(ctx, string(s.fallback)); err != nil {
		checks["store"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// handleCategories lists the predefined category tags per transaction type.
// The taxonomy is static, so no identity is needed.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	typ := core.TransactionType(r.URL.Query().Get("type"))
	if !typ.Valid() {
		writeJSONError(w, http.StatusBadRequest, "type must be income or expense")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":       typ,
		"categories": core.Tags(typ),
	})
}

// ledgerResponse is the raw mirror state: the full snapshot plus sync state.
type ledgerResponse struct {
	Transactions []core.Transaction `json:"transactions"`
	Loading      bool               `json:"loading"`
	Revision     uint64             `json:"revision"`
	Error        string             `json:"error,omitempty"`
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request, session *ledger.Session) {
	resp := ledgerResponse{
		Transactions: session.Transactions(),
		Loading:      session.Loading(),
		Revision:     session.Revision(),
	}
	if err := session.Err(); err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, session *ledger.Session) {
	writeJSON(w, http.StatusOK, ledger.Summarize(session.Transactions()))
}

// handleAnalytics serves the derived chart series: expense totals per
// category and the income/expense trend over the trailing months.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request, session *ledger.Session) {
	months, err := parseMonths(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	txns := session.Transactions()
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": ledger.CategoryTotals(txns),
		"monthly":    ledger.MonthlySeries(txns, time.Now().UTC(), months),
	})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, session *ledger.Session) {
	params, err := parseQueryParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	owner, _ := session.Owner()
	key := viewCacheKey(owner, session.Revision(), r.URL.RawQuery)
	if view, ok := s.queryCache.Get(key); ok {
		writeJSON(w, http.StatusOK, view)
		return
	}

	view := query.Run(session.Transactions(), params)
	s.queryCache.Set(key, view)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request, session *ledger.Session) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	txn, err := session.Add(r.Context(), req.draft())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("Transaction added",
		log.FieldTxnID, txn.ID,
		log.FieldOwner, txn.Owner,
		log.FieldTxnType, string(txn.Type))
	writeJSON(w, http.StatusCreated, txn)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, session *ledger.Session) {
	id := r.PathValue("id")

	var req transactionPatch
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if err := session.Update(r.Context(), id, req.patch()); err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("Transaction updated", log.FieldTxnID, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, session *ledger.Session) {
	id := r.PathValue("id")

	if err := session.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("Transaction deleted", log.FieldTxnID, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request, session *ledger.Session) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	owner, _ := session.Owner()
	key := viewCacheKey(owner, session.Revision(), r.URL.RawQuery)
	if dayMap, ok := s.calendarCache.Get(key); ok {
		writeJSON(w, http.StatusOK, calendarResponse(year, month, dayMap))
		return
	}

	dayMap := calendar.DayMap(session.Transactions(), year, month)
	s.calendarCache.Set(key, dayMap)
	writeJSON(w, http.StatusOK, calendarResponse(year, month, dayMap))
}

func calendarResponse(year int, month time.Month, dayMap map[string]calendar.DayFlags) map[string]any {
	return map[string]any{
		"grid": calendar.NewGrid(year, month),
		"days": dayMap,
	}
}

// transactionRequest is the wire form of a draft. Amount accepts a JSON
// number or string; category carries the predefined tag, with customCategory
// holding the free text when the tag is "Other".
type transactionRequest struct {
	Title          string          `json:"title"`
	Amount         decimal.Decimal `json:"amount"`
	Type           string          `json:"type"`
	Category       string          `json:"category"`
	CustomCategory string          `json:"customCategory"`
	Date           core.Date       `json:"date"`
}

func (req transactionRequest) draft() core.Draft {
	return core.Draft{
		Title:    req.Title,
		Amount:   req.Amount,
		Type:     core.TransactionType(req.Type),
		Category: toCategory(req.Category, req.CustomCategory),
		Date:     req.Date,
	}
}

// transactionPatch is the wire form of a partial update; absent fields stay
// untouched.
type transactionPatch struct {
	Title          *string          `json:"title"`
	Amount         *decimal.Decimal `json:"amount"`
	Type           *string          `json:"type"`
	Category       *string          `json:"category"`
	CustomCategory *string          `json:"customCategory"`
	Date           *core.Date       `json:"date"`
}

func (req transactionPatch) patch() core.Patch {
	p := core.Patch{
		Title:  req.Title,
		Amount: req.Amount,
		Date:   req.Date,
	}
	if req.Type != nil {
		typ := core.TransactionType(*req.Type)
		p.Type = &typ
	}
	if req.Category != nil {
		custom := ""
		if req.CustomCategory != nil {
			custom = *req.CustomCategory
		}
		cat := toCategory(*req.Category, custom)
		p.Category = &cat
	}
	return p
}

func toCategory(tag, custom string) core.Category {
	if tag == core.OtherTag {
		return core.Custom(custom)
	}
	return core.Predefined(tag)
}

// writeError maps domain errors onto HTTP statuses: validation failures 422,
// missing identity 401, unknown ids 404 and remote faults 502.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case core.IsValidation(err):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrNoIdentity):
		writeJSONError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, remote.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("Remote operation failed", "error", err)
		writeJSONError(w, http.StatusBadGateway, "remote store failure")
	}
}
