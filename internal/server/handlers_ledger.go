package server

import (
	"net/http"
	"strings"

	"github.com/lfmartins/carteira/internal/models"
)

// handleTransactions handles /api/transactions (GET list, POST create).
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			WriteError(w, http.StatusBadRequest, "account_id query parameter is required")
			return
		}
		if _, err := s.ownedAccount(r.Context(), accountID); err != nil {
			WriteServiceError(w, err)
			return
		}
		from, err := queryDate(r, "from")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD")
			return
		}
		to, err := queryDate(r, "to")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD")
			return
		}
		filter := models.TransactionFilter{
			AccountID: accountID,
			AssetID:   r.URL.Query().Get("asset_id"),
			Type:      models.TransactionType(r.URL.Query().Get("type")),
			From:      from,
			To:        to,
			Limit:     queryInt(r, "limit", 0),
			Offset:    queryInt(r, "offset", 0),
		}
		txns, err := s.app.LedgerService.ListTransactions(r.Context(), filter)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, txns)

	case http.MethodPost:
		var txn models.Transaction
		if !DecodeJSON(w, r, &txn) {
			return
		}
		if _, err := s.ownedAccount(r.Context(), txn.AccountID); err != nil {
			WriteServiceError(w, err)
			return
		}
		created, err := s.app.LedgerService.CreateTransaction(r.Context(), &txn)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, created)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// routeTransactions dispatches /api/transactions/{id} (PATCH, DELETE).
func (s *Server) routeTransactions(w http.ResponseWriter, r *http.Request) {
	txnID := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	if txnID == "" || strings.Contains(txnID, "/") {
		WriteError(w, http.StatusNotFound, "Unknown transaction resource")
		return
	}

	ctx := r.Context()
	txn, err := s.app.Storage.Transactions().Get(ctx, txnID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if _, err := s.ownedAccount(ctx, txn.AccountID); err != nil {
		WriteServiceError(w, err)
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var update models.TransactionUpdate
		if !DecodeJSON(w, r, &update) {
			return
		}
		updated, err := s.app.LedgerService.UpdateTransaction(ctx, txnID, update)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := s.app.LedgerService.DeleteTransaction(ctx, txnID); err != nil {
			WriteServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		RequireMethod(w, r, http.MethodPatch, http.MethodDelete)
	}
}

// handleCashFlows handles /api/cashflows (GET list, POST create).
func (s *Server) handleCashFlows(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			WriteError(w, http.StatusBadRequest, "account_id query parameter is required")
			return
		}
		if _, err := s.ownedAccount(r.Context(), accountID); err != nil {
			WriteServiceError(w, err)
			return
		}
		from, err := queryDate(r, "from")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD")
			return
		}
		to, err := queryDate(r, "to")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD")
			return
		}
		filter := models.CashFlowFilter{
			AccountID: accountID,
			Type:      models.CashFlowType(r.URL.Query().Get("type")),
			From:      from,
			To:        to,
			Limit:     queryInt(r, "limit", 0),
			Offset:    queryInt(r, "offset", 0),
		}
		flows, err := s.app.LedgerService.ListCashFlows(r.Context(), filter)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, flows)

	case http.MethodPost:
		var flow models.CashFlow
		if !DecodeJSON(w, r, &flow) {
			return
		}
		if _, err := s.ownedAccount(r.Context(), flow.AccountID); err != nil {
			WriteServiceError(w, err)
			return
		}
		created, err := s.app.LedgerService.CreateCashFlow(r.Context(), &flow)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, created)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// routeCashFlows dispatches /api/cashflows/{id} (PUT, DELETE).
func (s *Server) routeCashFlows(w http.ResponseWriter, r *http.Request) {
	flowID := strings.TrimPrefix(r.URL.Path, "/api/cashflows/")
	if flowID == "" || strings.Contains(flowID, "/") {
		WriteError(w, http.StatusNotFound, "Unknown cash flow resource")
		return
	}

	ctx := r.Context()
	existing, err := s.app.Storage.CashFlows().Get(ctx, flowID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if _, err := s.ownedAccount(ctx, existing.AccountID); err != nil {
		WriteServiceError(w, err)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var flow models.CashFlow
		if !DecodeJSON(w, r, &flow) {
			return
		}
		updated, err := s.app.LedgerService.UpdateCashFlow(ctx, flowID, &flow)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := s.app.LedgerService.DeleteCashFlow(ctx, flowID); err != nil {
			WriteServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		RequireMethod(w, r, http.MethodPut, http.MethodDelete)
	}
}
