package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/models"
)

type accountRequest struct {
	Name     string             `json:"name"`
	Type     models.AccountType `json:"type"`
	Currency string             `json:"currency"`
}

// ownedAccount loads an account and verifies it belongs to the caller.
// Other users' accounts read as not found.
func (s *Server) ownedAccount(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.app.Storage.Accounts().Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != common.ResolveUserID(ctx) {
		return nil, fmt.Errorf("%w: account %s", models.ErrNotFound, accountID)
	}
	return account, nil
}

// handleAccounts handles /api/accounts (GET list, POST create).
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		includeInactive := r.URL.Query().Get("include_inactive") == "true"
		accounts, err := s.app.Storage.Accounts().ListByUser(r.Context(), common.ResolveUserID(r.Context()), includeInactive)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, accounts)

	case http.MethodPost:
		var req accountRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			WriteError(w, http.StatusBadRequest, "Account name is required")
			return
		}
		if !models.ValidAccountTypes[req.Type] {
			WriteError(w, http.StatusBadRequest, "Invalid account type")
			return
		}
		currency := strings.ToUpper(strings.TrimSpace(req.Currency))
		if currency == "" {
			currency = s.app.Config.Portfolio.BaseCurrency
		}

		now := time.Now().UTC()
		account := &models.Account{
			ID:        uuid.New().String(),
			UserID:    common.ResolveUserID(r.Context()),
			Name:      req.Name,
			Type:      req.Type,
			Currency:  currency,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.app.Storage.Accounts().Create(r.Context(), account); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, account)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// routeAccounts dispatches /api/accounts/{id} and its sub-resources.
func (s *Server) routeAccounts(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
	accountID, sub, _ := strings.Cut(rest, "/")
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "Account id is required in path")
		return
	}

	switch sub {
	case "":
		s.handleAccountByID(w, r, accountID)
	case "positions":
		s.handleAccountPositions(w, r, accountID)
	case "fixed-income":
		s.handleAccountFixedIncome(w, r, accountID)
	case "funds":
		s.handleAccountFunds(w, r, accountID)
	default:
		WriteError(w, http.StatusNotFound, "Unknown account resource")
	}
}

func (s *Server) handleAccountByID(w http.ResponseWriter, r *http.Request, accountID string) {
	ctx := r.Context()
	account, err := s.ownedAccount(ctx, accountID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		WriteJSON(w, http.StatusOK, account)

	case http.MethodPut:
		var req accountRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		if name := strings.TrimSpace(req.Name); name != "" {
			account.Name = name
		}
		if req.Type != "" {
			if !models.ValidAccountTypes[req.Type] {
				WriteError(w, http.StatusBadRequest, "Invalid account type")
				return
			}
			account.Type = req.Type
		}
		if req.Currency != "" {
			account.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
		}
		account.UpdatedAt = time.Now().UTC()
		if err := s.app.Storage.Accounts().Update(ctx, account); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, account)

	case http.MethodDelete:
		if err := s.app.Storage.Accounts().SoftDelete(ctx, accountID); err != nil {
			WriteServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) handleAccountPositions(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if _, err := s.ownedAccount(r.Context(), accountID); err != nil {
		WriteServiceError(w, err)
		return
	}
	positions, err := s.app.Storage.Positions().ListByAccount(r.Context(), accountID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, positions)
}

func (s *Server) handleAccountFixedIncome(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if _, err := s.ownedAccount(r.Context(), accountID); err != nil {
		WriteServiceError(w, err)
		return
	}
	positions, err := s.app.Storage.FixedIncome().ListByAccount(r.Context(), accountID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, positions)
}

func (s *Server) handleAccountFunds(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if _, err := s.ownedAccount(r.Context(), accountID); err != nil {
		WriteServiceError(w, err)
		return
	}
	positions, err := s.app.Storage.InvestmentFunds().ListByAccount(r.Context(), accountID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, positions)
}
