package surrealdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

// AccountStore implements interfaces.AccountStore using SurrealDB.
type AccountStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(db *surrealdb.DB, logger *common.Logger) *AccountStore {
	return &AccountStore{db: db, logger: logger}
}

func (s *AccountStore) Create(ctx context.Context, account *models.Account) error {
	// (UserID, Name) is unique among active accounts.
	if _, err := s.GetByName(ctx, account.UserID, account.Name); err == nil {
		return fmt.Errorf("%w: account %q exists for user", models.ErrConflict, account.Name)
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	return createRow(ctx, s.db, "account", recordKey(account.ID), account)
}

func (s *AccountStore) Get(ctx context.Context, accountID string) (*models.Account, error) {
	return selectRow[models.Account](ctx, s.db, "account", recordKey(accountID))
}

func (s *AccountStore) GetByName(ctx context.Context, userID, name string) (*models.Account, error) {
	sql := `SELECT * FROM account
		WHERE data.user_id = $user_id AND data.name = $name AND data.is_active = true
		LIMIT 1`
	account, err := queryOneRow[models.Account](ctx, s.db, sql, map[string]any{
		"user_id": userID,
		"name":    name,
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: account %q for user %s", models.ErrNotFound, name, userID)
		}
		return nil, err
	}
	return account, nil
}

func (s *AccountStore) ListByUser(ctx context.Context, userID string, includeInactive bool) ([]*models.Account, error) {
	sql := "SELECT * FROM account WHERE data.user_id = $user_id"
	if !includeInactive {
		sql += " AND data.is_active = true"
	}
	sql += " ORDER BY data.name ASC"
	return queryRows[models.Account](ctx, s.db, sql, map[string]any{"user_id": userID})
}

func (s *AccountStore) Update(ctx context.Context, account *models.Account) error {
	if _, err := s.Get(ctx, account.ID); err != nil {
		return err
	}
	return upsertRow(ctx, s.db, "account", recordKey(account.ID), account)
}

func (s *AccountStore) SoftDelete(ctx context.Context, accountID string) error {
	account, err := s.Get(ctx, accountID)
	if err != nil {
		return err
	}
	account.IsActive = false
	account.UpdatedAt = time.Now().UTC()
	return upsertRow(ctx, s.db, "account", recordKey(accountID), account)
}

// accountIDs returns the ids of every account owned by the user, active or
// not. Shared by the position and cash flow stores for user-scoped queries.
func (s *AccountStore) accountIDs(ctx context.Context, userID string) ([]string, error) {
	accounts, err := s.ListByUser(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(accounts))
	for _, account := range accounts {
		ids = append(ids, account.ID)
	}
	return ids, nil
}

// Compile-time check
var _ interfaces.AccountStore = (*AccountStore)(nil)
