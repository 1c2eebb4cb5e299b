package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

// UserStore implements interfaces.UserStore using SurrealDB.
type UserStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewUserStore creates a new UserStore.
func NewUserStore(db *surrealdb.DB, logger *common.Logger) *UserStore {
	return &UserStore{db: db, logger: logger}
}

func (s *UserStore) Get(ctx context.Context, userID string) (*models.User, error) {
	return selectRow[models.User](ctx, s.db, "user", recordKey(userID))
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	sql := "SELECT * FROM user WHERE data.email = $email LIMIT 1"
	user, err := queryOneRow[models.User](ctx, s.db, sql, map[string]any{"email": email})
	if err != nil {
		if err == models.ErrNotFound {
			return nil, fmt.Errorf("%w: user with email %s", models.ErrNotFound, email)
		}
		return nil, err
	}
	return user, nil
}

func (s *UserStore) Save(ctx context.Context, user *models.User) error {
	return upsertRow(ctx, s.db, "user", recordKey(user.ID), user)
}

func (s *UserStore) List(ctx context.Context) ([]*models.User, error) {
	return queryRows[models.User](ctx, s.db, "SELECT * FROM user ORDER BY data.email ASC", nil)
}

// Compile-time check
var _ interfaces.UserStore = (*UserStore)(nil)
