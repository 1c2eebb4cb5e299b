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

// FundShareStore implements interfaces.FundShareStore using SurrealDB. The
// record id is (user, date): one quota row per user per calendar day.
type FundShareStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewFundShareStore creates a new FundShareStore.
func NewFundShareStore(db *surrealdb.DB, logger *common.Logger) *FundShareStore {
	return &FundShareStore{db: db, logger: logger}
}

func fundShareKey(userID string, date time.Time) string {
	return recordKey(userID, dateKey(date))
}

func (s *FundShareStore) Upsert(ctx context.Context, share *models.FundShare) error {
	return upsertRow(ctx, s.db, "fund_share", fundShareKey(share.UserID, share.Date), share)
}

func (s *FundShareStore) Get(ctx context.Context, userID string, date time.Time) (*models.FundShare, error) {
	return selectRow[models.FundShare](ctx, s.db, "fund_share", fundShareKey(userID, date))
}

func (s *FundShareStore) Latest(ctx context.Context, userID string) (*models.FundShare, error) {
	sql := `SELECT * FROM fund_share WHERE data.user_id = $user_id
		ORDER BY data.date DESC LIMIT 1`
	share, err := queryOneRow[models.FundShare](ctx, s.db, sql, map[string]any{"user_id": userID})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: no fund shares for user %s", models.ErrNotFound, userID)
		}
		return nil, err
	}
	return share, nil
}

// LatestBefore returns the newest row with date strictly before the given
// date. Share issuance prices at this row's share value.
func (s *FundShareStore) LatestBefore(ctx context.Context, userID string, before time.Time) (*models.FundShare, error) {
	sql := `SELECT * FROM fund_share WHERE data.user_id = $user_id AND data.date < $before
		ORDER BY data.date DESC LIMIT 1`
	share, err := queryOneRow[models.FundShare](ctx, s.db, sql, map[string]any{
		"user_id": userID,
		"before":  before,
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: no fund shares for user %s before %s",
				models.ErrNotFound, userID, before.Format("2006-01-02"))
		}
		return nil, err
	}
	return share, nil
}

func (s *FundShareStore) History(ctx context.Context, userID string, from, to *time.Time, limit int) ([]*models.FundShare, error) {
	sql := "SELECT * FROM fund_share WHERE data.user_id = $user_id"
	vars := map[string]any{"user_id": userID}

	if from != nil {
		sql += " AND data.date >= $from"
		vars["from"] = *from
	}
	if to != nil {
		sql += " AND data.date <= $to"
		vars["to"] = *to
	}

	sql += " ORDER BY data.date ASC"
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}

	return queryRows[models.FundShare](ctx, s.db, sql, vars)
}

func (s *FundShareStore) Recent(ctx context.Context, userID string, n int) ([]*models.FundShare, error) {
	sql := fmt.Sprintf(`SELECT * FROM fund_share WHERE data.user_id = $user_id
		ORDER BY data.date DESC LIMIT %d`, n)
	return queryRows[models.FundShare](ctx, s.db, sql, map[string]any{"user_id": userID})
}

// Compile-time check
var _ interfaces.FundShareStore = (*FundShareStore)(nil)
