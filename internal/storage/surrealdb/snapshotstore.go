package surrealdb

import (
	"context"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

// SnapshotStore implements interfaces.SnapshotStore using SurrealDB. The
// record id is (user, date, account); the consolidated row uses a fixed
// marker in place of the empty account id.
type SnapshotStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(db *surrealdb.DB, logger *common.Logger) *SnapshotStore {
	return &SnapshotStore{db: db, logger: logger}
}

func snapshotKey(userID string, date time.Time, accountID string) string {
	if accountID == "" {
		accountID = "consolidated"
	}
	return recordKey(userID, dateKey(date), accountID)
}

func (s *SnapshotStore) Upsert(ctx context.Context, snapshot *models.PortfolioSnapshot) error {
	key := snapshotKey(snapshot.UserID, snapshot.Date, snapshot.AccountID)
	return upsertRow(ctx, s.db, "snapshot", key, snapshot)
}

func (s *SnapshotStore) Get(ctx context.Context, userID string, date time.Time, accountID string) (*models.PortfolioSnapshot, error) {
	return selectRow[models.PortfolioSnapshot](ctx, s.db, "snapshot", snapshotKey(userID, date, accountID))
}

func (s *SnapshotStore) History(ctx context.Context, userID string, from, to *time.Time) ([]*models.PortfolioSnapshot, error) {
	sql := "SELECT * FROM snapshot WHERE data.user_id = $user_id"
	vars := map[string]any{"user_id": userID}

	if from != nil {
		sql += " AND data.date >= $from"
		vars["from"] = *from
	}
	if to != nil {
		sql += " AND data.date <= $to"
		vars["to"] = *to
	}

	sql += " ORDER BY data.date ASC, data.account_id ASC"
	return queryRows[models.PortfolioSnapshot](ctx, s.db, sql, vars)
}

// Compile-time check
var _ interfaces.SnapshotStore = (*SnapshotStore)(nil)
