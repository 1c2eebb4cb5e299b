package surrealdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

// AssetStore implements interfaces.AssetStore using SurrealDB.
type AssetStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewAssetStore creates a new AssetStore.
func NewAssetStore(db *surrealdb.DB, logger *common.Logger) *AssetStore {
	return &AssetStore{db: db, logger: logger}
}

func (s *AssetStore) Create(ctx context.Context, asset *models.Asset) error {
	// Ticker is globally unique.
	if _, err := s.GetByTicker(ctx, asset.Ticker); err == nil {
		return fmt.Errorf("%w: ticker %s exists", models.ErrConflict, asset.Ticker)
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	return createRow(ctx, s.db, "asset", recordKey(asset.ID), asset)
}

func (s *AssetStore) Get(ctx context.Context, assetID string) (*models.Asset, error) {
	return selectRow[models.Asset](ctx, s.db, "asset", recordKey(assetID))
}

func (s *AssetStore) GetByTicker(ctx context.Context, ticker string) (*models.Asset, error) {
	sql := "SELECT * FROM asset WHERE data.ticker = $ticker LIMIT 1"
	asset, err := queryOneRow[models.Asset](ctx, s.db, sql, map[string]any{"ticker": ticker})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: asset with ticker %s", models.ErrNotFound, ticker)
		}
		return nil, err
	}
	return asset, nil
}

func (s *AssetStore) GetBatch(ctx context.Context, assetIDs []string) (map[string]*models.Asset, error) {
	batch := make(map[string]*models.Asset, len(assetIDs))
	if len(assetIDs) == 0 {
		return batch, nil
	}

	sql := "SELECT * FROM asset WHERE data.id IN $ids"
	assets, err := queryRows[models.Asset](ctx, s.db, sql, map[string]any{"ids": assetIDs})
	if err != nil {
		return nil, err
	}
	for _, asset := range assets {
		batch[asset.ID] = asset
	}
	return batch, nil
}

func (s *AssetStore) List(ctx context.Context) ([]*models.Asset, error) {
	return queryRows[models.Asset](ctx, s.db, "SELECT * FROM asset ORDER BY data.ticker ASC", nil)
}

func (s *AssetStore) Update(ctx context.Context, asset *models.Asset) error {
	if _, err := s.Get(ctx, asset.ID); err != nil {
		return err
	}
	return upsertRow(ctx, s.db, "asset", recordKey(asset.ID), asset)
}

// Compile-time check
var _ interfaces.AssetStore = (*AssetStore)(nil)
