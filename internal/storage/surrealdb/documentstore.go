package surrealdb

import (
	"context"

	"github.com/surrealdb/surrealdb.go"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

// DocumentStore implements interfaces.DocumentStore using SurrealDB.
type DocumentStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(db *surrealdb.DB, logger *common.Logger) *DocumentStore {
	return &DocumentStore{db: db, logger: logger}
}

func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	return createRow(ctx, s.db, "document", recordKey(doc.ID), doc)
}

func (s *DocumentStore) Get(ctx context.Context, docID string) (*models.Document, error) {
	return selectRow[models.Document](ctx, s.db, "document", recordKey(docID))
}

func (s *DocumentStore) Update(ctx context.Context, doc *models.Document) error {
	if _, err := s.Get(ctx, doc.ID); err != nil {
		return err
	}
	return upsertRow(ctx, s.db, "document", recordKey(doc.ID), doc)
}

func (s *DocumentStore) Delete(ctx context.Context, docID string) error {
	if _, err := s.Get(ctx, docID); err != nil {
		return err
	}
	return deleteRow[models.Document](ctx, s.db, "document", recordKey(docID))
}

func (s *DocumentStore) ListByUser(ctx context.Context, userID string, status models.ParsingStatus) ([]*models.Document, error) {
	sql := "SELECT * FROM document WHERE data.user_id = $user_id"
	vars := map[string]any{"user_id": userID}

	if status != "" {
		sql += " AND data.parsing_status = $status"
		vars["status"] = string(status)
	}

	sql += " ORDER BY data.created_at DESC"
	return queryRows[models.Document](ctx, s.db, sql, vars)
}

// Compile-time check
var _ interfaces.DocumentStore = (*DocumentStore)(nil)
