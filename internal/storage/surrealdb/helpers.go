package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/lfmartins/carteira/internal/models"
)

// row wraps a model for storage. The models carry their own string `id`
// field, which collides with SurrealDB's record id, so every record keeps
// the model under `data` and derives the record id from the natural key.
type row[T any] struct {
	ID   *surrealmodels.RecordID `json:"id,omitempty"`
	Data T                       `json:"data"`
}

// recordKey sanitizes a natural key for use as a SurrealDB record id part.
func recordKey(parts ...string) string {
	key := strings.Join(parts, "_")
	return strings.NewReplacer(".", "_", "/", "_", "|", "_", ":", "_", " ", "_").Replace(key)
}

// dateKey formats a calendar date for record ids.
func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "no record")
}

func isConflictError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// createRow creates the record, returning models.ErrConflict when the id is
// taken.
func createRow[T any](ctx context.Context, db *surrealdb.DB, table, key string, data T) error {
	sql := "CREATE $rid CONTENT { data: $data }"
	vars := map[string]any{
		"rid":  surrealmodels.NewRecordID(table, key),
		"data": data,
	}
	if _, err := surrealdb.Query[[]row[T]](ctx, db, sql, vars); err != nil {
		if isConflictError(err) {
			return fmt.Errorf("%w: %s record %s exists", models.ErrConflict, table, key)
		}
		return fmt.Errorf("failed to create %s record: %w", table, err)
	}
	return nil
}

// upsertRow writes the record unconditionally.
func upsertRow[T any](ctx context.Context, db *surrealdb.DB, table, key string, data T) error {
	sql := "UPSERT $rid CONTENT { data: $data }"
	vars := map[string]any{
		"rid":  surrealmodels.NewRecordID(table, key),
		"data": data,
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if _, err := surrealdb.Query[[]row[T]](ctx, db, sql, vars); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("failed to upsert %s record after retries: %w", table, lastErr)
}

// selectRow returns the record's model, or models.ErrNotFound.
func selectRow[T any](ctx context.Context, db *surrealdb.DB, table, key string) (*T, error) {
	record, err := surrealdb.Select[row[T]](ctx, db, surrealmodels.NewRecordID(table, key))
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s record %s", models.ErrNotFound, table, key)
		}
		return nil, fmt.Errorf("failed to select %s record: %w", table, err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s record %s", models.ErrNotFound, table, key)
	}
	return &record.Data, nil
}

// deleteRow removes the record, ignoring a missing one.
func deleteRow[T any](ctx context.Context, db *surrealdb.DB, table, key string) error {
	_, err := surrealdb.Delete[row[T]](ctx, db, surrealmodels.NewRecordID(table, key))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete %s record: %w", table, err)
	}
	return nil
}

// queryRows runs the SQL and unwraps the first statement's records.
func queryRows[T any](ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) ([]*T, error) {
	results, err := surrealdb.Query[[]row[T]](ctx, db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var mapped []*T
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			mapped = append(mapped, &(*results)[0].Result[i].Data)
		}
	}
	return mapped, nil
}

// queryOneRow runs the SQL and returns the first record, or models.ErrNotFound.
func queryOneRow[T any](ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) (*T, error) {
	rows, err := queryRows[T](ctx, db, sql, vars)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, models.ErrNotFound
	}
	return rows[0], nil
}

// deleteWhere runs a DELETE ... RETURN BEFORE and reports how many records
// were removed.
func deleteWhere[T any](ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) (int, error) {
	results, err := surrealdb.Query[[]row[T]](ctx, db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	count := 0
	if results != nil && len(*results) > 0 {
		count = len((*results)[0].Result)
	}
	return count, nil
}
