package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/prepdeck/internal/gateway"
)

// RecordRepo implements gateway.Gateway over the records table.
type RecordRepo struct {
	db      *sql.DB
	dialect string
}

var _ gateway.Gateway = (*RecordRepo)(nil)

func (r *RecordRepo) Get(ctx context.Context, userID, recordType string) ([]byte, error) {
	b := entsql.Dialect(r.dialect)
	query, args := b.Select("value").
		From(b.Table(RecordsTable.Name)).
		Where(entsql.And(
			entsql.EQ("user_id", userID),
			entsql.EQ("record_type", recordType),
		)).
		Query()

	var value []byte
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gateway.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query record %s/%s: %w", userID, recordType, err)
	}
	return value, nil
}

func (r *RecordRepo) Set(ctx context.Context, userID, recordType string, value []byte) error {
	query, args := entsql.Dialect(r.dialect).
		Insert(RecordsTable.Name).
		Columns("user_id", "record_type", "value", "updated_at").
		Values(userID, recordType, value, time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns("user_id", "record_type"),
			entsql.ResolveWithNewValues(),
		).
		Query()

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert record %s/%s: %w", userID, recordType, err)
	}
	return nil
}

func (r *RecordRepo) Keys(ctx context.Context, userID, prefix string) ([]string, error) {
	b := entsql.Dialect(r.dialect)
	where := entsql.EQ("user_id", userID)
	if prefix != "" {
		where = entsql.And(where, entsql.HasPrefix("record_type", prefix))
	}
	query, args := b.Select("record_type").
		From(b.Table(RecordsTable.Name)).
		Where(where).
		OrderBy("record_type").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records for %s: %w", userID, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan record key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
