package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// eventRepo implements EventRepo over the activity_events table.
type eventRepo struct {
	db      *sql.DB
	dialect string
	seq     *sequenceCounter
}

func (r *eventRepo) AppendActivity(ctx context.Context, entry ActivityEntry) (int64, error) {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	payload := []byte(entry.Payload)
	if payload == nil {
		payload = []byte("{}")
	}

	query, args := entsql.Dialect(r.dialect).
		Insert(ActivityEventsTable.Name).
		Columns("sequence", "timestamp", "user_id", "kind", "skill", "points", "payload").
		Values(seqNum, ts.UTC(), entry.UserID, entry.Kind, entry.Skill, entry.Points, payload).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("save activity event: %w", err)
	}
	return seqNum, nil
}

func (r *eventRepo) QueryActivities(ctx context.Context, userID string, opts QueryOpts) ([]ActivityEntry, error) {
	b := entsql.Dialect(r.dialect)
	t := b.Table(ActivityEventsTable.Name)

	preds := []*entsql.Predicate{entsql.EQ(t.C("user_id"), userID)}
	if opts.After > 0 {
		preds = append(preds, entsql.GT(t.C("sequence"), opts.After))
	}
	if opts.Before > 0 {
		preds = append(preds, entsql.LT(t.C("sequence"), opts.Before))
	}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE(t.C("timestamp"), opts.From.UTC()))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE(t.C("timestamp"), opts.To.UTC()))
	}

	sel := b.Select(
		t.C("sequence"), t.C("timestamp"), t.C("user_id"),
		t.C("kind"), t.C("skill"), t.C("points"), t.C("payload"),
	).
		From(t).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc(t.C("sequence")))
	if opts.Limit > 0 {
		sel = sel.Limit(opts.Limit)
	}
	query, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity events: %w", err)
	}
	defer rows.Close()

	var out []ActivityEntry
	for rows.Next() {
		var (
			e       ActivityEntry
			payload []byte
		)
		if err := rows.Scan(&e.Sequence, &e.Timestamp, &e.UserID, &e.Kind, &e.Skill, &e.Points, &payload); err != nil {
			return nil, fmt.Errorf("scan activity event: %w", err)
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *eventRepo) CountActivities(ctx context.Context, userID string) (int, error) {
	b := entsql.Dialect(r.dialect)
	query, args := b.Select(entsql.Count("*")).
		From(b.Table(ActivityEventsTable.Name)).
		Where(entsql.EQ("user_id", userID)).
		Query()

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count activity events: %w", err)
	}
	return n, nil
}
