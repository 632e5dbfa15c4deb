package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// RecordsColumns holds the per-user gateway records.
	RecordsColumns = []*schema.Column{
		{Name: "user_id", Type: field.TypeString, Size: 191},
		{Name: "record_type", Type: field.TypeString, Size: 191},
		{Name: "value", Type: field.TypeBytes},
		{Name: "updated_at", Type: field.TypeTime},
	}
	RecordsTable = &schema.Table{
		Name:       "records",
		Columns:    RecordsColumns,
		PrimaryKey: []*schema.Column{RecordsColumns[0], RecordsColumns[1]},
	}

	// ActivityEventsColumns holds the append-only activity log.
	ActivityEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "user_id", Type: field.TypeString, Size: 191},
		{Name: "kind", Type: field.TypeString},
		{Name: "skill", Type: field.TypeString, Default: ""},
		{Name: "points", Type: field.TypeInt, Default: 0},
		{Name: "payload", Type: field.TypeBytes},
	}
	ActivityEventsTable = &schema.Table{
		Name:       "activity_events",
		Columns:    ActivityEventsColumns,
		PrimaryKey: []*schema.Column{ActivityEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "activityevent_user_id_sequence", Unique: false, Columns: []*schema.Column{ActivityEventsColumns[3], ActivityEventsColumns[1]}},
			{Name: "activityevent_timestamp", Unique: false, Columns: []*schema.Column{ActivityEventsColumns[2]}},
		},
	}

	// GlobalSequenceColumns holds the single-row sequence counter.
	GlobalSequenceColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt},
		{Name: "next_val", Type: field.TypeInt64, Default: 1},
	}
	GlobalSequenceTable = &schema.Table{
		Name:       "global_sequence",
		Columns:    GlobalSequenceColumns,
		PrimaryKey: []*schema.Column{GlobalSequenceColumns[0]},
	}

	tables = []*schema.Table{
		RecordsTable,
		ActivityEventsTable,
		GlobalSequenceTable,
	}
)
