package gateway

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestMongo connects to PREPDECK_TEST_MONGO_URI and uses a throwaway
// database that is dropped on cleanup.
func newTestMongo(t *testing.T) *Mongo {
	t.Helper()
	uri := os.Getenv("PREPDECK_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("PREPDECK_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := fmt.Sprintf("prepdeck_test_%d", time.Now().UnixNano())
	m, err := DialMongo(ctx, uri, db)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = m.collection.Database().Drop(ctx)
		_ = m.Close(ctx)
	})
	return m
}

func TestDialMongo_BadURI(t *testing.T) {
	_, err := DialMongo(context.Background(), "http://localhost", "prepdeck")
	assert.Error(t, err)
}

func TestMongo_CloseWithoutClient(t *testing.T) {
	assert.NoError(t, (&Mongo{}).Close(context.Background()))
}

func TestMongo_GetSet(t *testing.T) {
	m := newTestMongo(t)
	ctx := context.Background()

	_, err := m.Get(ctx, "u1", "progress")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "u1", "progress", []byte(`{"points":5}`)))
	require.NoError(t, m.Set(ctx, "u1", "progress", []byte(`{"points":9}`)))
	got, err := m.Get(ctx, "u1", "progress")
	require.NoError(t, err)
	assert.Equal(t, `{"points":9}`, string(got))

	n, err := m.collection.CountDocuments(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "upsert replaces the document")
}

func TestMongo_Keys(t *testing.T) {
	m := newTestMongo(t)
	ctx := context.Background()

	for _, rt := range []string{"progress", "flashcard/b", "flashcard/a", "flashcard.x", "flashcard/(y)"} {
		require.NoError(t, m.Set(ctx, "alice", rt, []byte("{}")))
	}
	require.NoError(t, m.Set(ctx, "bob", "flashcard/z", []byte("{}")))

	tests := []struct {
		prefix string
		want   []string
	}{
		{"flashcard/", []string{"flashcard/(y)", "flashcard/a", "flashcard/b"}},
		{"flashcard.", []string{"flashcard.x"}},
		{"flashcard/(", []string{"flashcard/(y)"}},
		{"", []string{"flashcard.x", "flashcard/(y)", "flashcard/a", "flashcard/b", "progress"}},
		{"missing", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got, err := m.Keys(ctx, "alice", tt.prefix)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
