package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyGateway fails the first n calls with err, then delegates.
type flakyGateway struct {
	mu    sync.Mutex
	inner Gateway
	fails int
	err   error
	calls int
}

func (f *flakyGateway) next() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fails {
		return f.err
	}
	return nil
}

func (f *flakyGateway) Get(ctx context.Context, userID, recordType string) ([]byte, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	return f.inner.Get(ctx, userID, recordType)
}

func (f *flakyGateway) Set(ctx context.Context, userID, recordType string, value []byte) error {
	if err := f.next(); err != nil {
		return err
	}
	return f.inner.Set(ctx, userID, recordType, value)
}

func (f *flakyGateway) Keys(ctx context.Context, userID, prefix string) ([]string, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	return f.inner.Keys(ctx, userID, prefix)
}

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestMemory_GetSetKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "u1", "progress")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "u1", "progress", []byte(`{"a":1}`)))
	require.NoError(t, m.Set(ctx, "u1", "flashcard/b", []byte(`{}`)))
	require.NoError(t, m.Set(ctx, "u1", "flashcard/a", []byte(`{}`)))
	require.NoError(t, m.Set(ctx, "u2", "flashcard/z", []byte(`{}`)))

	got, err := m.Get(ctx, "u1", "progress")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got))

	keys, err := m.Keys(ctx, "u1", "flashcard/")
	require.NoError(t, err)
	assert.Equal(t, []string{"flashcard/a", "flashcard/b"}, keys)

	keys, err = m.Keys(ctx, "nobody", "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemory_CopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "u", "k", buf))
	buf[0] = 'x'

	got, err := m.Get(ctx, "u", "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestLoadSave(t *testing.T) {
	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, Save(ctx, m, "u", "doc", doc{Name: "n", Count: 3}))
	got, err := Load[doc](ctx, m, "u", "doc")
	require.NoError(t, err)
	assert.Equal(t, doc{Name: "n", Count: 3}, got)

	_, err = Load[doc](ctx, m, "u", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "u", "bad", []byte("{")))
	_, err = Load[doc](ctx, m, "u", "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	flaky := &flakyGateway{inner: NewMemory(), fails: 2, err: errors.New("connection reset")}
	g := WithRetry(flaky, fastRetry())

	require.NoError(t, g.Set(context.Background(), "u", "k", []byte("v")))
	assert.Equal(t, 3, flaky.calls)
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	boom := errors.New("down")
	flaky := &flakyGateway{inner: NewMemory(), fails: 10, err: boom}
	g := WithRetry(flaky, fastRetry())

	err := g.Set(context.Background(), "u", "k", []byte("v"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, flaky.calls)
}

func TestRetry_NotFoundNotRetried(t *testing.T) {
	flaky := &flakyGateway{inner: NewMemory()}
	g := WithRetry(flaky, fastRetry())

	_, err := g.Get(context.Background(), "u", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, flaky.calls)
}

func TestRetry_ContextCanceledNotRetried(t *testing.T) {
	flaky := &flakyGateway{inner: NewMemory(), fails: 10, err: context.Canceled}
	g := WithRetry(flaky, fastRetry())

	_, err := g.Keys(context.Background(), "u", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, flaky.calls)
}

func TestRetry_StopsWhenContextDone(t *testing.T) {
	flaky := &flakyGateway{inner: NewMemory(), fails: 10, err: errors.New("down")}
	cfg := fastRetry()
	cfg.InitialWait = time.Hour
	cfg.MaxWait = time.Hour
	g := WithRetry(flaky, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := g.Set(ctx, "u", "k", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, flaky.calls)
}

func TestRetry_BackoffCapped(t *testing.T) {
	r := &RetryGateway{config: RetryConfig{InitialWait: 100 * time.Millisecond, MaxWait: 300 * time.Millisecond, Multiplier: 2}}
	for attempt := range 6 {
		wait := r.backoff(attempt)
		assert.LessOrEqual(t, wait, 360*time.Millisecond, "attempt %d", attempt)
		assert.GreaterOrEqual(t, wait, 80*time.Millisecond, "attempt %d", attempt)
	}
}

func TestMetrics_RecordsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	logger, hook := test.NewNullLogger()

	flaky := &flakyGateway{inner: NewMemory(), fails: 1, err: errors.New("down")}
	g := WithMetrics(flaky, metrics, logger)
	ctx := context.Background()

	assert.Error(t, g.Set(ctx, "u", "k", []byte("v")))
	require.NoError(t, g.Set(ctx, "u", "k", []byte("v")))
	_, err := g.Get(ctx, "u", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues("set")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.failures.WithLabelValues("get")))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.duration))

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "set", hook.LastEntry().Data["op"])
}
