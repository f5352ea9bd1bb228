package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupInstrumentedStoreTest(t *testing.T) (*InstrumentedStore, *prometheus.CounterVec, *prometheus.CounterVec) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	durable, err := NewRedisStore(RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { durable.Close() })

	ops := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_store_ops"}, []string{"operation"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_store_errs"}, []string{"operation"})

	return NewInstrumentedStore(durable, ops, errs), ops, errs
}

func TestInstrumentedStore_CountsOperations(t *testing.T) {
	instrumented, ops, errs := setupInstrumentedStoreTest(t)
	ctx := context.Background()

	require.NoError(t, instrumented.Set(ctx, "guild:1:role_mode", "levels"))
	require.NoError(t, instrumented.SetWithTTL(ctx, "verify:tok", "{}", time.Minute))

	_, ok, err := instrumented.Get(ctx, "guild:1:role_mode")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, instrumented.Delete(ctx, "verify:tok"))

	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("set")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("set_ttl")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("delete")))
	assert.Equal(t, 0.0, testutil.ToFloat64(errs.WithLabelValues("get")))

	// A miss counts as an operation, not an error
	_, ok, err = instrumented.Get(ctx, "guild:1:no_such_key")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2.0, testutil.ToFloat64(ops.WithLabelValues("get")))
	assert.Equal(t, 0.0, testutil.ToFloat64(errs.WithLabelValues("get")))
}

func TestInstrumentedStore_CountsErrors(t *testing.T) {
	instrumented, ops, errs := setupInstrumentedStoreTest(t)
	failing := NewInstrumentedStore(&failingStore{Store: instrumented.inner}, ops, errs)
	ctx := context.Background()

	require.Error(t, failing.Set(ctx, "guild:1:role_mode", "levels"))
	require.Error(t, failing.SetWithTTL(ctx, "verify:tok", "{}", time.Minute))

	assert.Equal(t, 1.0, testutil.ToFloat64(errs.WithLabelValues("set")))
	assert.Equal(t, 1.0, testutil.ToFloat64(errs.WithLabelValues("set_ttl")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("set")))
}
