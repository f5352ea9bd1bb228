package store

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InstrumentedStore counts operations and errors on the store it
// wraps. It sits outermost in the store stack so the counters see
// every call, cache hits included.
type InstrumentedStore struct {
	inner Store
	ops   *prometheus.CounterVec
	errs  *prometheus.CounterVec
}

// NewInstrumentedStore wraps inner, incrementing ops per call and errs
// on the error branch, both labelled by operation.
func NewInstrumentedStore(inner Store, ops, errs *prometheus.CounterVec) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, ops: ops, errs: errs}
}

func (s *InstrumentedStore) count(operation string, err error) {
	s.ops.WithLabelValues(operation).Inc()
	if err != nil {
		s.errs.WithLabelValues(operation).Inc()
	}
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, ok, err := s.inner.Get(ctx, key)
	s.count("get", err)
	return value, ok, err
}

func (s *InstrumentedStore) Set(ctx context.Context, key, value string) error {
	err := s.inner.Set(ctx, key, value)
	s.count("set", err)
	return err
}

func (s *InstrumentedStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	err := s.inner.SetWithTTL(ctx, key, value, ttl)
	s.count("set_ttl", err)
	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, keys ...string) error {
	err := s.inner.Delete(ctx, keys...)
	s.count("delete", err)
	return err
}

func (s *InstrumentedStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := s.inner.Keys(ctx, pattern)
	s.count("keys", err)
	return keys, err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	err := s.inner.Ping(ctx)
	s.count("ping", err)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
