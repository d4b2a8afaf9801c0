// Package metrics implements a Blobstore wrapper
// that records prometheus metrics for each operation.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store"
)

var _ scm.Blobstore = &Store{}

// Metrics holds the collectors a Store updates.
// One Metrics may be shared by many Stores.
type Metrics struct {
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
	bytes   *prometheus.CounterVec
}

// NewMetrics creates the collectors under the given namespace.
// They must be registered (see Register) before they are visible to a scraper.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "blobstore",
			Name:      "operations_total",
			Help:      "Blobstore operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "blobstore",
			Name:      "operation_seconds",
			Help:      "Blobstore operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "blobstore",
			Name:      "bytes_total",
			Help:      "Bytes moved by get and put.",
		}, []string{"op"}),
	}
}

// Register registers the collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.ops, m.latency, m.bytes} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Store is an instrumented wrapper around a Blobstore.
type Store struct {
	s scm.Blobstore
	m *Metrics
}

// New produces a new Store.
func New(s scm.Blobstore, m *Metrics) *Store {
	return &Store{s: s, m: m}
}

func (s *Store) observe(op string, start time.Time, outcome string) {
	s.m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	s.m.ops.WithLabelValues(op, outcome).Inc()
}

func outcome(err error, ok bool) string {
	switch {
	case err != nil:
		return "error"
	case ok:
		return "hit"
	default:
		return "miss"
	}
}

// Get implements scm.Blobstore.Get.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	b, ok, err := s.s.Get(ctx, key)
	s.observe("get", start, outcome(err, ok))
	s.m.bytes.WithLabelValues("get").Add(float64(len(b)))
	return b, ok, err
}

// Put implements scm.Blobstore.Put.
func (s *Store) Put(ctx context.Context, key string, b []byte) error {
	start := time.Now()
	err := s.s.Put(ctx, key, b)
	s.observe("put", start, outcome(err, true))
	if err == nil {
		s.m.bytes.WithLabelValues("put").Add(float64(len(b)))
	}
	return err
}

// IsPresent implements scm.Blobstore.IsPresent.
func (s *Store) IsPresent(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := s.s.IsPresent(ctx, key)
	s.observe("is_present", start, outcome(err, ok))
	return ok, err
}

// AssertPresent implements scm.Blobstore.AssertPresent.
func (s *Store) AssertPresent(ctx context.Context, key string) error {
	start := time.Now()
	err := s.s.AssertPresent(ctx, key)
	s.observe("assert_present", start, outcome(err, true))
	return err
}

// Default is registered with the default prometheus registry
// and used by stores created from configuration.
var Default = NewMetrics("scm")

func init() {
	prometheus.MustRegister(Default.ops, Default.latency, Default.bytes)

	store.Register("metrics", func(ctx context.Context, conf map[string]interface{}) (scm.Blobstore, error) {
		nested, err := store.Nested(ctx, conf, "nested")
		if err != nil {
			return nil, err
		}
		return New(nested, Default), nil
	})
}
