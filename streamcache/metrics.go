// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package streamcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/multierr"
)

// Names
const (
	LookupsCounter   = "stream_cache_lookups_total"
	FailuresCounter  = "stream_cache_resolve_failures_total"
	FallbacksCounter = "stream_cache_fallbacks_total"
	EvictionsCounter = "stream_cache_evictions_total"
	SizeGauge        = "stream_cache_entries"
)

// Labels
const (
	ResultLabel = "result"
	TypeLabel   = "type"
)

// Label Values
const (
	HitResult  = "hit"
	MissResult = "miss"
)

// Measures holds the metrics updated by the cache.
type Measures struct {
	Lookups   *prometheus.CounterVec
	Failures  *prometheus.CounterVec
	Fallbacks *prometheus.CounterVec
	Evictions prometheus.Counter
	Size      prometheus.Gauge
}

// NewMeasures builds the cache metrics through f.
func NewMeasures(f *touchstone.Factory) (*Measures, error) {
	var (
		m         Measures
		err, errs error
	)

	m.Lookups, err = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: LookupsCounter,
			Help: "Counter for stream url lookups by hit or miss.",
		},
		ResultLabel,
	)
	multierr.AppendInto(&errs, err)

	m.Failures, err = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: FailuresCounter,
			Help: "Counter for stream url resolutions that failed, by stream type.",
		},
		TypeLabel,
	)
	multierr.AppendInto(&errs, err)

	m.Fallbacks, err = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: FallbacksCounter,
			Help: "Counter for mock stream urls handed out in place of the requested stream type.",
		},
		TypeLabel,
	)
	multierr.AppendInto(&errs, err)

	m.Evictions, err = f.NewCounter(
		prometheus.CounterOpts{
			Name: EvictionsCounter,
			Help: "Counter for entries removed by the sweep.",
		},
	)
	multierr.AppendInto(&errs, err)

	m.Size, err = f.NewGauge(
		prometheus.GaugeOpts{
			Name: SizeGauge,
			Help: "Number of stream urls currently cached.",
		},
	)
	multierr.AppendInto(&errs, err)

	if errs != nil {
		return nil, errs
	}
	return &m, nil
}
