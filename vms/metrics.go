// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package vms

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/multierr"
)

// Names
const (
	RequestsCounter = "vms_requests_total"
	DurationSeconds = "vms_request_duration_seconds"
)

// Labels
const (
	OperationLabel = "operation"
	OutcomeLabel   = "outcome"
)

// Label Values
const (
	SuccessOutcome     = "success"
	UnreachableOutcome = "unreachable"
	RejectedOutcome    = "rejected"
	FailureOutcome     = "failure"
)

// Measures holds the metrics updated by the client.
type Measures struct {
	Requests *prometheus.CounterVec
	Duration prometheus.ObserverVec
}

// NewMeasures builds the client metrics through f.
func NewMeasures(f *touchstone.Factory) (*Measures, error) {
	var (
		m         Measures
		err, errs error
	)

	m.Requests, err = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: RequestsCounter,
			Help: "Counter for the number of requests sent to the VMS and their outcomes.",
		},
		OperationLabel, OutcomeLabel,
	)
	multierr.AppendInto(&errs, err)

	m.Duration, err = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    DurationSeconds,
			Help:    "A histogram of latencies for requests sent to the VMS.",
			Buckets: []float64{0.0625, 0.125, .25, .5, 1, 2, 3, 5},
		},
		OperationLabel,
	)
	multierr.AppendInto(&errs, err)

	if errs != nil {
		return nil, errs
	}
	return &m, nil
}
