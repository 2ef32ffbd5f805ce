// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
)

// Names
const (
	FallbacksCounter = "archive_fallbacks_total"
)

// Labels
const (
	OperationLabel = "operation"
)

// Measures holds the metrics updated by the controller.
type Measures struct {
	Fallbacks *prometheus.CounterVec
}

// NewMeasures builds the controller metrics through f.
func NewMeasures(f *touchstone.Factory) (*Measures, error) {
	fallbacks, err := f.NewCounterVec(
		prometheus.CounterOpts{
			Name: FallbacksCounter,
			Help: "Counter for archive calls answered with demo data because the VMS failed.",
		},
		OperationLabel,
	)
	if err != nil {
		return nil, err
	}
	return &Measures{Fallbacks: fallbacks}, nil
}
