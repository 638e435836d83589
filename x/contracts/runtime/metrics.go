// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import "github.com/prometheus/client_golang/prometheus"

const namespace = "tanour"

type metrics struct {
	calls          *prometheus.CounterVec
	consumedPoints *prometheus.CounterVec
	callDuration   *prometheus.HistogramVec
	moduleHits     prometheus.Counter
	moduleMisses   prometheus.Counter
	compileErrors  prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_calls",
			Help:      "number of contract calls by kind and outcome",
		}, []string{"kind", "status"}),
		consumedPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumed_points",
			Help:      "metering points consumed by contract calls",
		}, []string{"kind"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "contract_call_seconds",
			Help:      "wall time of contract calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		moduleHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_cache_hits",
			Help:      "compiled module cache hits",
		}),
		moduleMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_cache_misses",
			Help:      "compiled module cache misses",
		}),
		compileErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compile_errors",
			Help:      "rejected contract codes",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.calls,
		m.consumedPoints,
		m.callDuration,
		m.moduleHits,
		m.moduleMisses,
		m.compileErrors,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
