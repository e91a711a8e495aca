// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bureau-foundation/ipcdemo/lib/ipcerr"
)

// metrics are registered on the Registerer from Config, or nowhere
// when it is nil.
type metrics struct {
	accepted      prometheus.Counter
	lines         prometheus.Counter
	messages      prometheus.Counter
	errors        *prometheus.CounterVec
	abandoned     prometheus.Counter
	active        prometheus.Gauge
	handleSeconds prometheus.Histogram
}

func newMetrics(registerer prometheus.Registerer, registry *Registry) *metrics {
	factory := promauto.With(registerer)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ipcdemo_broker_registry_entries",
		Help: "Client endpoints currently in the connection history.",
	}, func() float64 { return float64(registry.Len()) })

	return &metrics{
		accepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ipcdemo_broker_connections_accepted_total",
			Help: "Connections accepted.",
		}),
		lines: factory.NewCounter(prometheus.CounterOpts{
			Name: "ipcdemo_broker_lines_total",
			Help: "Lines read from connections.",
		}),
		messages: factory.NewCounter(prometheus.CounterOpts{
			Name: "ipcdemo_broker_messages_total",
			Help: "Lines that decoded into messages.",
		}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ipcdemo_broker_errors_total",
			Help: "Error events by class.",
		}, []string{"class"}),
		abandoned: factory.NewCounter(prometheus.CounterOpts{
			Name: "ipcdemo_broker_events_abandoned_total",
			Help: "Event deliveries given up because the subscription closed or the broker stopped first.",
		}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ipcdemo_broker_active_connections",
			Help: "Connections whose handler is running.",
		}),
		handleSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ipcdemo_broker_handle_duration_seconds",
			Help:    "Time from accept to connection close.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 9), // 0.5ms to ~33s
		}),
	}
}

func (m *metrics) recordError(err error) {
	class := ipcerr.ClassOf(err)
	if class == "" {
		class = "unclassified"
	}
	m.errors.WithLabelValues(string(class)).Inc()
}
