// Copyright 2026 The kvidxkit Authors
// This file is part of kvidxkit.
//
// kvidxkit is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// kvidxkit is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with kvidxkit. If not, see <http://www.gnu.org/licenses/>.

package kv

import "github.com/prometheus/client_golang/prometheus"

// Metrics is an optional set of live gauges backing a Handle's Stats.
// Nothing in this package registers Metrics automatically — a caller that
// wants them wires NewMetrics into a prometheus.Registerer and then polls
// Handle.Stats into Report on whatever cadence it likes (kvidxkit has no
// background scheduler of its own, matching the no-automatic-scheduling
// stance the facade takes on compaction too).
type Metrics struct {
	KeyCount prometheus.Gauge
	DataSize prometheus.Gauge
	FileSize prometheus.Gauge
}

// NewMetrics constructs and registers a Metrics set under namespace
// "kvidxkit", labeled by backend name.
func NewMetrics(reg prometheus.Registerer, backend string) *Metrics {
	labels := prometheus.Labels{"backend": backend}
	m := &Metrics{
		KeyCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "kvidxkit",
			Name:        "key_count",
			Help:        "Number of live keys in the store.",
			ConstLabels: labels,
		}),
		DataSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "kvidxkit",
			Name:        "data_size_bytes",
			Help:        "Total size in bytes of live entry payloads.",
			ConstLabels: labels,
		}),
		FileSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "kvidxkit",
			Name:        "file_size_bytes",
			Help:        "On-disk footprint of the store, where the backend tracks one.",
			ConstLabels: labels,
		}),
	}
	reg.MustRegister(m.KeyCount, m.DataSize, m.FileSize)
	return m
}

// Report updates the gauges from a freshly sampled Stats snapshot.
func (m *Metrics) Report(s Stats) {
	m.KeyCount.Set(float64(s.KeyCount))
	m.DataSize.Set(float64(s.DataSize))
	m.FileSize.Set(float64(s.FileSize))
}
