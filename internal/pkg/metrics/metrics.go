/*
Copyright 2025 The Outrider contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const namespace = "outrider"

const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Recorder emits the Prometheus metrics of the distribution pipeline. All
// methods are safe to call on a nil Recorder.
type Recorder struct {
	distributions *prometheus.CounterVec
	duration      prometheus.Histogram
	syncedCluster prometheus.Gauge
	events        *prometheus.CounterVec
	dropped       prometheus.Counter
}

// NewRecorder creates a Recorder and registers its collectors with reg. When
// reg is nil, the collectors are not registered anywhere.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		distributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distributions_total",
			Help:      "Total number of secret distributions to downstream clusters, partitioned by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "distribution_duration_seconds",
			Help:      "Duration of copying one secret to one downstream cluster.",
			Buckets:   prometheus.DefBuckets,
		}),
		syncedCluster: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "synced_clusters",
			Help:      "Number of ready clusters that received a full fan-out since they became ready.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of synchronization events handled by the coordinator, partitioned by type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total number of secret change events dropped because the initial sync had not completed.",
		}),
	}

	if reg != nil {
		reg.MustRegister(r.distributions, r.duration, r.syncedCluster, r.events, r.dropped)
	}

	return r
}

// NewDefaultRecorder returns a Recorder registered with controller-runtime's
// registry, which is served on the manager's metrics endpoint.
func NewDefaultRecorder() *Recorder {
	return NewRecorder(ctrlmetrics.Registry)
}

func (r *Recorder) ObserveDistribution(err error, duration time.Duration) {
	if r == nil {
		return
	}

	result := ResultSuccess
	if err != nil {
		result = ResultError
	}

	r.distributions.WithLabelValues(result).Inc()
	r.duration.Observe(duration.Seconds())
}

func (r *Recorder) SetSyncedClusters(n int) {
	if r == nil {
		return
	}
	r.syncedCluster.Set(float64(n))
}

func (r *Recorder) ObserveEvent(eventType string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(eventType).Inc()
}

func (r *Recorder) ObserveDroppedEvent() {
	if r == nil {
		return
	}
	r.dropped.Inc()
}
