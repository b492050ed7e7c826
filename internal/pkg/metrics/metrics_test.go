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
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderObserveDistribution(t *testing.T) {
	rec := NewRecorder(prometheus.NewRegistry())

	rec.ObserveDistribution(nil, 100*time.Millisecond)
	rec.ObserveDistribution(nil, 200*time.Millisecond)
	rec.ObserveDistribution(errors.New("boom"), time.Second)

	if got := testutil.ToFloat64(rec.distributions.WithLabelValues(ResultSuccess)); got != 2 {
		t.Fatalf("expected 2 successful distributions, got %f", got)
	}
	if got := testutil.ToFloat64(rec.distributions.WithLabelValues(ResultError)); got != 1 {
		t.Fatalf("expected 1 failed distribution, got %f", got)
	}
	if count := testutil.CollectAndCount(rec.duration); count != 1 {
		t.Fatalf("expected one histogram series, got %d", count)
	}
}

func TestRecorderEvents(t *testing.T) {
	rec := NewRecorder(prometheus.NewRegistry())

	rec.ObserveEvent("SecretChanged")
	rec.ObserveEvent("SecretChanged")
	rec.ObserveEvent("ClusterBecameReady")
	rec.ObserveDroppedEvent()
	rec.SetSyncedClusters(3)

	if got := testutil.ToFloat64(rec.events.WithLabelValues("SecretChanged")); got != 2 {
		t.Fatalf("expected 2 SecretChanged events, got %f", got)
	}
	if got := testutil.ToFloat64(rec.dropped); got != 1 {
		t.Fatalf("expected 1 dropped event, got %f", got)
	}
	if got := testutil.ToFloat64(rec.syncedCluster); got != 3 {
		t.Fatalf("expected synced clusters gauge 3, got %f", got)
	}
}

func TestNilRecorder(t *testing.T) {
	var rec *Recorder

	rec.ObserveDistribution(nil, time.Second)
	rec.ObserveEvent("SecretChanged")
	rec.ObserveDroppedEvent()
	rec.SetSyncedClusters(1)
}

func TestRecorderRegistersWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewRecorder(reg)
	rec.ObserveEvent("ClusterBecameNotReady")

	count, err := testutil.GatherAndCount(reg, "outrider_events_total")
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 outrider_events_total series, got %d", count)
	}
}
