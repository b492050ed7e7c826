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

package events

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/tools/record"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	ReasonDistributed        = "Distributed"
	ReasonDistributionFailed = "DistributionFailed"
)

// Recorder emits Kubernetes events on source secrets. A nil Recorder, or one
// without an underlying EventRecorder, silently drops events.
type Recorder struct {
	recorder record.EventRecorder
}

func NewRecorder(rec record.EventRecorder) *Recorder {
	return &Recorder{recorder: rec}
}

// Distributed records that obj was applied to namespace in cluster.
func (r *Recorder) Distributed(obj ctrlruntimeclient.Object, cluster, namespace string) {
	if r == nil || r.recorder == nil {
		return
	}
	r.recorder.Eventf(obj, corev1.EventTypeNormal, ReasonDistributed, "Secret applied to %s/%s in cluster %s", namespace, obj.GetName(), cluster)
}

// DistributionFailed records that copying obj to cluster failed.
func (r *Recorder) DistributionFailed(obj ctrlruntimeclient.Object, cluster string, err error) {
	if r == nil || r.recorder == nil || err == nil {
		return
	}
	r.recorder.Eventf(obj, corev1.EventTypeWarning, ReasonDistributionFailed, "Failed to distribute secret to cluster %s: %v", cluster, err)
}
