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

package synchronizer

import (
	"context"
	"fmt"

	provisioningv1 "geeko.me/outrider/pkg/apis/provisioning/v1"

	corev1 "k8s.io/api/core/v1"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
)

type EventType string

const (
	EventSecretChanged         EventType = "SecretChanged"
	EventClusterBecameReady    EventType = "ClusterBecameReady"
	EventClusterBecameNotReady EventType = "ClusterBecameNotReady"
)

// Event is a domain event handed to the coordinator. Exactly one of Secret,
// Cluster or ClusterName is set, depending on Type.
type Event struct {
	Type        EventType
	Secret      *corev1.Secret
	Cluster     *provisioningv1.Cluster
	ClusterName string
}

func SecretChanged(secret *corev1.Secret) Event {
	return Event{Type: EventSecretChanged, Secret: secret}
}

func ClusterBecameReady(cluster *provisioningv1.Cluster) Event {
	return Event{Type: EventClusterBecameReady, Cluster: cluster}
}

func ClusterBecameNotReady(name string) Event {
	return Event{Type: EventClusterBecameNotReady, ClusterName: name}
}

func (e Event) String() string {
	switch e.Type {
	case EventSecretChanged:
		return fmt.Sprintf("%s(%s)", e.Type, ctrlruntimeclient.ObjectKeyFromObject(e.Secret))
	case EventClusterBecameReady:
		return fmt.Sprintf("%s(%s)", e.Type, e.Cluster.Name)
	default:
		return fmt.Sprintf("%s(%s)", e.Type, e.ClusterName)
	}
}

// EventSink accepts events for the coordinator. Send blocks while the event
// buffer is full and fails only when ctx is done.
type EventSink interface {
	Send(ctx context.Context, event Event) error
}
