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

package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ClusterSpec holds the subset of Rancher's cluster spec outrider reads.
type ClusterSpec struct {
	// +optional
	KubernetesVersion string `json:"kubernetesVersion,omitempty"`

	// Local is set by Rancher on the management cluster's own descriptor.
	//
	// +optional
	Local bool `json:"local,omitempty"`

	// +optional
	DisplayName string `json:"displayName,omitempty"`
}

// Condition is a single entry of a cluster's status conditions.
type Condition struct {
	Type   string `json:"type"`
	Status string `json:"status"`

	// +optional
	Reason string `json:"reason,omitempty"`

	// +optional
	Message string `json:"message,omitempty"`

	// +optional
	LastUpdateTime string `json:"lastUpdateTime,omitempty"`
}

// ClusterStatus is the observed state Rancher reports for a downstream cluster.
type ClusterStatus struct {
	// ClientSecretName references the secret, in the cluster's namespace, that
	// stores an admin kubeconfig for the downstream cluster under the "value" key.
	//
	// +optional
	ClientSecretName string `json:"clientSecretName,omitempty"`

	// ClusterName is Rancher's internal identifier, e.g. "c-m-abcd1234".
	ClusterName string `json:"clusterName,omitempty"`

	// +optional
	Ready bool `json:"ready,omitempty"`

	// +optional
	Conditions []Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:resource:scope=Namespaced
// +kubebuilder:subresource:status

// Cluster is Rancher's descriptor of a downstream cluster managed from the
// management cluster.
type Cluster struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ClusterSpec   `json:"spec,omitempty"`
	Status ClusterStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// ClusterList contains a list of Cluster.
type ClusterList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`

	Items []Cluster `json:"items"`
}

// IsLocal reports whether the descriptor is the management cluster itself.
func (c *Cluster) IsLocal() bool {
	return c.Name == LocalClusterName
}

// IsReady reports whether the cluster carries a Ready=True condition. The
// status.ready field is ignored; only the condition list is authoritative.
func (c *Cluster) IsReady() bool {
	for _, cond := range c.Status.Conditions {
		if cond.Type == ConditionReady && cond.Status == ConditionStatusTrue {
			return true
		}
	}

	return false
}

// IsSyncTarget reports whether secrets should be distributed to the cluster.
func (c *Cluster) IsSyncTarget() bool {
	return !c.IsLocal() && c.IsReady()
}

// InternalName returns Rancher's internal cluster identifier, falling back to
// the object name when the status has not been populated yet.
func (c *Cluster) InternalName() string {
	if c.Status.ClusterName != "" {
		return c.Status.ClusterName
	}

	return c.Name
}
