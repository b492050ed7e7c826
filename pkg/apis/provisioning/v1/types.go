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

const (
	// GroupName is the API group of Rancher's provisioning resources.
	GroupName = "provisioning.cattle.io"

	// ClusterResourceName is the plural name of the Cluster resource.
	ClusterResourceName = "clusters"

	// ClusterKindName is the kind name of the Cluster resource.
	ClusterKindName = "Cluster"
)

const (
	// LocalClusterName is the name Rancher gives the management cluster itself.
	// It is never a distribution target.
	LocalClusterName = "local"

	// ConditionReady is the condition type that marks a downstream cluster as usable.
	ConditionReady = "Ready"

	// ConditionStatusTrue is the only condition status that counts as ready.
	ConditionStatusTrue = "True"
)
