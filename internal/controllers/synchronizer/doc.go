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

// Package synchronizer implements the coordinator that decides which secrets
// are copied to which downstream clusters.
//
// The coordinator is the single consumer of a bounded stream of events
// produced by the secret and cluster watchers:
//
//   - SecretChanged: the secret is copied to every ready cluster, once the
//     initial sync has finished. A change handled before that is dropped since
//     the initial sync already covers it.
//   - ClusterBecameReady: every enabled secret is copied to the cluster unless
//     it already received a full fan-out since it last became ready.
//   - ClusterBecameNotReady: the cluster is forgotten, so its next readiness
//     transition triggers a full fan-out again.
//
// On startup, every enabled secret is copied to every ready cluster before
// any event is read. Events sent meanwhile stay buffered rather than dropped.
// They include a SecretChanged for every enabled secret from the secret
// watcher's initial list, so startup copies each secret to each ready cluster
// twice. Server-side apply makes the second pass a no-op downstream.
//
// The set of synced clusters and the initial sync flag are owned by the
// coordinator goroutine and never shared.
package synchronizer
