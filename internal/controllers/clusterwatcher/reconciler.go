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

package clusterwatcher

import (
	"context"
	"fmt"

	"geeko.me/outrider/internal/controllers/synchronizer"
	provisioningv1 "geeko.me/outrider/pkg/apis/provisioning/v1"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

func (r *Reconciler) Reconcile(ctx context.Context, req reconcile.Request) (reconcile.Result, error) {
	l := r.logger.With("cluster", req.Name)

	var event synchronizer.Event

	cluster := &provisioningv1.Cluster{}
	if err := r.Get(ctx, req.NamespacedName, cluster); err != nil {
		if !apierrors.IsNotFound(err) {
			return reconcile.Result{}, fmt.Errorf("failed to get cluster: %w", err)
		}

		l.Debug("Cluster not found, treating it as not ready")
		event = synchronizer.ClusterBecameNotReady(req.Name)
	} else {
		switch {
		case cluster.IsLocal():
			return reconcile.Result{}, nil
		case cluster.IsReady():
			event = synchronizer.ClusterBecameReady(cluster)
		default:
			event = synchronizer.ClusterBecameNotReady(cluster.Name)
		}
	}

	if err := r.cfg.Sink.Send(ctx, event); err != nil {
		return reconcile.Result{}, err
	}

	l.Debugw("Forwarded cluster event", "event", event.Type)
	return reconcile.Result{}, nil
}
