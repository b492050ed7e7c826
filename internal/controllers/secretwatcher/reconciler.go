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

package secretwatcher

import (
	"context"
	"fmt"

	"geeko.me/outrider/internal/controllers/synchronizer"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

func (r *Reconciler) Reconcile(ctx context.Context, req reconcile.Request) (reconcile.Result, error) {
	l := r.logger.With("secret", req.NamespacedName)

	secret := &corev1.Secret{}
	if err := r.Get(ctx, req.NamespacedName, secret); err != nil {
		if apierrors.IsNotFound(err) {
			l.Debug("Secret not found, ignoring")
			return reconcile.Result{}, nil
		}

		return reconcile.Result{}, fmt.Errorf("failed to get secret: %w", err)
	}

	// The cached object may have lost the annotation since the event fired.
	if !r.cfg.Annotations.IsEnabled(secret) {
		l.Debug("Secret is not enabled for distribution, skipping")
		return reconcile.Result{}, nil
	}

	if err := r.cfg.Sink.Send(ctx, synchronizer.SecretChanged(secret)); err != nil {
		return reconcile.Result{}, err
	}

	l.Debug("Forwarded secret change")
	return reconcile.Result{}, nil
}
