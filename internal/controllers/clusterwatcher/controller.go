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
	"fmt"

	"go.uber.org/zap"

	"geeko.me/outrider/internal/controllers/synchronizer"
	provisioningv1 "geeko.me/outrider/pkg/apis/provisioning/v1"

	"sigs.k8s.io/controller-runtime/pkg/builder"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
)

const (
	controllerName = "ClusterWatcherController"
)

// ControllerConfig holds the configuration for the cluster watcher.
type ControllerConfig struct {
	Log *zap.SugaredLogger

	// Sink receives ClusterBecameReady and ClusterBecameNotReady events.
	Sink synchronizer.EventSink
}

func (c *ControllerConfig) validate() error {
	if c.Log == nil {
		return fmt.Errorf("log cannot be nil")
	}

	if c.Sink == nil {
		return fmt.Errorf("sink cannot be nil")
	}

	return nil
}

// Reconciler reports the readiness of provisioning clusters. Every
// notification is forwarded since the coordinator ignores clusters it has
// already synced.
type Reconciler struct {
	ctrlruntimeclient.Client
	cfg    *ControllerConfig
	logger *zap.SugaredLogger
}

// Add creates a new cluster watcher and adds it to the Manager.
func Add(mgr manager.Manager, cfg *ControllerConfig) error {
	if cfg == nil {
		return fmt.Errorf("failed to instantiate controller: config is nil")
	}

	if err := cfg.validate(); err != nil {
		return fmt.Errorf("failed to instantiate controller: %w", err)
	}

	reconciler := &Reconciler{
		Client: mgr.GetClient(),
		cfg:    cfg,
		logger: cfg.Log,
	}

	_, err := builder.ControllerManagedBy(mgr).
		Named(controllerName).
		For(&provisioningv1.Cluster{}, builder.WithPredicates(notLocalPredicate())).
		Build(reconciler)

	return err
}

func notLocalPredicate() predicate.Predicate {
	return predicate.NewPredicateFuncs(func(obj ctrlruntimeclient.Object) bool {
		return obj.GetName() != provisioningv1.LocalClusterName
	})
}
