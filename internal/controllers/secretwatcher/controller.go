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
	"fmt"

	"go.uber.org/zap"

	"geeko.me/outrider/internal/config"
	"geeko.me/outrider/internal/controllers/synchronizer"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/event"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
)

const (
	controllerName = "SecretWatcherController"
)

// ControllerConfig holds the configuration for the secret watcher.
type ControllerConfig struct {
	Log *zap.SugaredLogger

	// Sink receives a SecretChanged event for every eligible secret that was
	// created or updated.
	Sink synchronizer.EventSink

	Annotations config.Annotations
}

func (c *ControllerConfig) validate() error {
	if c.Log == nil {
		return fmt.Errorf("log cannot be nil")
	}

	if c.Sink == nil {
		return fmt.Errorf("sink cannot be nil")
	}

	if c.Annotations.Enabled == "" {
		return fmt.Errorf("enabled annotation cannot be empty")
	}

	return nil
}

// Reconciler turns Secret notifications into SecretChanged events.
type Reconciler struct {
	ctrlruntimeclient.Client
	cfg    *ControllerConfig
	logger *zap.SugaredLogger
}

// Add creates a new secret watcher and adds it to the Manager.
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
		For(&corev1.Secret{}, builder.WithPredicates(eligiblePredicate(cfg.Annotations))).
		Build(reconciler)

	return err
}

// eligiblePredicate lets through creations and updates of secrets that opted
// into distribution. Deletions never trigger anything.
func eligiblePredicate(annotations config.Annotations) predicate.Predicate {
	return predicate.Funcs{
		CreateFunc: func(e event.CreateEvent) bool {
			return annotations.IsEnabled(e.Object)
		},
		UpdateFunc: func(e event.UpdateEvent) bool {
			return annotations.IsEnabled(e.ObjectNew)
		},
		DeleteFunc: func(event.DeleteEvent) bool {
			return false
		},
		GenericFunc: func(e event.GenericEvent) bool {
			return annotations.IsEnabled(e.Object)
		},
	}
}
