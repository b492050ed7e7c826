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
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	provisioningv1 "geeko.me/outrider/pkg/apis/provisioning/v1"

	corev1 "k8s.io/api/core/v1"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
)

// Start runs the initial sync and then handles events until ctx is done.
func (c *Coordinator) Start(ctx context.Context) error {
	c.logger.Info("Starting coordinator")

	if err := c.initialSync(ctx); err != nil {
		c.logger.Infow("Coordinator stopped before the initial sync completed", "reason", err)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stopping coordinator")
			return nil
		case event := <-c.events:
			c.handle(ctx, event)
		}
	}
}

// initialSync copies every enabled secret to every ready cluster. Listing is
// retried until it succeeds, so the only error returned is the context's.
func (c *Coordinator) initialSync(ctx context.Context) error {
	l := c.logger.With("phase", "initial-sync")

	type snapshot struct {
		clusters []provisioningv1.Cluster
		secrets  []corev1.Secret
	}

	snap, err := backoff.Retry(ctx, func() (snapshot, error) {
		clusters, err := c.readyClusters(ctx)
		if err != nil {
			return snapshot{}, err
		}
		secrets, err := c.enabledSecrets(ctx)
		if err != nil {
			return snapshot{}, err
		}
		return snapshot{clusters: clusters, secrets: secrets}, nil
	},
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     c.listRetryInterval,
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         maxListRetryInterval,
		}),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			l.Errorw("Failed to list initial state, retrying", zap.Error(err), "retryIn", next)
		}),
	)
	if err != nil {
		return err
	}

	l.Infow("Running initial sync", "clusters", len(snap.clusters), "secrets", len(snap.secrets))

	targets := make([]target, 0, len(snap.clusters)*len(snap.secrets))
	for i := range snap.secrets {
		for j := range snap.clusters {
			targets = append(targets, target{secret: &snap.secrets[i], cluster: &snap.clusters[j]})
		}
	}

	c.fanOut(ctx, l, targets)

	for _, cluster := range snap.clusters {
		c.synced[cluster.Name] = struct{}{}
	}
	c.metrics.SetSyncedClusters(len(c.synced))
	c.initialSyncDone = true

	l.Info("Initial sync completed")
	return nil
}

func (c *Coordinator) handle(ctx context.Context, event Event) {
	c.metrics.ObserveEvent(string(event.Type))

	switch event.Type {
	case EventSecretChanged:
		c.handleSecretChanged(ctx, event.Secret)
	case EventClusterBecameReady:
		c.handleClusterBecameReady(ctx, event.Cluster)
	case EventClusterBecameNotReady:
		c.handleClusterBecameNotReady(event.ClusterName)
	default:
		c.logger.Warnw("Ignoring unknown event", "type", event.Type)
	}
}

func (c *Coordinator) handleSecretChanged(ctx context.Context, secret *corev1.Secret) {
	l := c.logger.With("secret", ctrlruntimeclient.ObjectKeyFromObject(secret))

	if !c.initialSyncDone {
		l.Info("Initial sync not completed yet, dropping secret change")
		c.metrics.ObserveDroppedEvent()
		return
	}

	if !c.cfg.Annotations.IsEnabled(secret) {
		l.Debug("Secret is not enabled for distribution, skipping")
		return
	}

	clusters, err := c.readyClusters(ctx)
	if err != nil {
		l.Errorw("Failed to list ready clusters", zap.Error(err))
		return
	}

	targets := make([]target, 0, len(clusters))
	for i := range clusters {
		targets = append(targets, target{secret: secret, cluster: &clusters[i]})
	}

	c.fanOut(ctx, l, targets)
}

func (c *Coordinator) handleClusterBecameReady(ctx context.Context, cluster *provisioningv1.Cluster) {
	l := c.logger.With("cluster", cluster.Name)

	if !cluster.IsSyncTarget() {
		l.Debug("Cluster is not a sync target, skipping")
		return
	}

	if _, ok := c.synced[cluster.Name]; ok {
		l.Debug("Cluster already synced, skipping")
		return
	}

	secrets, err := c.enabledSecrets(ctx)
	if err != nil {
		l.Errorw("Failed to list enabled secrets", zap.Error(err))
		return
	}

	targets := make([]target, 0, len(secrets))
	for i := range secrets {
		targets = append(targets, target{secret: &secrets[i], cluster: cluster})
	}

	c.fanOut(ctx, l, targets)

	c.synced[cluster.Name] = struct{}{}
	c.metrics.SetSyncedClusters(len(c.synced))
}

func (c *Coordinator) handleClusterBecameNotReady(name string) {
	if _, ok := c.synced[name]; ok {
		c.logger.Infow("Cluster is no longer ready", "cluster", name)
	}

	delete(c.synced, name)
	c.distributor.Forget(name)
	c.metrics.SetSyncedClusters(len(c.synced))
}

// readyClusters lists the clusters that are ready and not local.
func (c *Coordinator) readyClusters(ctx context.Context) ([]provisioningv1.Cluster, error) {
	list := &provisioningv1.ClusterList{}
	if err := c.client.List(ctx, list); err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}

	ready := make([]provisioningv1.Cluster, 0, len(list.Items))
	for _, cluster := range list.Items {
		if cluster.IsSyncTarget() {
			ready = append(ready, cluster)
		}
	}

	return ready, nil
}

// enabledSecrets lists the secrets of all namespaces that opted into distribution.
func (c *Coordinator) enabledSecrets(ctx context.Context) ([]corev1.Secret, error) {
	list := &corev1.SecretList{}
	if err := c.client.List(ctx, list); err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}

	enabled := make([]corev1.Secret, 0, len(list.Items))
	for _, secret := range list.Items {
		if c.cfg.Annotations.IsEnabled(&secret) {
			enabled = append(enabled, secret)
		}
	}

	return enabled, nil
}
