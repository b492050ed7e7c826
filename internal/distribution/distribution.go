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

// Package distribution copies a single secret into a single downstream
// cluster. A copy resolves the target namespace, provisions it when missing
// and server-side applies the secret with outrider's field manager, forcing
// ownership of conflicting fields. Repeated copies of an unchanged secret
// converge to the same downstream object.
package distribution

import (
	"context"
	"fmt"
	"maps"
	"time"

	"go.uber.org/zap"

	"geeko.me/outrider/internal/clusterclient"
	"geeko.me/outrider/internal/config"
	"geeko.me/outrider/internal/pkg/events"
	"geeko.me/outrider/internal/pkg/kubernetes"
	"geeko.me/outrider/internal/pkg/metrics"
	provisioningv1 "geeko.me/outrider/pkg/apis/provisioning/v1"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
)

// Distributor performs copies of secrets into downstream clusters.
type Distributor struct {
	clients clusterclient.Provider
	cfg     *config.Config
	log     *zap.SugaredLogger
	metrics *metrics.Recorder
	events  *events.Recorder
}

type Option func(*Distributor)

func WithMetrics(m *metrics.Recorder) Option {
	return func(d *Distributor) {
		d.metrics = m
	}
}

func WithEvents(e *events.Recorder) Option {
	return func(d *Distributor) {
		d.events = e
	}
}

func New(clients clusterclient.Provider, cfg *config.Config, log *zap.SugaredLogger, opts ...Option) *Distributor {
	d := &Distributor{
		clients: clients,
		cfg:     cfg,
		log:     log,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Distribute copies secret into cluster. The returned error describes the
// first failing step; nothing is retried. Any failure drops the connection
// state kept for cluster so the next attempt rebuilds it from the current
// kubeconfig.
func (d *Distributor) Distribute(ctx context.Context, secret *corev1.Secret, cluster *provisioningv1.Cluster) error {
	start := time.Now()
	namespace, err := d.distribute(ctx, secret, cluster)
	d.metrics.ObserveDistribution(err, time.Since(start))

	if err != nil {
		d.Forget(cluster.Name)
		d.events.DistributionFailed(secret, cluster.Name, err)
		return err
	}

	d.events.Distributed(secret, cluster.Name, namespace)
	return nil
}

// Forget drops any connection state kept for the named cluster.
func (d *Distributor) Forget(clusterName string) {
	if inv, ok := d.clients.(interface{ Invalidate(string) }); ok {
		inv.Invalidate(clusterName)
	}
}

func (d *Distributor) distribute(ctx context.Context, secret *corev1.Secret, cluster *provisioningv1.Cluster) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.DistributionTimeout)
	defer cancel()

	namespace := d.cfg.Annotations.TargetNamespace(secret, d.cfg.DefaultTargetNamespace)

	l := d.log.With(
		"secret", ctrlruntimeclient.ObjectKeyFromObject(secret),
		"cluster", cluster.Name,
		"targetNamespace", namespace,
	)

	client, err := d.clients.GetClient(ctx, cluster)
	if err != nil {
		return namespace, fmt.Errorf("failed to get client for cluster %q: %w", cluster.Name, err)
	}

	created, err := kubernetes.EnsureNamespace(ctx, client, namespace)
	if err != nil {
		return namespace, fmt.Errorf("failed to ensure namespace in cluster %q: %w", cluster.Name, err)
	}
	if created {
		l.Infow("Created namespace in downstream cluster", "namespace", namespace)
	}

	desired := BuildDownstreamSecret(secret, namespace, d.cfg.Annotations)
	if err := client.Patch(ctx, desired, ctrlruntimeclient.Apply, ctrlruntimeclient.FieldOwner(d.cfg.FieldManager), ctrlruntimeclient.ForceOwnership); err != nil {
		return namespace, fmt.Errorf("failed to apply secret %s/%s to cluster %q: %w", namespace, secret.Name, cluster.Name, err)
	}

	l.Debug("Applied secret to downstream cluster")
	return namespace, nil
}

// BuildDownstreamSecret returns the object applied to downstream clusters: a
// copy of secret in namespace, carrying its labels, payload, type and
// immutability, with every outrider-owned annotation removed.
func BuildDownstreamSecret(secret *corev1.Secret, namespace string, annotations config.Annotations) *corev1.Secret {
	out := &corev1.Secret{
		TypeMeta: metav1.TypeMeta{
			APIVersion: corev1.SchemeGroupVersion.String(),
			Kind:       "Secret",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:        secret.Name,
			Namespace:   namespace,
			Labels:      maps.Clone(secret.Labels),
			Annotations: annotations.Strip(secret.Annotations),
		},
		Data:       maps.Clone(secret.Data),
		StringData: maps.Clone(secret.StringData),
		Type:       secret.Type,
	}

	if secret.Immutable != nil {
		immutable := *secret.Immutable
		out.Immutable = &immutable
	}

	return out
}
