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

// Package crdgate blocks startup until Rancher's provisioning Cluster kind is
// served by the management cluster. Controllers watching Clusters cannot
// start before that, so the gate retries forever with capped exponential
// backoff and only returns early when its context is cancelled.
package crdgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	provisioningv1 "geeko.me/outrider/pkg/apis/provisioning/v1"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const (
	DefaultInitialInterval = 10 * time.Second
	DefaultMaxInterval     = 60 * time.Second
	DefaultMultiplier      = 2
)

var errNotServed = errors.New("resource kind is not served")

// ResourceDiscoverer is the part of the discovery client the gate uses.
type ResourceDiscoverer interface {
	ServerResourcesForGroupVersion(groupVersion string) (*metav1.APIResourceList, error)
}

// Gate waits for one resource to become discoverable.
type Gate struct {
	discovery       ResourceDiscoverer
	log             *zap.SugaredLogger
	gvr             schema.GroupVersionResource
	kind            string
	initialInterval time.Duration
	maxInterval     time.Duration
}

type Option func(*Gate)

// WithIntervals overrides the backoff bounds.
func WithIntervals(initial, max time.Duration) Option {
	return func(g *Gate) {
		g.initialInterval = initial
		g.maxInterval = max
	}
}

// WithResource overrides the awaited resource and the kind it must serve.
func WithResource(gvr schema.GroupVersionResource, kind string) Option {
	return func(g *Gate) {
		g.gvr = gvr
		g.kind = kind
	}
}

// New returns a gate for provisioning.cattle.io/v1 Cluster.
func New(discovery ResourceDiscoverer, log *zap.SugaredLogger, opts ...Option) *Gate {
	g := &Gate{
		discovery:       discovery,
		log:             log,
		gvr:             provisioningv1.Resource(provisioningv1.ClusterResourceName).WithVersion(provisioningv1.Version),
		kind:            provisioningv1.ClusterKindName,
		initialInterval: DefaultInitialInterval,
		maxInterval:     DefaultMaxInterval,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Available performs a single discovery query. Subresources such as
// clusters/status share the kind and are not enough.
func (g *Gate) Available() (bool, error) {
	resources, err := g.discovery.ServerResourcesForGroupVersion(g.gvr.GroupVersion().String())
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to discover %s: %w", g.gvr.GroupVersion(), err)
	}

	for _, r := range resources.APIResources {
		if r.Name == g.gvr.Resource && r.Kind == g.kind {
			return true, nil
		}
	}

	return false, nil
}

// AwaitAvailability blocks until the kind is discoverable. Discovery failures
// are retried like absence; the only error returned is the context's.
func (g *Gate) AwaitAvailability(ctx context.Context) error {
	l := g.log.With("resource", g.gvr.GroupResource().String(), "version", g.gvr.Version, "kind", g.kind)

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		ok, err := g.Available()
		if err != nil {
			return struct{}{}, err
		}
		if !ok {
			return struct{}{}, errNotServed
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(g.newBackOff()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			l.Infow("Waiting for CRD to become available", "reason", err, "retryIn", next)
		}),
	)
	if err != nil {
		return fmt.Errorf("stopped waiting for %s: %w", g.gvr.GroupResource(), err)
	}

	l.Info("CRD is available")
	return nil
}

func (g *Gate) newBackOff() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     g.initialInterval,
		RandomizationFactor: 0,
		Multiplier:          DefaultMultiplier,
		MaxInterval:         g.maxInterval,
	}
}
