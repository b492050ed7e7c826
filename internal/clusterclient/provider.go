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

// Package clusterclient builds clients for Rancher downstream clusters.
//
// Two providers exist. The kubeconfig provider reads the admin kubeconfig
// Rancher stores for every downstream cluster. The local provider is used in
// testing mode and points the management cluster's own connection at the
// downstream cluster through Rancher's cluster proxy path. Cache wraps either
// one and keeps a client per cluster until the cluster is invalidated.
package clusterclient

import (
	"context"
	"fmt"
	"time"

	provisioningv1 "geeko.me/outrider/pkg/apis/provisioning/v1"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/rest"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	defaultQPS   = 20
	defaultBurst = 50
)

// Provider returns a client for a downstream cluster.
type Provider interface {
	GetClient(ctx context.Context, cluster *provisioningv1.Cluster) (ctrlruntimeclient.Client, error)
}

// KubeconfigError is returned when the stored connection descriptor of a
// cluster is missing, malformed or cannot be turned into a client. It is kept
// apart from API errors returned while fetching it.
type KubeconfigError struct {
	Cluster string
	Reason  string
	Err     error
}

func (e *KubeconfigError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid kubeconfig for cluster %q: %s", e.Cluster, e.Reason)
	}
	return fmt.Sprintf("invalid kubeconfig for cluster %q: %s: %v", e.Cluster, e.Reason, e.Err)
}

func (e *KubeconfigError) Unwrap() error {
	return e.Err
}

// ConfigOption applies additional configuration to a rest.Config.
type ConfigOption func(*rest.Config)

// WithTimeout sets the per-request timeout of downstream clients.
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(cfg *rest.Config) {
		cfg.Timeout = timeout
	}
}

// ClientFunc constructs a client from a rest config.
type ClientFunc func(cfg *rest.Config, opts ctrlruntimeclient.Options) (ctrlruntimeclient.Client, error)

func applyDefaults(cfg *rest.Config, options []ConfigOption) {
	cfg.QPS = defaultQPS
	cfg.Burst = defaultBurst

	for _, opt := range options {
		opt(cfg)
	}
}

func newClient(newFn ClientFunc, scheme *runtime.Scheme, cluster string, cfg *rest.Config) (ctrlruntimeclient.Client, error) {
	if newFn == nil {
		newFn = ctrlruntimeclient.New
	}

	client, err := newFn(cfg, ctrlruntimeclient.Options{Scheme: scheme})
	if err != nil {
		return nil, &KubeconfigError{Cluster: cluster, Reason: "failed to create client", Err: err}
	}

	return client, nil
}
