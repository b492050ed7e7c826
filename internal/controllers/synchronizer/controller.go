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

	"go.uber.org/zap"

	"geeko.me/outrider/internal/config"
	"geeko.me/outrider/internal/pkg/metrics"
	provisioningv1 "geeko.me/outrider/pkg/apis/provisioning/v1"

	corev1 "k8s.io/api/core/v1"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/manager"
)

const (
	// EventBufferSize is the capacity of the coordinator's event channel.
	EventBufferSize = 256

	defaultListRetryInterval = 10 * time.Second
	maxListRetryInterval     = 60 * time.Second
)

// Distributor copies one secret to one cluster.
type Distributor interface {
	Distribute(ctx context.Context, secret *corev1.Secret, cluster *provisioningv1.Cluster) error

	// Forget drops any per-cluster state, such as a cached client.
	Forget(clusterName string)
}

// ControllerConfig holds the configuration for the coordinator.
type ControllerConfig struct {
	Log *zap.SugaredLogger

	// Client reads clusters and secrets from the management cluster.
	Client ctrlruntimeclient.Reader

	Distributor Distributor

	Config *config.Config

	// Metrics is optional.
	Metrics *metrics.Recorder

	// ListRetryInterval is the initial delay between attempts to list clusters
	// and secrets for the initial sync. When set to 0, 10 seconds are used.
	ListRetryInterval time.Duration
}

func (c *ControllerConfig) validate() error {
	if c.Log == nil {
		return fmt.Errorf("log cannot be nil")
	}

	if c.Client == nil {
		return fmt.Errorf("client cannot be nil")
	}

	if c.Distributor == nil {
		return fmt.Errorf("distributor cannot be nil")
	}

	if c.Config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.Config.FanOutConcurrency < 1 {
		return fmt.Errorf("fan-out concurrency must be at least 1")
	}

	if c.ListRetryInterval < 0 {
		return fmt.Errorf("list retry interval must be a non-negative duration")
	}

	return nil
}

// Coordinator consumes synchronization events sequentially. It implements
// manager.Runnable.
type Coordinator struct {
	client      ctrlruntimeclient.Reader
	distributor Distributor
	cfg         *config.Config
	metrics     *metrics.Recorder
	logger      *zap.SugaredLogger

	listRetryInterval time.Duration

	events chan Event

	// Owned by the goroutine running Start.
	synced          map[string]struct{}
	initialSyncDone bool
}

var _ manager.LeaderElectionRunnable = &Coordinator{}

// NewCoordinator validates cfg and returns a coordinator that has not been
// started yet.
func NewCoordinator(cfg *ControllerConfig) (*Coordinator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("failed to instantiate coordinator: config is nil")
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to instantiate coordinator: %w", err)
	}

	interval := cfg.ListRetryInterval
	if interval == 0 {
		interval = defaultListRetryInterval
	}

	return &Coordinator{
		client:            cfg.Client,
		distributor:       cfg.Distributor,
		cfg:               cfg.Config,
		metrics:           cfg.Metrics,
		logger:            cfg.Log,
		listRetryInterval: interval,
		events:            make(chan Event, EventBufferSize),
		synced:            map[string]struct{}{},
	}, nil
}

// Add creates a new coordinator and adds it to the Manager. The returned
// coordinator is the EventSink the watchers feed.
func Add(mgr manager.Manager, cfg *ControllerConfig) (*Coordinator, error) {
	c, err := NewCoordinator(cfg)
	if err != nil {
		return nil, err
	}

	if err := mgr.Add(c); err != nil {
		return nil, fmt.Errorf("failed to add coordinator to manager: %w", err)
	}

	return c, nil
}

// NeedLeaderElection makes only the leader distribute secrets.
func (c *Coordinator) NeedLeaderElection() bool {
	return true
}

// Send implements EventSink.
func (c *Coordinator) Send(ctx context.Context, event Event) error {
	select {
	case c.events <- event:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to enqueue %s: %w", event, ctx.Err())
	}
}
