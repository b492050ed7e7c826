//go:build e2e

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

package e2e_test

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"geeko.me/outrider/internal/clusterclient"
	"geeko.me/outrider/internal/config"
	"geeko.me/outrider/internal/controllers/clusterwatcher"
	"geeko.me/outrider/internal/controllers/secretwatcher"
	"geeko.me/outrider/internal/controllers/synchronizer"
	"geeko.me/outrider/internal/crdgate"
	"geeko.me/outrider/internal/distribution"

	"k8s.io/client-go/discovery"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	"sigs.k8s.io/e2e-framework/pkg/env"
	"sigs.k8s.io/e2e-framework/pkg/envconf"
	"sigs.k8s.io/e2e-framework/pkg/envfuncs"
)

const (
	crdDir                 = "testdata/crds"
	defaultTargetNamespace = "e2e-fleet-secrets"
	sourceNamespace        = "e2e-source"
	clusterNamespace       = "fleet-default"
)

var (
	testEnv env.Environment

	stopOutrider context.CancelFunc
)

func TestMain(m *testing.M) {
	flag.Parse()

	testEnv = env.New().
		Setup(
			envfuncs.SetupCRDs(crdDir, "*"),
			envfuncs.CreateNamespace(sourceNamespace),
			envfuncs.CreateNamespace(clusterNamespace),
			startOutrider,
		).
		AfterEachTest(func(ctx context.Context, config *envconf.Config, _ *testing.T) (context.Context, error) {
			return cleanUpTestsAfter(ctx, config)
		}).
		Finish(
			cleanUpTestsAfter,
			func(ctx context.Context, _ *envconf.Config) (context.Context, error) {
				if stopOutrider != nil {
					stopOutrider()
				}
				return ctx, nil
			},
			envfuncs.DeleteNamespace(sourceNamespace),
			envfuncs.DeleteNamespace(clusterNamespace),
			envfuncs.TeardownCRDs(crdDir, "*"),
		)

	os.Exit(testEnv.Run(m))
}

// startOutrider runs the outrider components in-process in testing mode, so
// the test cluster serves as management and downstream cluster at once.
func startOutrider(ctx context.Context, cfg *envconf.Config) (context.Context, error) {
	restConfig := cfg.Client().RESTConfig()
	log := zap.NewExample().Sugar()

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return ctx, err
	}

	gateCtx, cancelGate := context.WithTimeout(ctx, time.Minute)
	defer cancelGate()

	gate := crdgate.New(discoveryClient, log.Named("crd-gate"), crdgate.WithIntervals(time.Second, 5*time.Second))
	if err := gate.AwaitAvailability(gateCtx); err != nil {
		return ctx, fmt.Errorf("cluster CRD did not become available: %w", err)
	}

	outriderCfg := &config.Config{
		DefaultTargetNamespace:    defaultTargetNamespace,
		TestingMode:               true,
		KubeconfigSecretNamespace: config.DefaultKubeconfigSecretNamespace,
		FieldManager:              config.FieldManager,
		FanOutConcurrency:         2,
		DistributionTimeout:       config.DefaultDistributionTimeout,
		Annotations:               config.DefaultAnnotations(),
	}
	if err := outriderCfg.Validate(); err != nil {
		return ctx, err
	}

	mgr, err := manager.New(restConfig, manager.Options{
		Scheme:         newScheme(),
		LeaderElection: false,
		Metrics:        metricsserver.Options{BindAddress: "0"},
	})
	if err != nil {
		return ctx, fmt.Errorf("failed to create manager: %w", err)
	}

	provider := clusterclient.NewLocalProvider(restConfig, mgr.GetScheme(), clusterclient.WithTimeout(outriderCfg.DistributionTimeout))

	coordinator, err := synchronizer.Add(mgr, &synchronizer.ControllerConfig{
		Log:               log.Named("coordinator"),
		Client:            mgr.GetClient(),
		Distributor:       distribution.New(clusterclient.NewCache(provider), outriderCfg, log.Named("distribution")),
		Config:            outriderCfg,
		ListRetryInterval: time.Second,
	})
	if err != nil {
		return ctx, err
	}

	if err := secretwatcher.Add(mgr, &secretwatcher.ControllerConfig{
		Log:         log.Named("secret-watcher"),
		Sink:        coordinator,
		Annotations: outriderCfg.Annotations,
	}); err != nil {
		return ctx, err
	}

	if err := clusterwatcher.Add(mgr, &clusterwatcher.ControllerConfig{
		Log:  log.Named("cluster-watcher"),
		Sink: coordinator,
	}); err != nil {
		return ctx, err
	}

	mgrCtx, cancel := context.WithCancel(context.Background())
	stopOutrider = cancel

	go func() {
		if err := mgr.Start(mgrCtx); err != nil {
			log.Errorw("Manager stopped with error", zap.Error(err))
		}
	}()

	return ctx, nil
}

func cleanUpTestsAfter(ctx context.Context, config *envconf.Config) (context.Context, error) {
	s := suite{}
	err := s.withClient(config.Client())
	if err != nil {
		return nil, err
	}

	err = s.cleanup(ctx)
	if err != nil {
		return nil, err
	}

	return ctx, nil
}
