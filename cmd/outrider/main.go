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

package main

import (
	"flag"

	"github.com/spf13/pflag"

	"geeko.me/outrider/internal/clusterclient"
	"geeko.me/outrider/internal/config"
	"geeko.me/outrider/internal/controllers/clusterwatcher"
	"geeko.me/outrider/internal/controllers/secretwatcher"
	"geeko.me/outrider/internal/controllers/synchronizer"
	"geeko.me/outrider/internal/crdgate"
	"geeko.me/outrider/internal/distribution"
	"geeko.me/outrider/internal/pkg/events"
	outriderlog "geeko.me/outrider/internal/pkg/log"
	"geeko.me/outrider/internal/pkg/metrics"
	provisioningv1 "geeko.me/outrider/pkg/apis/provisioning/v1"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/discovery"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
)

var (
	scheme = runtime.NewScheme()
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(provisioningv1.AddToScheme(scheme))
}

type flags struct {
	enableLeaderElection bool
	healthProbeAddress   string
	metricsAddress       string
}

func main() {
	var f flags
	logFlags := outriderlog.NewDefaultOptions()
	logFlags.AddPFlags(pflag.CommandLine)
	config.AddFlags(pflag.CommandLine)

	pflag.BoolVar(&f.enableLeaderElection, "leader-elect", true, "Enable leader election so that only one replica distributes secrets.")
	pflag.StringVar(&f.healthProbeAddress, "health-probe-address", "127.0.0.1:8085", "The address on which the liveness check on /healthz and readiness check on /readyz will be available")
	pflag.StringVar(&f.metricsAddress, "metrics-address", "127.0.0.1:8080", "The address on which Prometheus metrics will be available under /metrics")

	// controller-runtime registers --kubeconfig on the Go flag set.
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	rawLog := outriderlog.New(logFlags)
	l := rawLog.Sugar()
	outriderlog.SetControllerRuntimeLogger(rawLog)

	if err := logFlags.Validate(); err != nil {
		l.Fatalf("Invalid log options: %v", err)
	}

	v, err := config.NewViper(pflag.CommandLine)
	if err != nil {
		l.Fatalf("Failed to read configuration: %v", err)
	}

	cfg, err := config.Load(v)
	if err != nil {
		l.Fatalf("Invalid configuration: %v", err)
	}

	ctx := ctrl.SetupSignalHandler()
	restConfig := ctrl.GetConfigOrDie()

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		l.Fatalf("Failed to create discovery client: %v", err)
	}

	gate := crdgate.New(discoveryClient, rawLog.Sugar().Named(outriderlog.NameCRDGate))
	if err := gate.AwaitAvailability(ctx); err != nil {
		l.Infow("Shutting down before the Cluster CRD became available", "reason", err)
		return
	}

	mgr, err := manager.New(restConfig, manager.Options{
		Scheme:                 scheme,
		LeaderElection:         f.enableLeaderElection,
		LeaderElectionID:       "outrider",
		HealthProbeBindAddress: f.healthProbeAddress,
		Metrics: metricsserver.Options{
			BindAddress: f.metricsAddress,
		},
	})
	if err != nil {
		l.Fatalf("Failed to create manager: %v", err)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		l.Fatalf("Failed to set up health check: %v", err)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		l.Fatalf("Failed to set up ready check: %v", err)
	}

	var provider clusterclient.Provider
	if cfg.TestingMode {
		l.Warn("Testing mode enabled, downstream clients are derived from the management cluster connection")
		provider = clusterclient.NewLocalProvider(restConfig, scheme, clusterclient.WithTimeout(cfg.DistributionTimeout))
	} else {
		provider = clusterclient.NewKubeconfigProvider(mgr.GetAPIReader(), scheme, cfg.KubeconfigSecretNamespace, clusterclient.WithTimeout(cfg.DistributionTimeout))
	}

	recorder := metrics.NewDefaultRecorder()

	distributor := distribution.New(
		clusterclient.NewCache(provider),
		cfg,
		rawLog.Sugar().Named(outriderlog.NameDistribution),
		distribution.WithMetrics(recorder),
		distribution.WithEvents(events.NewRecorder(mgr.GetEventRecorderFor("outrider"))),
	)

	coordinator, err := synchronizer.Add(mgr, &synchronizer.ControllerConfig{
		Log:         rawLog.Sugar().Named(outriderlog.NameCoordinator),
		Client:      mgr.GetClient(),
		Distributor: distributor,
		Config:      cfg,
		Metrics:     recorder,
	})
	if err != nil {
		l.Fatalf("Failed to add coordinator: %v", err)
	}

	err = secretwatcher.Add(mgr, &secretwatcher.ControllerConfig{
		Log:         rawLog.Sugar().Named(outriderlog.NameSecretWatcher),
		Sink:        coordinator,
		Annotations: cfg.Annotations,
	})
	if err != nil {
		l.Fatalf("Failed to add secret watcher: %v", err)
	}

	err = clusterwatcher.Add(mgr, &clusterwatcher.ControllerConfig{
		Log:  rawLog.Sugar().Named(outriderlog.NameClusterWatcher),
		Sink: coordinator,
	})
	if err != nil {
		l.Fatalf("Failed to add cluster watcher: %v", err)
	}

	l.Infow("Starting manager",
		"defaultTargetNamespace", cfg.DefaultTargetNamespace,
		"testingMode", cfg.TestingMode,
		"fanOutConcurrency", cfg.FanOutConcurrency,
	)

	if err := mgr.Start(ctx); err != nil {
		l.Fatalf("Failed to start manager: %v", err)
	}
}
