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

	"geeko.me/outrider/internal/config"
	secretvalidation "geeko.me/outrider/internal/pkg/admission/secret/validation"
	outriderlog "geeko.me/outrider/internal/pkg/log"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
)

var (
	scheme = runtime.NewScheme()
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

type options struct {
	metricsAddr string
	probeAddr   string
	certDir     string
	webhookPort int
}

func main() {
	var opt options
	logFlags := outriderlog.NewDefaultOptions()
	logFlags.AddPFlags(pflag.CommandLine)

	pflag.StringVar(&opt.metricsAddr, "metrics-bind-address", ":8080", "The address the metric endpoint binds to")
	pflag.StringVar(&opt.probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to")
	pflag.StringVar(&opt.certDir, "cert-dir", "/tmp/k8s-webhook-server/serving-certs", "Directory containing TLS certificates for the webhook server")
	pflag.IntVar(&opt.webhookPort, "webhook-port", 9443, "Port for the webhook server")

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	rawLog := outriderlog.New(logFlags)
	l := rawLog.Sugar()
	outriderlog.SetControllerRuntimeLogger(rawLog)

	if err := logFlags.Validate(); err != nil {
		l.Fatalf("Invalid log options: %v", err)
	}

	l.Info("Initializing outrider webhook")

	mgr, err := manager.New(ctrl.GetConfigOrDie(), manager.Options{
		Scheme:         scheme,
		LeaderElection: false,
		Metrics: metricsserver.Options{
			BindAddress: opt.metricsAddr,
		},
		HealthProbeBindAddress: opt.probeAddr,
		WebhookServer: webhook.NewServer(webhook.Options{
			CertDir: opt.certDir,
			Port:    opt.webhookPort,
		}),
	})
	if err != nil {
		l.Fatalf("Failed to create manager: %v", err)
	}

	secretvalidation.NewAdmissionHandler(
		rawLog.Sugar().Named(outriderlog.NameWebhook),
		scheme,
		config.DefaultAnnotations(),
	).SetupWebhookWithManager(mgr)
	l.Infow("Secret validation webhook registered", "path", secretvalidation.WebhookPath)

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		l.Fatalf("Failed to add health check: %v", err)
	}
	if err := mgr.AddReadyzCheck("readyz", mgr.GetWebhookServer().StartedChecker()); err != nil {
		l.Fatalf("Failed to add readiness check: %v", err)
	}

	l.Info("Starting webhook server")
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		l.Fatalf("Failed to start manager: %v", err)
	}
}
