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

// Package config holds the runtime configuration of outrider.
//
// The two settings that describe the distribution itself come from the
// environment:
//
//	DEFAULT_TARGET_NAMESPACE  namespace secrets are copied into (required)
//	TESTING_MODE              build downstream clients from the local kubeconfig (optional)
//
// Operational knobs are command-line flags, each of which can also be set
// through the environment using its upper-cased, underscored name
// (e.g. FAN_OUT_CONCURRENCY).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	kerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/validation"
)

const (
	EnvDefaultTargetNamespace = "DEFAULT_TARGET_NAMESPACE"
	EnvTestingMode            = "TESTING_MODE"
)

const (
	// FieldManager is the server-side apply identity used for every downstream write.
	FieldManager = "outrider"

	// DefaultKubeconfigSecretNamespace is where Rancher stores downstream
	// kubeconfig secrets when a cluster does not carry its own namespace.
	DefaultKubeconfigSecretNamespace = "cattle-system"

	DefaultFanOutConcurrency   = 1
	DefaultDistributionTimeout = 30 * time.Second
)

const (
	keyDefaultTargetNamespace    = "default-target-namespace"
	keyTestingMode               = "testing-mode"
	keyKubeconfigSecretNamespace = "kubeconfig-secret-namespace"
	keyFanOutConcurrency         = "fan-out-concurrency"
	keyDistributionTimeout       = "distribution-timeout"
)

// Config is passed explicitly to every component that needs it.
type Config struct {
	// DefaultTargetNamespace is used when a secret carries no namespace override.
	DefaultTargetNamespace string

	// TestingMode derives downstream connections from the ambient rest config
	// instead of reading Rancher's kubeconfig secrets.
	TestingMode bool

	// KubeconfigSecretNamespace is the fallback namespace for kubeconfig secrets.
	KubeconfigSecretNamespace string

	FieldManager string

	// FanOutConcurrency bounds how many distributions of a single fan-out run
	// at once. 1 means strictly sequential.
	FanOutConcurrency int

	// DistributionTimeout bounds a single secret copy to a single cluster.
	DistributionTimeout time.Duration

	Annotations Annotations
}

// AddFlags registers the operational flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(keyKubeconfigSecretNamespace, DefaultKubeconfigSecretNamespace, "Namespace holding downstream kubeconfig secrets for clusters without a namespace")
	fs.Int(keyFanOutConcurrency, DefaultFanOutConcurrency, "Maximum number of parallel distributions within one fan-out")
	fs.Duration(keyDistributionTimeout, DefaultDistributionTimeout, "Deadline for copying one secret to one cluster")
}

// NewViper returns a viper instance reading the environment and, when fs is
// not nil, the flags registered by AddFlags.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv(keyDefaultTargetNamespace, EnvDefaultTargetNamespace); err != nil {
		return nil, err
	}
	if err := v.BindEnv(keyTestingMode, EnvTestingMode); err != nil {
		return nil, err
	}

	v.SetDefault(keyKubeconfigSecretNamespace, DefaultKubeconfigSecretNamespace)
	v.SetDefault(keyFanOutConcurrency, DefaultFanOutConcurrency)
	v.SetDefault(keyDistributionTimeout, DefaultDistributionTimeout)

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	return v, nil
}

// Load builds a validated Config from v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DefaultTargetNamespace:    strings.TrimSpace(v.GetString(keyDefaultTargetNamespace)),
		TestingMode:               parseBool(v.GetString(keyTestingMode)),
		KubeconfigSecretNamespace: v.GetString(keyKubeconfigSecretNamespace),
		FieldManager:              FieldManager,
		FanOutConcurrency:         v.GetInt(keyFanOutConcurrency),
		DistributionTimeout:       v.GetDuration(keyDistributionTimeout),
		Annotations:               DefaultAnnotations(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseBool accepts only the literal "true"; every other value, including
// "1" or "TRUE", is false.
func parseBool(s string) bool {
	return strings.TrimSpace(s) == "true"
}

func (c *Config) Validate() error {
	var errs []error

	if c.DefaultTargetNamespace == "" {
		errs = append(errs, fmt.Errorf("%s must be set", EnvDefaultTargetNamespace))
	} else if msgs := validation.IsDNS1123Label(c.DefaultTargetNamespace); len(msgs) > 0 {
		errs = append(errs, fmt.Errorf("%s %q is not a valid namespace: %s", EnvDefaultTargetNamespace, c.DefaultTargetNamespace, strings.Join(msgs, ", ")))
	}

	if c.KubeconfigSecretNamespace == "" {
		errs = append(errs, fmt.Errorf("kubeconfig secret namespace cannot be empty"))
	}

	if c.FieldManager == "" {
		errs = append(errs, fmt.Errorf("field manager cannot be empty"))
	}

	if c.FanOutConcurrency < 1 {
		errs = append(errs, fmt.Errorf("fan-out concurrency must be at least 1, got %d", c.FanOutConcurrency))
	}

	if c.DistributionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("distribution timeout must be positive, got %s", c.DistributionTimeout))
	}

	if c.Annotations.Prefix == "" || c.Annotations.Enabled == "" || c.Annotations.Namespace == "" {
		errs = append(errs, fmt.Errorf("annotation keys cannot be empty"))
	}

	return kerrors.NewAggregate(errs)
}
