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

package clusterclient

import (
	"context"
	"errors"
	"unicode/utf8"

	"geeko.me/outrider/internal/pkg/kubernetes"
	provisioningv1 "geeko.me/outrider/pkg/apis/provisioning/v1"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
)

// KubeconfigSecretKey is the data key Rancher stores the kubeconfig under.
const KubeconfigSecretKey = "value"

// KubeconfigProvider builds clients from the kubeconfig secret referenced by
// a cluster's status.clientSecretName.
type KubeconfigProvider struct {
	reader            ctrlruntimeclient.Reader
	scheme            *runtime.Scheme
	fallbackNamespace string
	options           []ConfigOption
	newClient         ClientFunc
}

// NewKubeconfigProvider returns a provider reading kubeconfig secrets through
// reader. Secrets of clusters without a namespace are looked up in
// fallbackNamespace.
func NewKubeconfigProvider(reader ctrlruntimeclient.Reader, scheme *runtime.Scheme, fallbackNamespace string, options ...ConfigOption) *KubeconfigProvider {
	return &KubeconfigProvider{
		reader:            reader,
		scheme:            scheme,
		fallbackNamespace: fallbackNamespace,
		options:           options,
	}
}

func (p *KubeconfigProvider) secretNamespace(cluster *provisioningv1.Cluster) string {
	if cluster.Namespace != "" {
		return cluster.Namespace
	}
	return p.fallbackNamespace
}

// GetAdminKubeconfig returns the raw kubeconfig of the cluster.
func (p *KubeconfigProvider) GetAdminKubeconfig(ctx context.Context, cluster *provisioningv1.Cluster) ([]byte, error) {
	name := cluster.Status.ClientSecretName
	if name == "" {
		return nil, &KubeconfigError{Cluster: cluster.Name, Reason: "status.clientSecretName is not set"}
	}

	data, err := kubernetes.GetSecretValue(ctx, p.reader, p.secretNamespace(cluster), name, KubeconfigSecretKey)
	if err != nil {
		if errors.Is(err, kubernetes.ErrSecretKeyNotFound) {
			return nil, &KubeconfigError{Cluster: cluster.Name, Reason: "no kubeconfig found", Err: err}
		}
		return nil, err
	}

	if !utf8.Valid(data) {
		return nil, &KubeconfigError{Cluster: cluster.Name, Reason: "kubeconfig is not valid UTF-8"}
	}

	return data, nil
}

// GetClientConfig returns the rest config for the cluster.
func (p *KubeconfigProvider) GetClientConfig(ctx context.Context, cluster *provisioningv1.Cluster) (*rest.Config, error) {
	data, err := p.GetAdminKubeconfig(ctx, cluster)
	if err != nil {
		return nil, err
	}

	kubeconfig, err := clientcmd.Load(data)
	if err != nil {
		return nil, &KubeconfigError{Cluster: cluster.Name, Reason: "failed to parse kubeconfig", Err: err}
	}

	clientConfig, err := clientcmd.NewNonInteractiveClientConfig(*kubeconfig, kubeconfig.CurrentContext, &clientcmd.ConfigOverrides{}, nil).ClientConfig()
	if err != nil {
		return nil, &KubeconfigError{Cluster: cluster.Name, Reason: "failed to build client config", Err: err}
	}

	applyDefaults(clientConfig, p.options)

	return clientConfig, nil
}

func (p *KubeconfigProvider) GetClient(ctx context.Context, cluster *provisioningv1.Cluster) (ctrlruntimeclient.Client, error) {
	cfg, err := p.GetClientConfig(ctx, cluster)
	if err != nil {
		return nil, err
	}

	return newClient(p.newClient, p.scheme, cluster.Name, cfg)
}
