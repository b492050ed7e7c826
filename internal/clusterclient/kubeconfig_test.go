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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	provisioningv1 "geeko.me/outrider/pkg/apis/provisioning/v1"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
	ctrlruntimefakeclient "sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func testKubeconfig(t *testing.T, server string) []byte {
	t.Helper()

	cfg := clientcmdapi.NewConfig()
	cfg.Clusters["downstream"] = &clientcmdapi.Cluster{Server: server}
	cfg.AuthInfos["admin"] = &clientcmdapi.AuthInfo{Token: "token"}
	cfg.Contexts["default"] = &clientcmdapi.Context{Cluster: "downstream", AuthInfo: "admin"}
	cfg.CurrentContext = "default"

	data, err := clientcmd.Write(*cfg)
	require.NoError(t, err)

	return data
}

func kubeconfigSecret(namespace, name string, data map[string][]byte) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Data:       data,
	}
}

func downstreamCluster(namespace, name, secretName string) *provisioningv1.Cluster {
	return &provisioningv1.Cluster{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Status: provisioningv1.ClusterStatus{
			ClientSecretName: secretName,
			ClusterName:      "c-m-" + name,
		},
	}
}

func TestKubeconfigProviderGetClientConfig(t *testing.T) {
	valid := testKubeconfig(t, "https://c1.example.com:6443")

	tests := []struct {
		name            string
		objects         []ctrlruntimeclient.Object
		cluster         *provisioningv1.Cluster
		expectedHost    string
		kubeconfigError bool
		notFound        bool
	}{
		{
			name: "kubeconfig in cluster namespace",
			objects: []ctrlruntimeclient.Object{
				kubeconfigSecret("fleet-default", "c1-kubeconfig", map[string][]byte{"value": valid}),
			},
			cluster:      downstreamCluster("fleet-default", "c1", "c1-kubeconfig"),
			expectedHost: "https://c1.example.com:6443",
		},
		{
			name: "kubeconfig in fallback namespace",
			objects: []ctrlruntimeclient.Object{
				kubeconfigSecret("cattle-system", "c1-kubeconfig", map[string][]byte{"value": valid}),
			},
			cluster:      downstreamCluster("", "c1", "c1-kubeconfig"),
			expectedHost: "https://c1.example.com:6443",
		},
		{
			name:            "missing secret reference",
			cluster:         downstreamCluster("fleet-default", "c1", ""),
			kubeconfigError: true,
		},
		{
			name:     "missing secret",
			cluster:  downstreamCluster("fleet-default", "c1", "c1-kubeconfig"),
			notFound: true,
		},
		{
			name: "secret without data",
			objects: []ctrlruntimeclient.Object{
				kubeconfigSecret("fleet-default", "c1-kubeconfig", nil),
			},
			cluster:         downstreamCluster("fleet-default", "c1", "c1-kubeconfig"),
			kubeconfigError: true,
		},
		{
			name: "secret without value key",
			objects: []ctrlruntimeclient.Object{
				kubeconfigSecret("fleet-default", "c1-kubeconfig", map[string][]byte{"kubeconfig": valid}),
			},
			cluster:         downstreamCluster("fleet-default", "c1", "c1-kubeconfig"),
			kubeconfigError: true,
		},
		{
			name: "invalid UTF-8",
			objects: []ctrlruntimeclient.Object{
				kubeconfigSecret("fleet-default", "c1-kubeconfig", map[string][]byte{"value": {0xff, 0xfe, 0xfd}}),
			},
			cluster:         downstreamCluster("fleet-default", "c1", "c1-kubeconfig"),
			kubeconfigError: true,
		},
		{
			name: "unparsable kubeconfig",
			objects: []ctrlruntimeclient.Object{
				kubeconfigSecret("fleet-default", "c1-kubeconfig", map[string][]byte{"value": []byte("clusters: [")}),
			},
			cluster:         downstreamCluster("fleet-default", "c1", "c1-kubeconfig"),
			kubeconfigError: true,
		},
		{
			name: "kubeconfig without contexts",
			objects: []ctrlruntimeclient.Object{
				kubeconfigSecret("fleet-default", "c1-kubeconfig", map[string][]byte{"value": []byte("apiVersion: v1\nkind: Config\n")}),
			},
			cluster:         downstreamCluster("fleet-default", "c1", "c1-kubeconfig"),
			kubeconfigError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reader := ctrlruntimefakeclient.NewClientBuilder().WithScheme(scheme.Scheme).WithObjects(tc.objects...).Build()
			provider := NewKubeconfigProvider(reader, scheme.Scheme, "cattle-system", WithTimeout(5*time.Second))

			cfg, err := provider.GetClientConfig(context.Background(), tc.cluster)

			var kcErr *KubeconfigError
			switch {
			case tc.kubeconfigError:
				require.Error(t, err)
				assert.True(t, errors.As(err, &kcErr), "expected a KubeconfigError, got %T: %v", err, err)
				assert.Equal(t, "c1", kcErr.Cluster)
			case tc.notFound:
				require.Error(t, err)
				assert.False(t, errors.As(err, &kcErr), "API errors must not be reported as KubeconfigError")
				assert.True(t, apierrors.IsNotFound(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, tc.expectedHost, cfg.Host)
				assert.Equal(t, "token", cfg.BearerToken)
				assert.Equal(t, float32(defaultQPS), cfg.QPS)
				assert.Equal(t, defaultBurst, cfg.Burst)
				assert.Equal(t, 5*time.Second, cfg.Timeout)
			}
		})
	}
}

func TestKubeconfigProviderGetClient(t *testing.T) {
	secret := kubeconfigSecret("fleet-default", "c1-kubeconfig", map[string][]byte{"value": testKubeconfig(t, "https://c1.example.com")})
	reader := ctrlruntimefakeclient.NewClientBuilder().WithScheme(scheme.Scheme).WithObjects(secret).Build()
	cluster := downstreamCluster("fleet-default", "c1", "c1-kubeconfig")

	t.Run("passes config and scheme to the client constructor", func(t *testing.T) {
		provider := NewKubeconfigProvider(reader, scheme.Scheme, "cattle-system")

		var gotHost string
		downstream := ctrlruntimefakeclient.NewClientBuilder().Build()
		provider.newClient = func(cfg *rest.Config, opts ctrlruntimeclient.Options) (ctrlruntimeclient.Client, error) {
			gotHost = cfg.Host
			assert.Same(t, scheme.Scheme, opts.Scheme)
			return downstream, nil
		}

		client, err := provider.GetClient(context.Background(), cluster)
		require.NoError(t, err)
		assert.Same(t, downstream, client)
		assert.Equal(t, "https://c1.example.com", gotHost)
	})

	t.Run("client construction failures are kubeconfig errors", func(t *testing.T) {
		provider := NewKubeconfigProvider(reader, scheme.Scheme, "cattle-system")
		provider.newClient = func(*rest.Config, ctrlruntimeclient.Options) (ctrlruntimeclient.Client, error) {
			return nil, errors.New("bad TLS data")
		}

		_, err := provider.GetClient(context.Background(), cluster)

		var kcErr *KubeconfigError
		require.ErrorAs(t, err, &kcErr)
		assert.Contains(t, err.Error(), "bad TLS data")
	})
}
