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
	"net/url"
	"strings"

	provisioningv1 "geeko.me/outrider/pkg/apis/provisioning/v1"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/rest"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
)

// LocalProvider derives downstream connections from the management cluster's
// own rest config. When its host ends in Rancher's proxy path for the local
// cluster (".../k8s/clusters/local"), the last segment is replaced by the
// downstream cluster's internal name. Any other host is used unchanged.
type LocalProvider struct {
	base      *rest.Config
	scheme    *runtime.Scheme
	options   []ConfigOption
	newClient ClientFunc
}

func NewLocalProvider(base *rest.Config, scheme *runtime.Scheme, options ...ConfigOption) *LocalProvider {
	return &LocalProvider{
		base:    base,
		scheme:  scheme,
		options: options,
	}
}

func (p *LocalProvider) GetClientConfig(cluster *provisioningv1.Cluster) (*rest.Config, error) {
	cfg := rest.CopyConfig(p.base)

	host, err := substituteLocalSegment(cfg.Host, cluster.InternalName())
	if err != nil {
		return nil, &KubeconfigError{Cluster: cluster.Name, Reason: "failed to parse local host", Err: err}
	}
	cfg.Host = host

	applyDefaults(cfg, p.options)

	return cfg, nil
}

func (p *LocalProvider) GetClient(_ context.Context, cluster *provisioningv1.Cluster) (ctrlruntimeclient.Client, error) {
	cfg, err := p.GetClientConfig(cluster)
	if err != nil {
		return nil, err
	}

	return newClient(p.newClient, p.scheme, cluster.Name, cfg)
}

func substituteLocalSegment(host, clusterID string) (string, error) {
	u, err := url.Parse(host)
	if err != nil {
		return "", err
	}

	path := strings.TrimSuffix(u.Path, "/")
	idx := strings.LastIndex(path, "/")
	if path[idx+1:] != provisioningv1.LocalClusterName {
		return host, nil
	}

	u.Path = path[:idx+1] + clusterID
	u.RawPath = ""

	return u.String(), nil
}
