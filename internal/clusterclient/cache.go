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
	"sync"

	"golang.org/x/sync/singleflight"

	provisioningv1 "geeko.me/outrider/pkg/apis/provisioning/v1"

	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
)

// Cache memoizes clients per cluster name. Concurrent requests for the same
// uncached cluster share a single construction. Failed constructions are not
// cached.
type Cache struct {
	provider Provider

	mu      sync.RWMutex
	clients map[string]ctrlruntimeclient.Client
	group   singleflight.Group
}

func NewCache(provider Provider) *Cache {
	return &Cache{
		provider: provider,
		clients:  map[string]ctrlruntimeclient.Client{},
	}
}

func (c *Cache) GetClient(ctx context.Context, cluster *provisioningv1.Cluster) (ctrlruntimeclient.Client, error) {
	c.mu.RLock()
	client, ok := c.clients[cluster.Name]
	c.mu.RUnlock()
	if ok {
		return client, nil
	}

	v, err, _ := c.group.Do(cluster.Name, func() (interface{}, error) {
		client, err := c.provider.GetClient(ctx, cluster)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.clients[cluster.Name] = client
		c.mu.Unlock()

		return client, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(ctrlruntimeclient.Client), nil
}

// Invalidate drops the cached client of the named cluster, if any.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.clients, name)
	c.mu.Unlock()

	c.group.Forget(name)
}

// Len returns the number of cached clients.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.clients)
}
