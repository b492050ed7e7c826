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
	"errors"
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"

	provisioningv1 "geeko.me/outrider/pkg/apis/provisioning/v1"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/e2e-framework/klient"
	"sigs.k8s.io/e2e-framework/klient/wait"
)

var errClientNotInitialized = errors.New("client is not initialized")

// Namespaces the suite copies secrets into.
var targetNamespaces = []string{defaultTargetNamespace, "e2e-override"}

type suite struct {
	client client.Client
}

func newScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(provisioningv1.AddToScheme(scheme))
	return scheme
}

func (s *suite) withClient(kl klient.Client) error {
	cl, err := client.New(kl.RESTConfig(), client.Options{Scheme: newScheme()})
	if err != nil {
		return err
	}

	s.client = cl
	return nil
}

// loadCluster reads a Cluster fixture and renames it.
func loadCluster(path, name string) (*provisioningv1.Cluster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cluster := &provisioningv1.Cluster{}
	if err := yaml.Unmarshal(data, cluster); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	cluster.Name = name
	return cluster, nil
}

// createCluster creates cluster and then writes its status, which the API
// server drops on create.
func (s *suite) createCluster(ctx context.Context, cluster *provisioningv1.Cluster) error {
	if s.client == nil {
		return errClientNotInitialized
	}

	status := cluster.Status.DeepCopy()
	if err := s.client.Create(ctx, cluster); err != nil {
		return err
	}

	cluster.Status = *status
	return s.client.Status().Update(ctx, cluster)
}

// setClusterReady flips the Ready condition of the named cluster.
func (s *suite) setClusterReady(ctx context.Context, name string, ready bool) error {
	status := "False"
	if ready {
		status = provisioningv1.ConditionStatusTrue
	}

	return waitFor(ctx, func(ctx context.Context) (bool, error) {
		cluster := &provisioningv1.Cluster{}
		if err := s.client.Get(ctx, client.ObjectKey{Namespace: clusterNamespace, Name: name}, cluster); err != nil {
			return false, err
		}

		cluster.Status.Conditions = []provisioningv1.Condition{{
			Type:           provisioningv1.ConditionReady,
			Status:         status,
			LastUpdateTime: time.Now().UTC().Format(time.RFC3339),
		}}

		if err := s.client.Status().Update(ctx, cluster); err != nil {
			if apierrors.IsConflict(err) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	})
}

func (s *suite) getDownstreamSecret(ctx context.Context, namespace, name string) (*corev1.Secret, error) {
	secret := &corev1.Secret{}
	if err := s.client.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, secret); err != nil {
		return nil, err
	}
	return secret, nil
}

func sourceKey(name string) client.ObjectKey {
	return client.ObjectKey{Namespace: sourceNamespace, Name: name}
}

func (s *suite) deleteAllOf(ctx context.Context, obj client.Object, namespace string) error {
	if err := s.client.DeleteAllOf(ctx, obj, client.InNamespace(namespace)); err != nil && !apierrors.IsNotFound(err) {
		return err
	}
	return nil
}

func (s *suite) cleanupAllClusters(ctx context.Context) error {
	if s.client == nil {
		return errClientNotInitialized
	}

	return waitFor(ctx, func(ctx context.Context) (bool, error) {
		if err := s.deleteAllOf(ctx, &provisioningv1.Cluster{}, clusterNamespace); err != nil {
			return false, nil
		}

		clusters := provisioningv1.ClusterList{}
		if err := s.client.List(ctx, &clusters, client.InNamespace(clusterNamespace)); err != nil {
			return false, err
		}

		return len(clusters.Items) == 0, nil
	})
}

func (s *suite) cleanupAllSecrets(ctx context.Context) error {
	if s.client == nil {
		return errClientNotInitialized
	}

	for _, ns := range append([]string{sourceNamespace}, targetNamespaces...) {
		if err := s.deleteAllOf(ctx, &corev1.Secret{}, ns); err != nil {
			return err
		}
	}

	return nil
}

func (s *suite) cleanup(ctx context.Context) error {
	clusterErr := s.cleanupAllClusters(ctx)
	secretErr := s.cleanupAllSecrets(ctx)

	if clusterErr != nil {
		return clusterErr
	}
	return secretErr
}

const (
	timeout  = time.Minute * 1
	interval = time.Second * 1
)

func waitFor(ctx context.Context, f func(ctx context.Context) (bool, error)) error {
	err := wait.For(
		f,
		wait.WithTimeout(timeout),
		wait.WithInterval(interval),
		wait.WithContext(ctx),
	)

	return err
}
