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

package kubernetes

import (
	"context"
	"errors"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
)

// ErrSecretKeyNotFound is returned when a secret exists but does not carry the
// requested key.
var ErrSecretKeyNotFound = errors.New("secret key not found")

// GetSecretValue gets the secret and returns secret.Data[key].
func GetSecretValue(ctx context.Context, client ctrlruntimeclient.Reader, namespace, name, key string) ([]byte, error) {
	secret := &corev1.Secret{}
	if err := client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, secret); err != nil {
		return nil, fmt.Errorf("failed to get secret %s/%s: %w", namespace, name, err)
	}

	if len(secret.Data) == 0 {
		return nil, fmt.Errorf("secret %s/%s has no data: %w", namespace, name, ErrSecretKeyNotFound)
	}

	value, found := secret.Data[key]
	if !found {
		return nil, fmt.Errorf("key '%s' does not exist in secret '%s/%s': %w", key, namespace, name, ErrSecretKeyNotFound)
	}

	return value, nil
}

// EnsureNamespace creates the namespace when it does not exist yet. It
// reports whether the namespace was created by this call.
func EnsureNamespace(ctx context.Context, client ctrlruntimeclient.Client, name string) (bool, error) {
	ns := &corev1.Namespace{}
	err := client.Get(ctx, types.NamespacedName{Name: name}, ns)
	if err == nil {
		return false, nil
	}

	if !apierrors.IsNotFound(err) {
		return false, fmt.Errorf("failed to get namespace %q: %w", name, err)
	}

	ns = &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
		},
	}
	if err := client.Create(ctx, ns); err != nil {
		// Lost a race with another writer, which is as good as creating it.
		if apierrors.IsAlreadyExists(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create namespace %q: %w", name, err)
	}

	return true, nil
}
