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

package config

import (
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// AnnotationPrefix is the annotation namespace owned by outrider. Keys with
	// this prefix are never copied to downstream clusters.
	AnnotationPrefix = "outrider.geeko.me/"

	// AnnotationEnabled opts a secret into distribution when set to "true".
	AnnotationEnabled = AnnotationPrefix + "enabled"

	// AnnotationNamespace overrides the namespace the secret is copied into.
	AnnotationNamespace = AnnotationPrefix + "namespace"
)

// Annotations holds the annotation keys outrider interprets on source secrets.
type Annotations struct {
	Prefix    string
	Enabled   string
	Namespace string
}

func DefaultAnnotations() Annotations {
	return Annotations{
		Prefix:    AnnotationPrefix,
		Enabled:   AnnotationEnabled,
		Namespace: AnnotationNamespace,
	}
}

// IsEnabled reports whether obj opted into distribution. Only the exact value
// "true" counts.
func (a Annotations) IsEnabled(obj metav1.Object) bool {
	return obj.GetAnnotations()[a.Enabled] == "true"
}

// TargetNamespace returns the namespace override of obj, or fallback when the
// override is absent or empty.
func (a Annotations) TargetNamespace(obj metav1.Object, fallback string) string {
	if ns := obj.GetAnnotations()[a.Namespace]; ns != "" {
		return ns
	}

	return fallback
}

// Owns reports whether key belongs to the outrider annotation namespace.
func (a Annotations) Owns(key string) bool {
	return strings.HasPrefix(key, a.Prefix)
}

// Strip returns a copy of in without any outrider-owned keys. A nil map is
// returned when nothing remains.
func (a Annotations) Strip(in map[string]string) map[string]string {
	var out map[string]string
	for k, v := range in {
		if a.Owns(k) {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(in))
		}
		out[k] = v
	}

	return out
}
