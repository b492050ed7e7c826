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

// Package validation provides a validating admission webhook for Secrets that
// carry outrider annotations. It rejects malformed namespace overrides and
// unknown outrider keys, and warns about annotations the distribution pipeline
// would silently ignore.
package validation

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"geeko.me/outrider/internal/config"

	admissionv1 "k8s.io/api/admission/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/validation/field"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"
)

const (
	// WebhookPath is the HTTP path for this webhook.
	WebhookPath = "/validate-v1-secret-outrider"
)

// AdmissionHandler handles validating admission requests for Secrets.
type AdmissionHandler struct {
	log         *zap.SugaredLogger
	decoder     admission.Decoder
	annotations config.Annotations
}

// NewAdmissionHandler creates a new AdmissionHandler.
func NewAdmissionHandler(log *zap.SugaredLogger, scheme *runtime.Scheme, annotations config.Annotations) *AdmissionHandler {
	return &AdmissionHandler{
		log:         log,
		decoder:     admission.NewDecoder(scheme),
		annotations: annotations,
	}
}

// SetupWebhookWithManager registers the webhook with the manager.
func (h *AdmissionHandler) SetupWebhookWithManager(mgr ctrl.Manager) {
	mgr.GetWebhookServer().Register(WebhookPath, &webhook.Admission{Handler: h})
}

func (h *AdmissionHandler) Handle(_ context.Context, req admission.Request) admission.Response {
	log := h.log.With("uid", req.UID, "secret", fmt.Sprintf("%s/%s", req.Namespace, req.Name), "operation", req.Operation)

	switch req.Operation {
	case admissionv1.Create, admissionv1.Update:
	default:
		return admission.Allowed(fmt.Sprintf("%q operations do not require validation", req.Operation))
	}

	secret := &corev1.Secret{}
	if err := h.decoder.Decode(req, secret); err != nil {
		return admission.Errored(http.StatusBadRequest, fmt.Errorf("failed to decode request: %w", err))
	}

	if errs := h.ValidateAnnotations(secret.Annotations); len(errs) > 0 {
		log.Debugw("Rejecting secret", "errors", errs.ToAggregate())
		return admission.Denied(errs.ToAggregate().Error())
	}

	resp := admission.Allowed("")
	if warnings := h.Warnings(secret); len(warnings) > 0 {
		resp = resp.WithWarnings(warnings...)
	}

	return resp
}

// Warnings reports annotations that are accepted but leave the secret
// ineligible for distribution.
func (h *AdmissionHandler) Warnings(secret *corev1.Secret) []string {
	var warnings []string

	if value, ok := secret.Annotations[h.annotations.Enabled]; ok && value != "true" && value != "false" {
		warnings = append(warnings, fmt.Sprintf("annotation %s=%q is not \"true\", the secret will not be distributed", h.annotations.Enabled, value))
	}

	if _, ok := secret.Annotations[h.annotations.Namespace]; ok && !h.annotations.IsEnabled(secret) {
		warnings = append(warnings, fmt.Sprintf("annotation %s has no effect unless %s is \"true\"", h.annotations.Namespace, h.annotations.Enabled))
	}

	return warnings
}

// ValidateAnnotations checks the outrider-owned keys of annotations. Keys
// outside the outrider prefix are not inspected. The enabled value is never an
// error; see Warnings.
func (h *AdmissionHandler) ValidateAnnotations(annotations map[string]string) field.ErrorList {
	var allErrs field.ErrorList
	fldPath := field.NewPath("metadata", "annotations")

	keys := make([]string, 0, len(annotations))
	for k := range annotations {
		if h.annotations.Owns(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := annotations[key]

		switch key {
		case h.annotations.Enabled:
			// Any value is accepted; see Warnings.
		case h.annotations.Namespace:
			for _, msg := range validation.IsDNS1123Label(value) {
				allErrs = append(allErrs, field.Invalid(fldPath.Key(key), value, msg))
			}
		default:
			allErrs = append(allErrs, field.Forbidden(fldPath.Key(key), "unknown outrider annotation"))
		}
	}

	return allErrs
}
