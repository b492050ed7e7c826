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

package synchronizer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	provisioningv1 "geeko.me/outrider/pkg/apis/provisioning/v1"

	corev1 "k8s.io/api/core/v1"
	kerrors "k8s.io/apimachinery/pkg/util/errors"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
)

type target struct {
	secret  *corev1.Secret
	cluster *provisioningv1.Cluster
}

// fanOutResult summarizes one fan-out.
type fanOutResult struct {
	attempted int
	succeeded int
	failed    int
	errs      []error
}

// err aggregates the errors of all failed distributions, or returns nil.
func (r *fanOutResult) err() error {
	return kerrors.NewAggregate(r.errs)
}

// fanOut distributes every target independently. A failing target never
// stops the others. At most cfg.FanOutConcurrency distributions run at once.
func (c *Coordinator) fanOut(ctx context.Context, l *zap.SugaredLogger, targets []target) fanOutResult {
	var (
		mu     sync.Mutex
		result fanOutResult
		g      errgroup.Group
	)
	g.SetLimit(c.cfg.FanOutConcurrency)

	for _, t := range targets {
		g.Go(func() error {
			err := c.distributor.Distribute(ctx, t.secret, t.cluster)

			mu.Lock()
			defer mu.Unlock()

			result.attempted++
			if err != nil {
				result.failed++
				result.errs = append(result.errs, fmt.Errorf("secret %s to cluster %s: %w", ctrlruntimeclient.ObjectKeyFromObject(t.secret), t.cluster.Name, err))
				l.Errorw("Failed to distribute secret",
					"secret", ctrlruntimeclient.ObjectKeyFromObject(t.secret),
					"cluster", t.cluster.Name,
					zap.Error(err),
				)
				return nil
			}

			result.succeeded++
			return nil
		})
	}

	// Workers never return errors.
	_ = g.Wait()

	if result.failed > 0 {
		l.Warnw("Fan-out completed with failures",
			"attempted", result.attempted,
			"succeeded", result.succeeded,
			"failed", result.failed,
			zap.Error(result.err()),
		)
	} else if result.attempted > 0 {
		l.Infow("Fan-out completed", "attempted", result.attempted)
	}

	return result
}
