// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-databox.
//
// go-databox is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package health

import (
	"context"
	"errors"
	"io"

	"github.com/jeremyhahn/go-databox/pkg/crypto/rand"
)

// SelfTestCheck adapts a function returning an error into a CheckFunc. A
// cancelled or expired context is reported as unhealthy.
func SelfTestCheck(name string, fn func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) CheckResult {
		result := CheckResult{Name: name, Status: StatusHealthy, Message: "self-test passed"}

		done := make(chan error, 1)
		go func() { done <- fn(ctx) }()

		var err error
		select {
		case err = <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
		if err != nil {
			result.Status = StatusUnhealthy
			result.Message = "self-test failed"
			result.Error = err.Error()
			if errors.Is(err, context.DeadlineExceeded) {
				result.Message = "self-test timed out"
			}
		}
		return result
	}
}

// EntropyCheck runs rand.SelfTest against r. When r is a rand.Resolver
// that is no longer backed by its configured hardware source, the check
// reports degraded.
func EntropyCheck(r io.Reader) CheckFunc {
	selfTest := SelfTestCheck("entropy", func(context.Context) error {
		return rand.SelfTest(r)
	})
	return func(ctx context.Context) CheckResult {
		result := selfTest(ctx)
		if result.Status != StatusHealthy {
			return result
		}
		if resolver, ok := r.(rand.Resolver); ok {
			result.Message = "entropy source " + string(resolver.Mode()) + " passed self-test"
			if !resolver.Available() {
				result.Status = StatusDegraded
				result.Message = "entropy source " + string(resolver.Mode()) + " unavailable, using fallback"
			}
		}
		return result
	}
}
