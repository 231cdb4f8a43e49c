// ///////////////////////////////////////////////////////////////////////////
//
// # MPTT - Nested-set tree maintenance
//
// Copyright (C) 2023 - 2026, pgEdge (https://www.pgedge.com/)
//
// This software is released under the PostgreSQL License:
// https://opensource.org/license/postgresql
//
// ///////////////////////////////////////////////////////////////////////////

package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pgedge/mptt/pkg/logger"
	"github.com/pgedge/mptt/pkg/nestedset"
)

const (
	baseBackoff = 10 * time.Millisecond
	maxBackoff  = time.Second
)

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseBackoff
	b.Multiplier = 2
	b.MaxInterval = maxBackoff
	return b
}

// Retry runs attempt until it succeeds, fails with an error that is not
// retryable, ctx ends, or maxRetries extra attempts have been spent. Waits
// start around 10ms, roughly double and are capped at one second. When ctx
// ends during a wait the context error is returned.
func Retry(ctx context.Context, maxRetries int, attempt func() error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	tries := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		tries++
		err := attempt()
		if err != nil && !nestedset.IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(uint(maxRetries)+1),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Debug("retrying transaction after conflict (attempt %d/%d, in %s): %v", tries, maxRetries, wait, err)
		}),
	)

	// The try limit is checked before the permanent marker is unwrapped.
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
