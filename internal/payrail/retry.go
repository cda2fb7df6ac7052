// internal/payrail/retry.go
package payrail

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"funding-engine/internal/common/errors"
	"funding-engine/internal/common/logger"
)

// RetryConfig bounds the backoff loop around a flaky rail.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Timeout    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
		Timeout:    30 * time.Second,
	}
}

// RetryingRail wraps an inner rail with bounded exponential backoff. After
// the attempt budget is spent the transfer surfaces as a terminal
// payment-rail error; it is never silently dropped.
type RetryingRail struct {
	inner  Rail
	config RetryConfig
	logger logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRetryingRail(inner Rail, config RetryConfig, log logger.Logger) *RetryingRail {
	return &RetryingRail{
		inner:  inner,
		config: config,
		logger: log.WithFields(map[string]interface{}{"component": "payrail"}),
		sleep:  sleepCtx,
	}
}

func (r *RetryingRail) Transfer(ctx context.Context, fromVault, toWallet string, amount int64) (*Receipt, error) {
	var lastErr error
	delay := r.config.BaseDelay

	for attempt := 1; attempt <= r.config.MaxRetries; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if r.config.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		}
		receipt, err := r.inner.Transfer(attemptCtx, fromVault, toWallet, amount)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return receipt, nil
		}
		lastErr = err

		// The caller gave up; no point burning the remaining attempts.
		if ctx.Err() != nil {
			return nil, errors.NewPaymentRailTimeoutError(ctx.Err().Error())
		}

		if attempt < r.config.MaxRetries {
			r.logger.Warn("transfer failed, retrying", map[string]interface{}{
				"attempt":   attempt,
				"toWallet":  toWallet,
				"amount":    amount,
				"nextDelay": delay.String(),
				"error":     err.Error(),
			})
			if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
				return nil, errors.NewPaymentRailTimeoutError(sleepErr.Error())
			}
			delay *= 2
			if delay > r.config.MaxDelay {
				delay = r.config.MaxDelay
			}
		}
	}

	r.logger.Error("transfer failed after all retries", map[string]interface{}{
		"toWallet": toWallet,
		"amount":   amount,
		"attempts": r.config.MaxRetries,
		"error":    lastErr.Error(),
	})

	if stderrors.Is(lastErr, context.DeadlineExceeded) {
		return nil, errors.NewPaymentRailTimeoutError(
			fmt.Sprintf("toWallet: %s, attempts: %d", toWallet, r.config.MaxRetries))
	}
	return nil, errors.NewPaymentRailError(lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
