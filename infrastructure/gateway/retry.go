package gateway

import (
	"context"
	"errors"
	"time"

	"potsync/domain/entities"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// retryTransient runs op until it succeeds, fails with a non-transient error,
// or maxRetries retries have been spent
func retryTransient(ctx context.Context, maxRetries int, initialInterval time.Duration, operation string, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialInterval
	policy.MaxInterval = 10 * initialInterval
	policy.MaxElapsedTime = 0

	attempt := 0
	return backoff.RetryNotify(
		func() error {
			attempt++
			err := op()
			if err == nil {
				return nil
			}
			if errors.Is(err, entities.ErrTransientAPI) {
				return err
			}
			return backoff.Permanent(err)
		},
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxRetries)), ctx),
		func(err error, wait time.Duration) {
			log.WithFields(log.Fields{
				"operation": operation,
				"attempt":   attempt,
				"wait":      wait,
				"error":     err,
			}).Warn("Transient provider failure, retrying")
		},
	)
}
