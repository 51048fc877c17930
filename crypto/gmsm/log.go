package gmsm

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/opentoys/smcrypto/gopool"
	"github.com/opentoys/smcrypto/logx"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(logx.Nop())
}

// SetLogger sets the logger that receives retry and decryption failure
// events at debug level. A nil logger discards them.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = logx.Nop()
	}
	logger.Store(l)
}

func log() *slog.Logger {
	return logger.Load()
}

const maxRetryLimit = 100

var (
	errScalarRetry  = errors.New("sm2: random scalar out of range")
	errSignRetry    = errors.New("sm2: degenerate signature")
	errEncryptRetry = errors.New("sm2: all zero key stream")
)

func retryable(err error) bool {
	if errors.Is(err, ErrRetryExhausted) {
		return false
	}
	return errors.Is(err, errScalarRetry) || errors.Is(err, errSignRetry) || errors.Is(err, errEncryptRetry)
}

// retry runs fn until it returns something other than a retryable
// degeneracy, at most maxRetryLimit times.
func retry[T any](op string, fn func() (T, error)) (T, error) {
	v, err := gopool.RetryWithData(fn,
		gopool.RetryAttempts(maxRetryLimit),
		gopool.RetryIf(retryable),
		gopool.LastErrorOnly(true),
		gopool.OnRetry(func(n uint, err error) {
			log().Debug("sm2 retry", "op", op, "attempt", n, "err", err)
		}),
	)
	if err != nil && retryable(err) {
		return v, fmt.Errorf("%w: %s: %w", ErrRetryExhausted, op, err)
	}
	return v, err
}
