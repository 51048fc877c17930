package gopool

// Derived from https://github.com/avast/retry-go, reduced to synchronous
// attempts with an optional fixed delay.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RetryableFunc is the signature of a retried function.
type RetryableFunc func() error

// RetryableFuncWithData is the signature of a retried function with a result.
type RetryableFuncWithData[T any] func() (T, error)

func Retry(retryableFunc RetryableFunc, opts ...RetryOption) error {
	_, err := RetryWithData(func() (struct{}, error) {
		return struct{}{}, retryableFunc()
	}, opts...)
	return err
}

// RetryWithData calls retryableFunc until it succeeds, the error is not
// retryable, the attempts are used up or the context is done. Unless
// LastErrorOnly is set the returned error is a RetryError holding every
// failure in order.
func RetryWithData[T any](retryableFunc RetryableFuncWithData[T], opts ...RetryOption) (T, error) {
	var emptyT T

	config := newDefaultRetryConfig()
	for _, opt := range opts {
		opt(config)
	}

	if err := config.context.Err(); err != nil {
		return emptyT, err
	}

	var errorLog RetryError
	for n := uint(0); config.attempts == 0 || n < config.attempts; n++ {
		t, err := retryableFunc()
		if err == nil {
			return t, nil
		}

		errorLog = append(errorLog, unpackUnrecoverableRetry(err))
		if !IsRecoverableRetry(err) || !config.retryIf(err) {
			break
		}
		if config.attempts != 0 && n+1 == config.attempts {
			break
		}
		config.onRetry(n+1, err)

		if config.delay > 0 {
			select {
			case <-time.After(config.delay):
			case <-config.context.Done():
				return emptyT, config.finish(append(errorLog, config.context.Err()))
			}
		} else if err := config.context.Err(); err != nil {
			return emptyT, config.finish(append(errorLog, err))
		}
	}
	return emptyT, config.finish(errorLog)
}

func newDefaultRetryConfig() *Config {
	return &Config{
		attempts: uint(10),
		onRetry:  func(n uint, err error) {},
		retryIf:  IsRecoverableRetry,
		context:  context.Background(),
	}
}

func (c *Config) finish(errorLog RetryError) error {
	if c.lastErrorOnly {
		return errorLog.Unwrap()
	}
	return errorLog
}

// RetryError is the list of errors returned by each attempt.
type RetryError []error

func (e RetryError) Error() string {
	logWithNumber := make([]string, len(e))
	for i, l := range e {
		if l != nil {
			logWithNumber[i] = fmt.Sprintf("#%d: %s", i+1, l.Error())
		}
	}
	return fmt.Sprintf("all attempts fail:\n%s", strings.Join(logWithNumber, "\n"))
}

func (e RetryError) Is(target error) bool {
	for _, v := range e {
		if errors.Is(v, target) {
			return true
		}
	}
	return false
}

func (e RetryError) As(target interface{}) bool {
	for _, v := range e {
		if errors.As(v, target) {
			return true
		}
	}
	return false
}

// Unwrap returns the last error.
func (e RetryError) Unwrap() error {
	if len(e) == 0 {
		return nil
	}
	return e[len(e)-1]
}

// WrappedErrors returns every attempt's error.
func (e RetryError) WrappedErrors() []error {
	return e
}

type unrecoverableRetryError struct {
	error
}

func (e unrecoverableRetryError) Error() string {
	if e.error == nil {
		return "unrecoverable error"
	}
	return e.error.Error()
}

func (e unrecoverableRetryError) Unwrap() error {
	return e.error
}

func (unrecoverableRetryError) Is(err error) bool {
	_, isUnrecoverable := err.(unrecoverableRetryError)
	return isUnrecoverable
}

// UnrecoverableRetry marks err so that no further attempt is made.
func UnrecoverableRetry(err error) error {
	return unrecoverableRetryError{err}
}

func IsRecoverableRetry(err error) bool {
	return !errors.Is(err, unrecoverableRetryError{})
}

func unpackUnrecoverableRetry(err error) error {
	if unrecoverable, isUnrecoverable := err.(unrecoverableRetryError); isUnrecoverable {
		return unrecoverable.error
	}
	return err
}

// RetryIfFunc reports whether err should be retried.
type RetryIfFunc func(error) bool

// OnRetryFunc is called before attempt n+1, n counting from 1.
type OnRetryFunc func(n uint, err error)

type Config struct {
	attempts      uint
	delay         time.Duration
	onRetry       OnRetryFunc
	retryIf       RetryIfFunc
	lastErrorOnly bool
	context       context.Context
}

type RetryOption func(*Config)

func emptyRetryOption(c *Config) {}

// LastErrorOnly returns the last error instead of a RetryError.
func LastErrorOnly(lastErrorOnly bool) RetryOption {
	return func(c *Config) {
		c.lastErrorOnly = lastErrorOnly
	}
}

// RetryAttempts sets the number of attempts. Zero retries until success.
// Default is 10.
func RetryAttempts(attempts uint) RetryOption {
	return func(c *Config) {
		c.attempts = attempts
	}
}

// RetryDelay sets a fixed wait between attempts. Default is none.
func RetryDelay(delay time.Duration) RetryOption {
	return func(c *Config) {
		c.delay = delay
	}
}

func OnRetry(onRetry OnRetryFunc) RetryOption {
	if onRetry == nil {
		return emptyRetryOption
	}
	return func(c *Config) {
		c.onRetry = onRetry
	}
}

// RetryIf replaces the default predicate, which stops only on errors wrapped
// by UnrecoverableRetry. Unrecoverable errors stop regardless.
func RetryIf(retryIf RetryIfFunc) RetryOption {
	if retryIf == nil {
		return emptyRetryOption
	}
	return func(c *Config) {
		c.retryIf = retryIf
	}
}

func RetryContext(ctx context.Context) RetryOption {
	return func(c *Config) {
		c.context = ctx
	}
}
