// Package retry retries calls to remote services with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jcarver989/lockbox/logger"
)

type BackOffOpts struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

var DefaultBackOffOpts *BackOffOpts = &BackOffOpts{
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	MaxElapsedTime:  10 * time.Second}

var RetryOnAnyError = func(error) bool { return true }

type RetryNotifier func(*RetryEvent)

type Retrier struct {
	Name                      string
	backOffOpts               *BackOffOpts
	shouldRetryFunc           func(error) bool
	notifyRetryFuncs          []RetryNotifier
	notifyGaveUpFuncs         []RetryNotifier
	notifyShouldNotRetryFuncs []RetryNotifier
}

var retrierNum uint32 = 0

func NewRetrier(name string,
	backOffOpts *BackOffOpts, shouldRetryFunc func(error) bool) *Retrier {

	return &Retrier{
		Name:                      fmt.Sprintf("%s%d", name, atomic.AddUint32(&retrierNum, 1)),
		backOffOpts:               backOffOpts,
		shouldRetryFunc:           shouldRetryFunc,
		notifyRetryFuncs:          []RetryNotifier{logRetry},
		notifyGaveUpFuncs:         []RetryNotifier{logGaveUp},
		notifyShouldNotRetryFuncs: []RetryNotifier{logShouldNotRetry}}
}

func NewErrorTypeRetrier(name string,
	backOffOpts *BackOffOpts, errorTypes ...interface{}) *Retrier {

	return &Retrier{
		Name:            name,
		backOffOpts:     backOffOpts,
		shouldRetryFunc: RetryWhenErrorTypeMatches(instancesToTypes(errorTypes))}
}

// Retry calls f until it succeeds, the error is not retryable, the backoff
// gives up or ctx is done. The last error from f is returned, or ctx.Err()
// when ctx ends the wait between attempts.
func (r *Retrier) Retry(ctx context.Context, f func() error) error {
	var err error
	var next time.Duration

	numTries := 0
	b := r.newBackOff()
	b.Reset()
	for {
		numTries++
		if err = f(); err == nil {
			return nil
		}

		if !r.shouldRetryFunc(err) {
			r.notifyShouldNotRetry(ctx, err, numTries)
			return err
		}

		if next = b.NextBackOff(); next == backoff.Stop {
			r.notifyGaveUp(ctx, err, numTries)
			return err
		}

		t := time.NewTimer(next)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		r.notifyRetry(ctx, err, numTries)
	}
}

type RetryEvent struct {
	Ctx      context.Context
	Retrier  *Retrier
	Err      error
	NumTries int
}

func (r *Retrier) AddNotifyRetry(f RetryNotifier) {
	r.notifyRetryFuncs = append(r.notifyRetryFuncs, f)
}

func (r *Retrier) AddNotifyGaveUp(f RetryNotifier) {
	r.notifyGaveUpFuncs = append(r.notifyGaveUpFuncs, f)
}

func (r *Retrier) AddNotifyShouldNotRetry(f RetryNotifier) {
	r.notifyShouldNotRetryFuncs = append(r.notifyShouldNotRetryFuncs, f)
}

func (r *Retrier) notifyShouldNotRetry(ctx context.Context, err error, numTries int) {
	notify(r.notifyShouldNotRetryFuncs, &RetryEvent{Ctx: ctx, Retrier: r, Err: err, NumTries: numTries})
}

func (r *Retrier) notifyGaveUp(ctx context.Context, err error, numTries int) {
	notify(r.notifyGaveUpFuncs, &RetryEvent{Ctx: ctx, Retrier: r, Err: err, NumTries: numTries})
}

func (r *Retrier) notifyRetry(ctx context.Context, err error, numTries int) {
	notify(r.notifyRetryFuncs, &RetryEvent{Ctx: ctx, Retrier: r, Err: err, NumTries: numTries})
}

func notify(fs []RetryNotifier, re *RetryEvent) {
	for _, f := range fs {
		f(re)
	}
}

func logShouldNotRetry(re *RetryEvent) {
	logger.Debug(re.Ctx, "error not qualified for retry",
		"error", re.Err.Error(), fmt.Sprintf("count#retry.%s.no_retry", re.Retrier.Name), 1)
}

func logRetry(re *RetryEvent) {
	logger.Info(re.Ctx, "retrying",
		"tries", re.NumTries, "error", re.Err.Error(), fmt.Sprintf("count#retry.%s.retry_count", re.Retrier.Name), 1)
}

func logGaveUp(re *RetryEvent) {
	logger.Warn(re.Ctx, "giving up",
		"tries", re.NumTries, "error", re.Err.Error(), fmt.Sprintf("count#retry.%s.gave_up_count", re.Retrier.Name), 1)
}

func RetryWhenErrorTypeMatches(errorTypes []reflect.Type) func(error) bool {
	errorTypeSet := make(map[reflect.Type]bool)
	for _, t := range errorTypes {
		errorTypeSet[t] = true
	}
	return func(e error) bool {
		errorType := reflect.TypeOf(e)
		return errorTypeSet[errorType]
	}
}

func (r *Retrier) SetBackOffOpts(b *BackOffOpts) {
	r.backOffOpts = b
}

func (r *Retrier) newBackOff() backoff.BackOff {
	opts := r.backOffOpts
	if opts == nil {
		opts = DefaultBackOffOpts
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.InitialInterval
	b.MaxInterval = opts.MaxInterval
	b.MaxElapsedTime = opts.MaxElapsedTime
	return b
}

func instancesToTypes(instances []interface{}) []reflect.Type {
	types := []reflect.Type{}
	for _, instance := range instances {
		types = append(types, reflect.TypeOf(instance))
	}
	return types
}
