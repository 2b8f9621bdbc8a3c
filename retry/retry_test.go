package retry

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type MyError struct{}

func (e *MyError) Error() string {
	return "Error"
}

type Counter struct {
	sync.Mutex
	count int
}

func (c *Counter) Incr() {
	c.Lock()
	defer c.Unlock()
	c.count++
}

func (c *Counter) Count() int {
	c.Lock()
	defer c.Unlock()
	return c.count
}

var _ = Describe("Retrier", func() {
	var backOffOpts *BackOffOpts
	var counter *Counter
	var ctx context.Context

	BeforeEach(func() {
		backOffOpts = &BackOffOpts{
			InitialInterval: 1 * time.Nanosecond,
			MaxInterval:     5 * time.Nanosecond,
			MaxElapsedTime:  250 * time.Microsecond}
		counter = &Counter{}
		ctx = context.Background()
	})

	It("keeps retrying until MaxElapsedTime and calls NotifyGaveUp", func() {
		retrier := NewRetrier("Retrier", backOffOpts, RetryOnAnyError)

		notifyGaveUpCalled := 0
		retrier.AddNotifyGaveUp(func(*RetryEvent) { notifyGaveUpCalled++ })

		err := retrier.Retry(ctx, func() error {
			counter.Incr()
			return &MyError{}
		})

		Expect(err).To(Equal(&MyError{}))

		Expect(counter.Count()).To(BeNumerically(">", 1))
		Expect(notifyGaveUpCalled).To(Equal(1))
	})

	It("retries until successful, calling NotifyRetry on each retry", func() {
		retrier := NewRetrier("Retrier", backOffOpts, RetryOnAnyError)
		retrier.SetBackOffOpts(&BackOffOpts{
			InitialInterval: 1 * time.Nanosecond,
			MaxInterval:     5 * time.Nanosecond,
			MaxElapsedTime:  time.Minute})

		notifyRetryCalled := 0
		retrier.AddNotifyRetry(func(*RetryEvent) { notifyRetryCalled++ })

		val := 0
		err := retrier.Retry(ctx, func() error {
			counter.Incr()
			if counter.Count() < 5 {
				return &MyError{}
			}
			val = 123
			return nil
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(counter.Count()).To(Equal(5))
		Expect(val).To(Equal(123))

		// We retried 4 times, for a total of 5 tries.
		Expect(notifyRetryCalled).To(Equal(4))
	})

	It("returns the error when there's a non-retryable error", func() {
		retrier := NewRetrier("Retrier", backOffOpts, func(error) bool {
			return false
		})

		notifyShouldNotRetryCalled := 0
		retrier.AddNotifyShouldNotRetry(func(*RetryEvent) { notifyShouldNotRetryCalled++ })

		myError := errors.New("myError")
		err := retrier.Retry(ctx, func() error {
			return myError
		})
		Expect(err).To(Equal(myError))
		Expect(notifyShouldNotRetryCalled).To(Equal(1))
	})

	It("stops waiting when the context is cancelled", func() {
		retrier := NewRetrier("Retrier", &BackOffOpts{
			InitialInterval: time.Hour,
			MaxInterval:     time.Hour,
			MaxElapsedTime:  0}, RetryOnAnyError)

		ctx, cancel := context.WithCancel(ctx)
		err := retrier.Retry(ctx, func() error {
			counter.Incr()
			cancel()
			return &MyError{}
		})
		Expect(err).To(Equal(context.Canceled))
		Expect(counter.Count()).To(Equal(1))
	})
})

var _ = Describe("RetryWhenErrorTypeMatches", func() {
	var MyErrorType = reflect.TypeOf(&MyError{})

	It("returns true when an error matches an expected type", func() {
		shouldRetryFunc := RetryWhenErrorTypeMatches([]reflect.Type{MyErrorType})
		Expect(shouldRetryFunc(&MyError{})).To(BeTrue())
		Expect(shouldRetryFunc(errors.New("hi"))).To(BeFalse())
	})
})
