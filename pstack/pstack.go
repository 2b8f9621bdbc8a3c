// Package pstack converts values recovered from a panic into errors carrying
// the stack of the panicking goroutine, pointing at the line that panicked
// rather than at the deferred function that recovered.
package pstack

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

type StackTracer interface {
	error
	StackTrace() errors.StackTrace
}

// PanicError is a recovered panic.
type PanicError struct {
	// Value is what was passed to panic.
	Value interface{}
	Err   error
	Stack errors.StackTrace
}

func (e *PanicError) Error() string {
	return e.Err.Error()
}

func (e *PanicError) Unwrap() error {
	return e.Err
}

func (e *PanicError) StackTrace() errors.StackTrace {
	return e.Stack
}

// Recover converts the return value of recover() to an error. It returns nil
// if v is nil. Errors that already carry a stack trace are returned as is.
//
//	defer func() {
//		if err := pstack.Recover(recover()); err != nil {
//			...
//		}
//	}()
func Recover(v interface{}) error {
	if v == nil {
		return nil
	}
	return New(v)
}

// New will convert a value recovered from a panic to an error with a stack
// trace.
func New(v interface{}) (e error) {
	switch err := v.(type) {
	case StackTracer:
		e = err
	case error:
		e = &PanicError{
			Value: v,
			Err:   err,
			Stack: callers().StackTrace(),
		}
	default:
		e = &PanicError{
			Value: v,
			Err:   fmt.Errorf("%v", err),
			Stack: callers().StackTrace(),
		}
	}

	return e
}

// stack represents a stack of program counters.
type stack []uintptr

func (s *stack) StackTrace() errors.StackTrace {
	f := make([]errors.Frame, len(*s))
	for i := 0; i < len(f); i++ {
		f[i] = errors.Frame((*s)[i])
	}
	return f
}

// callers returns the stack starting at the frame that called panic. When
// not called while panicking it starts at the caller of New.
func callers() *stack {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := pcs[:n]

	start := 0
	for i, pc := range frames {
		if fn := runtime.FuncForPC(pc); fn != nil && fn.Name() == "runtime.gopanic" {
			start = i + 1
			break
		}
	}

	// Skip the runtime frames that raised the panic, e.g. runtime.panicIndex.
	for start < len(frames) {
		fn := runtime.FuncForPC(frames[start])
		if fn == nil || !strings.HasPrefix(fn.Name(), "runtime.") {
			break
		}
		start++
	}

	var st stack = frames[start:]
	return &st
}
