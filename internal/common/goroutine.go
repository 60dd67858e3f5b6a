// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected execution helpers
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

// recoveredCounter tracks panics recovered via SafeCall
var recoveredCounter int64

// GetRecoveredPanicCount returns the number of panics recovered since start
func GetRecoveredPanicCount() int64 {
	return atomic.LoadInt64(&recoveredCounter)
}

// PanicError is returned by SafeCall when fn panicked
type PanicError struct {
	Name  string
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Name, e.Value)
}

// SafeCall runs fn synchronously and converts a panic into a *PanicError.
// Backend libraries can panic on malformed content; callers use this to
// treat such a panic as a local failure.
//
// Example:
//
//	err := common.SafeCall(logger, "page 3", func() error {
//	    return extractPage(3)
//	})
func SafeCall(logger arbor.ILogger, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := captureStack()
			atomic.AddInt64(&recoveredCounter, 1)
			logPanic(logger, name, r, stack)
			err = &PanicError{Name: name, Value: r, Stack: stack}
		}
	}()
	return fn()
}

func captureStack() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

func logPanic(logger arbor.ILogger, name string, r interface{}, stack string) {
	if logger != nil {
		logger.Error().
			Str("goroutine", name).
			Str("panic", fmt.Sprintf("%v", r)).
			Str("stack", stack).
			Msg("Recovered from panic")
		return
	}
	fmt.Fprintf(os.Stderr, "PANIC in %s: %v\n%s\n", name, r, stack)
}
