// Package invariant provides contract assertions.
//
// Assertions are a force multiplier for discovering bugs. Use Precondition
// and Postcondition to express function contracts, and Invariant for
// internal consistency checks.
//
// All functions panic on violation - these are programming errors, not user
// errors.
package invariant

import (
	"fmt"
	"reflect"
	"runtime"
)

// Precondition checks an input contract at function entry.
// Panics with PRECONDITION VIOLATION if condition is false.
//
// Use this to validate function arguments and caller expectations.
//
// Example:
//
//	func Verify(module *il.Module) error {
//	    invariant.NotNil(module, "module")
//	    // ... work ...
//	}
func Precondition(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("PRECONDITION", format, args...)
	}
}

// Postcondition checks an output contract before function return.
// Panics with POSTCONDITION VIOLATION if condition is false.
func Postcondition(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("POSTCONDITION", format, args...)
	}
}

// Invariant checks an internal invariant during function execution.
// Panics with INVARIANT VIOLATION if condition is false.
//
// Use this for loop progress checks, state consistency, and internal logic.
func Invariant(condition bool, format string, args ...interface{}) {
	if !condition {
		fail("INVARIANT", format, args...)
	}
}

// NotNil panics if value is nil.
// This is a precondition check for pointer/interface arguments.
func NotNil(value interface{}, name string) {
	if value == nil {
		fail("PRECONDITION", "%s must not be nil", name)
	}
	// Check for typed nil (e.g., (*T)(nil))
	if isNilValue(value) {
		fail("PRECONDITION", "%s must not be nil", name)
	}
}

// isNilValue checks if a value is a typed nil using reflection
func isNilValue(value interface{}) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}

// ExpectNoError panics if error is not nil.
// This is a postcondition check for operations that should never fail.
func ExpectNoError(err error, msg string) {
	if err != nil {
		fail("POSTCONDITION", "%s must not fail: %v", msg, err)
	}
}

// fail panics with a formatted message including call stack context.
func fail(kind, format string, args ...interface{}) {
	pc := make([]uintptr, 10)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])

	msg := fmt.Sprintf("%s VIOLATION: "+format, append([]interface{}{kind}, args...)...)

	if frame, ok := frames.Next(); ok {
		msg += fmt.Sprintf("\n  at %s:%d", frame.File, frame.Line)
	}
	panic(msg)
}
