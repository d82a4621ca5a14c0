package compiler

import "fmt"

// Error reports a compile-time failure: an unresolved type name, a
// mismatched field list, an assignment to something that shouldn't be
// possible to reach here (the parser already rejects most of these, but
// Construct's field reconciliation happens only here, after parsing).
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

func errorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}
