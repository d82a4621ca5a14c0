package builtin

import (
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/emberlang/ember/heap"
	"github.com/emberlang/ember/values"
)

// clockBuiltin exposes the host's wall clock as a niladic builtin returning
// whole seconds since the Unix epoch. Ember has no Float kind, so sub-second
// resolution would have nowhere to live; truncating to seconds keeps the
// result a plain Integer.
func clockBuiltin() *values.BuiltinFunc {
	return &values.BuiltinFunc{
		Name:  "clock",
		Arity: 0,
		Impl: func(args []values.Value) (values.Value, error) {
			return values.NewInteger(time.Now().Unix()), nil
		},
	}
}

// strftimeBuiltin formats a Unix-seconds timestamp with a strftime layout
// string, via go-strftime so Ember inherits C's familiar %Y-%m-%d style
// directives instead of Go's reference-time layout. Arguments are
// (format, timestamp), matching the order they appear in source.
func strftimeBuiltin(h *heap.Heap) *values.BuiltinFunc {
	return &values.BuiltinFunc{
		Name:  "strftime",
		Arity: 2,
		Impl: func(args []values.Value) (values.Value, error) {
			format, err := stringArg(h, args[0], "strftime")
			if err != nil {
				return values.Value{}, err
			}
			ts, err := integerArg(args[1], "strftime")
			if err != nil {
				return values.Value{}, err
			}
			formatted, err := strftime.Format(format, time.Unix(ts, 0).UTC())
			if err != nil {
				return values.Value{}, err
			}
			return newStringValue(h, formatted), nil
		},
	}
}

// stringArg extracts v as a Go string, or an error naming the offending
// builtin if it isn't a live String.
func stringArg(h *heap.Heap, v values.Value, name string) (string, error) {
	if v.Kind != values.String {
		return "", &hostError{msg: name + ": expected a string argument"}
	}
	return stringValue(h, v), nil
}

// integerArg extracts v as a Go int64, or an error naming the offending
// builtin if it isn't a live Integer.
func integerArg(v values.Value, name string) (int64, error) {
	if v.Kind != values.Integer {
		return 0, &hostError{msg: name + ": expected an integer argument"}
	}
	return v.AsInteger(), nil
}
