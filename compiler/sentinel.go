package compiler

import "github.com/emberlang/ember/values"

// sentinel converts a Boolean condition into the Nothing/non-Nothing
// encoding POP_JUMP requires (spec §4.5, "Note on POP_JUMP": "the compiler
// stores Nothing when the branch should fall through"). It is invoked as
// an ordinary Builtin call emitted by the compiler around every `if`
// condition, never bound into any environment or visible to Ember source
// — the same inline-BuiltinFunc technique the engine's own tests use
// (vm_test.go's isZeroSentinel) to bridge a boolean-valued comparison into
// a jump decision without a dedicated conditional-jump opcode.
var sentinelBuiltin = &values.BuiltinFunc{
	Name:  "__if_sentinel__",
	Arity: 1,
	Impl: func(args []values.Value) (values.Value, error) {
		if args[0].Truthy() {
			return values.NewNothing(), nil
		}
		return values.NewBoolean(true), nil
	},
}

var sentinelValue = values.NewBuiltin(sentinelBuiltin)
