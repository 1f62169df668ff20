// Package verify implements the IL verifier: structural checks driven by the
// opcode schema, per-opcode semantic strategies, control-flow validation, and
// the exception-handling analyses. Verification borrows the module immutably;
// all analysis state lives inside a single call.
package verify

import (
	"github.com/splanck/viper/core/diag"
	"github.com/splanck/viper/core/il"
)

// TypeEnv tracks the SSA environment for one function: the static type of
// every known temporary and the set of ids that are defined at the current
// program point. The two containers move in lock-step.
type TypeEnv struct {
	temps   map[uint32]il.Type
	defined map[uint32]struct{}
}

// NewTypeEnv returns an environment seeded with the function parameters.
func NewTypeEnv(fn *il.Function) *TypeEnv {
	env := &TypeEnv{
		temps:   make(map[uint32]il.Type),
		defined: make(map[uint32]struct{}),
	}
	for _, p := range fn.Params {
		env.AddTemp(p.ID, p.Type)
	}
	return env
}

// ValueType resolves the static type of v. For temporaries the recorded type
// is returned; missing reports whether the temporary was unknown.
func (e *TypeEnv) ValueType(v il.Value) (ty il.Type, missing bool) {
	if v.Kind == il.KindTemp {
		ty, ok := e.temps[v.ID]
		if !ok {
			return il.Void, true
		}
		return ty, false
	}
	return v.StaticType(), false
}

// TypeOf is ValueType without the missing flag, for call sites that already
// validated definedness.
func (e *TypeEnv) TypeOf(v il.Value) il.Type {
	ty, _ := e.ValueType(v)
	return ty
}

// RecordResult inserts the instruction's result id with the given type. A
// nil result is ignored.
func (e *TypeEnv) RecordResult(in *il.Instr, ty il.Type) {
	if in.Result != nil {
		e.temps[*in.Result] = ty
		e.defined[*in.Result] = struct{}{}
	}
}

// AddTemp declares id with the given type and marks it defined.
func (e *TypeEnv) AddTemp(id uint32, ty il.Type) {
	e.temps[id] = ty
	e.defined[id] = struct{}{}
}

// RemoveTemp erases id from both containers, used when a block parameter
// scope ends.
func (e *TypeEnv) RemoveTemp(id uint32) {
	delete(e.temps, id)
	delete(e.defined, id)
}

// IsDefined reports whether id is currently defined.
func (e *TypeEnv) IsDefined(id uint32) bool {
	_, ok := e.defined[id]
	return ok
}

// EnsureOperandsDefined fails when any temporary operand is unknown or used
// before its definition on the current path.
func (e *TypeEnv) EnsureOperandsDefined(fn *il.Function, bb *il.BasicBlock, in *il.Instr) error {
	for _, op := range in.Operands {
		if op.Kind != il.KindTemp {
			continue
		}
		_, missing := e.ValueType(op)
		undefined := !e.IsDefined(op.ID)
		if !missing && !undefined {
			continue
		}
		switch {
		case missing && undefined:
			return diag.Errorf(in.Loc, "%s", formatInstrDiag(fn, bb, in,
				"unknown temp %"+itoa(op.ID)+"; use before def of %"+itoa(op.ID)))
		case missing:
			return diag.Errorf(in.Loc, "%s", formatInstrDiag(fn, bb, in, "unknown temp %"+itoa(op.ID)))
		default:
			return diag.Errorf(in.Loc, "%s", formatInstrDiag(fn, bb, in, "use before def of %"+itoa(op.ID)))
		}
	}
	return nil
}
