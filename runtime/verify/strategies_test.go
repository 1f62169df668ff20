package verify

import (
	"testing"

	"github.com/splanck/viper/core/il"
)

func externModule(externs []il.Extern, fns ...il.Function) *il.Module {
	return &il.Module{Externs: externs, Functions: fns}
}

func TestAllocaChecks(t *testing.T) {
	t.Run("negative size", func(t *testing.T) {
		m := moduleOf(fn("f", il.Void,
			block("entry", typed(il.OpAlloca, il.Ptr, 1, il.ConstInt(-1)), ret()),
		))
		requireDiag(t, m, "negative alloca size")
	})
	t.Run("size must be i64", func(t *testing.T) {
		m := moduleOf(fnWithParams("f", il.Void,
			[]il.Param{{ID: 1, Name: "n", Type: il.F64}},
			block("entry", typed(il.OpAlloca, il.Ptr, 2, il.Temp(1)), ret()),
		))
		requireDiag(t, m, "operand 0 must be i64")
	})
	t.Run("accepted", func(t *testing.T) {
		m := moduleOf(fn("f", il.Void,
			block("entry", typed(il.OpAlloca, il.Ptr, 1, il.ConstInt(64)), ret()),
		))
		requireAccept(t, m)
	})
}

func TestLoadStoreChecks(t *testing.T) {
	t.Run("load records declared type", func(t *testing.T) {
		m := moduleOf(fn("f", il.I64,
			block("entry",
				typed(il.OpAlloca, il.Ptr, 1, il.ConstInt(8)),
				typed(il.OpLoad, il.I64, 2, il.Temp(1)),
				ret(il.Temp(2)),
			),
		))
		requireAccept(t, m)
	})
	t.Run("load needs pointer", func(t *testing.T) {
		m := moduleOf(fn("f", il.I64,
			block("entry", typed(il.OpLoad, il.I64, 1, il.ConstInt(0)), ret(il.Temp(1))),
		))
		requireDiag(t, m, "pointer type mismatch")
	})
	t.Run("boolean store accepts 0 and 1 only", func(t *testing.T) {
		m := moduleOf(fn("f", il.Void,
			block("entry",
				typed(il.OpAlloca, il.Ptr, 1, il.ConstInt(1)),
				il.Instr{Op: il.OpStore, Type: il.I1, Operands: []il.Value{il.Temp(1), il.ConstInt(2)}},
				ret(),
			),
		))
		requireDiag(t, m, "boolean store expects 0 or 1")
	})
	t.Run("narrow store range", func(t *testing.T) {
		m := moduleOf(fn("f", il.Void,
			block("entry",
				typed(il.OpAlloca, il.Ptr, 1, il.ConstInt(2)),
				il.Instr{Op: il.OpStore, Type: il.I16, Operands: []il.Value{il.Temp(1), il.ConstInt(70000)}},
				ret(),
			),
		))
		requireDiag(t, m, "value out of range for store type")
	})
}

func TestAddrOfAndConstStr(t *testing.T) {
	t.Run("addr_of wants a global", func(t *testing.T) {
		m := moduleOf(fn("f", il.Void,
			block("entry", typed(il.OpAddrOf, il.Ptr, 1, il.ConstInt(1)), ret()),
		))
		requireDiag(t, m, "operand must be global")
	})
	t.Run("const_str wants a global", func(t *testing.T) {
		m := moduleOf(fn("f", il.Void,
			block("entry", typed(il.OpConstStr, il.Str, 1, il.ConstInt(1)), ret()),
		))
		requireDiag(t, m, "unknown string global")
	})
	t.Run("accepted", func(t *testing.T) {
		m := moduleOf(fn("f", il.Str,
			block("entry", typed(il.OpConstStr, il.Str, 1, il.GlobalAddr("msg")), ret(il.Temp(1))),
		))
		requireAccept(t, m)
	})
}

func TestConstNullNormalisesType(t *testing.T) {
	// Declared error type survives; a non-pointer-class annotation
	// normalises to ptr.
	m := moduleOf(fn("f", il.Error,
		block("entry", typed(il.OpConstNull, il.Error, 1), ret(il.Temp(1))),
	))
	requireAccept(t, m)
}

func TestCallChecks(t *testing.T) {
	externs := []il.Extern{{Name: "put", RetType: il.Void, Params: []il.Type{il.I64}}}

	call := func(callee string, result *uint32, retType il.Type, args ...il.Value) il.Instr {
		return il.Instr{Op: il.OpCall, Callee: callee, Result: result, Type: retType, Operands: args}
	}

	t.Run("unknown callee", func(t *testing.T) {
		m := externModule(externs, fn("f", il.Void,
			block("entry", call("missing", nil, il.Void), ret()),
		))
		requireDiag(t, m, "unknown callee @missing")
	})
	t.Run("arg count mismatch", func(t *testing.T) {
		m := externModule(externs, fn("f", il.Void,
			block("entry", call("put", nil, il.Void), ret()),
		))
		requireDiag(t, m, "call arg count mismatch")
	})
	t.Run("arg type mismatch", func(t *testing.T) {
		m := externModule(externs, fn("f", il.Void,
			block("entry", call("put", nil, il.Void, il.ConstFloat(1)), ret()),
		))
		requireDiag(t, m, "call arg type mismatch")
	})
	t.Run("accepted with result type recorded", func(t *testing.T) {
		withRet := []il.Extern{{Name: "mk", RetType: il.I64, Params: nil}}
		m := externModule(withRet, fn("f", il.I64,
			block("entry", call("mk", il.NewResult(1), il.I64), ret(il.Temp(1))),
		))
		requireAccept(t, m)
	})
	t.Run("indirect through pointer skips signature", func(t *testing.T) {
		m := moduleOf(fn("f", il.I64,
			block("entry",
				typed(il.OpAlloca, il.Ptr, 1, il.ConstInt(8)),
				il.Instr{Op: il.OpCallIndirect, Result: il.NewResult(2), Type: il.I64,
					Operands: []il.Value{il.Temp(1), il.ConstInt(5)}},
				ret(il.Temp(2)),
			),
		))
		requireAccept(t, m)
	})
}

func TestRuntimeArrayHelpers(t *testing.T) {
	externs := []il.Extern{
		{Name: "rt_arr_i32_new", RetType: il.Ptr, Params: []il.Type{il.I64}},
		{Name: "rt_arr_i32_set", RetType: il.Void, Params: []il.Type{il.Ptr, il.I64, il.I64}},
		{Name: "rt_arr_i32_release", RetType: il.Void, Params: []il.Type{il.Ptr}},
	}

	t.Run("accepted sequence", func(t *testing.T) {
		m := externModule(externs, fn("f", il.Void,
			block("entry",
				il.Instr{Op: il.OpCall, Callee: "rt_arr_i32_new", Result: il.NewResult(1), Type: il.Ptr,
					Operands: []il.Value{il.ConstInt(4)}},
				il.Instr{Op: il.OpCall, Callee: "rt_arr_i32_set", Type: il.Void,
					Operands: []il.Value{il.Temp(1), il.ConstInt(0), il.ConstInt(9)}},
				il.Instr{Op: il.OpCall, Callee: "rt_arr_i32_release", Type: il.Void,
					Operands: []il.Value{il.Temp(1)}},
				ret(),
			),
		))
		requireAccept(t, m)
	})
	t.Run("wrong arg count", func(t *testing.T) {
		m := externModule(externs, fn("f", il.Void,
			block("entry",
				il.Instr{Op: il.OpCall, Callee: "rt_arr_i32_new", Result: il.NewResult(1), Type: il.Ptr,
					Operands: []il.Value{il.ConstInt(4), il.ConstInt(5)}},
				ret(),
			),
		))
		requireDiag(t, m, "expected 1 argument to @rt_arr_i32_new")
	})
	t.Run("double release", func(t *testing.T) {
		release := func() il.Instr {
			return il.Instr{Op: il.OpCall, Callee: "rt_arr_i32_release", Type: il.Void,
				Operands: []il.Value{il.Temp(1)}}
		}
		m := externModule(externs, fn("f", il.Void,
			block("entry",
				il.Instr{Op: il.OpCall, Callee: "rt_arr_i32_new", Result: il.NewResult(1), Type: il.Ptr,
					Operands: []il.Value{il.ConstInt(4)}},
				release(),
				release(),
				ret(),
			),
		))
		requireDiag(t, m, "double release of %1")
	})
	t.Run("use after release", func(t *testing.T) {
		m := externModule(externs, fn("f", il.Void,
			block("entry",
				il.Instr{Op: il.OpCall, Callee: "rt_arr_i32_new", Result: il.NewResult(1), Type: il.Ptr,
					Operands: []il.Value{il.ConstInt(4)}},
				il.Instr{Op: il.OpCall, Callee: "rt_arr_i32_release", Type: il.Void,
					Operands: []il.Value{il.Temp(1)}},
				il.Instr{Op: il.OpCall, Callee: "rt_arr_i32_set", Type: il.Void,
					Operands: []il.Value{il.Temp(1), il.ConstInt(0), il.ConstInt(9)}},
				ret(),
			),
		))
		requireDiag(t, m, "use after release of %1")
	})
}

func TestTrapFamily(t *testing.T) {
	t.Run("trap.kind takes no operands", func(t *testing.T) {
		m := moduleOf(fn("f", il.I64,
			block("entry", typed(il.OpTrapKind, il.I64, 1, il.ConstInt(1)), ret(il.Temp(1))),
		))
		requireDiag(t, m, "expected 0 operands")
	})
	t.Run("trap.err operand kinds", func(t *testing.T) {
		m := moduleOf(fn("f", il.Void,
			block("entry",
				il.Instr{Op: il.OpTrapErr, Result: il.NewResult(1), Type: il.Error,
					Operands: []il.Value{il.ConstInt(1), il.ConstInt(2)}},
				ret(),
			),
		))
		requireDiag(t, m, "trap.err code must be i32")
	})
	t.Run("trap.from_err declared type", func(t *testing.T) {
		m := moduleOf(fn("f", il.Void,
			block("entry", il.Instr{Op: il.OpTrapFromErr, Type: il.I64,
				Operands: []il.Value{il.ConstInt(1)}}),
		))
		requireDiag(t, m, "trap.from_err expects i32 type")
	})
	t.Run("trap.from_err constant range", func(t *testing.T) {
		m := moduleOf(fn("f", il.Void,
			block("entry", il.Instr{Op: il.OpTrapFromErr, Type: il.I32,
				Operands: []il.Value{il.ConstInt(1 << 40)}}),
		))
		requireDiag(t, m, "trap.from_err constant out of range")
	})
}

func TestIdxChk(t *testing.T) {
	t.Run("mixed widths rejected", func(t *testing.T) {
		m := moduleOf(fnWithParams("f", il.Void,
			[]il.Param{{ID: 1, Name: "a", Type: il.I32}, {ID: 2, Name: "b", Type: il.I64}},
			block("entry",
				il.Instr{Op: il.OpIdxChk, Result: il.NewResult(3),
					Operands: []il.Value{il.Temp(1), il.Temp(2), il.ConstInt(0)}},
				ret(),
			),
		))
		requireDiag(t, m, "operands must share integer width")
	})
	t.Run("width derived from operands", func(t *testing.T) {
		m := moduleOf(fnWithParams("f", il.Void,
			[]il.Param{{ID: 1, Name: "a", Type: il.I32}},
			block("entry",
				il.Instr{Op: il.OpIdxChk, Result: il.NewResult(2),
					Operands: []il.Value{il.Temp(1), il.ConstInt(0), il.ConstInt(10)}},
				ret(),
			),
		))
		requireAccept(t, m)
	})
	t.Run("annotation forces width", func(t *testing.T) {
		m := moduleOf(fnWithParams("f", il.Void,
			[]il.Param{{ID: 1, Name: "a", Type: il.I32}},
			block("entry",
				il.Instr{Op: il.OpIdxChk, Result: il.NewResult(2), Type: il.I32,
					Operands: []il.Value{il.Temp(1), il.ConstInt(0), il.ConstInt(1 << 40)}},
				ret(),
			),
		))
		requireDiag(t, m, "constant out of range for idx.chk")
	})
	t.Run("float operand rejected", func(t *testing.T) {
		m := moduleOf(fn("f", il.Void,
			block("entry",
				il.Instr{Op: il.OpIdxChk, Result: il.NewResult(1),
					Operands: []il.Value{il.ConstFloat(1), il.ConstInt(0), il.ConstInt(1)}},
				ret(),
			),
		))
		requireDiag(t, m, "operands must be i16, i32, or i64")
	})
}

func TestCheckedCasts(t *testing.T) {
	t.Run("fp to int needs integer result", func(t *testing.T) {
		m := moduleOf(fn("f", il.F64,
			block("entry",
				typed(il.OpCastFpToSiRteChk, il.F64, 1, il.ConstFloat(1.5)),
				ret(il.Temp(1)),
			),
		))
		requireDiag(t, m, "cast result must be i16, i32, or i64")
	})
	t.Run("narrowing excludes i64", func(t *testing.T) {
		m := moduleOf(fn("f", il.I64,
			block("entry",
				typed(il.OpCastSiNarrowChk, il.I64, 1, il.ConstInt(5)),
				ret(il.Temp(1)),
			),
		))
		requireDiag(t, m, "narrowing cast result must be i16 or i32")
	})
	t.Run("accepted", func(t *testing.T) {
		m := moduleOf(fn("f", il.I32,
			block("entry",
				typed(il.OpCastFpToSiRteChk, il.I32, 1, il.ConstFloat(1.5)),
				ret(il.Temp(1)),
			),
		))
		requireAccept(t, m)
	})
}

func TestRejectedOpcodes(t *testing.T) {
	m := moduleOf(fn("f", il.Void,
		block("entry", instr(il.OpIAdd, il.ConstInt(1), il.ConstInt(2)), ret()),
	))
	requireDiag(t, m, "use iadd.ovf")
}

func TestErrAccessOutsideHandlerRejected(t *testing.T) {
	m := moduleOf(fnWithParams("f", il.Void,
		[]il.Param{{ID: 1, Name: "e", Type: il.Error}},
		block("entry", typed(il.OpErrGetCode, il.I32, 2, il.Temp(1)), ret()),
	))
	requireDiag(t, m, "err.get_* only allowed in handler block")
}

func TestCBrConstantConditionRejected(t *testing.T) {
	// cbr is checked by its terminator rule, which needs an i1 condition; a
	// non-boolean integer literal has static type i64, so it is rejected.
	mod := moduleOf(fn("f", il.Void,
		il.BasicBlock{Label: "entry", Instructions: []il.Instr{{
			Op:       il.OpCBr,
			Operands: []il.Value{il.ConstInt(2)},
			Labels:   []string{"a", "b"},
		}}},
		block("a", ret()),
		block("b", ret()),
	))
	requireDiag(t, mod, "conditional branch mismatch")
}

func TestMissingResultRejected(t *testing.T) {
	m := moduleOf(fn("f", il.Void,
		block("entry",
			il.Instr{Op: il.OpAlloca, Type: il.Ptr, Operands: []il.Value{il.ConstInt(8)}},
			ret(),
		),
	))
	requireDiag(t, m, "missing result")
}

func TestUnexpectedResultRejected(t *testing.T) {
	m := moduleOf(fn("f", il.Void,
		block("entry",
			il.Instr{Op: il.OpEhPop, Result: il.NewResult(1)},
			ret(),
		),
	))
	requireDiag(t, m, "unexpected result")
}

func TestResultTypeMustMatchConcreteClass(t *testing.T) {
	// alloca's result class is ptr; declaring i64 is rejected.
	m := moduleOf(fn("f", il.Void,
		block("entry", typed(il.OpAlloca, il.I64, 1, il.ConstInt(8)), ret()),
	))
	requireDiag(t, m, "result type must be ptr")
}
