package verify

import (
	"github.com/splanck/viper/core/il"
	"github.com/splanck/viper/runtime/rt"
)

// applyCall verifies direct and indirect calls. Direct calls resolve the
// callee in externs then functions; indirect calls through a global address
// resolve the same way, while pointer-based indirect calls (interface
// dispatch) skip static signature checks. Runtime array helpers have their
// hard-coded signatures checked before the generic path.
func applyCall(ctx *Ctx, _ *il.Spec) error {
	in := ctx.Instr

	if in.Op == il.OpCall {
		if err := checkRuntimeArrayCall(ctx); err != nil {
			return err
		}
	}

	var callee string
	argStart := 0
	switch in.Op {
	case il.OpCall:
		callee = in.Callee
	case il.OpCallIndirect:
		if len(in.Operands) == 0 {
			return ctx.fail("call.indirect missing callee operand")
		}
		target := in.Operands[0]
		if target.Kind != il.KindGlobalAddr {
			// Pointer-based indirect call: no static signature available.
			if in.Result != nil {
				ctx.Types.RecordResult(in, in.Type)
			}
			return nil
		}
		callee = target.Str
		argStart = 1
	default:
		return nil
	}

	var retType il.Type
	var params []il.Type
	if ext, ok := ctx.Externs[callee]; ok {
		retType = ext.RetType
		params = ext.Params
	} else if fn, ok := ctx.Functions[callee]; ok {
		retType = fn.RetType
		params = make([]il.Type, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = p.Type
		}
	} else {
		return ctx.fail("unknown callee @" + callee)
	}

	provided := len(in.Operands) - argStart
	if provided != len(params) {
		return ctx.fail("call arg count mismatch")
	}
	for i, expected := range params {
		if ctx.Types.TypeOf(in.Operands[argStart+i]) != expected {
			return ctx.fail("call arg type mismatch")
		}
	}

	if in.Result != nil {
		ctx.Types.RecordResult(in, retType)
	}
	return nil
}

// checkRuntimeArrayCall applies the fixed signatures of the rt_arr_i32_*
// helpers. Unknown callees fall through to the generic path.
func checkRuntimeArrayCall(ctx *Ctx) error {
	in := ctx.Instr
	sig, ok := rt.Find(in.Callee)
	if !ok {
		return nil
	}

	if len(in.Operands) != len(sig.Params) {
		return ctx.failf("expected %d argument%s to @%s", len(sig.Params), plural(len(sig.Params)), in.Callee)
	}

	roles := arrayHelperRoles(in.Callee)
	for i, expected := range sig.Params {
		actual, missing := ctx.Types.ValueType(in.Operands[i])
		if missing {
			return ctx.failf("@%s %s operand has unknown type", in.Callee, roles[i])
		}
		if actual != expected {
			return ctx.failf("@%s %s operand must be %s", in.Callee, roles[i], expected)
		}
	}

	if sig.RetType == il.Void {
		if in.Result != nil {
			return ctx.failf("@%s must not produce a result", in.Callee)
		}
		if in.Type != il.Void {
			return ctx.failf("@%s result type must be void", in.Callee)
		}
		return nil
	}

	if in.Result == nil {
		return ctx.failf("@%s must produce %s result", in.Callee, sig.RetType)
	}
	ctx.Types.RecordResult(in, sig.RetType)
	if in.Type != il.Void && in.Type != sig.RetType {
		return ctx.failf("@%s result must be %s", in.Callee, sig.RetType)
	}
	return nil
}

func arrayHelperRoles(callee string) []string {
	switch callee {
	case "rt_arr_i32_new":
		return []string{"length"}
	case "rt_arr_i32_len", "rt_arr_i32_retain", "rt_arr_i32_release":
		return []string{"handle"}
	case "rt_arr_i32_get":
		return []string{"handle", "index"}
	case "rt_arr_i32_set":
		return []string{"handle", "index", "value"}
	case "rt_arr_i32_resize":
		return []string{"handle", "length"}
	default:
		return nil
	}
}
