package verify

import (
	"github.com/splanck/viper/core/il"
)

// strategyFn is the semantic check applied after structural validation. The
// table below is indexed by il.Strategy so dispatch is a single array load.
type strategyFn func(ctx *Ctx, spec *il.Spec) error

var strategyTable = [il.NumStrategies]strategyFn{
	il.StrategyDefault:          applyDefault,
	il.StrategyBinary:           applyBinary,
	il.StrategyAlloca:           applyAlloca,
	il.StrategyGEP:              applyGEP,
	il.StrategyLoad:             applyLoad,
	il.StrategyStore:            applyStore,
	il.StrategyAddrOf:           applyAddrOf,
	il.StrategyConstStr:         applyConstStr,
	il.StrategyConstNull:        applyConstNull,
	il.StrategyCall:             applyCall,
	il.StrategyTrapKind:         applyTrapKind,
	il.StrategyTrapFromErr:      applyTrapFromErr,
	il.StrategyTrapErr:          applyTrapErr,
	il.StrategyIdxChk:           applyIdxChk,
	il.StrategyCastFpToSiRteChk: applyCastFpToInt,
	il.StrategyCastFpToUiRteChk: applyCastFpToInt,
	il.StrategyCastSiNarrowChk:  applyCastNarrow,
	il.StrategyCastUiNarrowChk:  applyCastNarrow,
	il.StrategyReject:           applyReject,
}

func dispatchStrategy(ctx *Ctx, spec *il.Spec) error {
	if int(spec.Strategy) >= len(strategyTable) || strategyTable[spec.Strategy] == nil {
		return applyDefault(ctx, spec)
	}
	return strategyTable[spec.Strategy](ctx, spec)
}

func applyDefault(*Ctx, *il.Spec) error { return nil }

// applyBinary enforces the two-operand shape shared by the arithmetic,
// bitwise, and comparison opcodes, then records the result type. Operand
// kinds were already validated against the schema categories.
func applyBinary(ctx *Ctx, spec *il.Spec) error {
	in := ctx.Instr
	if len(in.Operands) != 2 {
		return ctx.fail("invalid operand count")
	}
	if in.Result == nil {
		return ctx.fail("missing result")
	}
	if concrete, ok := spec.ResultType.Concrete(); ok {
		ctx.Types.RecordResult(in, concrete)
	} else {
		ctx.Types.RecordResult(in, in.Type)
	}
	return nil
}

func applyAlloca(ctx *Ctx, _ *il.Spec) error {
	in := ctx.Instr
	if len(in.Operands) == 0 {
		return ctx.fail("missing size operand")
	}
	if ctx.Types.TypeOf(in.Operands[0]) != il.I64 {
		return ctx.fail("size must be i64")
	}
	if in.Operands[0].Kind == il.KindConstInt {
		size := in.Operands[0].Int
		if size < 0 {
			return ctx.fail("negative alloca size")
		}
		if size > 1<<20 {
			ctx.warn("huge alloca")
		}
	}
	ctx.Types.RecordResult(in, il.Ptr)
	return nil
}

func applyGEP(ctx *Ctx, _ *il.Spec) error {
	if len(ctx.Instr.Operands) < 2 {
		return ctx.fail("invalid operand count")
	}
	ctx.Types.RecordResult(ctx.Instr, il.Ptr)
	return nil
}

func applyLoad(ctx *Ctx, _ *il.Spec) error {
	in := ctx.Instr
	if len(in.Operands) == 0 {
		return ctx.fail("missing operand")
	}
	if ctx.Types.TypeOf(in.Operands[0]) != il.Ptr {
		return ctx.fail("pointer type mismatch")
	}
	ctx.Types.RecordResult(in, in.Type)
	return nil
}

func applyStore(ctx *Ctx, _ *il.Spec) error {
	in := ctx.Instr
	if len(in.Operands) < 2 {
		return ctx.fail("invalid operand count")
	}
	ptrType, missing := ctx.Types.ValueType(in.Operands[0])
	if missing {
		return ctx.fail("pointer operand type is unknown")
	}
	if ptrType != il.Ptr {
		return ctx.fail("pointer type mismatch")
	}

	value := in.Operands[1]
	if in.Type == il.I1 && value.Kind == il.KindConstInt {
		if value.Int != 0 && value.Int != 1 {
			return ctx.fail("boolean store expects 0 or 1")
		}
	} else if value.Kind == il.KindConstInt && (in.Type == il.I16 || in.Type == il.I32) {
		if !il.FitsInteger(value.Int, in.Type) {
			return ctx.fail("value out of range for store type")
		}
	}
	return nil
}

func applyAddrOf(ctx *Ctx, _ *il.Spec) error {
	in := ctx.Instr
	if len(in.Operands) != 1 || in.Operands[0].Kind != il.KindGlobalAddr {
		return ctx.fail("operand must be global")
	}
	ctx.Types.RecordResult(in, il.Ptr)
	return nil
}

func applyConstStr(ctx *Ctx, _ *il.Spec) error {
	in := ctx.Instr
	if len(in.Operands) != 1 || in.Operands[0].Kind != il.KindGlobalAddr {
		return ctx.fail("unknown string global")
	}
	ctx.Types.RecordResult(in, il.Str)
	return nil
}

func applyConstNull(ctx *Ctx, _ *il.Spec) error {
	in := ctx.Instr
	// Normalise the declared type to a pointer-class kind; anything else
	// defaults to ptr.
	resultType := in.Type
	switch resultType {
	case il.Ptr, il.Str, il.Error, il.ResumeTok:
	default:
		resultType = il.Ptr
	}
	ctx.Types.RecordResult(in, resultType)
	return nil
}

func applyTrapKind(ctx *Ctx, _ *il.Spec) error {
	if len(ctx.Instr.Operands) != 0 {
		return ctx.fail("trap.kind takes no operands")
	}
	ctx.Types.RecordResult(ctx.Instr, il.I64)
	return nil
}

func applyTrapErr(ctx *Ctx, _ *il.Spec) error {
	in := ctx.Instr
	if len(in.Operands) != 2 {
		return ctx.fail("trap.err expects code and text operands")
	}
	if ctx.Types.TypeOf(in.Operands[0]) != il.I32 {
		return ctx.fail("trap.err code must be i32")
	}
	if ctx.Types.TypeOf(in.Operands[1]) != il.Str {
		return ctx.fail("trap.err text must be str")
	}
	ctx.Types.RecordResult(in, il.Error)
	return nil
}

func applyTrapFromErr(ctx *Ctx, _ *il.Spec) error {
	in := ctx.Instr
	if len(in.Operands) != 1 {
		return ctx.fail("invalid operand count")
	}
	if in.Type != il.I32 {
		return ctx.fail("trap.from_err expects i32 type")
	}
	operand := in.Operands[0]
	switch operand.Kind {
	case il.KindTemp:
		if ctx.Types.TypeOf(operand) != il.I32 {
			return ctx.fail("trap.from_err operand must be i32")
		}
	case il.KindConstInt:
		if !il.FitsInteger(operand.Int, il.I32) {
			return ctx.fail("trap.from_err constant out of range")
		}
	default:
		return ctx.fail("trap.from_err operand must be i32")
	}
	return nil
}

func isIdxWidth(t il.Type) bool { return t == il.I16 || t == il.I32 || t == il.I64 }

func applyIdxChk(ctx *Ctx, _ *il.Spec) error {
	in := ctx.Instr
	if len(in.Operands) != 3 {
		return ctx.fail("invalid operand count")
	}

	expected := il.Void
	if isIdxWidth(in.Type) {
		expected = in.Type
	}

	for _, operand := range in.Operands {
		var kind il.Type
		switch operand.Kind {
		case il.KindTemp:
			kind = ctx.Types.TypeOf(operand)
			if kind == il.Void {
				return ctx.fail("unknown temp in idx.chk")
			}
		case il.KindConstInt:
			if expected == il.Void {
				switch {
				case il.FitsInteger(operand.Int, il.I16):
					kind = il.I16
				case il.FitsInteger(operand.Int, il.I32):
					kind = il.I32
				default:
					kind = il.I64
				}
			} else {
				if !il.FitsInteger(operand.Int, expected) {
					return ctx.fail("constant out of range for idx.chk")
				}
				kind = expected
			}
		default:
			return ctx.fail("operands must be i16, i32, or i64")
		}

		if !isIdxWidth(kind) {
			return ctx.fail("operands must be i16, i32, or i64")
		}
		if expected == il.Void {
			expected = kind
		} else if kind != expected {
			return ctx.fail("operands must share integer width")
		}
	}

	if !isIdxWidth(expected) {
		return ctx.fail("operands must be i16, i32, or i64")
	}
	if in.Type != il.Void && in.Type != expected {
		return ctx.fail("result type annotation must match operand width")
	}
	ctx.Types.RecordResult(in, expected)
	return nil
}

func applyCastFpToInt(ctx *Ctx, _ *il.Spec) error {
	t := ctx.Instr.Type
	if t != il.I16 && t != il.I32 && t != il.I64 {
		return ctx.fail("cast result must be i16, i32, or i64")
	}
	ctx.Types.RecordResult(ctx.Instr, t)
	return nil
}

func applyCastNarrow(ctx *Ctx, _ *il.Spec) error {
	t := ctx.Instr.Type
	if t != il.I16 && t != il.I32 {
		return ctx.fail("narrowing cast result must be i16 or i32")
	}
	ctx.Types.RecordResult(ctx.Instr, t)
	return nil
}

func applyReject(ctx *Ctx, spec *il.Spec) error {
	message := spec.RejectMsg
	if message == "" {
		message = "opcode rejected"
	}
	return ctx.fail(message)
}
