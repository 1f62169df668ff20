package verify

import (
	"github.com/splanck/viper/core/diag"
	"github.com/splanck/viper/core/il"
)

// verifyBranchArgs checks that a branch edge forwards arguments matching the
// target block's parameter arity and kinds elementwise.
func verifyBranchArgs(ctx *Ctx, target *il.BasicBlock, args []il.Value, label string) error {
	if len(args) != len(target.Params) {
		return ctx.fail("branch arg count mismatch for label " + label)
	}
	for i, arg := range args {
		if ctx.Types.TypeOf(arg) != target.Params[i].Type {
			return ctx.fail("arg type mismatch for label " + label)
		}
	}
	return nil
}

func bundle(in *il.Instr, idx int) []il.Value {
	if idx < len(in.BrArgs) {
		return in.BrArgs[idx]
	}
	return nil
}

func verifyBr(ctx *Ctx, blocks map[string]*il.BasicBlock) error {
	in := ctx.Instr
	if len(in.Operands) != 0 || len(in.Labels) != 1 {
		return ctx.fail("branch mismatch")
	}
	if target, ok := blocks[in.Labels[0]]; ok {
		return verifyBranchArgs(ctx, target, bundle(in, 0), in.Labels[0])
	}
	return nil
}

func verifyCBr(ctx *Ctx, blocks map[string]*il.BasicBlock) error {
	in := ctx.Instr
	condOk := len(in.Operands) == 1 && len(in.Labels) == 2 &&
		ctx.Types.TypeOf(in.Operands[0]) == il.I1
	if !condOk {
		return ctx.fail("conditional branch mismatch")
	}
	for t := 0; t < 2; t++ {
		target, ok := blocks[in.Labels[t]]
		if !ok {
			continue
		}
		if err := verifyBranchArgs(ctx, target, bundle(in, t), in.Labels[t]); err != nil {
			return err
		}
	}
	return nil
}

// verifySwitchI32 validates the scrutinee, default label, one argument bundle
// per label slot, and uniqueness of the 32-bit case values. Operand layout is
// scrutinee followed by one constant per case; label layout is default
// followed by one label per case.
func verifySwitchI32(ctx *Ctx, blocks map[string]*il.BasicBlock) error {
	in := ctx.Instr
	if len(in.Operands) == 0 {
		return ctx.fail("switch.i32 missing scrutinee")
	}
	if ctx.Types.TypeOf(in.Operands[0]) != il.I32 {
		return ctx.fail("switch.i32 scrutinee must be i32")
	}
	if len(in.Labels) == 0 {
		return ctx.fail("switch.i32 missing default")
	}
	if len(in.BrArgs) != len(in.Labels) {
		return ctx.fail("switch.i32 branch argument vector count mismatch")
	}

	caseCount := len(in.Labels) - 1
	if len(in.Operands) != caseCount+1 {
		return ctx.fail("switch.i32 operands mismatch cases")
	}

	if target, ok := blocks[in.Labels[0]]; ok {
		if err := verifyBranchArgs(ctx, target, bundle(in, 0), in.Labels[0]); err != nil {
			return err
		}
	}

	seen := make(map[int32]struct{}, caseCount)
	for idx := 0; idx < caseCount; idx++ {
		caseValue := in.Operands[idx+1]
		if caseValue.Kind != il.KindConstInt {
			return ctx.fail("switch.i32 case must be const i32")
		}
		if !il.FitsInteger(caseValue.Int, il.I32) {
			return ctx.fail("switch.i32 case out of i32 range")
		}
		key := int32(caseValue.Int)
		if _, dup := seen[key]; dup {
			return ctx.fail("duplicate switch.i32 case")
		}
		seen[key] = struct{}{}

		label := in.Labels[idx+1]
		target, ok := blocks[label]
		if !ok {
			continue
		}
		if err := verifyBranchArgs(ctx, target, bundle(in, idx+1), label); err != nil {
			return err
		}
	}
	return nil
}

func verifyRet(ctx *Ctx) error {
	in := ctx.Instr
	if ctx.Fn.RetType == il.Void {
		if len(in.Operands) != 0 {
			return ctx.fail("ret void with value")
		}
		return nil
	}
	if len(in.Operands) == 1 && ctx.Types.TypeOf(in.Operands[0]) == ctx.Fn.RetType {
		return nil
	}
	return ctx.fail("ret value type mismatch")
}

// verifyTerminatorInstr dispatches control-flow opcodes to their dedicated
// checks; every other opcode goes through the table-driven path.
func verifyTerminatorInstr(ctx *Ctx, blocks map[string]*il.BasicBlock) (bool, error) {
	switch ctx.Instr.Op {
	case il.OpBr:
		return true, verifyBr(ctx, blocks)
	case il.OpCBr:
		return true, verifyCBr(ctx, blocks)
	case il.OpSwitchI32:
		return true, verifySwitchI32(ctx, blocks)
	case il.OpRet:
		return true, verifyRet(ctx)
	default:
		return false, nil
	}
}

// validateBlockParams checks block parameter declarations and registers them
// in the environment; the returned ids are removed when the block scope ends.
func validateBlockParams(fn *il.Function, bb *il.BasicBlock, env *TypeEnv) ([]uint32, error) {
	names := make(map[string]struct{}, len(bb.Params))
	ids := make([]uint32, 0, len(bb.Params))
	for _, param := range bb.Params {
		if _, dup := names[param.Name]; dup {
			return nil, diag.Errorf(diag.SourceLoc{}, "%s",
				formatBlockDiag(fn, bb, "duplicate param %"+param.Name))
		}
		names[param.Name] = struct{}{}
		if param.Type == il.Void {
			return nil, diag.Errorf(diag.SourceLoc{}, "%s",
				formatBlockDiag(fn, bb, "param %"+param.Name+" has void type"))
		}
		env.AddTemp(param.ID, param.Type)
		ids = append(ids, param.ID)
	}
	return ids, nil
}

// checkBlockTerminators enforces the single-terminator rule: non-empty, one
// terminator, nothing after it, terminator last.
func checkBlockTerminators(fn *il.Function, bb *il.BasicBlock) error {
	if len(bb.Instructions) == 0 {
		return diag.Errorf(diag.SourceLoc{}, "%s", formatBlockDiag(fn, bb, "empty block"))
	}
	seenTerm := false
	for i := range bb.Instructions {
		in := &bb.Instructions[i]
		if in.Op.IsTerminator() {
			if seenTerm {
				return diag.Errorf(in.Loc, "%s", formatInstrDiag(fn, bb, in, "multiple terminators"))
			}
			seenTerm = true
			continue
		}
		if seenTerm {
			return diag.Errorf(in.Loc, "%s", formatInstrDiag(fn, bb, in, "instruction after terminator"))
		}
	}
	if !bb.Instructions[len(bb.Instructions)-1].Op.IsTerminator() {
		return diag.Errorf(diag.SourceLoc{}, "%s", formatBlockDiag(fn, bb, "missing terminator"))
	}
	return nil
}
