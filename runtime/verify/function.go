package verify

import (
	"strings"

	"github.com/splanck/viper/core/diag"
	"github.com/splanck/viper/core/il"
)

// FunctionVerifier walks every function: block parameters, instruction
// checks, terminator structure, handler-block shape, and the final pass that
// every eh.push names a validated handler.
type FunctionVerifier struct {
	externs     map[string]*il.Extern
	functionMap map[string]*il.Function
	handlerInfo map[string]HandlerSignature
}

// NewFunctionVerifier builds a verifier over the extern map produced by the
// extern verifier.
func NewFunctionVerifier(externs map[string]*il.Extern) *FunctionVerifier {
	return &FunctionVerifier{externs: externs}
}

// Run verifies every function in the module, stopping at the first failure.
func (v *FunctionVerifier) Run(module *il.Module, sink diag.Sink) error {
	v.functionMap = make(map[string]*il.Function, len(module.Functions))
	for i := range module.Functions {
		fn := &module.Functions[i]
		if _, dup := v.functionMap[fn.Name]; dup {
			return diag.Errorf(diag.SourceLoc{}, "duplicate function @%s", fn.Name)
		}
		v.functionMap[fn.Name] = fn
	}
	for i := range module.Functions {
		if err := v.verifyFunction(&module.Functions[i], sink); err != nil {
			return err
		}
	}
	return nil
}

func (v *FunctionVerifier) verifyFunction(fn *il.Function, sink diag.Sink) error {
	if len(fn.Blocks) == 0 {
		return diag.Errorf(diag.SourceLoc{}, "%s", formatFunctionDiag(fn, "function has no blocks"))
	}
	firstLabel := fn.Blocks[0].Label
	if firstLabel != "entry" && !strings.HasPrefix(firstLabel, "entry_") {
		return diag.Errorf(diag.SourceLoc{}, "%s", formatFunctionDiag(fn, "first block must be entry"))
	}

	// A function shadowing an extern name must agree with its signature.
	if ext, ok := v.externs[fn.Name]; ok {
		sigOk := ext.RetType == fn.RetType && len(ext.Params) == len(fn.Params)
		if sigOk {
			for i := range ext.Params {
				if ext.Params[i] != fn.Params[i].Type {
					sigOk = false
					break
				}
			}
		}
		if !sigOk {
			return diag.Errorf(diag.SourceLoc{}, "function @%s signature mismatch with extern", fn.Name)
		}
	}

	blocks := make(map[string]*il.BasicBlock, len(fn.Blocks))
	for i := range fn.Blocks {
		bb := &fn.Blocks[i]
		if _, dup := blocks[bb.Label]; dup {
			return diag.Errorf(diag.SourceLoc{}, "%s", formatFunctionDiag(fn, "duplicate label "+bb.Label))
		}
		blocks[bb.Label] = bb
	}

	v.handlerInfo = make(map[string]HandlerSignature)
	env := NewTypeEnv(fn)
	for i := range fn.Blocks {
		if err := v.verifyBlock(fn, &fn.Blocks[i], blocks, env, sink); err != nil {
			return err
		}
	}

	// Every eh.push target must have been validated as a handler block.
	for i := range fn.Blocks {
		bb := &fn.Blocks[i]
		for j := range bb.Instructions {
			in := &bb.Instructions[j]
			if in.Op != il.OpEhPush || len(in.Labels) == 0 {
				continue
			}
			target := in.Labels[0]
			if _, ok := v.handlerInfo[target]; !ok {
				return diag.Errorf(in.Loc, "%s", formatInstrDiag(fn, bb, in,
					"eh.push target ^"+target+" must name a handler block"))
			}
		}
	}

	// All instruction labels must name known blocks.
	for i := range fn.Blocks {
		bb := &fn.Blocks[i]
		for j := range bb.Instructions {
			for _, label := range bb.Instructions[j].Labels {
				if _, ok := blocks[label]; !ok {
					return diag.Errorf(diag.SourceLoc{}, "%s", formatFunctionDiag(fn, "unknown label "+label))
				}
			}
		}
	}
	return nil
}

func (v *FunctionVerifier) verifyBlock(fn *il.Function, bb *il.BasicBlock,
	blocks map[string]*il.BasicBlock, env *TypeEnv, sink diag.Sink) error {

	paramIds, err := validateBlockParams(fn, bb, env)
	if err != nil {
		return err
	}

	handlerSig, err := analyzeHandlerBlock(fn, bb)
	if err != nil {
		return err
	}
	if handlerSig != nil {
		v.handlerInfo[bb.Label] = *handlerSig
	}

	released := make(map[uint32]struct{})
	for i := range bb.Instructions {
		in := &bb.Instructions[i]
		ctx := &Ctx{
			Sink:      sink,
			Types:     env,
			Externs:   v.externs,
			Functions: v.functionMap,
			Fn:        fn,
			Block:     bb,
			Instr:     in,
		}

		if err := env.EnsureOperandsDefined(fn, bb, in); err != nil {
			return err
		}

		if in.Op == il.OpEhEntry && i != 0 {
			return ctx.fail("eh.entry only allowed as first instruction of handler block")
		}
		if in.Op.IsResume() {
			if handlerSig == nil {
				return ctx.fail("resume.* only allowed in handler block")
			}
			if len(in.Operands) == 0 || in.Operands[0].Kind != il.KindTemp ||
				in.Operands[0].ID != handlerSig.TokParam {
				return ctx.fail("resume.* must use handler %tok parameter")
			}
		}
		if in.Op.IsErrAccess() && handlerSig == nil {
			return ctx.fail("err.get_* only allowed in handler block")
		}

		if err := v.checkReleaseDiscipline(ctx, in, released); err != nil {
			return err
		}

		if err := verifyOpcodeSignature(ctx); err != nil {
			return err
		}
		handled, err := verifyTerminatorInstr(ctx, blocks)
		if err != nil {
			return err
		}
		if !handled {
			if err := verifyInstruction(ctx); err != nil {
				return err
			}
		}

		if isArrayRelease(in) && len(in.Operands) > 0 && in.Operands[0].Kind == il.KindTemp {
			released[in.Operands[0].ID] = struct{}{}
		}
		if in.Op.IsTerminator() {
			break
		}
	}

	if err := checkBlockTerminators(fn, bb); err != nil {
		return err
	}

	for _, id := range paramIds {
		env.RemoveTemp(id)
	}
	return nil
}

func isArrayRelease(in *il.Instr) bool {
	return in.Op == il.OpCall && in.Callee == "rt_arr_i32_release"
}

// checkReleaseDiscipline rejects double release of an array handle and any
// use of a handle after its release within the block.
func (v *FunctionVerifier) checkReleaseDiscipline(ctx *Ctx, in *il.Instr, released map[uint32]struct{}) error {
	if isArrayRelease(in) {
		if len(in.Operands) > 0 && in.Operands[0].Kind == il.KindTemp {
			if _, dup := released[in.Operands[0].ID]; dup {
				return ctx.fail("double release of %" + itoa(in.Operands[0].ID))
			}
		}
		return nil
	}
	checkValue := func(v il.Value) error {
		if v.Kind != il.KindTemp {
			return nil
		}
		if _, gone := released[v.ID]; gone {
			return ctx.fail("use after release of %" + itoa(v.ID))
		}
		return nil
	}
	for _, operand := range in.Operands {
		if err := checkValue(operand); err != nil {
			return err
		}
	}
	for _, args := range in.BrArgs {
		for _, arg := range args {
			if err := checkValue(arg); err != nil {
				return err
			}
		}
	}
	return nil
}
