package verify

import (
	"fmt"

	"github.com/splanck/viper/core/diag"
	"github.com/splanck/viper/core/il"
)

// Ctx bundles everything a check needs about the instruction under
// inspection. All references are borrowed for the duration of one check.
type Ctx struct {
	Sink      diag.Sink
	Types     *TypeEnv
	Externs   map[string]*il.Extern
	Functions map[string]*il.Function
	Fn        *il.Function
	Block     *il.BasicBlock
	Instr     *il.Instr
}

func (c *Ctx) fail(message string) error {
	return diag.Errorf(c.Instr.Loc, "%s", formatInstrDiag(c.Fn, c.Block, c.Instr, message))
}

func (c *Ctx) failf(format string, args ...interface{}) error {
	return c.fail(fmt.Sprintf(format, args...))
}

func (c *Ctx) warn(message string) {
	c.Sink.Report(diag.Warningf(c.Instr.Loc, "%s", formatInstrDiag(c.Fn, c.Block, c.Instr, message)))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// checkOperandCount compares the operand count against the schema bounds.
func checkOperandCount(ctx *Ctx, spec *il.Spec) error {
	n := len(ctx.Instr.Operands)
	variadic := spec.VariadicOperands()
	if n >= spec.MinOperands && (variadic || n <= spec.MaxOperands) {
		return nil
	}
	switch {
	case spec.MinOperands == spec.MaxOperands && !variadic:
		return ctx.failf("expected %d operand%s", spec.MinOperands, plural(spec.MinOperands))
	case variadic:
		return ctx.failf("expected at least %d operand%s", spec.MinOperands, plural(spec.MinOperands))
	default:
		return ctx.failf("expected between %d and %d operands", spec.MinOperands, spec.MaxOperands)
	}
}

// checkOperandTypes validates each operand slot against its schema category.
// Integer literals must fit the expected kind's signed range; non-constants
// are resolved through the environment.
func checkOperandTypes(ctx *Ctx, spec *il.Spec) error {
	in := ctx.Instr
	for i := 0; i < len(in.Operands) && i < len(spec.Operands); i++ {
		cat := spec.Operands[i]
		if cat == il.CatNone || cat == il.CatAny || cat == il.CatDynamic {
			continue
		}

		var expected il.Type
		if cat == il.CatInstrType {
			if in.Type == il.Void {
				return ctx.fail("instruction type must be non-void")
			}
			expected = in.Type
		} else if concrete, ok := cat.Concrete(); ok {
			expected = concrete
		} else {
			continue
		}

		operand := in.Operands[i]
		if operand.Kind == il.KindConstInt && expected.IsInteger() {
			if !il.FitsInteger(operand.Int, expected) {
				return ctx.failf("operand %d constant out of range for %s", i, expected)
			}
			continue
		}

		actual, missing := ctx.Types.ValueType(operand)
		if missing {
			return ctx.failf("operand %d type is unknown", i)
		}
		if actual != expected {
			if expected == il.Ptr {
				return ctx.fail("pointer type mismatch")
			}
			return ctx.failf("operand %d must be %s", i, expected)
		}
	}
	return nil
}

// checkResultType enforces the schema's result arity and, for concrete result
// categories, the declared type annotation. idx.chk derives its width from
// operands, so its declared type may stay void.
func checkResultType(ctx *Ctx, spec *il.Spec) error {
	in := ctx.Instr
	hasResult := in.Result != nil

	switch spec.Result {
	case il.ResultNone:
		if hasResult {
			return ctx.fail("unexpected result")
		}
		return nil
	case il.ResultOne:
		if !hasResult {
			return ctx.fail("missing result")
		}
	case il.ResultOptional:
		if !hasResult {
			return nil
		}
	}

	if spec.ResultType == il.CatInstrType {
		if in.Op != il.OpIdxChk && in.Type == il.Void {
			return ctx.fail("instruction type must be non-void")
		}
	} else if expected, ok := spec.ResultType.Concrete(); ok {
		if in.Type != expected {
			return ctx.failf("result type must be %s", expected)
		}
	}
	return nil
}

// verifyOpcodeSignature independently enforces result arity, operand count,
// successor count, and branch-argument bundle shape so malformed instructions
// are rejected before any semantic strategy runs.
func verifyOpcodeSignature(ctx *Ctx) error {
	in := ctx.Instr
	spec := il.Lookup(in.Op)

	hasResult := in.Result != nil
	switch spec.Result {
	case il.ResultNone:
		if hasResult {
			return ctx.fail("unexpected result")
		}
	case il.ResultOne:
		if !hasResult {
			return ctx.fail("missing result")
		}
	}

	n := len(in.Operands)
	variadic := spec.VariadicOperands()
	if n < spec.MinOperands || (!variadic && n > spec.MaxOperands) {
		switch {
		case spec.MinOperands == spec.MaxOperands && !variadic:
			return ctx.failf("expected %d operand%s", spec.MinOperands, plural(spec.MinOperands))
		case variadic:
			return ctx.failf("expected at least %d operand%s", spec.MinOperands, plural(spec.MinOperands))
		default:
			return ctx.failf("expected between %d and %d operands", spec.MinOperands, spec.MaxOperands)
		}
	}

	if spec.VariadicSuccessors() {
		if len(in.Labels) == 0 {
			return ctx.fail("expected at least 1 successor")
		}
		if len(in.BrArgs) != 0 && len(in.BrArgs) != len(in.Labels) {
			return ctx.fail("expected branch argument bundle per successor or none")
		}
		return nil
	}

	if len(in.Labels) != spec.Successors {
		return ctx.failf("expected %d successor%s", spec.Successors, plural(spec.Successors))
	}
	if len(in.BrArgs) > spec.Successors {
		return ctx.failf("expected at most %d branch argument bundle%s", spec.Successors, plural(spec.Successors))
	}
	if len(in.BrArgs) != 0 && len(in.BrArgs) != spec.Successors {
		return ctx.failf("expected %d branch argument bundle%s, or none", spec.Successors, plural(spec.Successors))
	}
	return nil
}

// verifyInstruction runs the structural checkers then dispatches to the
// opcode's strategy. The schema table drives everything.
func verifyInstruction(ctx *Ctx) error {
	spec := il.Lookup(ctx.Instr.Op)
	if err := checkOperandCount(ctx, spec); err != nil {
		return err
	}
	if err := checkOperandTypes(ctx, spec); err != nil {
		return err
	}
	if err := checkResultType(ctx, spec); err != nil {
		return err
	}
	if err := dispatchStrategy(ctx, spec); err != nil {
		return err
	}
	// Opcodes with no special strategy still record their declared result so
	// later uses resolve.
	if spec.Strategy == il.StrategyDefault && ctx.Instr.Result != nil {
		if concrete, ok := spec.ResultType.Concrete(); ok {
			ctx.Types.RecordResult(ctx.Instr, concrete)
		} else {
			ctx.Types.RecordResult(ctx.Instr, ctx.Instr.Type)
		}
	}
	return nil
}
