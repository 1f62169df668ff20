package verify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splanck/viper/core/il"
)

// Builders keeping the test modules terse.

func block(label string, instrs ...il.Instr) il.BasicBlock {
	return il.BasicBlock{Label: label, Instructions: instrs}
}

func blockWithParams(label string, params []il.Param, instrs ...il.Instr) il.BasicBlock {
	return il.BasicBlock{Label: label, Params: params, Instructions: instrs}
}

func fn(name string, ret il.Type, blocks ...il.BasicBlock) il.Function {
	return il.Function{Name: name, RetType: ret, Blocks: blocks}
}

func fnWithParams(name string, ret il.Type, params []il.Param, blocks ...il.BasicBlock) il.Function {
	return il.Function{Name: name, RetType: ret, Params: params, Blocks: blocks}
}

func moduleOf(fns ...il.Function) *il.Module {
	return &il.Module{Functions: fns}
}

func instr(op il.Opcode, operands ...il.Value) il.Instr {
	return il.Instr{Op: op, Operands: operands}
}

func typed(op il.Opcode, ty il.Type, result uint32, operands ...il.Value) il.Instr {
	return il.Instr{Op: op, Type: ty, Result: il.NewResult(result), Operands: operands}
}

func br(label string, args ...il.Value) il.Instr {
	in := il.Instr{Op: il.OpBr, Labels: []string{label}}
	if len(args) > 0 {
		in.BrArgs = [][]il.Value{args}
	}
	return in
}

func ret(operands ...il.Value) il.Instr {
	return il.Instr{Op: il.OpRet, Operands: operands}
}

func handlerBlock(label string, errID, tokID uint32, instrs ...il.Instr) il.BasicBlock {
	params := []il.Param{
		{ID: errID, Name: "err", Type: il.Error},
		{ID: tokID, Name: "tok", Type: il.ResumeTok},
	}
	return il.BasicBlock{Label: label, Params: params, Instructions: instrs}
}

func requireDiag(t *testing.T, module *il.Module, fragment string) {
	t.Helper()
	err := Verify(module)
	require.Error(t, err)
	require.Contains(t, err.Error(), fragment)
}

func requireAccept(t *testing.T, module *il.Module) {
	t.Helper()
	require.NoError(t, Verify(module))
}
