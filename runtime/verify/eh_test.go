package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splanck/viper/core/diag"
	"github.com/splanck/viper/core/il"
)

func ehPush(label string) il.Instr {
	return il.Instr{Op: il.OpEhPush, Labels: []string{label}}
}

func resumeSame(tok uint32) il.Instr {
	return il.Instr{Op: il.OpResumeSame, Operands: []il.Value{il.Temp(tok)}}
}

func resumeLabel(tok uint32, label string) il.Instr {
	return il.Instr{Op: il.OpResumeLabel, Operands: []il.Value{il.Temp(tok)}, Labels: []string{label}}
}

func trap() il.Instr { return il.Instr{Op: il.OpTrap} }

func requireCode(t *testing.T, module *il.Module, code diag.Code, fragment string) {
	t.Helper()
	err := Verify(module)
	require.Error(t, err)
	d, ok := err.(*diag.Diagnostic)
	require.True(t, ok, "error should be a diagnostic")
	assert.Equal(t, code, d.Code)
	assert.Contains(t, d.Message, fragment)
}

func TestEhStackLeak(t *testing.T) {
	m := moduleOf(fn("f", il.Void,
		block("entry", ehPush("h"), ret()),
		handlerBlock("h", 10, 11, instr(il.OpEhEntry), resumeSame(11)),
	))
	requireCode(t, m, diag.EhStackLeak, "unmatched eh.push depth 1; path: entry")
}

func TestEhUnderflowCode(t *testing.T) {
	m := moduleOf(fn("f", il.Void,
		block("entry", instr(il.OpEhPop), ret()),
	))
	requireCode(t, m, diag.EhStackUnderflow, "eh.pop without matching eh.push")
}

func TestEhResumeTokenMissing(t *testing.T) {
	// The handler resumes to k, which loops back into the handler without a
	// fault: the second entry holds no token.
	m := &il.Module{
		Externs: []il.Extern{{Name: "work", RetType: il.Void}},
		Functions: []il.Function{fn("f", il.Void,
			block("entry", ehPush("h"), trap()),
			handlerBlock("h", 10, 11, instr(il.OpEhEntry), resumeLabel(11, "k")),
			block("k",
				typed(il.OpConstNull, il.Error, 20),
				typed(il.OpConstNull, il.ResumeTok, 21),
				il.Instr{Op: il.OpBr, Labels: []string{"h"}, BrArgs: [][]il.Value{{il.Temp(20), il.Temp(21)}}},
			),
		)},
	}
	requireCode(t, m, diag.EhResumeTokenMissing, "resume.* requires active resume token")
}

func TestEhHandlerSignatureChecks(t *testing.T) {
	t.Run("param names", func(t *testing.T) {
		bad := il.BasicBlock{
			Label: "h",
			Params: []il.Param{
				{ID: 10, Name: "e", Type: il.Error},
				{ID: 11, Name: "tok", Type: il.ResumeTok},
			},
			Instructions: []il.Instr{instr(il.OpEhEntry), resumeSame(11)},
		}
		m := moduleOf(fn("f", il.Void,
			block("entry", ehPush("h"), instr(il.OpEhPop), ret()),
			bad,
		))
		requireDiag(t, m, "handler params must be named %err and %tok")
	})
	t.Run("param arity", func(t *testing.T) {
		bad := il.BasicBlock{
			Label:        "h",
			Params:       []il.Param{{ID: 10, Name: "err", Type: il.Error}},
			Instructions: []il.Instr{instr(il.OpEhEntry), ret()},
		}
		m := moduleOf(fn("f", il.Void,
			block("entry", ehPush("h"), instr(il.OpEhPop), ret()),
			bad,
		))
		requireDiag(t, m, "handler blocks must declare (%err:Error, %tok:ResumeTok)")
	})
	t.Run("eh.entry not first", func(t *testing.T) {
		m := moduleOf(fn("f", il.Void,
			block("entry", instr(il.OpEhPop), instr(il.OpEhEntry), ret()),
		))
		requireDiag(t, m, "eh.entry only allowed as first instruction of handler block")
	})
	t.Run("eh.push target must be handler", func(t *testing.T) {
		m := moduleOf(fn("f", il.Void,
			block("entry", ehPush("plain"), instr(il.OpEhPop), ret()),
			block("plain", ret()),
		))
		requireDiag(t, m, "eh.push target ^plain must name a handler block")
	})
	t.Run("resume outside handler", func(t *testing.T) {
		m := moduleOf(fnWithParams("f", il.Void,
			[]il.Param{{ID: 1, Name: "tok", Type: il.ResumeTok}},
			block("entry", resumeSame(1)),
		))
		requireDiag(t, m, "resume.* only allowed in handler block")
	})
	t.Run("resume must use %tok", func(t *testing.T) {
		m := moduleOf(fn("f", il.Void,
			block("entry", ehPush("h"), instr(il.OpEhPop), ret()),
			handlerBlock("h", 10, 11, instr(il.OpEhEntry), resumeSame(10)),
		))
		requireDiag(t, m, "resume.* must use handler %tok parameter")
	})
}

func TestEhHandlerNotDominant(t *testing.T) {
	// m is reachable both through p (which installs h) and q (which does
	// not), so p cannot dominate the protected block.
	m := &il.Module{
		Externs: []il.Extern{{Name: "work", RetType: il.Void}},
		Functions: []il.Function{fnWithParams("f", il.Void,
			[]il.Param{{ID: 1, Name: "c", Type: il.I1}},
			il.BasicBlock{Label: "entry", Instructions: []il.Instr{{
				Op:       il.OpCBr,
				Operands: []il.Value{il.Temp(1)},
				Labels:   []string{"p", "q"},
			}}},
			block("p", ehPush("h"), br("m")),
			block("q", br("m")),
			block("m",
				il.Instr{Op: il.OpCall, Callee: "work", Type: il.Void},
				trap(),
			),
			handlerBlock("h", 10, 11, instr(il.OpEhEntry), resumeSame(11)),
		)},
	}
	requireCode(t, m, diag.EhHandlerNotDominant,
		"eh.push block p does not dominate protected block m (handler ^h)")
}

func TestEhHandlerUnreachable(t *testing.T) {
	// h protects a faulting call but nothing can ever transfer to it: the
	// protected region traps nowhere and the CFG never reaches h.
	m := &il.Module{
		Externs: []il.Extern{{Name: "work", RetType: il.Void}},
		Functions: []il.Function{fn("f", il.Void,
			block("entry",
				ehPush("h"),
				il.Instr{Op: il.OpCall, Callee: "work", Type: il.Void},
				instr(il.OpEhPop),
				ret(),
			),
			handlerBlock("h", 10, 11, instr(il.OpEhEntry), resumeSame(11)),
		)},
	}
	requireCode(t, m, diag.EhHandlerUnreachable,
		"function 'f': unreachable handler block: ^h")
}

func TestEhResumeLabelInvalidTarget(t *testing.T) {
	// entry faults under h and continues to x or y; the resume target k is
	// on neither exit path, so it cannot postdominate entry.
	m := &il.Module{
		Externs: []il.Extern{{Name: "work", RetType: il.Void}},
		Functions: []il.Function{fnWithParams("f", il.Void,
			[]il.Param{{ID: 1, Name: "c", Type: il.I1}},
			il.BasicBlock{Label: "entry", Instructions: []il.Instr{
				ehPush("h"),
				{Op: il.OpCall, Callee: "work", Type: il.Void},
				{Op: il.OpCBr, Operands: []il.Value{il.Temp(1)}, Labels: []string{"x", "y"}},
			}},
			block("x", trap()),
			block("y", instr(il.OpEhPop), ret()),
			handlerBlock("h", 10, 11, instr(il.OpEhEntry), resumeLabel(11, "k")),
			block("k", ret()),
		)},
	}
	requireCode(t, m, diag.EhResumeLabelInvalidTarget,
		"target ^k must postdominate block entry")
}

func TestEhResumeLabelValidTarget(t *testing.T) {
	m := &il.Module{
		Externs: []il.Extern{{Name: "work", RetType: il.Void}},
		Functions: []il.Function{fn("f", il.Void,
			block("entry",
				ehPush("h"),
				il.Instr{Op: il.OpCall, Callee: "work", Type: il.Void},
				trap(),
			),
			handlerBlock("h", 10, 11, instr(il.OpEhEntry), resumeLabel(11, "k")),
			block("k", ret()),
		)},
	}
	requireAccept(t, m)
}

func TestBalancedPushPopAccepted(t *testing.T) {
	m := &il.Module{
		Externs: []il.Extern{{Name: "work", RetType: il.Void}},
		Functions: []il.Function{fn("f", il.Void,
			block("entry",
				ehPush("h"),
				il.Instr{Op: il.OpCall, Callee: "work", Type: il.Void},
				trap(),
			),
			handlerBlock("h", 10, 11, instr(il.OpEhEntry), resumeSame(11)),
		)},
	}
	requireAccept(t, m)
}
