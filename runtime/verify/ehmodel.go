package verify

import (
	"strings"

	"github.com/splanck/viper/core/il"
)

// ehModel is the per-function view the EH analyses share: label lookup, the
// entry block, successor gathering, and whether the function uses any EH
// opcode at all.
type ehModel struct {
	fn     *il.Function
	blocks map[string]*il.BasicBlock
	entry  *il.BasicBlock
	hasEH  bool
}

func newEhModel(fn *il.Function) *ehModel {
	m := &ehModel{fn: fn, blocks: make(map[string]*il.BasicBlock, len(fn.Blocks))}
	if len(fn.Blocks) > 0 {
		m.entry = &fn.Blocks[0]
	}
	for i := range fn.Blocks {
		bb := &fn.Blocks[i]
		m.blocks[bb.Label] = bb
		if m.hasEH {
			continue
		}
		for j := range bb.Instructions {
			switch bb.Instructions[j].Op {
			case il.OpEhPush, il.OpEhPop, il.OpEhEntry,
				il.OpResumeSame, il.OpResumeNext, il.OpResumeLabel,
				il.OpTrap, il.OpTrapFromErr:
				m.hasEH = true
			}
			if m.hasEH {
				break
			}
		}
	}
	return m
}

func (m *ehModel) findBlock(label string) *il.BasicBlock { return m.blocks[label] }

// findTerminator returns the first terminator in block, or nil.
func (m *ehModel) findTerminator(bb *il.BasicBlock) *il.Instr {
	for i := range bb.Instructions {
		if bb.Instructions[i].Op.IsTerminator() {
			return &bb.Instructions[i]
		}
	}
	return nil
}

// gatherSuccessors resolves the normal CFG successors of a terminator. Traps
// have none here; their exception edge is handled by the analyses directly.
func (m *ehModel) gatherSuccessors(term *il.Instr) []*il.BasicBlock {
	var succs []*il.BasicBlock
	switch term.Op {
	case il.OpBr, il.OpResumeLabel:
		if len(term.Labels) > 0 {
			if target := m.findBlock(term.Labels[0]); target != nil {
				succs = append(succs, target)
			}
		}
	case il.OpCBr, il.OpSwitchI32:
		for _, label := range term.Labels {
			if target := m.findBlock(label); target != nil {
				succs = append(succs, target)
			}
		}
	}
	return succs
}

// isPotentiallyFaulting reports whether an opcode can raise at runtime. The
// EH bookkeeping opcodes, resumes, and plain control flow cannot.
func isPotentiallyFaulting(op il.Opcode) bool {
	switch op {
	case il.OpEhPush, il.OpEhPop, il.OpEhEntry,
		il.OpResumeSame, il.OpResumeNext, il.OpResumeLabel,
		il.OpBr, il.OpCBr, il.OpSwitchI32, il.OpRet:
		return false
	default:
		return true
	}
}

// stateKey encodes (resume-token flag, handler stack) for visited-set
// membership. Strings are Go's comparable-key idiom for the typed tuple.
func stateKey(stack []*il.BasicBlock, hasResumeToken bool) string {
	var sb strings.Builder
	sb.Grow(len(stack)*8 + 4)
	if hasResumeToken {
		sb.WriteString("1|")
	} else {
		sb.WriteString("0|")
	}
	for _, handler := range stack {
		if handler != nil {
			sb.WriteString(handler.Label)
		}
		sb.WriteByte(';')
	}
	return sb.String()
}

func formatPath(path []*il.BasicBlock) string {
	var sb strings.Builder
	for i, node := range path {
		if i != 0 {
			sb.WriteString(" -> ")
		}
		sb.WriteString(node.Label)
	}
	return sb.String()
}
