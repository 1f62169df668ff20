package verify

import (
	"strconv"

	"github.com/splanck/viper/core/diag"
	"github.com/splanck/viper/core/il"
)

// ehState is one node in the balanced-stack dataflow: a block reached with a
// particular handler stack and resume-token flag. Parent indices reconstruct
// the path from entry for diagnostics.
type ehState struct {
	block          *il.BasicBlock
	handlerStack   []*il.BasicBlock
	hasResumeToken bool
	parent         int
}

type ehBalance struct {
	model   *ehModel
	states  []ehState
	visited map[*il.BasicBlock]map[string]struct{}
}

func (b *ehBalance) buildPath(index int) []*il.BasicBlock {
	var rev []*il.BasicBlock
	for cur := index; cur >= 0; cur = b.states[cur].parent {
		if b.states[cur].block != nil {
			rev = append(rev, b.states[cur].block)
		}
	}
	path := make([]*il.BasicBlock, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return path
}

func (b *ehBalance) mismatch(bb *il.BasicBlock, in *il.Instr, code diag.Code, stateIndex, depth int) error {
	path := formatPath(b.buildPath(stateIndex))
	var suffix string
	switch code {
	case diag.EhStackUnderflow:
		suffix = "eh.pop without matching eh.push; path: " + path
	case diag.EhStackLeak:
		suffix = "unmatched eh.push depth " + strconv.Itoa(depth) + "; path: " + path
	case diag.EhResumeTokenMissing:
		suffix = "resume.* requires active resume token; path: " + path
	default:
		suffix = path
	}
	return diag.CodedError(code, in.Loc, formatInstrDiag(b.model.fn, bb, in, suffix))
}

func (b *ehBalance) enqueue(state ehState, worklist *[]int) bool {
	if state.block == nil {
		return false
	}
	key := stateKey(state.handlerStack, state.hasResumeToken)
	seen := b.visited[state.block]
	if seen == nil {
		seen = make(map[string]struct{})
		b.visited[state.block] = seen
	}
	if _, dup := seen[key]; dup {
		return false
	}
	seen[key] = struct{}{}
	b.states = append(b.states, state)
	*worklist = append(*worklist, len(b.states)-1)
	return true
}

// checkEhStackBalance runs the balanced-handler-stack dataflow: eh.pop on an
// empty stack, resume without a token, and ret with a non-empty stack are
// all rejected with the path from entry rendered into the diagnostic.
func checkEhStackBalance(model *ehModel) error {
	if model.entry == nil {
		return nil
	}
	b := &ehBalance{model: model, visited: make(map[*il.BasicBlock]map[string]struct{})}
	var worklist []int
	b.enqueue(ehState{block: model.entry, parent: -1}, &worklist)

	for len(worklist) > 0 {
		stateIndex := worklist[0]
		worklist = worklist[1:]
		snapshot := b.states[stateIndex]
		bb := snapshot.block

		handlerStack := append([]*il.BasicBlock(nil), snapshot.handlerStack...)
		hasResumeToken := snapshot.hasResumeToken
		var terminator *il.Instr
		for i := range bb.Instructions {
			in := &bb.Instructions[i]
			switch {
			case in.Op == il.OpEhPush:
				var handler *il.BasicBlock
				if len(in.Labels) > 0 {
					handler = model.findBlock(in.Labels[0])
				}
				handlerStack = append(handlerStack, handler)
			case in.Op == il.OpEhPop:
				if len(handlerStack) == 0 {
					return b.mismatch(bb, in, diag.EhStackUnderflow, stateIndex, 0)
				}
				handlerStack = handlerStack[:len(handlerStack)-1]
			case in.Op.IsResume():
				if !hasResumeToken {
					return b.mismatch(bb, in, diag.EhResumeTokenMissing, stateIndex, len(handlerStack))
				}
				if len(handlerStack) > 0 {
					handlerStack = handlerStack[:len(handlerStack)-1]
				}
				hasResumeToken = false
			}
			if in.Op.IsTerminator() {
				terminator = in
				break
			}
		}
		if terminator == nil {
			continue
		}

		depth := len(handlerStack)
		if terminator.Op == il.OpRet && depth != 0 {
			return b.mismatch(bb, terminator, diag.EhStackLeak, stateIndex, depth)
		}

		if terminator.Op == il.OpTrap || terminator.Op == il.OpTrapFromErr {
			// Exception edge: unwind to the innermost handler with a token.
			if depth > 0 {
				if handler := handlerStack[depth-1]; handler != nil {
					b.enqueue(ehState{
						block:          handler,
						handlerStack:   append([]*il.BasicBlock(nil), handlerStack...),
						hasResumeToken: true,
						parent:         stateIndex,
					}, &worklist)
				}
			}
			continue
		}

		for _, succ := range model.gatherSuccessors(terminator) {
			next := ehState{
				block:          succ,
				handlerStack:   append([]*il.BasicBlock(nil), handlerStack...),
				hasResumeToken: hasResumeToken,
				parent:         stateIndex,
			}
			if terminator.Op == il.OpResumeLabel {
				next.hasResumeToken = false
			}
			b.enqueue(next, &worklist)
		}
	}
	return nil
}
