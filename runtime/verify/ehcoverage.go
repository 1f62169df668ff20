package verify

import "github.com/splanck/viper/core/il"

// handlerCoverage maps each handler block to the set of blocks whose
// instructions could fault while that handler is innermost.
type handlerCoverage map[*il.BasicBlock]map[*il.BasicBlock]struct{}

type coverageState struct {
	block          *il.BasicBlock
	handlerStack   []*il.BasicBlock
	hasResumeToken bool
}

type coverageTraversal struct {
	model    *ehModel
	coverage handlerCoverage
	visited  map[*il.BasicBlock]map[string]struct{}
	worklist []coverageState
}

func (t *coverageTraversal) enqueue(state coverageState) {
	if state.block == nil {
		return
	}
	key := stateKey(state.handlerStack, state.hasResumeToken)
	seen := t.visited[state.block]
	if seen == nil {
		seen = make(map[string]struct{})
		t.visited[state.block] = seen
	}
	if _, dup := seen[key]; dup {
		return
	}
	seen[key] = struct{}{}
	t.worklist = append(t.worklist, state)
}

func (t *coverageTraversal) record(handler, faulting *il.BasicBlock) {
	set := t.coverage[handler]
	if set == nil {
		set = make(map[*il.BasicBlock]struct{})
		t.coverage[handler] = set
	}
	set[faulting] = struct{}{}
}

// computeHandlerCoverage walks the CFG tracking the live handler stack and
// records, for every potentially-faulting instruction executed under a
// handler, the enclosing block into that handler's coverage set.
func computeHandlerCoverage(model *ehModel) handlerCoverage {
	t := &coverageTraversal{
		model:    model,
		coverage: make(handlerCoverage),
		visited:  make(map[*il.BasicBlock]map[string]struct{}),
	}
	if model.entry == nil {
		return t.coverage
	}
	t.enqueue(coverageState{block: model.entry})

	for len(t.worklist) > 0 {
		state := t.worklist[0]
		t.worklist = t.worklist[1:]
		bb := state.block

		stack := append([]*il.BasicBlock(nil), state.handlerStack...)
		hasToken := state.hasResumeToken
		var terminator *il.Instr
		for i := range bb.Instructions {
			in := &bb.Instructions[i]
			if !hasToken && len(stack) > 0 && isPotentiallyFaulting(in.Op) {
				if handler := stack[len(stack)-1]; handler != nil {
					t.record(handler, bb)
				}
			}
			switch {
			case in.Op == il.OpEhPush:
				var handler *il.BasicBlock
				if len(in.Labels) > 0 {
					handler = model.findBlock(in.Labels[0])
				}
				stack = append(stack, handler)
			case in.Op == il.OpEhPop:
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			case in.Op.IsResume():
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
				hasToken = false
			}
			if in.Op.IsTerminator() {
				terminator = in
				break
			}
		}
		if terminator == nil {
			continue
		}

		if terminator.Op == il.OpTrap || terminator.Op == il.OpTrapFromErr {
			if len(stack) > 0 {
				if handler := stack[len(stack)-1]; handler != nil {
					t.record(handler, bb)
					t.enqueue(coverageState{
						block:          handler,
						handlerStack:   append([]*il.BasicBlock(nil), stack...),
						hasResumeToken: true,
					})
				}
			}
			continue
		}

		for _, succ := range model.gatherSuccessors(terminator) {
			next := coverageState{
				block:          succ,
				handlerStack:   append([]*il.BasicBlock(nil), stack...),
				hasResumeToken: hasToken,
			}
			if terminator.Op == il.OpResumeLabel {
				next.hasResumeToken = false
			}
			t.enqueue(next)
		}
	}
	return t.coverage
}
