package verify

import (
	"sort"
	"strings"

	"github.com/splanck/viper/core/diag"
	"github.com/splanck/viper/core/il"
)

// checkDominanceOfHandlers requires every block containing an eh.push to
// dominate every block in the pushed handler's coverage set: the handler must
// be installed on every path that can fault under it.
func checkDominanceOfHandlers(model *ehModel) error {
	if model.entry == nil {
		return nil
	}
	coverage := computeHandlerCoverage(model)
	if len(coverage) == 0 {
		return nil
	}
	dom := computeDominators(model)

	type pushSite struct {
		block *il.BasicBlock
		instr *il.Instr
	}
	pushes := make(map[*il.BasicBlock]pushSite)
	for i := range model.fn.Blocks {
		bb := &model.fn.Blocks[i]
		for j := range bb.Instructions {
			in := &bb.Instructions[j]
			if in.Op == il.OpEhPush && len(in.Labels) > 0 {
				if handler := model.findBlock(in.Labels[0]); handler != nil {
					pushes[handler] = pushSite{block: bb, instr: in}
				}
			}
		}
	}

	for handler, protected := range coverage {
		if handler == nil {
			continue
		}
		site, ok := pushes[handler]
		if !ok {
			continue
		}
		for protectedBlock := range protected {
			if protectedBlock == nil {
				continue
			}
			if !dom.dominates(site.block, protectedBlock) {
				suffix := "eh.push block " + site.block.Label +
					" does not dominate protected block " + protectedBlock.Label +
					" (handler ^" + handler.Label + ")"
				return diag.CodedError(diag.EhHandlerNotDominant, site.instr.Loc,
					formatInstrDiag(model.fn, site.block, site.instr, suffix))
			}
		}
	}
	return nil
}

// checkUnreachableHandlers flags handlers that could receive a fault but can
// never be entered. Should-be-reachable derives from the coverage map (the
// handler protects at least one block with a potentially-faulting
// instruction); reachability runs over terminator CFG edges plus the trap
// exception edge. Offenders are listed sorted.
func checkUnreachableHandlers(model *ehModel) error {
	if model.entry == nil {
		return nil
	}

	handlerBlocks := make(map[*il.BasicBlock]struct{})
	for i := range model.fn.Blocks {
		bb := &model.fn.Blocks[i]
		for j := range bb.Instructions {
			in := &bb.Instructions[j]
			if in.Op == il.OpEhPush && len(in.Labels) > 0 {
				if handler := model.findBlock(in.Labels[0]); handler != nil {
					handlerBlocks[handler] = struct{}{}
				}
			}
		}
	}
	if len(handlerBlocks) == 0 {
		return nil
	}

	coverage := computeHandlerCoverage(model)
	shouldBeReachable := make(map[*il.BasicBlock]struct{})
	for handler, protected := range coverage {
		if handler == nil {
			continue
		}
		for bb := range protected {
			faulting := false
			for j := range bb.Instructions {
				if isPotentiallyFaulting(bb.Instructions[j].Op) {
					faulting = true
					break
				}
				if bb.Instructions[j].Op.IsTerminator() {
					break
				}
			}
			if faulting {
				shouldBeReachable[handler] = struct{}{}
				break
			}
		}
	}

	// Reachability over the CFG with exception edges: a trap terminator whose
	// top-of-stack is H adds an edge to H.
	reachable := map[*il.BasicBlock]struct{}{model.entry: {}}
	blockStack := map[*il.BasicBlock][]*il.BasicBlock{model.entry: {}}
	worklist := []*il.BasicBlock{model.entry}
	for len(worklist) > 0 {
		bb := worklist[0]
		worklist = worklist[1:]
		stack := append([]*il.BasicBlock(nil), blockStack[bb]...)

		var terminator *il.Instr
		for j := range bb.Instructions {
			in := &bb.Instructions[j]
			switch {
			case in.Op == il.OpEhPush && len(in.Labels) > 0:
				stack = append(stack, model.findBlock(in.Labels[0]))
			case in.Op == il.OpEhPop:
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			case in.Op.IsResume():
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
			if in.Op.IsTerminator() {
				terminator = in
				break
			}
		}
		if terminator == nil {
			continue
		}
		visit := func(succ *il.BasicBlock) {
			if succ == nil {
				return
			}
			if _, seen := reachable[succ]; !seen {
				reachable[succ] = struct{}{}
				blockStack[succ] = append([]*il.BasicBlock(nil), stack...)
				worklist = append(worklist, succ)
			}
		}
		for _, succ := range model.gatherSuccessors(terminator) {
			visit(succ)
		}
		if terminator.Op == il.OpTrap || terminator.Op == il.OpTrapFromErr {
			if len(stack) > 0 {
				visit(stack[len(stack)-1])
			}
		}
	}

	var unreachable []string
	for handler := range handlerBlocks {
		_, wanted := shouldBeReachable[handler]
		_, reached := reachable[handler]
		if wanted && !reached {
			unreachable = append(unreachable, handler.Label)
		}
	}
	if len(unreachable) == 0 {
		return nil
	}
	sort.Strings(unreachable)

	var sb strings.Builder
	sb.WriteString("function '")
	sb.WriteString(model.fn.Name)
	sb.WriteString("': unreachable handler block")
	if len(unreachable) > 1 {
		sb.WriteString("s")
	}
	sb.WriteString(": ")
	for i, label := range unreachable {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("^")
		sb.WriteString(label)
	}
	return diag.CodedError(diag.EhHandlerUnreachable, diag.SourceLoc{}, sb.String())
}

// checkResumeEdges requires every resume.label target to post-dominate every
// faulting block its handler covers that still has CFG successors.
func checkResumeEdges(model *ehModel) error {
	coverage := computeHandlerCoverage(model)
	postDom := computePostDominators(model)

	for i := range model.fn.Blocks {
		bb := &model.fn.Blocks[i]
		protected, covered := coverage[bb]
		if !covered {
			continue
		}
		for j := range bb.Instructions {
			in := &bb.Instructions[j]
			if in.Op != il.OpResumeLabel || len(in.Labels) == 0 {
				continue
			}
			target := model.findBlock(in.Labels[0])
			if target == nil {
				continue
			}
			for faulting := range protected {
				term := model.findTerminator(faulting)
				if term == nil {
					continue
				}
				if len(model.gatherSuccessors(term)) == 0 {
					continue
				}
				if postDom.postDominates(faulting, target) {
					continue
				}
				suffix := "target ^" + in.Labels[0] + " must postdominate block " + faulting.Label
				return diag.CodedError(diag.EhResumeLabelInvalidTarget, in.Loc,
					formatInstrDiag(model.fn, bb, in, suffix))
			}
		}
	}
	return nil
}

// EhVerifier runs the exception-handling analyses on every function that
// contains an EH opcode.
type EhVerifier struct{}

// Run checks stack balance, handler dominance, handler reachability, and
// resume.label post-dominance, in that order per function.
func (EhVerifier) Run(module *il.Module, _ diag.Sink) error {
	for i := range module.Functions {
		model := newEhModel(&module.Functions[i])
		if !model.hasEH {
			continue
		}
		if err := checkEhStackBalance(model); err != nil {
			return err
		}
		if err := checkDominanceOfHandlers(model); err != nil {
			return err
		}
		if err := checkUnreachableHandlers(model); err != nil {
			return err
		}
		if err := checkResumeEdges(model); err != nil {
			return err
		}
	}
	return nil
}
