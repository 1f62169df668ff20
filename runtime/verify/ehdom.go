package verify

import "github.com/splanck/viper/core/il"

// domInfo holds immediate dominators as a flat map, per Cooper–Harvey–
// Kennedy. The verifier only needs idom* queries, so no tree is built.
type domInfo struct {
	indices map[*il.BasicBlock]int // reverse-post-order position
	idom    map[*il.BasicBlock]*il.BasicBlock
}

// computeDominators runs the CHK fixed point over the reverse post-order of
// the blocks reachable from entry (normal CFG edges only).
func computeDominators(model *ehModel) *domInfo {
	info := &domInfo{
		indices: make(map[*il.BasicBlock]int),
		idom:    make(map[*il.BasicBlock]*il.BasicBlock),
	}
	entry := model.entry
	if entry == nil {
		return info
	}

	// Post-order DFS, then reverse.
	var postorder []*il.BasicBlock
	visited := make(map[*il.BasicBlock]struct{})
	preds := make(map[*il.BasicBlock][]*il.BasicBlock)
	var dfs func(bb *il.BasicBlock)
	dfs = func(bb *il.BasicBlock) {
		visited[bb] = struct{}{}
		if term := model.findTerminator(bb); term != nil {
			for _, succ := range model.gatherSuccessors(term) {
				preds[succ] = append(preds[succ], bb)
				if _, seen := visited[succ]; !seen {
					dfs(succ)
				}
			}
		}
		postorder = append(postorder, bb)
	}
	dfs(entry)

	rpo := make([]*il.BasicBlock, 0, len(postorder))
	for i := len(postorder) - 1; i >= 0; i-- {
		rpo = append(rpo, postorder[i])
	}
	for i, bb := range rpo {
		info.indices[bb] = i
	}
	info.idom[entry] = nil

	intersect := func(b1, b2 *il.BasicBlock) *il.BasicBlock {
		for b1 != b2 {
			for info.indices[b1] > info.indices[b2] {
				next, ok := info.idom[b1]
				if !ok || next == nil {
					return nil
				}
				b1 = next
			}
			for info.indices[b2] > info.indices[b1] {
				next, ok := info.idom[b2]
				if !ok || next == nil {
					return nil
				}
				b2 = next
			}
		}
		return b1
	}

	changed := true
	for changed {
		changed = false
		for i := 1; i < len(rpo); i++ {
			bb := rpo[i]
			var newIdom *il.BasicBlock
			for _, p := range preds[bb] {
				if _, processed := info.idom[p]; processed {
					newIdom = p
					break
				}
			}
			if newIdom == nil {
				continue
			}
			for _, p := range preds[bb] {
				if p == newIdom {
					continue
				}
				if _, processed := info.idom[p]; !processed {
					continue
				}
				newIdom = intersect(p, newIdom)
				if newIdom == nil {
					break
				}
			}
			if cur, ok := info.idom[bb]; !ok || cur != newIdom {
				info.idom[bb] = newIdom
				changed = true
			}
		}
	}
	return info
}

// dominates reports whether dominator lies on every path from entry to
// target, walking the idom chain.
func (d *domInfo) dominates(dominator, target *il.BasicBlock) bool {
	if dominator == nil || target == nil {
		return false
	}
	if dominator == target {
		return true
	}
	current := target
	for current != nil {
		next, ok := d.idom[current]
		if !ok {
			return false
		}
		current = next
		if current == dominator {
			return true
		}
	}
	return false
}

// postDomInfo is a dense bitset matrix over the blocks reachable from entry:
// matrix[i][j] means node j post-dominates node i. Acceptable at verifier
// function sizes; a sparse representation can replace it if functions grow.
type postDomInfo struct {
	indices map[*il.BasicBlock]int
	nodes   []*il.BasicBlock
	matrix  [][]bool
}

// computePostDominators runs the iterative all-ones-intersection fixed point.
// Blocks with no CFG successors (ret, trap, resume.same/next) are exits that
// post-dominate only themselves.
func computePostDominators(model *ehModel) *postDomInfo {
	info := &postDomInfo{indices: make(map[*il.BasicBlock]int)}
	if model.entry == nil {
		return info
	}

	reachable := map[*il.BasicBlock]struct{}{model.entry: {}}
	queue := []*il.BasicBlock{model.entry}
	for len(queue) > 0 {
		bb := queue[0]
		queue = queue[1:]
		if term := model.findTerminator(bb); term != nil {
			for _, succ := range model.gatherSuccessors(term) {
				if _, seen := reachable[succ]; !seen {
					reachable[succ] = struct{}{}
					queue = append(queue, succ)
				}
			}
		}
	}

	for i := range model.fn.Blocks {
		bb := &model.fn.Blocks[i]
		if _, ok := reachable[bb]; !ok {
			continue
		}
		info.indices[bb] = len(info.nodes)
		info.nodes = append(info.nodes, bb)
	}

	n := len(info.nodes)
	info.matrix = make([][]bool, n)
	for i := range info.matrix {
		row := make([]bool, n)
		for j := range row {
			row[j] = true
		}
		info.matrix[i] = row
	}

	successors := make([][]int, n)
	isExit := make([]bool, n)
	for idx, bb := range info.nodes {
		term := model.findTerminator(bb)
		if term != nil {
			for _, succ := range model.gatherSuccessors(term) {
				if pos, ok := info.indices[succ]; ok {
					successors[idx] = append(successors[idx], pos)
				}
			}
		}
		if term == nil || len(successors[idx]) == 0 {
			for j := range info.matrix[idx] {
				info.matrix[idx][j] = false
			}
			info.matrix[idx][idx] = true
			isExit[idx] = true
		}
	}

	changed := true
	for changed {
		changed = false
		for idx := 0; idx < n; idx++ {
			if isExit[idx] {
				continue
			}
			newSet := make([]bool, n)
			if len(successors[idx]) > 0 {
				copy(newSet, info.matrix[successors[idx][0]])
				for _, succIdx := range successors[idx][1:] {
					for bit := 0; bit < n; bit++ {
						newSet[bit] = newSet[bit] && info.matrix[succIdx][bit]
					}
				}
			}
			newSet[idx] = true
			if !boolsEqual(newSet, info.matrix[idx]) {
				info.matrix[idx] = newSet
				changed = true
			}
		}
	}
	return info
}

func boolsEqual(a, b []bool) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// postDominates reports whether candidate post-dominates from.
func (p *postDomInfo) postDominates(from, candidate *il.BasicBlock) bool {
	if len(p.nodes) == 0 {
		return false
	}
	fromIdx, ok1 := p.indices[from]
	candIdx, ok2 := p.indices[candidate]
	if !ok1 || !ok2 {
		return false
	}
	return p.matrix[fromIdx][candIdx]
}
