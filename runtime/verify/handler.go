package verify

import (
	"github.com/splanck/viper/core/diag"
	"github.com/splanck/viper/core/il"
)

// HandlerSignature records the parameter ids of a validated handler block.
type HandlerSignature struct {
	ErrParam uint32
	TokParam uint32
}

// analyzeHandlerBlock decides whether bb is a handler block and validates its
// shape. A handler block starts with eh.entry and declares exactly
// (%err:Error, %tok:ResumeTok), named err and tok. Non-handler blocks must
// not contain eh.entry anywhere.
func analyzeHandlerBlock(fn *il.Function, bb *il.BasicBlock) (*HandlerSignature, error) {
	if len(bb.Instructions) == 0 {
		return nil, nil
	}
	first := &bb.Instructions[0]
	if first.Op != il.OpEhEntry {
		for i := 1; i < len(bb.Instructions); i++ {
			in := &bb.Instructions[i]
			if in.Op == il.OpEhEntry {
				return nil, diag.Errorf(in.Loc, "%s", formatInstrDiag(fn, bb, in,
					"eh.entry only allowed as first instruction of handler block"))
			}
		}
		return nil, nil
	}
	if len(bb.Params) != 2 {
		return nil, diag.Errorf(diag.SourceLoc{}, "%s",
			formatBlockDiag(fn, bb, "handler blocks must declare (%err:Error, %tok:ResumeTok)"))
	}
	if bb.Params[0].Type != il.Error || bb.Params[1].Type != il.ResumeTok {
		return nil, diag.Errorf(diag.SourceLoc{}, "%s",
			formatBlockDiag(fn, bb, "handler params must be (%err:Error, %tok:ResumeTok)"))
	}
	if bb.Params[0].Name != "err" || bb.Params[1].Name != "tok" {
		return nil, diag.Errorf(diag.SourceLoc{}, "%s",
			formatBlockDiag(fn, bb, "handler params must be named %err and %tok"))
	}
	return &HandlerSignature{ErrParam: bb.Params[0].ID, TokParam: bb.Params[1].ID}, nil
}
