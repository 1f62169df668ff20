package verify

import (
	"github.com/splanck/viper/core/diag"
	"github.com/splanck/viper/core/il"
	"github.com/splanck/viper/runtime/rt"
)

// ExternVerifier checks extern declarations for uniqueness and agreement with
// the runtime's canonical helper signatures, and exposes the resulting map to
// later passes.
type ExternVerifier struct {
	externs map[string]*il.Extern
}

// Externs returns the name → declaration map built by Run.
func (v *ExternVerifier) Externs() map[string]*il.Extern { return v.externs }

// Run validates the module's externs.
func (v *ExternVerifier) Run(module *il.Module, _ diag.Sink) error {
	v.externs = make(map[string]*il.Extern, len(module.Externs))
	for i := range module.Externs {
		ext := &module.Externs[i]
		if prev, dup := v.externs[ext.Name]; dup {
			msg := "duplicate extern @" + ext.Name
			if !externSignaturesMatch(prev, ext) {
				msg += " with mismatched signature"
			}
			return diag.Errorf(diag.SourceLoc{}, "%s", msg)
		}
		v.externs[ext.Name] = ext

		if sig, known := rt.Find(ext.Name); known {
			if !externMatchesRuntime(ext, sig.RetType, sig.Params) {
				return diag.Errorf(diag.SourceLoc{}, "extern @%s signature mismatch", ext.Name)
			}
		}
	}
	return nil
}

func externSignaturesMatch(a, b *il.Extern) bool {
	if a.RetType != b.RetType || len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	return true
}

func externMatchesRuntime(decl *il.Extern, ret il.Type, params []il.Type) bool {
	if decl.RetType != ret || len(decl.Params) != len(params) {
		return false
	}
	for i := range params {
		if decl.Params[i] != params[i] {
			return false
		}
	}
	return true
}

// GlobalVerifier checks global declarations for uniqueness.
type GlobalVerifier struct {
	globals map[string]*il.Global
}

// Globals returns the name → declaration map built by Run.
func (v *GlobalVerifier) Globals() map[string]*il.Global { return v.globals }

// Run validates the module's globals.
func (v *GlobalVerifier) Run(module *il.Module, _ diag.Sink) error {
	v.globals = make(map[string]*il.Global, len(module.Globals))
	for i := range module.Globals {
		g := &module.Globals[i]
		if _, dup := v.globals[g.Name]; dup {
			return diag.Errorf(diag.SourceLoc{}, "duplicate global @%s", g.Name)
		}
		v.globals[g.Name] = g
	}
	return nil
}
