package verify

import (
	"github.com/splanck/viper/core/diag"
	"github.com/splanck/viper/core/il"
	"github.com/splanck/viper/core/invariant"
)

// Verify runs the extern, global, function, and exception-handling verifiers
// in order. The first failure short-circuits and is returned with any
// warnings already collected prepended to its message. A nil return means
// the module is well-formed; verification is deterministic.
func Verify(module *il.Module) error {
	invariant.NotNil(module, "module")
	sink := &diag.CollectingSink{}

	fail := func(err error) error {
		d, ok := err.(*diag.Diagnostic)
		if !ok {
			d = diag.Errorf(diag.SourceLoc{}, "%s", err.Error())
		}
		return diag.Aggregate(d, sink.Diagnostics())
	}

	var externs ExternVerifier
	if err := externs.Run(module, sink); err != nil {
		return fail(err)
	}
	var globals GlobalVerifier
	if err := globals.Run(module, sink); err != nil {
		return fail(err)
	}
	functions := NewFunctionVerifier(externs.Externs())
	if err := functions.Run(module, sink); err != nil {
		return fail(err)
	}
	var eh EhVerifier
	if err := eh.Run(module, sink); err != nil {
		return fail(err)
	}
	return nil
}

// Warnings runs Verify but also exposes the non-fatal diagnostics gathered
// during a successful run, for callers that surface lint-style findings.
func Warnings(module *il.Module) ([]*diag.Diagnostic, error) {
	sink := &diag.CollectingSink{}

	var externs ExternVerifier
	if err := externs.Run(module, sink); err != nil {
		return sink.Diagnostics(), err
	}
	var globals GlobalVerifier
	if err := globals.Run(module, sink); err != nil {
		return sink.Diagnostics(), err
	}
	functions := NewFunctionVerifier(externs.Externs())
	if err := functions.Run(module, sink); err != nil {
		return sink.Diagnostics(), err
	}
	var eh EhVerifier
	if err := eh.Run(module, sink); err != nil {
		return sink.Diagnostics(), err
	}
	return sink.Diagnostics(), nil
}
