// Package rt records the canonical signatures of the runtime helpers the IL
// may call. The extern verifier checks module declarations against these, and
// the call strategy applies the array-helper argument rules before the
// generic signature path.
package rt

import "github.com/splanck/viper/core/il"

// Signature is the canonical shape of one runtime helper.
type Signature struct {
	RetType il.Type
	Params  []il.Type
}

var signatures = map[string]Signature{
	"rt_arr_i32_new":     {RetType: il.Ptr, Params: []il.Type{il.I64}},
	"rt_arr_i32_len":     {RetType: il.I64, Params: []il.Type{il.Ptr}},
	"rt_arr_i32_get":     {RetType: il.I64, Params: []il.Type{il.Ptr, il.I64}},
	"rt_arr_i32_set":     {RetType: il.Void, Params: []il.Type{il.Ptr, il.I64, il.I64}},
	"rt_arr_i32_resize":  {RetType: il.Ptr, Params: []il.Type{il.Ptr, il.I64}},
	"rt_arr_i32_retain":  {RetType: il.Void, Params: []il.Type{il.Ptr}},
	"rt_arr_i32_release": {RetType: il.Void, Params: []il.Type{il.Ptr}},
}

// Find returns the canonical signature for name, or false when name is not a
// known runtime helper.
func Find(name string) (Signature, bool) {
	sig, ok := signatures[name]
	return sig, ok
}

// IsArrayHelper reports whether name is one of the fixed i32 array helpers.
func IsArrayHelper(name string) bool {
	_, ok := signatures[name]
	return ok
}
