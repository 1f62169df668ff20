// Package il defines the in-memory data model for the typed SSA intermediate
// language: modules, functions, blocks, instructions, values, and the static
// per-opcode schema the verifier is driven by.
package il

// Type is the closed set of IL value types.
type Type uint8

const (
	Void Type = iota
	I1
	I16
	I32
	I64
	F32
	F64
	Ptr
	Str
	Error
	ResumeTok
)

var typeNames = [...]string{
	Void:      "void",
	I1:        "i1",
	I16:       "i16",
	I32:       "i32",
	I64:       "i64",
	F32:       "f32",
	F64:       "f64",
	Ptr:       "ptr",
	Str:       "str",
	Error:     "error",
	ResumeTok: "resume_tok",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Size returns the storage width in bytes, or zero for void.
func (t Type) Size() int {
	switch t {
	case I1:
		return 1
	case I16:
		return 2
	case I32, F32:
		return 4
	case I64, F64, Ptr, Str, ResumeTok:
		return 8
	case Error:
		return 24
	default:
		return 0
	}
}

// IsInteger reports whether t is one of the integer kinds.
func (t Type) IsInteger() bool {
	switch t {
	case I1, I16, I32, I64:
		return true
	default:
		return false
	}
}

// FitsInteger reports whether the signed constant v is representable in t.
// I1 admits only 0 and 1.
func FitsInteger(v int64, t Type) bool {
	switch t {
	case I1:
		return v == 0 || v == 1
	case I16:
		return v >= -32768 && v <= 32767
	case I32:
		return v >= -2147483648 && v <= 2147483647
	case I64:
		return true
	default:
		return false
	}
}
