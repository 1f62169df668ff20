package il

import (
	"fmt"
	"strconv"
)

// ValueKind discriminates the Value union.
type ValueKind uint8

const (
	// KindTemp references an SSA temporary by id.
	KindTemp ValueKind = iota
	// KindConstInt is a signed integer literal; IsBool narrows it to i1.
	KindConstInt
	// KindConstFloat is an f64 literal.
	KindConstFloat
	// KindConstStr is an interned string literal.
	KindConstStr
	// KindGlobalAddr references a global or function symbol by name.
	KindGlobalAddr
	// KindNullPtr is the null pointer literal.
	KindNullPtr
)

// Value is the tagged operand union. Exactly the fields implied by Kind are
// meaningful; the zero Value is Temp(%0).
type Value struct {
	Kind   ValueKind
	ID     uint32  // Temp
	Int    int64   // ConstInt
	IsBool bool    // ConstInt: literal written as true/false
	Float  float64 // ConstFloat
	Str    string  // ConstStr payload or GlobalAddr symbol name
}

// Temp returns a temporary reference.
func Temp(id uint32) Value { return Value{Kind: KindTemp, ID: id} }

// ConstInt returns an i64 integer literal.
func ConstInt(v int64) Value { return Value{Kind: KindConstInt, Int: v} }

// ConstBool returns an i1 literal.
func ConstBool(b bool) Value {
	v := Value{Kind: KindConstInt, IsBool: true}
	if b {
		v.Int = 1
	}
	return v
}

// ConstFloat returns an f64 literal.
func ConstFloat(f float64) Value { return Value{Kind: KindConstFloat, Float: f} }

// ConstStr returns a string literal.
func ConstStr(s string) Value { return Value{Kind: KindConstStr, Str: s} }

// GlobalAddr returns a symbol reference.
func GlobalAddr(name string) Value { return Value{Kind: KindGlobalAddr, Str: name} }

// NullPtr returns the null pointer literal.
func NullPtr() Value { return Value{Kind: KindNullPtr} }

// StaticType returns the type a literal carries on its own. Temporaries have
// no intrinsic type; callers resolve them through the SSA environment.
func (v Value) StaticType() Type {
	switch v.Kind {
	case KindConstInt:
		if v.IsBool {
			return I1
		}
		return I64
	case KindConstFloat:
		return F64
	case KindConstStr:
		return Str
	case KindGlobalAddr, KindNullPtr:
		return Ptr
	default:
		return Void
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindTemp:
		return "%" + strconv.FormatUint(uint64(v.ID), 10)
	case KindConstInt:
		if v.IsBool {
			if v.Int != 0 {
				return "true"
			}
			return "false"
		}
		return strconv.FormatInt(v.Int, 10)
	case KindConstFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindConstStr:
		return strconv.Quote(v.Str)
	case KindGlobalAddr:
		return "@" + v.Str
	case KindNullPtr:
		return "null"
	default:
		return fmt.Sprintf("value(kind=%d)", v.Kind)
	}
}
