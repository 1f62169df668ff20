package il

// ResultArity states how many results an opcode defines.
type ResultArity uint8

const (
	ResultNone ResultArity = iota
	ResultOne
	ResultOptional
)

// TypeCategory constrains an operand slot or result in the opcode schema.
// Beyond the concrete kinds, three categories are special: CatAny places no
// constraint, CatInstrType requires the instruction's declared type, and
// CatDynamic defers the decision to the opcode's strategy.
type TypeCategory uint8

const (
	CatNone TypeCategory = iota
	CatAny
	CatInstrType
	CatDynamic
	CatVoid
	CatI1
	CatI16
	CatI32
	CatI64
	CatF32
	CatF64
	CatPtr
	CatStr
	CatError
	CatResumeTok
)

// Concrete maps a category to its IL type, reporting false for the
// polymorphic categories.
func (c TypeCategory) Concrete() (Type, bool) {
	switch c {
	case CatVoid:
		return Void, true
	case CatI1:
		return I1, true
	case CatI16:
		return I16, true
	case CatI32:
		return I32, true
	case CatI64:
		return I64, true
	case CatF32:
		return F32, true
	case CatF64:
		return F64, true
	case CatPtr:
		return Ptr, true
	case CatStr:
		return Str, true
	case CatError:
		return Error, true
	case CatResumeTok:
		return ResumeTok, true
	default:
		return Void, false
	}
}

// Strategy selects the semantic check applied after structural validation.
type Strategy uint8

const (
	StrategyDefault Strategy = iota
	StrategyBinary
	StrategyAlloca
	StrategyGEP
	StrategyLoad
	StrategyStore
	StrategyAddrOf
	StrategyConstStr
	StrategyConstNull
	StrategyCall
	StrategyTrapKind
	StrategyTrapFromErr
	StrategyTrapErr
	StrategyIdxChk
	StrategyCastFpToSiRteChk
	StrategyCastFpToUiRteChk
	StrategyCastSiNarrowChk
	StrategyCastUiNarrowChk
	StrategyReject

	NumStrategies // sentinel
)

// Variadic is the sentinel operand/successor count meaning "no fixed upper
// bound".
const Variadic = -1

// Spec is the static per-opcode schema. It is the single source of truth for
// structural verification; no opcode-specific switch appears in the
// structural checkers.
type Spec struct {
	Result      ResultArity
	ResultType  TypeCategory
	MinOperands int
	MaxOperands int // Variadic for open-ended
	Operands    []TypeCategory
	Successors  int // label count carried by the instruction; Variadic for switch
	SideEffects bool
	Terminator  bool
	Strategy    Strategy
	RejectMsg   string
}

// VariadicOperands reports whether the operand count is open-ended.
func (s *Spec) VariadicOperands() bool { return s.MaxOperands == Variadic }

// VariadicSuccessors reports whether the successor count is open-ended.
func (s *Spec) VariadicSuccessors() bool { return s.Successors == Variadic }

// Binary arithmetic leaves the operand count to its strategy so arity
// violations surface through the shared "invalid operand count" diagnostic.
func binaryInt() Spec {
	return Spec{
		Result: ResultOne, ResultType: CatInstrType,
		MinOperands: 0, MaxOperands: Variadic,
		Operands: []TypeCategory{CatInstrType, CatInstrType},
		Strategy: StrategyBinary,
	}
}

func cmp(operand TypeCategory) Spec {
	return Spec{
		Result: ResultOne, ResultType: CatI1,
		MinOperands: 0, MaxOperands: Variadic,
		Operands: []TypeCategory{operand, operand},
		Strategy: StrategyBinary,
	}
}

func binaryFloat() Spec {
	return Spec{
		Result: ResultOne, ResultType: CatF64,
		MinOperands: 0, MaxOperands: Variadic,
		Operands: []TypeCategory{CatF64, CatF64},
		Strategy: StrategyBinary,
	}
}

func errAccess(result TypeCategory) Spec {
	return Spec{
		Result: ResultOne, ResultType: result,
		MinOperands: 1, MaxOperands: 1,
		Operands: []TypeCategory{CatError},
	}
}

func checkedCast(operand TypeCategory, strategy Strategy) Spec {
	return Spec{
		Result: ResultOne, ResultType: CatInstrType,
		MinOperands: 1, MaxOperands: 1,
		Operands: []TypeCategory{operand},
		Strategy: strategy,
	}
}

var specs = [NumOpcodes]Spec{
	OpIAddOvf:  binaryInt(),
	OpISubOvf:  binaryInt(),
	OpIMulOvf:  binaryInt(),
	OpSDivChk0: binaryInt(),
	OpUDivChk0: binaryInt(),
	OpSRemChk0: binaryInt(),
	OpURemChk0: binaryInt(),
	OpAnd:      binaryInt(),
	OpOr:       binaryInt(),
	OpXor:      binaryInt(),
	OpShl:      binaryInt(),
	OpLShr:     binaryInt(),
	OpAShr:     binaryInt(),
	OpFAdd:     binaryFloat(),
	OpFSub:     binaryFloat(),
	OpFMul:     binaryFloat(),
	OpFDiv:     binaryFloat(),
	OpICmpEq:   cmp(CatI64),
	OpICmpNe:   cmp(CatI64),
	OpSCmpLT:   cmp(CatI64),
	OpSCmpLE:   cmp(CatI64),
	OpSCmpGT:   cmp(CatI64),
	OpSCmpGE:   cmp(CatI64),
	OpFCmpEq:   cmp(CatF64),
	OpFCmpNe:   cmp(CatF64),
	OpFCmpLT:   cmp(CatF64),
	OpFCmpLE:   cmp(CatF64),
	OpFCmpGT:   cmp(CatF64),
	OpFCmpGE:   cmp(CatF64),
	OpSiToFp: {
		Result: ResultOne, ResultType: CatF64,
		MinOperands: 1, MaxOperands: 1,
		Operands: []TypeCategory{CatI64},
	},
	OpIdxChk: {
		Result: ResultOne, ResultType: CatInstrType,
		MinOperands: 3, MaxOperands: 3,
		Operands: []TypeCategory{CatDynamic, CatDynamic, CatDynamic},
		Strategy: StrategyIdxChk,
	},
	OpCastFpToSiRteChk: checkedCast(CatF64, StrategyCastFpToSiRteChk),
	OpCastFpToUiRteChk: checkedCast(CatF64, StrategyCastFpToUiRteChk),
	OpCastSiNarrowChk:  checkedCast(CatI64, StrategyCastSiNarrowChk),
	OpCastUiNarrowChk:  checkedCast(CatI64, StrategyCastUiNarrowChk),
	OpAlloca: {
		Result: ResultOne, ResultType: CatPtr,
		MinOperands: 1, MaxOperands: 1,
		Operands:    []TypeCategory{CatI64},
		SideEffects: true,
		Strategy:    StrategyAlloca,
	},
	OpGEP: {
		Result: ResultOne, ResultType: CatPtr,
		MinOperands: 2, MaxOperands: Variadic,
		Operands: []TypeCategory{CatPtr, CatI64},
		Strategy: StrategyGEP,
	},
	OpLoad: {
		Result: ResultOne, ResultType: CatInstrType,
		MinOperands: 1, MaxOperands: 1,
		Operands: []TypeCategory{CatPtr},
		Strategy: StrategyLoad,
	},
	OpStore: {
		Result: ResultNone, ResultType: CatVoid,
		MinOperands: 2, MaxOperands: 2,
		Operands:    []TypeCategory{CatPtr, CatDynamic},
		SideEffects: true,
		Strategy:    StrategyStore,
	},
	OpAddrOf: {
		Result: ResultOne, ResultType: CatPtr,
		MinOperands: 1, MaxOperands: 1,
		Operands: []TypeCategory{CatAny},
		Strategy: StrategyAddrOf,
	},
	OpConstStr: {
		Result: ResultOne, ResultType: CatStr,
		MinOperands: 1, MaxOperands: 1,
		Operands: []TypeCategory{CatAny},
		Strategy: StrategyConstStr,
	},
	OpConstNull: {
		Result: ResultOne, ResultType: CatDynamic,
		MinOperands: 0, MaxOperands: 0,
		Strategy: StrategyConstNull,
	},
	OpCall: {
		Result: ResultOptional, ResultType: CatDynamic,
		MinOperands: 0, MaxOperands: Variadic,
		SideEffects: true,
		Strategy:    StrategyCall,
	},
	OpCallIndirect: {
		Result: ResultOptional, ResultType: CatDynamic,
		MinOperands: 1, MaxOperands: Variadic,
		SideEffects: true,
		Strategy:    StrategyCall,
	},
	OpTrap: {
		Result: ResultNone, ResultType: CatVoid,
		SideEffects: true, Terminator: true,
	},
	OpTrapKind: {
		Result: ResultOne, ResultType: CatI64,
		Strategy: StrategyTrapKind,
	},
	OpTrapErr: {
		Result: ResultOne, ResultType: CatError,
		MinOperands: 2, MaxOperands: 2,
		Operands: []TypeCategory{CatDynamic, CatDynamic},
		Strategy: StrategyTrapErr,
	},
	OpTrapFromErr: {
		Result: ResultNone, ResultType: CatVoid,
		MinOperands: 1, MaxOperands: 1,
		Operands:    []TypeCategory{CatDynamic},
		SideEffects: true, Terminator: true,
		Strategy: StrategyTrapFromErr,
	},
	OpErrGetKind: errAccess(CatI32),
	OpErrGetCode: errAccess(CatI32),
	OpErrGetIP:   errAccess(CatI64),
	OpErrGetLine: errAccess(CatI32),
	OpEhPush: {
		Result: ResultNone, ResultType: CatVoid,
		Successors:  1,
		SideEffects: true,
	},
	OpEhPop: {
		Result: ResultNone, ResultType: CatVoid,
		SideEffects: true,
	},
	OpEhEntry: {
		Result: ResultNone, ResultType: CatVoid,
		SideEffects: true,
	},
	OpResumeSame: {
		Result: ResultNone, ResultType: CatVoid,
		MinOperands: 1, MaxOperands: 1,
		Operands:    []TypeCategory{CatResumeTok},
		SideEffects: true, Terminator: true,
	},
	OpResumeNext: {
		Result: ResultNone, ResultType: CatVoid,
		MinOperands: 1, MaxOperands: 1,
		Operands:    []TypeCategory{CatResumeTok},
		SideEffects: true, Terminator: true,
	},
	OpResumeLabel: {
		Result: ResultNone, ResultType: CatVoid,
		MinOperands: 1, MaxOperands: 1,
		Operands:    []TypeCategory{CatResumeTok},
		Successors:  1,
		SideEffects: true, Terminator: true,
	},
	OpBr: {
		Result: ResultNone, ResultType: CatVoid,
		Successors: 1,
		Terminator: true,
	},
	OpCBr: {
		Result: ResultNone, ResultType: CatVoid,
		MinOperands: 1, MaxOperands: 1,
		Operands:   []TypeCategory{CatI1},
		Successors: 2,
		Terminator: true,
	},
	OpSwitchI32: {
		Result: ResultNone, ResultType: CatVoid,
		MinOperands: 1, MaxOperands: Variadic,
		Operands:   []TypeCategory{CatI32},
		Successors: Variadic,
		Terminator: true,
	},
	OpRet: {
		Result: ResultNone, ResultType: CatVoid,
		MinOperands: 0, MaxOperands: 1,
		Operands:   []TypeCategory{CatAny},
		Terminator: true,
	},
	OpIAdd: {
		Result: ResultOptional, ResultType: CatDynamic,
		MinOperands: 0, MaxOperands: Variadic,
		Strategy:  StrategyReject,
		RejectMsg: "iadd is not accepted; use iadd.ovf",
	},
	OpISub: {
		Result: ResultOptional, ResultType: CatDynamic,
		MinOperands: 0, MaxOperands: Variadic,
		Strategy:  StrategyReject,
		RejectMsg: "isub is not accepted; use isub.ovf",
	},
}

// Lookup returns the static specification for op. Entries point into static
// storage and must not be mutated.
func Lookup(op Opcode) *Spec {
	if op < NumOpcodes {
		return &specs[op]
	}
	return &Spec{Strategy: StrategyReject, RejectMsg: "unknown opcode"}
}
