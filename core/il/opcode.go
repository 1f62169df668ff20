package il

// Opcode is the closed instruction set of the IL.
type Opcode uint8

const (
	OpIAddOvf Opcode = iota
	OpISubOvf
	OpIMulOvf
	OpSDivChk0
	OpUDivChk0
	OpSRemChk0
	OpURemChk0
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpAShr
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpICmpEq
	OpICmpNe
	OpSCmpLT
	OpSCmpLE
	OpSCmpGT
	OpSCmpGE
	OpFCmpEq
	OpFCmpNe
	OpFCmpLT
	OpFCmpLE
	OpFCmpGT
	OpFCmpGE
	OpSiToFp
	OpIdxChk
	OpCastFpToSiRteChk
	OpCastFpToUiRteChk
	OpCastSiNarrowChk
	OpCastUiNarrowChk
	OpAlloca
	OpGEP
	OpLoad
	OpStore
	OpAddrOf
	OpConstStr
	OpConstNull
	OpCall
	OpCallIndirect
	OpTrap
	OpTrapKind
	OpTrapErr
	OpTrapFromErr
	OpErrGetKind
	OpErrGetCode
	OpErrGetIP
	OpErrGetLine
	OpEhPush
	OpEhPop
	OpEhEntry
	OpResumeSame
	OpResumeNext
	OpResumeLabel
	OpBr
	OpCBr
	OpSwitchI32
	OpRet
	OpIAdd // rejected: overflow-unchecked legacy form
	OpISub // rejected: overflow-unchecked legacy form

	NumOpcodes // sentinel
)

var opcodeNames = [...]string{
	OpIAddOvf:          "iadd.ovf",
	OpISubOvf:          "isub.ovf",
	OpIMulOvf:          "imul.ovf",
	OpSDivChk0:         "sdiv.chk0",
	OpUDivChk0:         "udiv.chk0",
	OpSRemChk0:         "srem.chk0",
	OpURemChk0:         "urem.chk0",
	OpAnd:              "and",
	OpOr:               "or",
	OpXor:              "xor",
	OpShl:              "shl",
	OpLShr:             "lshr",
	OpAShr:             "ashr",
	OpFAdd:             "fadd",
	OpFSub:             "fsub",
	OpFMul:             "fmul",
	OpFDiv:             "fdiv",
	OpICmpEq:           "icmp.eq",
	OpICmpNe:           "icmp.ne",
	OpSCmpLT:           "scmp.lt",
	OpSCmpLE:           "scmp.le",
	OpSCmpGT:           "scmp.gt",
	OpSCmpGE:           "scmp.ge",
	OpFCmpEq:           "fcmp.eq",
	OpFCmpNe:           "fcmp.ne",
	OpFCmpLT:           "fcmp.lt",
	OpFCmpLE:           "fcmp.le",
	OpFCmpGT:           "fcmp.gt",
	OpFCmpGE:           "fcmp.ge",
	OpSiToFp:           "sitofp",
	OpIdxChk:           "idx.chk",
	OpCastFpToSiRteChk: "cast.fp_to_si.rte.chk",
	OpCastFpToUiRteChk: "cast.fp_to_ui.rte.chk",
	OpCastSiNarrowChk:  "cast.si_narrow.chk",
	OpCastUiNarrowChk:  "cast.ui_narrow.chk",
	OpAlloca:           "alloca",
	OpGEP:              "gep",
	OpLoad:             "load",
	OpStore:            "store",
	OpAddrOf:           "addr_of",
	OpConstStr:         "const_str",
	OpConstNull:        "const_null",
	OpCall:             "call",
	OpCallIndirect:     "call.indirect",
	OpTrap:             "trap",
	OpTrapKind:         "trap.kind",
	OpTrapErr:          "trap.err",
	OpTrapFromErr:      "trap.from_err",
	OpErrGetKind:       "err.get_kind",
	OpErrGetCode:       "err.get_code",
	OpErrGetIP:         "err.get_ip",
	OpErrGetLine:       "err.get_line",
	OpEhPush:           "eh.push",
	OpEhPop:            "eh.pop",
	OpEhEntry:          "eh.entry",
	OpResumeSame:       "resume.same",
	OpResumeNext:       "resume.next",
	OpResumeLabel:      "resume.label",
	OpBr:               "br",
	OpCBr:              "cbr",
	OpSwitchI32:        "switch.i32",
	OpRet:              "ret",
	OpIAdd:             "iadd",
	OpISub:             "isub",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return "op?"
}

// IsTerminator reports whether op ends a basic block.
func (op Opcode) IsTerminator() bool { return Lookup(op).Terminator }

// IsResume reports whether op consumes a resume token.
func (op Opcode) IsResume() bool {
	return op == OpResumeSame || op == OpResumeNext || op == OpResumeLabel
}

// IsErrAccess reports whether op reads fields of a handler's %err parameter.
func (op Opcode) IsErrAccess() bool {
	switch op {
	case OpErrGetKind, OpErrGetCode, OpErrGetIP, OpErrGetLine:
		return true
	default:
		return false
	}
}
