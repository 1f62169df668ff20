package il

import (
	"strings"

	"github.com/splanck/viper/core/diag"
)

// Param is a function or block parameter.
type Param struct {
	ID   uint32
	Name string
	Type Type
}

// Instr is a single IL instruction. Result is nil for void instructions.
// Labels lists successor block labels for terminators (and the handler label
// for eh.push); BrArgs carries one branch-argument bundle per label slot, or
// is empty when no bundles were written.
type Instr struct {
	Op       Opcode
	Result   *uint32
	Type     Type // declared result type annotation; Void when absent
	Operands []Value
	Labels   []string
	BrArgs   [][]Value
	Callee   string // call / call.indirect resolved symbol
	Loc      diag.SourceLoc
}

// NewResult is a convenience for building instructions with a result id.
func NewResult(id uint32) *uint32 { return &id }

// Snippet renders the instruction in the concise single-line form used by
// verifier diagnostics: "%N = op operand... label L...".
func (in *Instr) Snippet() string {
	var sb strings.Builder
	if in.Result != nil {
		sb.WriteString("%")
		sb.WriteString(itoa(*in.Result))
		sb.WriteString(" = ")
	}
	sb.WriteString(in.Op.String())
	for _, op := range in.Operands {
		sb.WriteString(" ")
		sb.WriteString(op.String())
	}
	for _, label := range in.Labels {
		sb.WriteString(" label ")
		sb.WriteString(label)
	}
	return sb.String()
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// BasicBlock is a labelled instruction sequence with block parameters.
type BasicBlock struct {
	Label        string
	Params       []Param
	Instructions []Instr
}

// Function owns its blocks; the first block is the entry block.
type Function struct {
	Name    string
	RetType Type
	Params  []Param
	Blocks  []BasicBlock
}

// Extern declares the signature of a symbol resolved outside the module.
type Extern struct {
	Name    string
	RetType Type
	Params  []Type
}

// Global is a module-level named constant or variable.
type Global struct {
	Name string
	Type Type
	Init string
}

// Module is the root of the IL data model. The verifier borrows it immutably;
// ownership of functions and globals stays with the module.
type Module struct {
	Externs   []Extern
	Globals   []Global
	Functions []Function
}
