package verify

import (
	"strconv"
	"strings"

	"github.com/splanck/viper/core/il"
)

func itoa(v uint32) string { return strconv.FormatUint(uint64(v), 10) }

// formatFunctionDiag renders "<fn>[: <message>]".
func formatFunctionDiag(fn *il.Function, message string) string {
	if message == "" {
		return fn.Name
	}
	return fn.Name + ": " + message
}

// formatBlockDiag renders "<fn>:<block>[: <message>]".
func formatBlockDiag(fn *il.Function, bb *il.BasicBlock, message string) string {
	out := fn.Name + ":" + bb.Label
	if message != "" {
		out += ": " + message
	}
	return out
}

// formatInstrDiag renders "<fn>:<block>: <snippet>[: <message>]" so every
// instruction-scoped diagnostic carries its full context.
func formatInstrDiag(fn *il.Function, bb *il.BasicBlock, in *il.Instr, message string) string {
	var sb strings.Builder
	sb.WriteString(fn.Name)
	sb.WriteString(":")
	sb.WriteString(bb.Label)
	sb.WriteString(": ")
	sb.WriteString(in.Snippet())
	if message != "" {
		sb.WriteString(": ")
		sb.WriteString(message)
	}
	return sb.String()
}
