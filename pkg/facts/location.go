package facts

import (
	"github.com/immunant/dwarf-writer/pkg/dwarf/leb128"
)

// DWARF expression opcodes used for the location expressions the
// input sources can describe (DWARF v4, section 7.7.1).
const (
	DW_OP_addr  = 0x03
	DW_OP_breg0 = 0x70
	DW_OP_reg0  = 0x50
	DW_OP_bregx = 0x92
	DW_OP_regx  = 0x90
)

// RegisterLoc returns an expression naming a value held in a
// register.
func RegisterLoc(reg int) []byte {
	if reg < 32 {
		return []byte{byte(DW_OP_reg0 + reg)}
	}
	return leb128.AppendUnsigned([]byte{DW_OP_regx}, uint64(reg))
}

// MemoryLoc returns an expression for a value stored at
// register + offset.
func MemoryLoc(reg int, offset int64) []byte {
	var expr []byte
	if reg < 32 {
		expr = []byte{byte(DW_OP_breg0 + reg)}
	} else {
		expr = leb128.AppendUnsigned([]byte{DW_OP_bregx}, uint64(reg))
	}
	return leb128.AppendSigned(expr, offset)
}
