package regnum

import (
	"strconv"
	"strings"
)

// The mapping between hardware registers and DWARF registers is
// specified in the DWARF for the ARM 64-bit Architecture (AArch64)
// document, Table 1.
// https://developer.arm.com/documentation/ihi0057/b/

const (
	ARM64_X0 = 0  // X1 through X30 follow
	ARM64_SP = 31
	ARM64_PC = 32
	ARM64_V0 = 64 // V1 through V31 follow
)

// ARM64NameToDwarf returns the DWARF register number for an aarch64
// register name, in any case.
func ARM64NameToDwarf(name string) (int, bool) {
	name = strings.ToLower(name)
	switch name {
	case "sp":
		return ARM64_SP, true
	case "pc":
		return ARM64_PC, true
	case "lr":
		return ARM64_X0 + 30, true
	case "fp":
		return ARM64_X0 + 29, true
	}
	if len(name) > 1 && (name[0] == 'x' || name[0] == 'w') {
		n, err := strconv.Atoi(name[1:])
		if err == nil && n >= 0 && n <= 30 {
			return ARM64_X0 + n, true
		}
	}
	if len(name) > 1 && name[0] == 'v' {
		n, err := strconv.Atoi(name[1:])
		if err == nil && n >= 0 && n <= 31 {
			return ARM64_V0 + n, true
		}
	}
	return 0, false
}
