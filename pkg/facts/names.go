package facts

import (
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// Placeholder prefixes emitted by the disassemblers we take input
// from. A name built from one of these plus hex digits carries no
// information beyond the address.
var autoGenPrefixes = []string{"sub_", "FUN_", "VAR_", "DAT_", "LAB_", "loc_", "off_"}

// IsAutoGenerated reports whether name is a disassembler placeholder
// such as sub_401000 or FUN_00401000.
func IsAutoGenerated(name string) bool {
	for _, p := range autoGenPrefixes {
		rest, ok := strings.CutPrefix(name, p)
		if !ok || rest == "" {
			continue
		}
		if isHex(rest) {
			return true
		}
	}
	return false
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F' {
			continue
		}
		return false
	}
	return true
}

// PrettyName demangles an Itanium-mangled name for use as DW_AT_name.
// Unmangled names come back unchanged.
func PrettyName(name string) string {
	if !strings.HasPrefix(name, "_Z") {
		return name
	}
	return demangle.Filter(name)
}

// IsMangled reports whether the name should also be recorded as a
// linkage name.
func IsMangled(name string) bool {
	return strings.HasPrefix(name, "_Z") && demangle.Filter(name) != name
}
