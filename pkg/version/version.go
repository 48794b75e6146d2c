package version

import (
	"fmt"
)

// Version represents the current version of dwarf-writer.
type Version struct {
	Major    string
	Minor    string
	Patch    string
	Metadata string
}

// DwarfWriterVersion is the current version of dwarf-writer.
var DwarfWriterVersion = Version{
	Major: "0", Minor: "2", Patch: "0", Metadata: "",
}

func (v Version) String() string {
	ver := fmt.Sprintf("%s.%s.%s", v.Major, v.Minor, v.Patch)
	if v.Metadata != "" {
		ver += "-" + v.Metadata
	}
	return ver
}

// Producer is the DW_AT_producer string stamped on compilation units
// this tool creates. Output is always DWARF version 4, whatever the
// input carried.
func Producer() string {
	return fmt.Sprintf("dwarf-writer %s (DWARF v4)", DwarfWriterVersion)
}
