package logflags

import (
	"testing"
)

func resetComponents() {
	merge, dwarf, decoder, elf, splice = false, false, false, false, false
	logOut = nil
}

func TestSetupComponents(t *testing.T) {
	defer resetComponents()
	if err := Setup(false, "merge,decoder", ""); err != nil {
		t.Fatal(err)
	}
	if !Merge() {
		t.Error("merge not enabled")
	}
	if !decoder {
		t.Error("decoder not enabled")
	}
	if dwarf || elf || splice {
		t.Error("unrequested components enabled")
	}
}

func TestSetupVerbose(t *testing.T) {
	defer resetComponents()
	if err := Setup(true, "", ""); err != nil {
		t.Fatal(err)
	}
	if !merge || !dwarf || !decoder || !elf || !splice {
		t.Error("verbose must enable everything")
	}
}

func TestSetupUnknownComponent(t *testing.T) {
	defer resetComponents()
	if err := Setup(false, "nonsense", ""); err == nil {
		t.Error("unknown component must be rejected")
	}
}

func TestSetupLogDestRequiresOutput(t *testing.T) {
	defer resetComponents()
	if err := Setup(false, "", "/tmp/x.log"); err == nil {
		t.Error("--log-dest without components must be rejected")
	}
}
