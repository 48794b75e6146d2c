package cmds

import (
	"testing"
)

func TestFlagsRegistered(t *testing.T) {
	cmd := New()
	for _, name := range []string{
		"anvill", "bsi", "ghidra", "section-dir", "objcopy", "unsound",
		"omit-functions", "omit-variables", "omit-symbols",
		"log-output", "log-dest", "verbose",
	} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("flag --%s not registered", name)
		}
	}
	for short, long := range map[string]string{
		"a": "anvill", "b": "bsi", "g": "ghidra",
		"s": "section-dir", "x": "objcopy", "u": "unsound",
		"l": "log-output", "v": "verbose",
	} {
		f := cmd.Flags().ShorthandLookup(short)
		if f == nil || f.Name != long {
			t.Errorf("shorthand -%s does not map to --%s", short, long)
		}
	}
}

func TestArgValidation(t *testing.T) {
	cmd := New()
	if err := cmd.Args(cmd, []string{}); err == nil {
		t.Error("zero arguments must be rejected")
	}
	if err := cmd.Args(cmd, []string{"in"}); err != nil {
		t.Errorf("one argument rejected: %v", err)
	}
	if err := cmd.Args(cmd, []string{"in", "out"}); err != nil {
		t.Errorf("two arguments rejected: %v", err)
	}
	if err := cmd.Args(cmd, []string{"a", "b", "c"}); err == nil {
		t.Error("three arguments must be rejected")
	}
}
