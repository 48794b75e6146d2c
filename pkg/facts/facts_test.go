package facts

import (
	"testing"
)

func TestIsAutoGenerated(t *testing.T) {
	tc := []struct {
		name string
		want bool
	}{
		{"sub_401000", true},
		{"FUN_00401000", true},
		{"VAR_601000", true},
		{"DAT_00601234", true},
		{"main", false},
		{"sub_routine", false},
		{"sub_", false},
		{"FUN_xyz", false},
		{"", false},
	}
	for _, c := range tc {
		if got := IsAutoGenerated(c.name); got != c.want {
			t.Errorf("IsAutoGenerated(%q) = %t, want %t", c.name, got, c.want)
		}
	}
}

func TestParseCType(t *testing.T) {
	tc := []struct {
		in   string
		kind TypeKind
	}{
		{"void", KindVoid},
		{"", KindVoid},
		{"int", KindBase},
		{"uint32_t", KindBase},
		{"char *", KindPointer},
		{"struct node", KindStruct},
		{"const char *", KindPointer},
		{"int[4]", KindArray},
		{"void **", KindPointer},
	}
	for _, c := range tc {
		if got := ParseCType(c.in); got.Kind != c.kind {
			t.Errorf("ParseCType(%q).Kind = %v, want %v", c.in, got.Kind, c.kind)
		}
	}

	// Spelling variants fold to one canonical primitive.
	if ParseCType("int").Name != "int32_t" {
		t.Errorf("int canonicalizes to %q", ParseCType("int").Name)
	}
	if ParseCType("unsigned long long").Name != "uint64_t" {
		t.Errorf("unsigned long long canonicalizes to %q", ParseCType("unsigned long long").Name)
	}

	ptr := ParseCType("const char *")
	if ptr.Elem.Kind != KindConst || ptr.Elem.Elem.Name != "char" {
		t.Errorf("const char * did not nest properly: %+v", ptr)
	}

	arr := ParseCType("int[4]")
	if len(arr.Counts) != 1 || arr.Counts[0] != 4 {
		t.Errorf("int[4] counts = %v", arr.Counts)
	}
}

func TestFingerprintStability(t *testing.T) {
	mk := func() *Type {
		n := &Type{Kind: KindStruct, Name: "Node"}
		n.Members = []Member{
			{Name: "value", Offset: 0, Type: BaseType("int32_t")},
			{Name: "next", Offset: 8, Type: PointerTo(n)},
		}
		return n
	}

	a, b := mk(), mk()
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical cyclic types fingerprint differently")
	}

	// The pointer to the struct must hash the same regardless of which
	// instance of the pointer is hashed.
	n := mk()
	p1 := PointerTo(n)
	p2 := n.Members[1].Type
	if p1.Fingerprint() != p2.Fingerprint() {
		t.Error("pointer-to-Node fingerprints depend on traversal root")
	}

	if n.Fingerprint() == p1.Fingerprint() {
		t.Error("struct and pointer-to-struct must not collide")
	}
	if BaseType("int32_t").Fingerprint() == BaseType("uint32_t").Fingerprint() {
		t.Error("distinct base types must not collide")
	}
}

func TestLocationExpressions(t *testing.T) {
	if got := RegisterLoc(5); len(got) != 1 || got[0] != DW_OP_reg0+5 {
		t.Errorf("RegisterLoc(5) = %#v", got)
	}
	if got := RegisterLoc(40); got[0] != DW_OP_regx {
		t.Errorf("RegisterLoc(40) = %#v", got)
	}
	got := MemoryLoc(6, -8)
	if got[0] != DW_OP_breg0+6 {
		t.Errorf("MemoryLoc(6,-8) = %#v", got)
	}
	if got[1] != 0x78 { // -8 as SLEB128
		t.Errorf("MemoryLoc offset encoded as %#x", got[1])
	}
}

func TestPrettyName(t *testing.T) {
	if PrettyName("main") != "main" {
		t.Error("unmangled names must pass through")
	}
	if got := PrettyName("_Z3fooi"); got != "foo(int)" {
		t.Errorf("PrettyName(_Z3fooi) = %q", got)
	}
}
