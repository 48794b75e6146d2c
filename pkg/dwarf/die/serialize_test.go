package die

import (
	"debug/dwarf"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleForest() *Forest {
	f := NewForest(binary.LittleEndian)
	u := NewUnit(4, false, 8, dwarf.TagCompileUnit)
	root := u.Root()
	root.Set(dwarf.AttrName, 0, StringValue("example.c"))
	root.Set(dwarf.AttrProducer, 0, StringValue("clang version 13.0.0"))
	root.Set(dwarf.AttrLanguage, 0, UintValue(12))
	root.Set(dwarf.AttrLowpc, 0, AddrValue(0x401000))
	root.Set(dwarf.AttrHighpc, 0, UintValue(0x200))
	ui := f.AddUnit(u)

	bt := u.Add(0, dwarf.TagBaseType)
	u.Entry(bt).Set(dwarf.AttrName, 0, StringValue("int32_t"))
	u.Entry(bt).Set(dwarf.AttrByteSize, 0, UintValue(4))
	u.Entry(bt).Set(dwarf.AttrEncoding, 0, UintValue(uint64(DW_ATE_signed)))

	sp := u.Add(0, dwarf.TagSubprogram)
	u.Entry(sp).Set(dwarf.AttrName, 0, StringValue("main"))
	u.Entry(sp).Set(dwarf.AttrLowpc, 0, AddrValue(0x401000))
	u.Entry(sp).Set(dwarf.AttrHighpc, 0, AddrValue(0x401080))
	u.Entry(sp).Set(dwarf.AttrPrototyped, 0, FlagValue(true))
	u.Entry(sp).Set(dwarf.AttrType, 0, RefValue(EntryID{Unit: ui, Index: bt}))

	pp := u.Add(sp, dwarf.TagFormalParameter)
	u.Entry(pp).Set(dwarf.AttrName, 0, StringValue("argc"))
	u.Entry(pp).Set(dwarf.AttrType, 0, RefValue(EntryID{Unit: ui, Index: bt}))
	u.Entry(pp).Set(dwarf.AttrLocation, 0, BlockValue([]byte{0x91, 0x6c}))

	return f
}

func reparse(t *testing.T, s *Sections, order binary.ByteOrder) *Forest {
	t.Helper()
	f, err := NewParser(order).Parse(s.Info, s.Abbrev, s.Str)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if err := f.ResolveReferences(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return f
}

// Serializing a parsed forest again must reproduce the sections byte
// for byte: serialization is a normal form.
func TestRoundTrip(t *testing.T) {
	f := sampleForest()
	s1, err := f.Serialize()
	if err != nil {
		t.Fatal(err)
	}

	f2 := reparse(t, s1, binary.LittleEndian)
	s2, err := f2.Serialize()
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(s1.Info, s2.Info); diff != "" {
		t.Errorf(".debug_info not stable (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(s1.Abbrev, s2.Abbrev); diff != "" {
		t.Errorf(".debug_abbrev not stable:\n%s", diff)
	}
	if diff := cmp.Diff(s1.Str, s2.Str); diff != "" {
		t.Errorf(".debug_str not stable:\n%s", diff)
	}
}

func TestRoundTripTree(t *testing.T) {
	f := sampleForest()
	s, err := f.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	f2 := reparse(t, s, binary.LittleEndian)

	if len(f2.Units) != 1 {
		t.Fatalf("got %d units, want 1", len(f2.Units))
	}
	u := f2.Units[0]
	if u.Root().Tag != dwarf.TagCompileUnit || u.Root().Name() != "example.c" {
		t.Errorf("bad root: %s %q", u.Root().Tag, u.Root().Name())
	}

	var sp *Entry
	for _, e := range u.Entries {
		if e.Tag == dwarf.TagSubprogram {
			sp = e
		}
	}
	if sp == nil {
		t.Fatal("no subprogram after round trip")
	}
	if sp.Name() != "main" {
		t.Errorf("subprogram name = %q, want main", sp.Name())
	}
	tv, ok := sp.Attr(dwarf.AttrType)
	if !ok || tv.Class != ClassReference {
		t.Fatal("subprogram lost its type reference")
	}
	if ref := f2.Entry(tv.Ref); ref.Tag != dwarf.TagBaseType || ref.Name() != "int32_t" {
		t.Errorf("type reference resolves to %s %q", ref.Tag, ref.Name())
	}
	if len(sp.Children) != 1 {
		t.Fatalf("subprogram has %d children, want 1", len(sp.Children))
	}
	if p := u.Entry(sp.Children[0]); p.Tag != dwarf.TagFormalParameter || p.Name() != "argc" {
		t.Errorf("parameter is %s %q", p.Tag, p.Name())
	}
}

// The standard library consumer must accept our output.
func TestStdlibConsumesOutput(t *testing.T) {
	f := sampleForest()
	s, err := f.Serialize()
	if err != nil {
		t.Fatal(err)
	}

	d, err := dwarf.New(s.Abbrev, nil, nil, s.Info, nil, nil, nil, s.Str)
	if err != nil {
		t.Fatalf("debug/dwarf rejected output: %v", err)
	}
	r := d.Reader()
	n := 0
	var names []string
	for {
		e, err := r.Next()
		if err != nil {
			t.Fatalf("debug/dwarf walk: %v", err)
		}
		if e == nil {
			break
		}
		if e.Tag != 0 {
			n++
			if s, ok := e.Val(dwarf.AttrName).(string); ok {
				names = append(names, s)
			}
		}
	}
	if n != 4 {
		t.Errorf("stdlib saw %d entries, want 4", n)
	}
	want := []string{"example.c", "int32_t", "main", "argc"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
}

func TestBigEndianRoundTrip(t *testing.T) {
	f := NewForest(binary.BigEndian)
	u := NewUnit(4, false, 4, dwarf.TagCompileUnit)
	u.Root().Set(dwarf.AttrName, 0, StringValue("be.c"))
	f.AddUnit(u)
	sp := u.Add(0, dwarf.TagSubprogram)
	u.Entry(sp).Set(dwarf.AttrName, 0, StringValue("f"))
	u.Entry(sp).Set(dwarf.AttrLowpc, 0, AddrValue(0x10000))

	s1, err := f.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	f2 := reparse(t, s1, binary.BigEndian)
	if got := f2.Units[0].Root().Name(); got != "be.c" {
		t.Errorf("root name = %q", got)
	}
	var pc AttrValue
	for _, e := range f2.Units[0].Entries {
		if e.Tag == dwarf.TagSubprogram {
			pc, _ = e.Attr(dwarf.AttrLowpc)
		}
	}
	if pc.Class != ClassAddress || pc.Uint != 0x10000 {
		t.Errorf("low pc = %v", pc)
	}
}

// A constant that has outgrown its parsed form gets the smallest form
// that fits.
func TestFormUpgrade(t *testing.T) {
	f := sampleForest()
	u := f.Units[0]
	for _, e := range u.Entries {
		if e.Tag == dwarf.TagBaseType {
			// Simulate a merge writing a large value into an attribute
			// parsed with a one-byte form.
			e.Set(dwarf.AttrByteSize, DW_FORM_data1, UintValue(300))
		}
	}
	s, err := f.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	f2 := reparse(t, s, binary.LittleEndian)
	for _, e := range f2.Units[0].Entries {
		if e.Tag == dwarf.TagBaseType {
			v, ok := e.Attr(dwarf.AttrByteSize)
			if !ok || v.Uint != 300 {
				t.Errorf("byte size after upgrade = %v", v)
			}
		}
	}
}

// Shared strings and long strings go through .debug_str; every strp
// offset must address a NUL-terminated string.
func TestStringPolicy(t *testing.T) {
	f := sampleForest()
	s, err := f.Serialize()
	if err != nil {
		t.Fatal(err)
	}

	if len(s.Str) == 0 || s.Str[0] != 0 {
		t.Fatalf(".debug_str must start with the reserved empty string")
	}
	// The producer string is longer than the inline threshold and must
	// be pooled exactly once.
	count := 0
	for off := uint64(0); off < uint64(len(s.Str)); {
		str, ok := readString(s.Str, off)
		if !ok {
			t.Fatalf("unterminated string at %#x", off)
		}
		if str == "clang version 13.0.0" {
			count++
		}
		off += uint64(len(str)) + 1
	}
	if count != 1 {
		t.Errorf("producer string appears %d times in .debug_str, want 1", count)
	}
}

func TestSerializeDeterministic(t *testing.T) {
	s1, err := sampleForest().Serialize()
	if err != nil {
		t.Fatal(err)
	}
	s2, err := sampleForest().Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(s1, s2); diff != "" {
		t.Errorf("two serializations differ:\n%s", diff)
	}
}
