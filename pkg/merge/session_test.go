package merge

import (
	"debug/dwarf"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/immunant/dwarf-writer/pkg/dwarf/die"
	"github.com/immunant/dwarf-writer/pkg/facts"
)

func testOptions() Options {
	return Options{Producer: "dwarf-writer test (DWARF v4)", AddrSize: 8, Is64: false}
}

// existingForest builds a unit covering 0x401000..0x402000 holding
// real_work with three unnamed parameters.
func existingForest() *die.Forest {
	f := die.NewForest(binary.LittleEndian)
	u := die.NewUnit(4, false, 8, dwarf.TagCompileUnit)
	root := u.Root()
	root.Set(dwarf.AttrName, 0, die.StringValue("existing.c"))
	root.Set(dwarf.AttrLowpc, 0, die.AddrValue(0x401000))
	root.Set(dwarf.AttrHighpc, 0, die.AddrValue(0x402000))
	f.AddUnit(u)

	sp := u.Add(0, dwarf.TagSubprogram)
	u.Entry(sp).Set(dwarf.AttrName, 0, die.StringValue("real_work"))
	u.Entry(sp).Set(dwarf.AttrLowpc, 0, die.AddrValue(0x401000))
	for _, name := range []string{"p1", "p2", "p3"} {
		p := u.Add(sp, dwarf.TagFormalParameter)
		u.Entry(p).Set(dwarf.AttrName, 0, die.StringValue(name))
	}
	return f
}

func newTestSession(t *testing.T, f *die.Forest, opts Options) *Session {
	t.Helper()
	s, err := NewSession(f, opts)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func findByTag(f *die.Forest, tag dwarf.Tag) []*die.Entry {
	var out []*die.Entry
	for _, u := range f.Units {
		for _, e := range u.Entries {
			if e.Tag == tag {
				out = append(out, e)
			}
		}
	}
	return out
}

// A function fact against an empty binary lands in a fresh synthetic
// unit stamped with the producer.
func TestCreateFunctionFromScratch(t *testing.T) {
	s := newTestSession(t, die.NewForest(binary.LittleEndian), testOptions())

	fs := &facts.FactSet{Functions: []*facts.Function{{
		EntryPC:     0x401000,
		Name:        "main",
		Ret:         facts.Void(),
		HasNoReturn: true,
		NoReturn:    false,
	}}}
	if err := s.Apply(fs); err != nil {
		t.Fatal(err)
	}

	f := s.Forest()
	subs := findByTag(f, dwarf.TagSubprogram)
	if len(subs) != 1 {
		t.Fatalf("got %d subprograms, want 1", len(subs))
	}
	sp := subs[0]
	if sp.Name() != "main" {
		t.Errorf("name = %q, want main", sp.Name())
	}
	pc, ok := sp.Attr(dwarf.AttrLowpc)
	if !ok || pc.Uint != 0x401000 {
		t.Errorf("low pc = %v", pc)
	}
	if sp.HasAttr(dwarf.AttrNoreturn) {
		t.Error("noreturn flag set for a returning function")
	}
	root := f.Units[len(f.Units)-1].Root()
	prod, _ := root.Attr(dwarf.AttrProducer)
	if prod.Str != "dwarf-writer test (DWARF v4)" {
		t.Errorf("producer = %q", prod.Str)
	}

	// The result must serialize and reparse cleanly.
	secs, err := f.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dwarf.New(secs.Abbrev, nil, nil, secs.Info, nil, nil, nil, secs.Str); err != nil {
		t.Fatalf("debug/dwarf rejected merged output: %v", err)
	}
}

// An auto-generated name never clobbers a real one.
func TestAutoGeneratedNameDoesNotClobber(t *testing.T) {
	s := newTestSession(t, existingForest(), testOptions())

	fs := &facts.FactSet{Functions: []*facts.Function{{
		EntryPC: 0x401000,
		Name:    "sub_401000",
	}}}
	if err := s.Apply(fs); err != nil {
		t.Fatal(err)
	}

	sp := findByTag(s.Forest(), dwarf.TagSubprogram)[0]
	if sp.Name() != "real_work" {
		t.Errorf("name = %q, want real_work", sp.Name())
	}
}

// A real name replaces an auto-generated one.
func TestRealNameReplacesPlaceholder(t *testing.T) {
	f := existingForest()
	sp := findByTag(f, dwarf.TagSubprogram)[0]
	sp.Set(dwarf.AttrName, 0, die.StringValue("FUN_00401000"))

	s := newTestSession(t, f, testOptions())
	fs := &facts.FactSet{Functions: []*facts.Function{{EntryPC: 0x401000, Name: "parse_header"}}}
	if err := s.Apply(fs); err != nil {
		t.Fatal(err)
	}
	if got := findByTag(s.Forest(), dwarf.TagSubprogram)[0].Name(); got != "parse_header" {
		t.Errorf("name = %q, want parse_header", got)
	}
}

// A cyclic type synthesizes exactly one struct entry and one pointer
// entry that resolve to each other.
func TestCyclicType(t *testing.T) {
	node := &facts.Type{Kind: facts.KindStruct, Name: "Node"}
	node.Members = []facts.Member{
		{Name: "value", Offset: 0, Type: facts.BaseType("int32_t")},
		{Name: "next", Offset: 8, Type: facts.PointerTo(node)},
	}

	s := newTestSession(t, die.NewForest(binary.LittleEndian), testOptions())
	fs := &facts.FactSet{Variables: []*facts.Variable{{
		Addr: 0x601000,
		Name: "head",
		Type: facts.PointerTo(node),
	}}}
	if err := s.Apply(fs); err != nil {
		t.Fatal(err)
	}

	f := s.Forest()
	var structs, ptrsToNode []die.EntryID
	for ui, u := range f.Units {
		for ei, e := range u.Entries {
			id := die.EntryID{Unit: ui, Index: ei}
			switch e.Tag {
			case dwarf.TagStructType:
				if e.Name() == "Node" {
					structs = append(structs, id)
				}
			case dwarf.TagPointerType:
				if tv, ok := e.Attr(dwarf.AttrType); ok && f.Entry(tv.Ref).Name() == "Node" {
					ptrsToNode = append(ptrsToNode, id)
				}
			}
		}
	}
	if len(structs) != 1 {
		t.Fatalf("got %d Node entries, want exactly 1", len(structs))
	}
	if len(ptrsToNode) != 1 {
		t.Fatalf("got %d pointer-to-Node entries, want exactly 1", len(ptrsToNode))
	}

	// The struct's next member must point back at the same pointer
	// entry.
	node2 := f.Entry(structs[0])
	u := f.Units[structs[0].Unit]
	var next *die.Entry
	for _, ci := range node2.Children {
		if u.Entry(ci).Name() == "next" {
			next = u.Entry(ci)
		}
	}
	if next == nil {
		t.Fatal("Node lost its next member")
	}
	tv, ok := next.Attr(dwarf.AttrType)
	if !ok || tv.Ref != ptrsToNode[0] {
		t.Errorf("next member type = %v, want %v", tv.Ref, ptrsToNode[0])
	}

	// head itself must reference the pointer entry.
	vars := findByTag(f, dwarf.TagVariable)
	if len(vars) != 1 || vars[0].Name() != "head" {
		t.Fatalf("expected a single variable head, got %d", len(vars))
	}
	hv, _ := vars[0].Attr(dwarf.AttrType)
	if hv.Ref != ptrsToNode[0] {
		t.Errorf("head type = %v, want %v", hv.Ref, ptrsToNode[0])
	}
}

// Parameters reconcile positionally: supplied slots update, extra
// existing parameters survive.
func TestParameterCountMismatch(t *testing.T) {
	s := newTestSession(t, existingForest(), testOptions())

	fs := &facts.FactSet{Functions: []*facts.Function{{
		EntryPC: 0x401000,
		Params: []facts.Parameter{
			{Name: "fd", Type: facts.BaseType("int32_t")},
			{Name: "buf", Type: facts.PointerTo(facts.Void())},
		},
	}}}
	if err := s.Apply(fs); err != nil {
		t.Fatal(err)
	}

	f := s.Forest()
	sp := findByTag(f, dwarf.TagSubprogram)[0]
	u := f.Units[0]
	var names []string
	for _, ci := range sp.Children {
		if u.Entry(ci).Tag == dwarf.TagFormalParameter {
			names = append(names, u.Entry(ci).Name())
		}
	}
	want := []string{"fd", "buf", "p3"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("parameters (-want +got):\n%s", diff)
	}
}

// An existing return type survives a fact that only knows void.
func TestVoidDoesNotOverrideType(t *testing.T) {
	f := existingForest()
	s := newTestSession(t, f, testOptions())
	fs := &facts.FactSet{Functions: []*facts.Function{{
		EntryPC: 0x401000,
		Ret:     facts.BaseType("int32_t"),
	}}}
	if err := s.Apply(fs); err != nil {
		t.Fatal(err)
	}

	fs2 := &facts.FactSet{Functions: []*facts.Function{{
		EntryPC: 0x401000,
		Ret:     facts.Void(),
	}}}
	if err := s.Apply(fs2); err != nil {
		t.Fatal(err)
	}

	sp := findByTag(s.Forest(), dwarf.TagSubprogram)[0]
	tv, ok := sp.Attr(dwarf.AttrType)
	if !ok {
		t.Fatal("return type was dropped by a void fact")
	}
	if s.Forest().Entry(tv.Ref).Name() != "int32_t" {
		t.Errorf("return type = %q", s.Forest().Entry(tv.Ref).Name())
	}
}

func TestOmitFunctions(t *testing.T) {
	opts := testOptions()
	opts.OmitFunctions = true
	s := newTestSession(t, existingForest(), opts)

	fs := &facts.FactSet{Functions: []*facts.Function{
		{EntryPC: 0x401000, Name: "renamed_work"}, // update: allowed
		{EntryPC: 0x405000, Name: "fresh"},        // create: suppressed
	}}
	if err := s.Apply(fs); err != nil {
		t.Fatal(err)
	}

	subs := findByTag(s.Forest(), dwarf.TagSubprogram)
	if len(subs) != 1 {
		t.Fatalf("got %d subprograms, want 1", len(subs))
	}
	if subs[0].Name() != "renamed_work" {
		t.Errorf("update suppressed: name = %q", subs[0].Name())
	}
}

func TestOmitVariables(t *testing.T) {
	opts := testOptions()
	opts.OmitVariables = true
	s := newTestSession(t, die.NewForest(binary.LittleEndian), opts)

	fs := &facts.FactSet{Variables: []*facts.Variable{{Addr: 0x601000, Name: "g"}}}
	if err := s.Apply(fs); err != nil {
		t.Fatal(err)
	}
	if vars := findByTag(s.Forest(), dwarf.TagVariable); len(vars) != 0 {
		t.Errorf("got %d variables, want 0", len(vars))
	}
}

// A fact whose PC falls inside an existing unit's range is created
// there, not in the synthetic unit.
func TestHomeUnitPreferred(t *testing.T) {
	s := newTestSession(t, existingForest(), testOptions())
	fs := &facts.FactSet{Functions: []*facts.Function{{EntryPC: 0x401800, Name: "helper"}}}
	if err := s.Apply(fs); err != nil {
		t.Fatal(err)
	}

	f := s.Forest()
	if len(f.Units) != 1 {
		t.Fatalf("a synthetic unit was created despite a covering home unit")
	}
	if len(findByTag(f, dwarf.TagSubprogram)) != 2 {
		t.Fatal("helper was not created")
	}
}

func applyAll(t *testing.T, s *Session, sets []*facts.FactSet) {
	t.Helper()
	for _, fs := range sets {
		if err := s.Apply(fs); err != nil {
			t.Fatal(err)
		}
	}
}

func testFactSet() *facts.FactSet {
	node := &facts.Type{Kind: facts.KindStruct, Name: "conn"}
	node.Members = []facts.Member{
		{Name: "fd", Offset: 0, Type: facts.BaseType("int32_t")},
		{Name: "peer", Offset: 8, Type: facts.PointerTo(node)},
	}
	fs := &facts.FactSet{
		Functions: []*facts.Function{
			{EntryPC: 0x401000, Name: "main", Ret: facts.BaseType("int32_t"), Prototyped: true},
			{EntryPC: 0x401200, Name: "hang", HasNoReturn: true, NoReturn: true},
			{EntryPC: 0x401400, Params: []facts.Parameter{{Name: "c", Type: facts.PointerTo(node)}}},
		},
		Variables: []*facts.Variable{
			{Addr: 0x601000, Name: "listener", Type: facts.PointerTo(node)},
		},
	}
	fs.Sort()
	return fs
}

// Applying the same fact set twice produces the same sections as
// applying it once.
func TestIdempotence(t *testing.T) {
	once := newTestSession(t, die.NewForest(binary.LittleEndian), testOptions())
	applyAll(t, once, []*facts.FactSet{testFactSet()})
	s1, err := once.Forest().Serialize()
	if err != nil {
		t.Fatal(err)
	}

	twice := newTestSession(t, die.NewForest(binary.LittleEndian), testOptions())
	applyAll(t, twice, []*facts.FactSet{testFactSet(), testFactSet()})
	s2, err := twice.Forest().Serialize()
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(s1, s2); diff != "" {
		t.Errorf("double application changed output:\n%s", diff)
	}
}

// Two full runs over identical inputs must be byte-identical.
func TestDeterminism(t *testing.T) {
	run := func() *die.Sections {
		s := newTestSession(t, existingForest(), testOptions())
		applyAll(t, s, []*facts.FactSet{testFactSet()})
		out, err := s.Forest().Serialize()
		if err != nil {
			t.Fatal(err)
		}
		return out
	}
	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("two runs differ:\n%s", diff)
	}
}

// Merged output must still satisfy the validity invariants after a
// reparse with our own parser.
func TestMergedOutputReparses(t *testing.T) {
	s := newTestSession(t, existingForest(), testOptions())
	applyAll(t, s, []*facts.FactSet{testFactSet()})
	out, err := s.Forest().Serialize()
	if err != nil {
		t.Fatal(err)
	}

	f2, err := die.NewParser(binary.LittleEndian).Parse(out.Info, out.Abbrev, out.Str)
	if err != nil {
		t.Fatal(err)
	}
	if err := f2.ResolveReferences(); err != nil {
		t.Fatal(err)
	}
	out2, err := f2.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(out, out2); diff != "" {
		t.Errorf("merged sections are not a serialization fixed point:\n%s", diff)
	}
}
