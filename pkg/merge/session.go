// Package merge reconciles disassembly facts against a parsed DWARF
// forest: existing entries are updated in place, missing ones are
// created, and the types facts refer to are interned by structural
// fingerprint so each distinct type exists exactly once.
package merge

import (
	"debug/dwarf"
	"fmt"

	"github.com/derekparker/trie"

	"github.com/immunant/dwarf-writer/pkg/dwarf/die"
	"github.com/immunant/dwarf-writer/pkg/facts"
	"github.com/immunant/dwarf-writer/pkg/logflags"
)

// Options configure one merge session.
type Options struct {
	// OmitFunctions suppresses creation of new subprogram entries;
	// existing entries are still updated.
	OmitFunctions bool
	// OmitVariables suppresses creation of new variable entries.
	OmitVariables bool

	// Producer is stamped on the synthetic compilation unit.
	Producer string

	// AddrSize and Is64 describe the target; they shape the synthetic
	// unit header and synthesized location expressions.
	AddrSize uint8
	Is64     bool
}

// Session owns all mutable state of one merge run. It borrows the
// forest, mutates it in place, and is discarded afterwards.
type Session struct {
	forest *die.Forest
	opts   Options
	log    logflags.Logger

	byPC      map[uint64]die.EntryID
	byVarAddr map[uint64]die.EntryID
	names     *trie.Trie
	types     map[facts.Fingerprint]typeEntry

	// synth is the unit index of the session's synthetic CU, -1 until
	// first needed.
	synth int
}

type typeEntry struct {
	id die.EntryID
	t  *facts.Type
}

// NewSession indexes the forest and returns a session ready to apply
// fact sets.
func NewSession(forest *die.Forest, opts Options) (*Session, error) {
	if opts.AddrSize == 0 {
		opts.AddrSize = 8
	}
	s := &Session{
		forest:    forest,
		opts:      opts,
		log:       logflags.MergeLogger(),
		byPC:      make(map[uint64]die.EntryID),
		byVarAddr: make(map[uint64]die.EntryID),
		names:     trie.New(),
		types:     make(map[facts.Fingerprint]typeEntry),
		synth:     -1,
	}
	if err := forest.ResolveReferences(); err != nil {
		return nil, err
	}
	s.buildIndexes()
	return s, nil
}

func (s *Session) buildIndexes() {
	for ui, u := range s.forest.Units {
		for ei, e := range u.Entries {
			id := die.EntryID{Unit: ui, Index: ei}
			switch e.Tag {
			case dwarf.TagSubprogram:
				if pc, ok := e.Attr(dwarf.AttrLowpc); ok && pc.Class == die.ClassAddress {
					if _, seen := s.byPC[pc.Uint]; !seen {
						s.byPC[pc.Uint] = id
					}
				}
			case dwarf.TagVariable:
				// Only file-scope variables take part in merging.
				if e.Parent != 0 {
					continue
				}
				if e.Name() != "" {
					if _, found := s.names.Find(e.Name()); !found {
						s.names.Add(e.Name(), id)
					}
				}
				if addr, ok := s.variableAddr(e); ok {
					if _, seen := s.byVarAddr[addr]; !seen {
						s.byVarAddr[addr] = id
					}
				}
			}
		}
	}
	for ui, u := range s.forest.Units {
		for ei, e := range u.Entries {
			if !isTypeTag(e.Tag) {
				continue
			}
			t := s.typeOfEntry(die.EntryID{Unit: ui, Index: ei}, make(map[die.EntryID]*facts.Type))
			if t == nil {
				continue
			}
			fp := t.Fingerprint()
			if _, seen := s.types[fp]; !seen {
				s.types[fp] = typeEntry{id: die.EntryID{Unit: ui, Index: ei}, t: t}
			}
		}
	}
}

// Apply merges one fact set. Facts are consumed in the set's sorted
// order so output is a function of input alone.
func (s *Session) Apply(fs *facts.FactSet) error {
	for _, f := range fs.Functions {
		if err := s.mergeFunction(f); err != nil {
			return fmt.Errorf("function at %#x: %w", f.EntryPC, err)
		}
	}
	for _, v := range fs.Variables {
		if err := s.mergeVariable(v); err != nil {
			return fmt.Errorf("variable at %#x: %w", v.Addr, err)
		}
	}
	return nil
}

// Forest returns the merged forest for serialization.
func (s *Session) Forest() *die.Forest {
	return s.forest
}

func isTypeTag(t dwarf.Tag) bool {
	switch t {
	case dwarf.TagBaseType, dwarf.TagPointerType, dwarf.TagArrayType,
		dwarf.TagStructType, dwarf.TagUnionType, dwarf.TagTypedef,
		dwarf.TagConstType, dwarf.TagVolatileType, dwarf.TagSubroutineType:
		return true
	}
	return false
}

// homeUnit picks the unit whose root PC range covers pc, or -1.
func (s *Session) homeUnit(pc uint64) int {
	for ui, u := range s.forest.Units {
		if ui == s.synth {
			continue
		}
		root := u.Root()
		lo, ok := root.Attr(dwarf.AttrLowpc)
		if !ok || lo.Class != die.ClassAddress {
			continue
		}
		hi, ok := root.Attr(dwarf.AttrHighpc)
		if !ok {
			continue
		}
		var end uint64
		switch hi.Class {
		case die.ClassAddress:
			end = hi.Uint
		case die.ClassConstant:
			end = lo.Uint + hi.Uint
		default:
			continue
		}
		if pc >= lo.Uint && pc < end {
			return ui
		}
	}
	return -1
}

// syntheticUnit returns the session's synthetic CU, creating it on
// first use and seeding the well-known base types.
func (s *Session) syntheticUnit() int {
	if s.synth >= 0 {
		return s.synth
	}
	const dwLangC99 = 0x0c
	u := die.NewUnit(4, s.opts.Is64, s.opts.AddrSize, dwarf.TagCompileUnit)
	root := u.Root()
	root.Set(dwarf.AttrName, 0, die.StringValue("<dwarf-writer>"))
	root.Set(dwarf.AttrProducer, 0, die.StringValue(s.opts.Producer))
	root.Set(dwarf.AttrLanguage, 0, die.UintValue(dwLangC99))
	s.synth = s.forest.AddUnit(u)
	s.log.Debugf("created synthetic unit %d", s.synth)
	s.seedBaseTypes()
	return s.synth
}

// seedBaseTypes interns the primitive types every fact source can
// refer to, in a fixed order.
func (s *Session) seedBaseTypes() {
	seeds := []string{
		"int8_t", "int16_t", "int32_t", "int64_t",
		"uint8_t", "uint16_t", "uint32_t", "uint64_t",
		"float", "double", "char",
	}
	for _, name := range seeds {
		if _, err := s.typeRef(facts.BaseType(name)); err != nil {
			panic(err)
		}
	}
	if _, err := s.typeRef(facts.PointerTo(facts.Void())); err != nil {
		panic(err)
	}
}
