package merge

import (
	"debug/dwarf"
	"fmt"

	"github.com/immunant/dwarf-writer/pkg/dwarf/die"
	"github.com/immunant/dwarf-writer/pkg/facts"
)

// typeRef resolves a fact type to a type entry, synthesizing the
// entry (and its dependencies, recursively) on a fingerprint miss.
// The entry is interned before its children are resolved so cyclic
// types terminate.
func (s *Session) typeRef(t *facts.Type) (die.EntryID, error) {
	if t.IsVoid() {
		return die.NoEntry, fmt.Errorf("void resolves to attribute absence, not an entry")
	}
	fp := t.Fingerprint()
	if te, ok := s.types[fp]; ok {
		if te.t != nil && (te.t.Kind != t.Kind || te.t.Name != t.Name) {
			return die.NoEntry, fmt.Errorf("fingerprint collision: %v/%q vs %v/%q", te.t.Kind, te.t.Name, t.Kind, t.Name)
		}
		return te.id, nil
	}

	ui := s.syntheticUnit()
	u := s.forest.Units[ui]
	idx := u.Add(0, tagForKind(t.Kind))
	id := die.EntryID{Unit: ui, Index: idx}
	s.types[fp] = typeEntry{id: id, t: t}

	e := u.Entry(idx)
	switch t.Kind {
	case facts.KindBase:
		e.Set(dwarf.AttrName, 0, die.StringValue(t.Name))
		if t.HasSize {
			e.Set(dwarf.AttrByteSize, 0, die.UintValue(t.ByteSize))
		}
		if t.Encoding != 0 {
			e.Set(dwarf.AttrEncoding, 0, die.UintValue(uint64(t.Encoding)))
		}
	case facts.KindPointer:
		e.Set(dwarf.AttrByteSize, 0, die.UintValue(uint64(s.opts.AddrSize)))
		if err := s.setTypeAttr(id, t.Elem); err != nil {
			return die.NoEntry, err
		}
	case facts.KindArray:
		if err := s.setTypeAttr(id, t.Elem); err != nil {
			return die.NoEntry, err
		}
		if len(t.Counts) == 0 {
			u.Add(idx, dwarf.TagSubrangeType)
		}
		for _, n := range t.Counts {
			ci := u.Add(idx, dwarf.TagSubrangeType)
			u.Entry(ci).Set(dwarf.AttrCount, 0, die.UintValue(n))
		}
	case facts.KindStruct, facts.KindUnion:
		if t.Name != "" {
			e.Set(dwarf.AttrName, 0, die.StringValue(t.Name))
		}
		if t.HasSize {
			e.Set(dwarf.AttrByteSize, 0, die.UintValue(t.ByteSize))
		}
		for _, m := range t.Members {
			ci := u.Add(idx, dwarf.TagMember)
			c := u.Entry(ci)
			if m.Name != "" {
				c.Set(dwarf.AttrName, 0, die.StringValue(m.Name))
			}
			c.Set(dwarf.AttrDataMemberLoc, 0, die.UintValue(m.Offset))
			if err := s.setTypeAttr(die.EntryID{Unit: ui, Index: ci}, m.Type); err != nil {
				return die.NoEntry, err
			}
		}
	case facts.KindTypedef:
		e.Set(dwarf.AttrName, 0, die.StringValue(t.Name))
		if err := s.setTypeAttr(id, t.Elem); err != nil {
			return die.NoEntry, err
		}
	case facts.KindConst, facts.KindVolatile:
		if err := s.setTypeAttr(id, t.Elem); err != nil {
			return die.NoEntry, err
		}
	case facts.KindFunc:
		e.Set(dwarf.AttrPrototyped, 0, die.FlagValue(true))
		if err := s.setTypeAttr(id, t.Elem); err != nil {
			return die.NoEntry, err
		}
		for _, p := range t.Params {
			ci := u.Add(idx, dwarf.TagFormalParameter)
			if err := s.setTypeAttr(die.EntryID{Unit: ui, Index: ci}, p); err != nil {
				return die.NoEntry, err
			}
		}
	default:
		return die.NoEntry, fmt.Errorf("cannot synthesize type kind %v", t.Kind)
	}

	s.log.Debugf("synthesized %s %q", tagForKind(t.Kind), t.Name)
	return id, nil
}

// setTypeAttr sets DW_AT_type on the entry named by id, resolving sub
// first. A void sub leaves the attribute absent.
func (s *Session) setTypeAttr(id die.EntryID, sub *facts.Type) error {
	if sub.IsVoid() {
		return nil
	}
	tid, err := s.typeRef(sub)
	if err != nil {
		return err
	}
	s.forest.Entry(id).Set(dwarf.AttrType, 0, die.RefValue(tid))
	return nil
}

func tagForKind(k facts.TypeKind) dwarf.Tag {
	switch k {
	case facts.KindBase:
		return dwarf.TagBaseType
	case facts.KindPointer:
		return dwarf.TagPointerType
	case facts.KindArray:
		return dwarf.TagArrayType
	case facts.KindStruct:
		return dwarf.TagStructType
	case facts.KindUnion:
		return dwarf.TagUnionType
	case facts.KindTypedef:
		return dwarf.TagTypedef
	case facts.KindConst:
		return dwarf.TagConstType
	case facts.KindVolatile:
		return dwarf.TagVolatileType
	case facts.KindFunc:
		return dwarf.TagSubroutineType
	}
	return 0
}
