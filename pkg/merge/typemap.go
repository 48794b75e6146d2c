package merge

import (
	"debug/dwarf"

	"github.com/immunant/dwarf-writer/pkg/dwarf/die"
	"github.com/immunant/dwarf-writer/pkg/facts"
)

// typeOfEntry reconstructs the neutral type model from an existing
// type entry so it can be fingerprinted. The visiting map doubles as
// the cycle guard: an entry already being reconstructed hands back its
// partially-filled type.
func (s *Session) typeOfEntry(id die.EntryID, visiting map[die.EntryID]*facts.Type) *facts.Type {
	if t, ok := visiting[id]; ok {
		return t
	}
	e := s.forest.Entry(id)
	t := &facts.Type{}
	visiting[id] = t

	switch e.Tag {
	case dwarf.TagBaseType:
		t.Kind = facts.KindBase
		t.Name = e.Name()
		if v, ok := e.Attr(dwarf.AttrByteSize); ok && v.Class == die.ClassConstant {
			t.ByteSize = v.Uint
			t.HasSize = true
		}
		if v, ok := e.Attr(dwarf.AttrEncoding); ok && v.Class == die.ClassConstant {
			t.Encoding = die.Encoding(v.Uint)
		}
	case dwarf.TagPointerType:
		t.Kind = facts.KindPointer
		t.Elem = s.refType(e, visiting)
	case dwarf.TagArrayType:
		t.Kind = facts.KindArray
		t.Elem = s.refType(e, visiting)
		u := s.forest.Units[id.Unit]
		for _, ci := range e.Children {
			c := u.Entry(ci)
			if c.Tag != dwarf.TagSubrangeType {
				continue
			}
			if v, ok := c.Attr(dwarf.AttrCount); ok && v.Class == die.ClassConstant {
				t.Counts = append(t.Counts, v.Uint)
			} else if v, ok := c.Attr(dwarf.AttrUpperBound); ok && v.Class == die.ClassConstant {
				t.Counts = append(t.Counts, v.Uint+1)
			}
		}
	case dwarf.TagStructType, dwarf.TagUnionType:
		t.Kind = facts.KindStruct
		if e.Tag == dwarf.TagUnionType {
			t.Kind = facts.KindUnion
		}
		t.Name = e.Name()
		u := s.forest.Units[id.Unit]
		for _, ci := range e.Children {
			c := u.Entry(ci)
			if c.Tag != dwarf.TagMember {
				continue
			}
			m := facts.Member{Name: c.Name()}
			if v, ok := c.Attr(dwarf.AttrDataMemberLoc); ok && v.Class == die.ClassConstant {
				m.Offset = v.Uint
			}
			m.Type = s.refType(c, visiting)
			t.Members = append(t.Members, m)
		}
	case dwarf.TagTypedef:
		t.Kind = facts.KindTypedef
		t.Name = e.Name()
		t.Elem = s.refType(e, visiting)
	case dwarf.TagConstType:
		t.Kind = facts.KindConst
		t.Elem = s.refType(e, visiting)
	case dwarf.TagVolatileType:
		t.Kind = facts.KindVolatile
		t.Elem = s.refType(e, visiting)
	case dwarf.TagSubroutineType:
		t.Kind = facts.KindFunc
		t.Elem = s.refType(e, visiting)
		u := s.forest.Units[id.Unit]
		for _, ci := range e.Children {
			c := u.Entry(ci)
			if c.Tag == dwarf.TagFormalParameter {
				t.Params = append(t.Params, s.refType(c, visiting))
			}
		}
	default:
		return nil
	}
	return t
}

// refType follows an entry's DW_AT_type attribute; absence means
// void.
func (s *Session) refType(e *die.Entry, visiting map[die.EntryID]*facts.Type) *facts.Type {
	v, ok := e.Attr(dwarf.AttrType)
	if !ok || v.Class != die.ClassReference || !v.Resolved() {
		return facts.Void()
	}
	t := s.typeOfEntry(v.Ref, visiting)
	if t == nil {
		return facts.Void()
	}
	return t
}
