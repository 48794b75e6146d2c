package die

import (
	"debug/dwarf"
	"encoding/binary"
	"fmt"
	"sort"
)

// EntryID names an entry as (unit index, arena index). The zero value
// is the root entry of the first unit; use NoEntry for "no entry".
type EntryID struct {
	Unit  int
	Index int
}

// NoEntry is the nil entry identity.
var NoEntry = EntryID{-1, -1}

// Entry is a single debugging information entry. Children are arena
// indexes into the owning unit.
type Entry struct {
	Tag    dwarf.Tag
	Attrs  []Attr
	Parent int

	// Offset is the section-relative offset the entry had in the
	// parsed input, zero for synthesized entries. It is not updated by
	// the serializer.
	Offset uint64

	Children []int
}

// Attr returns the value of the named attribute.
func (e *Entry) Attr(name dwarf.Attr) (AttrValue, bool) {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			return e.Attrs[i].Val, true
		}
	}
	return AttrValue{}, false
}

// HasAttr reports whether the entry carries the named attribute.
func (e *Entry) HasAttr(name dwarf.Attr) bool {
	_, ok := e.Attr(name)
	return ok
}

// Set replaces the named attribute in place, or appends it if the
// entry does not carry it yet. Attribute order is preserved so that
// entries mutated the same way keep the same abbreviation shape.
func (e *Entry) Set(name dwarf.Attr, form Form, val AttrValue) {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Form = form
			e.Attrs[i].Val = val
			return
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Form: form, Val: val})
}

// Unset removes the named attribute if present.
func (e *Entry) Unset(name dwarf.Attr) {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs = append(e.Attrs[:i], e.Attrs[i+1:]...)
			return
		}
	}
}

// Name returns the DW_AT_name string, or "".
func (e *Entry) Name() string {
	v, ok := e.Attr(dwarf.AttrName)
	if !ok || v.Class != ClassString {
		return ""
	}
	return v.Str
}

// Unit is one compilation unit: a header plus a dense arena of
// entries. Entries[0] is the root.
type Unit struct {
	Version  uint16
	Is64     bool
	AddrSize uint8

	Entries []*Entry

	// Input-section coordinates, used to resolve references parsed
	// from the wire. Zero for units created in memory.
	base uint64
	size uint64

	byOffset map[uint64]int
}

// NewUnit returns an empty unit with a root entry of the given tag.
func NewUnit(version uint16, is64 bool, addrSize uint8, rootTag dwarf.Tag) *Unit {
	u := &Unit{Version: version, Is64: is64, AddrSize: addrSize}
	u.Entries = append(u.Entries, &Entry{Tag: rootTag, Parent: -1})
	return u
}

// Root returns the unit's root entry.
func (u *Unit) Root() *Entry {
	return u.Entries[0]
}

// Entry returns the entry at arena index i.
func (u *Unit) Entry(i int) *Entry {
	return u.Entries[i]
}

// Add appends a new entry with the given tag as the last child of
// parent and returns its arena index.
func (u *Unit) Add(parent int, tag dwarf.Tag) int {
	i := len(u.Entries)
	u.Entries = append(u.Entries, &Entry{Tag: tag, Parent: parent})
	p := u.Entries[parent]
	p.Children = append(p.Children, i)
	return i
}

// EntryAt returns the arena index of the entry parsed at the given
// section-relative offset.
func (u *Unit) EntryAt(sectionOff uint64) (int, bool) {
	i, ok := u.byOffset[sectionOff]
	return i, ok
}

func (u *Unit) covers(sectionOff uint64) bool {
	return sectionOff >= u.base && sectionOff < u.base+u.size
}

// Walk visits the unit's entries in pre-order, parents before
// children.
func (u *Unit) Walk(visit func(idx int, e *Entry)) {
	var rec func(i int)
	rec = func(i int) {
		visit(i, u.Entries[i])
		for _, c := range u.Entries[i].Children {
			rec(c)
		}
	}
	rec(0)
}

// Forest is the set of compilation units parsed from (or destined
// for) a .debug_info section.
type Forest struct {
	Units []*Unit
	Order binary.ByteOrder
}

// NewForest returns an empty forest with the given byte order.
func NewForest(order binary.ByteOrder) *Forest {
	return &Forest{Order: order}
}

// Entry returns the entry named by id, or nil for NoEntry.
func (f *Forest) Entry(id EntryID) *Entry {
	if id == NoEntry {
		return nil
	}
	return f.Units[id.Unit].Entries[id.Index]
}

// AddUnit appends a unit and returns its index.
func (f *Forest) AddUnit(u *Unit) int {
	f.Units = append(f.Units, u)
	return len(f.Units) - 1
}

// ResolveReferences converts every reference attribute still carrying
// a wire offset into an entry identity. A reference that does not name
// a parsed entry is an error: it means the input tree is inconsistent.
func (f *Forest) ResolveReferences() error {
	for ui, u := range f.Units {
		for ei, e := range u.Entries {
			for ai := range e.Attrs {
				v := &e.Attrs[ai].Val
				if v.Class != ClassReference || v.resolved {
					continue
				}
				id, err := f.entryIDAt(v.refOff)
				if err != nil {
					return fmt.Errorf("unit %d entry %d %s: %w", ui, ei, e.Attrs[ai].Name, err)
				}
				v.Ref = id
				v.resolved = true
			}
		}
	}
	return nil
}

func (f *Forest) entryIDAt(sectionOff uint64) (EntryID, error) {
	n := sort.Search(len(f.Units), func(i int) bool {
		return f.Units[i].base+f.Units[i].size > sectionOff
	})
	if n >= len(f.Units) || !f.Units[n].covers(sectionOff) {
		return NoEntry, fmt.Errorf("reference offset %#x outside any unit", sectionOff)
	}
	i, ok := f.Units[n].EntryAt(sectionOff)
	if !ok {
		return NoEntry, fmt.Errorf("reference offset %#x does not name an entry", sectionOff)
	}
	return EntryID{Unit: n, Index: i}, nil
}
