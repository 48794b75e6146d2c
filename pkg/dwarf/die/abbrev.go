package die

import (
	"debug/dwarf"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/immunant/dwarf-writer/pkg/dwarf/leb128"
)

// AttrForm is one (attribute, form) pair of an abbreviation
// declaration.
type AttrForm struct {
	Attr dwarf.Attr
	Form Form
}

// Abbrev is a single abbreviation declaration.
type Abbrev struct {
	Tag      dwarf.Tag
	Children bool
	Fields   []AttrForm
}

func sameAbbrev(a, b *Abbrev) bool {
	if a.Tag != b.Tag {
		return false
	}
	if a.Children != b.Children {
		return false
	}
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i] != b.Fields[i] {
			return false
		}
	}
	return true
}

// AbbrevTable maps abbreviation codes to declarations for one
// compilation unit.
type AbbrevTable map[uint64]*Abbrev

// abbrevCacheSize bounds the table cache. Compilers routinely point
// many units at the same abbreviation table offset.
const abbrevCacheSize = 64

type abbrevCache struct {
	c *lru.Cache
}

func newAbbrevCache() *abbrevCache {
	c, err := lru.New(abbrevCacheSize)
	if err != nil {
		panic(err)
	}
	return &abbrevCache{c: c}
}

func (ac *abbrevCache) table(data []byte, off uint64) (AbbrevTable, error) {
	if t, ok := ac.c.Get(off); ok {
		return t.(AbbrevTable), nil
	}
	t, err := parseAbbrevTable(data, off)
	if err != nil {
		return nil, err
	}
	ac.c.Add(off, t)
	return t, nil
}

// parseAbbrevTable reads the abbreviation table starting at off in the
// .debug_abbrev section.
func parseAbbrevTable(data []byte, off uint64) (AbbrevTable, error) {
	if off > uint64(len(data)) {
		return nil, DecodeError{Name: ".debug_abbrev", Offset: off, Detail: "offset past end of section"}
	}
	p := data[off:]
	pos := 0
	bad := func(detail string) (AbbrevTable, error) {
		return nil, DecodeError{Name: ".debug_abbrev", Offset: off + uint64(pos), Detail: detail}
	}
	uleb := func() (uint64, bool) {
		v, n := leb128.Unsigned(p[pos:])
		pos += n
		return v, n != 0
	}

	table := make(AbbrevTable)
	for {
		code, ok := uleb()
		if !ok {
			return bad("truncated table")
		}
		if code == 0 {
			break
		}
		tag, ok := uleb()
		if !ok || pos >= len(p) {
			return bad("truncated declaration")
		}
		children := p[pos]
		pos++
		ab := &Abbrev{Tag: dwarf.Tag(tag), Children: children != 0}
		for {
			attr, ok := uleb()
			if !ok {
				return bad("truncated attribute spec")
			}
			form, ok := uleb()
			if !ok {
				return bad("truncated attribute spec")
			}
			if attr == 0 && form == 0 {
				break
			}
			if Form(form) == DW_FORM_implicit_const {
				// Carries its value in the table; a v5-only
				// construct we do not emit.
				return bad("DW_FORM_implicit_const is not supported")
			}
			ab.Fields = append(ab.Fields, AttrForm{Attr: dwarf.Attr(attr), Form: Form(form)})
		}
		if _, dup := table[code]; dup {
			return bad(fmt.Sprintf("duplicate abbreviation code %d", code))
		}
		table[code] = ab
	}
	return table, nil
}

// abbrevBuilder assigns abbreviation codes for one unit being
// serialized. Codes start at 1 in first-use order; duplicate shapes
// share a code, so the emitted table never carries orphans.
type abbrevBuilder struct {
	abbrevs []*Abbrev
}

func (b *abbrevBuilder) codeFor(a *Abbrev) uint64 {
	for i, descr := range b.abbrevs {
		if sameAbbrev(descr, a) {
			return uint64(i + 1)
		}
	}
	b.abbrevs = append(b.abbrevs, a)
	return uint64(len(b.abbrevs))
}

// encode writes the table, terminated by a null declaration.
func (b *abbrevBuilder) encode() []byte {
	var out []byte
	for i, a := range b.abbrevs {
		out = leb128.AppendUnsigned(out, uint64(i+1))
		out = leb128.AppendUnsigned(out, uint64(a.Tag))
		if a.Children {
			out = append(out, 0x01)
		} else {
			out = append(out, 0x00)
		}
		for _, f := range a.Fields {
			out = leb128.AppendUnsigned(out, uint64(f.Attr))
			out = leb128.AppendUnsigned(out, uint64(f.Form))
		}
		out = append(out, 0, 0)
	}
	return append(out, 0)
}

// shapeOf returns the abbreviation an entry requires when serialized.
func shapeOf(e *Entry) *Abbrev {
	a := &Abbrev{Tag: e.Tag, Children: len(e.Children) > 0}
	for i := range e.Attrs {
		a.Fields = append(a.Fields, AttrForm{Attr: e.Attrs[i].Name, Form: e.Attrs[i].Form})
	}
	return a
}
