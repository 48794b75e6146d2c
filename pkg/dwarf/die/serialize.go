package die

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/immunant/dwarf-writer/pkg/dwarf/leb128"
)

// Sections holds the serialized output of a forest.
type Sections struct {
	Info   []byte
	Abbrev []byte
	Str    []byte
}

// strpThreshold is the inline-string length above which the serializer
// prefers an indirect .debug_str reference.
const strpThreshold = 8

// outputVersion is stamped on every emitted unit header. Input units
// of other versions are rewritten to it.
const outputVersion = 4

// Serialize regenerates abbreviation tables, assigns fresh offsets in
// a pre-order walk, patches references and emits .debug_info,
// .debug_abbrev and .debug_str. Output is deterministic: abbreviation
// codes and string-pool offsets are assigned in first-use order.
func (f *Forest) Serialize() (*Sections, error) {
	for ui, u := range f.Units {
		for ei, e := range u.Entries {
			for ai := range e.Attrs {
				if !e.Attrs[ai].Val.Resolved() {
					return nil, fmt.Errorf("unit %d entry %d: unresolved reference attribute %s", ui, ei, e.Attrs[ai].Name)
				}
			}
		}
	}

	strCount := make(map[string]int)
	for _, u := range f.Units {
		for _, e := range u.Entries {
			for i := range e.Attrs {
				if e.Attrs[i].Val.Class == ClassString {
					strCount[e.Attrs[i].Val.Str]++
				}
			}
		}
	}

	layouts := make([]*unitLayout, len(f.Units))

	// Layout pass: final forms, abbreviation codes and offsets for
	// every unit, so cross-unit references can be patched in the
	// write pass regardless of direction.
	var abbrevOut bytes.Buffer
	abbrevDedup := make(map[string]uint64)
	infoBase := uint64(0)
	for ui, u := range f.Units {
		l, err := layoutUnit(f, ui, u, strCount)
		if err != nil {
			return nil, err
		}
		enc := l.abbrevs.encode()
		if off, ok := abbrevDedup[string(enc)]; ok {
			l.abbrevOff = off
		} else {
			l.abbrevOff = uint64(abbrevOut.Len())
			abbrevDedup[string(enc)] = l.abbrevOff
			abbrevOut.Write(enc)
		}
		l.base = infoBase
		infoBase += l.size
		layouts[ui] = l
	}

	strs := NewStringTable()
	var info bytes.Buffer
	for ui, u := range f.Units {
		if err := writeUnit(f, &info, layouts, ui, u, strs); err != nil {
			return nil, err
		}
	}

	return &Sections{Info: info.Bytes(), Abbrev: abbrevOut.Bytes(), Str: strs.Bytes()}, nil
}

type unitLayout struct {
	abbrevs   *abbrevBuilder
	codes     []uint64 // per arena index
	offsets   []uint64 // unit-relative, per arena index
	base      uint64   // section-relative start of the unit
	size      uint64   // total unit size including header
	abbrevOff uint64
}

func (l *unitLayout) headerLen(u *Unit) uint64 {
	if u.Is64 {
		return 12 + 2 + 8 + 1
	}
	return 4 + 2 + 4 + 1
}

func layoutUnit(f *Forest, ui int, u *Unit, strCount map[string]int) (*unitLayout, error) {
	l := &unitLayout{
		abbrevs: &abbrevBuilder{},
		codes:   make([]uint64, len(u.Entries)),
		offsets: make([]uint64, len(u.Entries)),
	}

	for _, e := range u.Entries {
		for i := range e.Attrs {
			form, err := finalForm(ui, e.Attrs[i], strCount)
			if err != nil {
				return nil, fmt.Errorf("%s of %s: %w", e.Attrs[i].Name, e.Tag, err)
			}
			e.Attrs[i].Form = form
		}
	}

	off := l.headerLen(u)
	var place func(idx int) error
	place = func(idx int) error {
		e := u.Entries[idx]
		code := l.abbrevs.codeFor(shapeOf(e))
		l.codes[idx] = code
		l.offsets[idx] = off
		off += uint64(leb128.UnsignedLen(code))
		for i := range e.Attrs {
			n, err := valueLen(u, e.Attrs[i])
			if err != nil {
				return err
			}
			off += n
		}
		if len(e.Children) > 0 {
			for _, c := range e.Children {
				if err := place(c); err != nil {
					return err
				}
			}
			off++ // sibling-list terminator
		}
		return nil
	}
	if err := place(0); err != nil {
		return nil, err
	}
	l.size = off
	return l, nil
}

// finalForm picks the wire form for one attribute, upgrading forms
// whose value no longer fits and applying the string and reference
// policies.
func finalForm(unit int, a Attr, strCount map[string]int) (Form, error) {
	v := a.Val
	switch v.Class {
	case ClassAddress:
		return DW_FORM_addr, nil
	case ClassReference:
		if v.Ref.Unit == unit {
			return DW_FORM_ref4, nil
		}
		return DW_FORM_ref_addr, nil
	case ClassString:
		if strCount[v.Str] >= 2 || len(v.Str) > strpThreshold {
			return DW_FORM_strp, nil
		}
		return DW_FORM_string, nil
	case ClassFlag:
		if a.Form == DW_FORM_flag {
			return DW_FORM_flag, nil
		}
		if v.Flag {
			return DW_FORM_flag_present, nil
		}
		return DW_FORM_flag, nil
	case ClassSignedConstant:
		return DW_FORM_sdata, nil
	case ClassConstant:
		if a.Form == DW_FORM_udata {
			return DW_FORM_udata, nil
		}
		min := smallestDataForm(v.Uint)
		if constFormFits(a.Form, v.Uint) {
			return a.Form, nil
		}
		return min, nil
	case ClassSecOffset:
		return DW_FORM_sec_offset, nil
	case ClassBlock:
		switch a.Form {
		case DW_FORM_exprloc, DW_FORM_block, DW_FORM_block4:
			return a.Form, nil
		case DW_FORM_block1:
			if len(v.Block) <= 0xff {
				return a.Form, nil
			}
			return DW_FORM_block, nil
		case DW_FORM_block2:
			if len(v.Block) <= 0xffff {
				return a.Form, nil
			}
			return DW_FORM_block, nil
		default:
			return DW_FORM_exprloc, nil
		}
	}
	return 0, fmt.Errorf("attribute value has no class")
}

func constFormFits(f Form, v uint64) bool {
	switch f {
	case DW_FORM_data1:
		return v <= 0xff
	case DW_FORM_data2:
		return v <= 0xffff
	case DW_FORM_data4:
		return v <= 0xffffffff
	case DW_FORM_data8:
		return true
	}
	return false
}

func smallestDataForm(v uint64) Form {
	switch {
	case v <= 0xff:
		return DW_FORM_data1
	case v <= 0xffff:
		return DW_FORM_data2
	case v <= 0xffffffff:
		return DW_FORM_data4
	}
	return DW_FORM_data8
}

// valueLen returns the encoded size of one attribute value.
func valueLen(u *Unit, a Attr) (uint64, error) {
	offSize := uint64(4)
	if u.Is64 {
		offSize = 8
	}
	switch a.Form {
	case DW_FORM_addr:
		return uint64(u.AddrSize), nil
	case DW_FORM_data1, DW_FORM_flag, DW_FORM_ref1:
		return 1, nil
	case DW_FORM_data2, DW_FORM_ref2:
		return 2, nil
	case DW_FORM_data4, DW_FORM_ref4:
		return 4, nil
	case DW_FORM_data8, DW_FORM_ref8:
		return 8, nil
	case DW_FORM_udata:
		return uint64(leb128.UnsignedLen(a.Val.Uint)), nil
	case DW_FORM_sdata:
		return uint64(leb128.SignedLen(a.Val.Int)), nil
	case DW_FORM_string:
		return uint64(len(a.Val.Str)) + 1, nil
	case DW_FORM_strp, DW_FORM_sec_offset, DW_FORM_ref_addr:
		return offSize, nil
	case DW_FORM_flag_present:
		return 0, nil
	case DW_FORM_block1:
		return 1 + uint64(len(a.Val.Block)), nil
	case DW_FORM_block2:
		return 2 + uint64(len(a.Val.Block)), nil
	case DW_FORM_block4:
		return 4 + uint64(len(a.Val.Block)), nil
	case DW_FORM_block, DW_FORM_exprloc:
		n := len(a.Val.Block)
		return uint64(leb128.UnsignedLen(uint64(n)) + n), nil
	}
	return 0, fmt.Errorf("cannot size form %s", a.Form)
}

func writeUnit(f *Forest, out *bytes.Buffer, layouts []*unitLayout, ui int, u *Unit, strs *StringTable) error {
	l := layouts[ui]
	w := sectionWriter{buf: out, order: f.Order}

	initialLen := l.size - 4
	if u.Is64 {
		initialLen = l.size - 12
		w.u32(dwarf64Marker)
		w.u64(initialLen)
	} else {
		w.u32(uint32(initialLen))
	}
	w.u16(outputVersion)
	w.offset(u.Is64, l.abbrevOff)
	w.u8(u.AddrSize)

	var emit func(idx int) error
	emit = func(idx int) error {
		e := u.Entries[idx]
		w.uleb(l.codes[idx])
		for i := range e.Attrs {
			if err := writeValue(&w, layouts, ui, u, e.Attrs[i], strs); err != nil {
				return fmt.Errorf("%s of %s: %w", e.Attrs[i].Name, e.Tag, err)
			}
		}
		if len(e.Children) > 0 {
			for _, c := range e.Children {
				if err := emit(c); err != nil {
					return err
				}
			}
			w.u8(0)
		}
		return nil
	}
	return emit(0)
}

func writeValue(w *sectionWriter, layouts []*unitLayout, ui int, u *Unit, a Attr, strs *StringTable) error {
	v := a.Val
	switch a.Form {
	case DW_FORM_addr:
		return w.uint(uint64(u.AddrSize), v.Uint)
	case DW_FORM_data1:
		w.u8(uint8(v.Uint))
	case DW_FORM_data2:
		w.u16(uint16(v.Uint))
	case DW_FORM_data4:
		w.u32(uint32(v.Uint))
	case DW_FORM_data8:
		w.u64(v.Uint)
	case DW_FORM_udata:
		w.uleb(v.Uint)
	case DW_FORM_sdata:
		w.sleb(v.Int)
	case DW_FORM_flag:
		if v.Flag {
			w.u8(1)
		} else {
			w.u8(0)
		}
	case DW_FORM_flag_present:
		// Presence is the value.
	case DW_FORM_string:
		w.buf.WriteString(v.Str)
		w.u8(0)
	case DW_FORM_strp:
		w.offset(u.Is64, strs.Ref(v.Str))
	case DW_FORM_sec_offset:
		w.offset(u.Is64, v.Uint)
	case DW_FORM_ref4:
		if v.Ref.Unit != ui {
			return fmt.Errorf("intra-unit form for cross-unit reference")
		}
		w.u32(uint32(layouts[ui].offsets[v.Ref.Index]))
	case DW_FORM_ref_addr:
		tl := layouts[v.Ref.Unit]
		w.offset(u.Is64, tl.base+tl.offsets[v.Ref.Index])
	case DW_FORM_block1:
		w.u8(uint8(len(v.Block)))
		w.buf.Write(v.Block)
	case DW_FORM_block2:
		w.u16(uint16(len(v.Block)))
		w.buf.Write(v.Block)
	case DW_FORM_block4:
		w.u32(uint32(len(v.Block)))
		w.buf.Write(v.Block)
	case DW_FORM_block, DW_FORM_exprloc:
		w.uleb(uint64(len(v.Block)))
		w.buf.Write(v.Block)
	default:
		return fmt.Errorf("cannot encode form %s", a.Form)
	}
	return nil
}

type sectionWriter struct {
	buf     *bytes.Buffer
	order   binary.ByteOrder
	scratch [10]byte
}

func (w *sectionWriter) u8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *sectionWriter) u16(v uint16) {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *sectionWriter) u32(v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *sectionWriter) u64(v uint64) {
	var b [8]byte
	w.order.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *sectionWriter) uleb(v uint64) {
	w.buf.Write(leb128.AppendUnsigned(w.scratch[:0], v))
}

func (w *sectionWriter) sleb(v int64) {
	w.buf.Write(leb128.AppendSigned(w.scratch[:0], v))
}

func (w *sectionWriter) offset(is64 bool, v uint64) {
	if is64 {
		w.u64(v)
	} else {
		w.u32(uint32(v))
	}
}

func (w *sectionWriter) uint(size, v uint64) error {
	switch size {
	case 1:
		w.u8(uint8(v))
	case 2:
		w.u16(uint16(v))
	case 4:
		w.u32(uint32(v))
	case 8:
		w.u64(v)
	default:
		return fmt.Errorf("unsupported address size %d", size)
	}
	return nil
}
