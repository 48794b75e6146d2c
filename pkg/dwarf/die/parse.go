package die

import (
	"encoding/binary"
	"fmt"
)

// dwarf64Marker is the initial-length escape selecting the 64-bit
// DWARF format.
const dwarf64Marker = 0xffffffff

// Parser decodes .debug_info against its .debug_abbrev and .debug_str
// sections. It can be reused across files of the same byte order;
// abbreviation tables are cached by section offset within one Parse
// call.
type Parser struct {
	order binary.ByteOrder
	cache *abbrevCache
}

// NewParser returns a parser for sections in the given byte order.
func NewParser(order binary.ByteOrder) *Parser {
	return &Parser{order: order, cache: newAbbrevCache()}
}

// Parse reads every compilation unit out of info. References are left
// unresolved; call Forest.ResolveReferences before relying on entry
// identities.
func (p *Parser) Parse(info, abbrev, str []byte) (*Forest, error) {
	f := NewForest(p.order)
	p.cache = newAbbrevCache()
	off := uint64(0)
	for off < uint64(len(info)) {
		u, next, err := p.parseUnit(f, info, abbrev, str, off)
		if err != nil {
			return nil, err
		}
		f.AddUnit(u)
		off = next
	}
	return f, nil
}

func (p *Parser) parseUnit(f *Forest, info, abbrev, str []byte, start uint64) (*Unit, uint64, error) {
	b := makeBuf(p.order, ".debug_info", start, info[start:])

	is64 := false
	length := uint64(b.uint32())
	if length == dwarf64Marker {
		is64 = true
		length = b.uint64()
	} else if length >= 0xfffffff0 {
		return nil, 0, DecodeError{Name: ".debug_info", Offset: start, Detail: fmt.Sprintf("reserved unit length %#x", length)}
	}
	hdrLen := b.off - start
	end := b.off + length
	if end > start+uint64(len(info[start:])) {
		return nil, 0, DecodeError{Name: ".debug_info", Offset: start, Detail: "unit length past end of section"}
	}

	version := b.uint16()
	var abbrevOff uint64
	var addrSize uint8
	switch {
	case version >= 2 && version <= 4:
		abbrevOff = b.offset(is64)
		addrSize = b.uint8()
	case version == 5:
		unitType := b.uint8()
		const dwUTCompile = 0x01
		if unitType != dwUTCompile {
			return nil, 0, DecodeError{Name: ".debug_info", Offset: start, Detail: fmt.Sprintf("unsupported unit type %#x", unitType)}
		}
		addrSize = b.uint8()
		abbrevOff = b.offset(is64)
	default:
		return nil, 0, DecodeError{Name: ".debug_info", Offset: start, Detail: fmt.Sprintf("unsupported DWARF version %d", version)}
	}
	if b.err != nil {
		return nil, 0, b.err
	}

	table, err := p.cache.table(abbrev, abbrevOff)
	if err != nil {
		return nil, 0, err
	}

	u := &Unit{
		Version:  version,
		Is64:     is64,
		AddrSize: addrSize,
		base:     start,
		size:     hdrLen + length,
		byOffset: make(map[uint64]int),
	}

	var stack []int
	for b.off < end {
		dieOff := b.off
		code := b.uint()
		if b.err != nil {
			return nil, 0, b.err
		}
		if code == 0 {
			if len(stack) == 0 {
				return nil, 0, DecodeError{Name: ".debug_info", Offset: dieOff, Detail: "null entry outside any sibling list"}
			}
			stack = stack[:len(stack)-1]
			continue
		}
		ab, ok := table[code]
		if !ok {
			return nil, 0, DecodeError{Name: ".debug_info", Offset: dieOff, Detail: fmt.Sprintf("abbreviation code %d not in table at %#x", code, abbrevOff)}
		}

		parent := -1
		if len(stack) > 0 {
			parent = stack[len(stack)-1]
		} else if len(u.Entries) > 0 {
			return nil, 0, DecodeError{Name: ".debug_info", Offset: dieOff, Detail: "multiple root entries in unit"}
		}

		e := &Entry{Tag: ab.Tag, Parent: parent, Offset: dieOff}
		for _, field := range ab.Fields {
			val, err := p.decodeValue(&b, u, field.Form, str)
			if err != nil {
				return nil, 0, err
			}
			e.Attrs = append(e.Attrs, Attr{Name: field.Attr, Form: field.Form, Val: val})
		}
		if b.err != nil {
			return nil, 0, b.err
		}

		idx := len(u.Entries)
		u.Entries = append(u.Entries, e)
		u.byOffset[dieOff] = idx
		if parent >= 0 {
			u.Entries[parent].Children = append(u.Entries[parent].Children, idx)
		}
		if ab.Children {
			stack = append(stack, idx)
		}
	}
	if b.off != end {
		return nil, 0, DecodeError{Name: ".debug_info", Offset: b.off, Detail: "entry stream does not end at unit boundary"}
	}
	if len(u.Entries) == 0 {
		return nil, 0, DecodeError{Name: ".debug_info", Offset: start, Detail: "unit has no entries"}
	}

	return u, end, nil
}

func (p *Parser) decodeValue(b *buf, u *Unit, form Form, str []byte) (AttrValue, error) {
	switch form {
	case DW_FORM_addr:
		return AddrValue(b.addr(u.AddrSize)), nil
	case DW_FORM_block1:
		return BlockValue(b.bytes(int(b.uint8()))), nil
	case DW_FORM_block2:
		return BlockValue(b.bytes(int(b.uint16()))), nil
	case DW_FORM_block4:
		return BlockValue(b.bytes(int(b.uint32()))), nil
	case DW_FORM_block:
		return BlockValue(b.bytes(int(b.uint()))), nil
	case DW_FORM_exprloc:
		return BlockValue(b.bytes(int(b.uint()))), nil
	case DW_FORM_data1:
		return UintValue(uint64(b.uint8())), nil
	case DW_FORM_data2:
		return UintValue(uint64(b.uint16())), nil
	case DW_FORM_data4:
		return UintValue(uint64(b.uint32())), nil
	case DW_FORM_data8:
		return UintValue(b.uint64()), nil
	case DW_FORM_udata:
		return UintValue(b.uint()), nil
	case DW_FORM_sdata:
		return IntValue(b.int()), nil
	case DW_FORM_flag:
		return FlagValue(b.uint8() != 0), nil
	case DW_FORM_flag_present:
		return FlagValue(true), nil
	case DW_FORM_string:
		return StringValue(b.string()), nil
	case DW_FORM_strp:
		off := b.offset(u.Is64)
		if b.err != nil {
			return AttrValue{}, b.err
		}
		s, ok := readString(str, off)
		if !ok {
			return AttrValue{}, DecodeError{Name: ".debug_str", Offset: off, Detail: "string offset out of range or unterminated"}
		}
		return StringValue(s), nil
	case DW_FORM_ref1:
		return unresolvedRef(u.base + uint64(b.uint8())), nil
	case DW_FORM_ref2:
		return unresolvedRef(u.base + uint64(b.uint16())), nil
	case DW_FORM_ref4:
		return unresolvedRef(u.base + uint64(b.uint32())), nil
	case DW_FORM_ref8:
		return unresolvedRef(u.base + b.uint64()), nil
	case DW_FORM_ref_udata:
		return unresolvedRef(u.base + b.uint()), nil
	case DW_FORM_ref_addr:
		// In DWARF v2 this is address-sized, an offset afterwards.
		if u.Version == 2 {
			return unresolvedRef(b.addr(u.AddrSize)), nil
		}
		return unresolvedRef(b.offset(u.Is64)), nil
	case DW_FORM_sec_offset:
		return SecOffsetValue(b.offset(u.Is64)), nil
	case DW_FORM_indirect:
		inner := Form(b.uint())
		if inner == DW_FORM_indirect {
			return AttrValue{}, DecodeError{Name: ".debug_info", Offset: b.off, Detail: "nested DW_FORM_indirect"}
		}
		return p.decodeValue(b, u, inner, str)
	default:
		return AttrValue{}, DecodeError{Name: ".debug_info", Offset: b.off, Detail: fmt.Sprintf("unsupported form %s (%#x)", form, uint16(form))}
	}
}
