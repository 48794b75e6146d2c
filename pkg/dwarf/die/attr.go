package die

import (
	"bytes"
	"debug/dwarf"
	"fmt"
)

// Class partitions attribute values by representation. It mirrors the
// DWARF value classes that survive decoding: the on-wire form is kept
// alongside the value, the class is what the merge engine dispatches
// on.
type Class uint8

const (
	ClassNone Class = iota
	ClassAddress
	ClassConstant // unsigned
	ClassSignedConstant
	ClassBlock
	ClassFlag
	ClassString
	ClassReference
	ClassSecOffset
)

// AttrValue is a tagged variant over every value an attribute can
// carry. Exactly the fields implied by Class are meaningful.
type AttrValue struct {
	Class Class

	Uint  uint64
	Int   int64
	Str   string
	Block []byte
	Flag  bool

	// Reference target. After parsing, refOff holds the
	// section-relative offset of the target and resolved is false;
	// Forest.ResolveReferences fills in Ref. Values built by the merge
	// engine start out resolved.
	Ref      EntryID
	refOff   uint64
	resolved bool
}

// Attr is a single (attribute, form, value) triple on an entry.
type Attr struct {
	Name dwarf.Attr
	Form Form
	Val  AttrValue
}

// AddrValue returns an address-class value.
func AddrValue(addr uint64) AttrValue {
	return AttrValue{Class: ClassAddress, Uint: addr}
}

// UintValue returns an unsigned-constant value.
func UintValue(v uint64) AttrValue {
	return AttrValue{Class: ClassConstant, Uint: v}
}

// IntValue returns a signed-constant value.
func IntValue(v int64) AttrValue {
	return AttrValue{Class: ClassSignedConstant, Int: v}
}

// StringValue returns a string-class value.
func StringValue(s string) AttrValue {
	return AttrValue{Class: ClassString, Str: s}
}

// FlagValue returns a flag-class value.
func FlagValue(v bool) AttrValue {
	return AttrValue{Class: ClassFlag, Flag: v}
}

// BlockValue returns a block-class value.
func BlockValue(b []byte) AttrValue {
	return AttrValue{Class: ClassBlock, Block: b}
}

// RefValue returns a resolved reference to target.
func RefValue(target EntryID) AttrValue {
	return AttrValue{Class: ClassReference, Ref: target, resolved: true}
}

// SecOffsetValue returns a section-offset value.
func SecOffsetValue(off uint64) AttrValue {
	return AttrValue{Class: ClassSecOffset, Uint: off}
}

func unresolvedRef(sectionOff uint64) AttrValue {
	return AttrValue{Class: ClassReference, refOff: sectionOff}
}

// Resolved reports whether a reference value has been resolved to an
// entry identity. Non-reference values are always resolved.
func (v AttrValue) Resolved() bool {
	return v.Class != ClassReference || v.resolved
}

// Equal compares two values. References compare by identity and must
// be resolved on both sides.
func (v AttrValue) Equal(w AttrValue) bool {
	if v.Class != w.Class {
		return false
	}
	switch v.Class {
	case ClassAddress, ClassConstant, ClassSecOffset:
		return v.Uint == w.Uint
	case ClassSignedConstant:
		return v.Int == w.Int
	case ClassBlock:
		return bytes.Equal(v.Block, w.Block)
	case ClassFlag:
		return v.Flag == w.Flag
	case ClassString:
		return v.Str == w.Str
	case ClassReference:
		return v.resolved && w.resolved && v.Ref == w.Ref
	}
	return true
}

func (v AttrValue) String() string {
	switch v.Class {
	case ClassAddress:
		return fmt.Sprintf("%#x", v.Uint)
	case ClassConstant, ClassSecOffset:
		return fmt.Sprintf("%d", v.Uint)
	case ClassSignedConstant:
		return fmt.Sprintf("%d", v.Int)
	case ClassBlock:
		return fmt.Sprintf("block[%d]", len(v.Block))
	case ClassFlag:
		return fmt.Sprintf("%t", v.Flag)
	case ClassString:
		return v.Str
	case ClassReference:
		if v.resolved {
			return fmt.Sprintf("ref{%d,%d}", v.Ref.Unit, v.Ref.Index)
		}
		return fmt.Sprintf("ref@%#x", v.refOff)
	}
	return "<none>"
}
