// Package facts carries the source-neutral model of what a
// disassembly analysis can report about a binary: functions with
// parameters and return types, global variables, and the type shapes
// both refer to. Decoders produce a FactSet; the merge engine consumes
// nothing else.
package facts

import (
	"sort"
)

// FactSet is everything one input source reported.
type FactSet struct {
	Functions []*Function
	Variables []*Variable
}

// Function describes one discovered function. EntryPC is the only
// required field.
type Function struct {
	EntryPC uint64
	EndPC   uint64
	HasEnd  bool

	Name string
	File string
	Line uint64

	Params []Parameter
	Locals []Local

	// Ret is nil when the source said nothing about the return type;
	// a Void-kind type means an explicit void.
	Ret *Type

	NoReturn    bool
	HasNoReturn bool
	Prototyped  bool
	Variadic    bool

	// ReturnAddress is a DWARF expression locating the saved return
	// address, empty if unknown.
	ReturnAddress []byte
}

// Parameter is one formal parameter, in declaration order.
type Parameter struct {
	Name string
	Type *Type
	Loc  []byte
}

// Local is a local variable of a function.
type Local struct {
	Name string
	Type *Type
	Loc  []byte
}

// Variable is a global variable.
type Variable struct {
	Addr uint64
	Name string
	Type *Type
	Loc  []byte
}

// Sort orders the set by address, then name. Merge output is a
// function of fact order, so every decoder sorts before handing the
// set over.
func (fs *FactSet) Sort() {
	sort.SliceStable(fs.Functions, func(i, j int) bool {
		if fs.Functions[i].EntryPC != fs.Functions[j].EntryPC {
			return fs.Functions[i].EntryPC < fs.Functions[j].EntryPC
		}
		return fs.Functions[i].Name < fs.Functions[j].Name
	})
	sort.SliceStable(fs.Variables, func(i, j int) bool {
		if fs.Variables[i].Addr != fs.Variables[j].Addr {
			return fs.Variables[i].Addr < fs.Variables[j].Addr
		}
		return fs.Variables[i].Name < fs.Variables[j].Name
	})
}

// Merge appends other's facts to fs.
func (fs *FactSet) Merge(other *FactSet) {
	fs.Functions = append(fs.Functions, other.Functions...)
	fs.Variables = append(fs.Variables, other.Variables...)
}
