package elffile

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/immunant/dwarf-writer/pkg/facts"
	"github.com/immunant/dwarf-writer/pkg/logflags"
)

const (
	elf32SymSize = 16
	elf64SymSize = 24
)

// Symbol is one .symtab entry with its name already resolved.
type Symbol struct {
	Name  string
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

// SymbolTable holds every entry of .symtab, including the leading
// null entry, in file order. Entries added during an update are
// appended so the local/global split recorded in the section header
// stays valid.
type SymbolTable struct {
	Syms []Symbol

	is64  bool
	order binary.ByteOrder
	log   logflags.Logger
	dirty bool
}

// Symtab parses the object's symbol table. Both .symtab and .strtab
// must be present.
func (f *File) Symtab() (*SymbolTable, error) {
	symSec := f.f.Section(".symtab")
	strSec := f.f.Section(".strtab")
	if symSec == nil || strSec == nil {
		return nil, fmt.Errorf("%s: missing .symtab or .strtab", f.Path)
	}
	symData, err := symSec.Data()
	if err != nil {
		return nil, fmt.Errorf("could not load .symtab: %w", err)
	}
	strData, err := strSec.Data()
	if err != nil {
		return nil, fmt.Errorf("could not load .strtab: %w", err)
	}

	st := &SymbolTable{is64: f.Is64(), order: f.ByteOrder(), log: logflags.ElfLogger()}
	entSize := elf32SymSize
	if st.is64 {
		entSize = elf64SymSize
	}
	if len(symData)%entSize != 0 {
		return nil, fmt.Errorf(".symtab size %d is not a multiple of %d", len(symData), entSize)
	}

	for off := 0; off < len(symData); off += entSize {
		ent := symData[off : off+entSize]
		var sym Symbol
		nameOff := st.order.Uint32(ent[0:4])
		if st.is64 {
			sym.Info = ent[4]
			sym.Other = ent[5]
			sym.Shndx = st.order.Uint16(ent[6:8])
			sym.Value = st.order.Uint64(ent[8:16])
			sym.Size = st.order.Uint64(ent[16:24])
		} else {
			sym.Value = uint64(st.order.Uint32(ent[4:8]))
			sym.Size = uint64(st.order.Uint32(ent[8:12]))
			sym.Info = ent[12]
			sym.Other = ent[13]
			sym.Shndx = st.order.Uint16(ent[14:16])
		}
		name, ok := cstring(strData, nameOff)
		if !ok {
			return nil, fmt.Errorf("symbol at %d has name offset %d outside .strtab", off/entSize, nameOff)
		}
		sym.Name = name
		st.Syms = append(st.Syms, sym)
	}
	return st, nil
}

func cstring(data []byte, off uint32) (string, bool) {
	if uint64(off) >= uint64(len(data)) {
		return "", false
	}
	end := bytes.IndexByte(data[off:], 0)
	if end < 0 {
		return "", false
	}
	return string(data[off : int(off)+end]), true
}

// Dirty reports whether any update changed the table.
func (st *SymbolTable) Dirty() bool {
	return st.dirty
}

// Apply folds a fact set into the table: renames at matching
// addresses, address updates at matching names, and fresh SHN_ABS
// globals for facts with no entry at all. Placeholder names never
// replace real ones.
func (st *SymbolTable) Apply(fs *facts.FactSet, withVariables bool) {
	for _, fn := range fs.Functions {
		st.applyOne(fn.Name, fn.EntryPC, elf.STT_FUNC)
	}
	if !withVariables {
		return
	}
	for _, v := range fs.Variables {
		st.applyOne(v.Name, v.Addr, elf.STT_OBJECT)
	}
}

func (st *SymbolTable) applyOne(name string, addr uint64, typ elf.SymType) {
	if name == "" {
		return
	}

	if i := st.findByValue(addr, typ); i >= 0 {
		sym := &st.Syms[i]
		if sym.Name == name {
			return
		}
		if facts.IsAutoGenerated(name) && sym.Name != "" && !facts.IsAutoGenerated(sym.Name) {
			st.log.Warnf("keeping symbol %q at %#x over auto-generated %q", sym.Name, addr, name)
			return
		}
		st.log.Debugf("renaming symbol %q at %#x to %q", sym.Name, addr, name)
		sym.Name = name
		st.dirty = true
		return
	}

	if i := st.findByName(name); i >= 0 {
		sym := &st.Syms[i]
		if sym.Value != addr {
			st.log.Debugf("moving symbol %q from %#x to %#x", name, sym.Value, addr)
			sym.Value = addr
			st.dirty = true
		}
		return
	}

	st.Syms = append(st.Syms, Symbol{
		Name:  name,
		Info:  byte(elf.STB_GLOBAL)<<4 | byte(typ),
		Shndx: uint16(elf.SHN_ABS),
		Value: addr,
	})
	st.log.Debugf("adding symbol %q at %#x", name, addr)
	st.dirty = true
}

func (st *SymbolTable) findByValue(addr uint64, typ elf.SymType) int {
	for i := 1; i < len(st.Syms); i++ {
		if st.Syms[i].Value == addr && elf.ST_TYPE(st.Syms[i].Info) == typ {
			return i
		}
	}
	return -1
}

func (st *SymbolTable) findByName(name string) int {
	for i := 1; i < len(st.Syms); i++ {
		if st.Syms[i].Name == name {
			return i
		}
	}
	return -1
}

// Serialize rebuilds the .symtab and .strtab section contents.
func (st *SymbolTable) Serialize() (symtab, strtab []byte) {
	var strs bytes.Buffer
	strs.WriteByte(0)
	offsets := map[string]uint32{"": 0}
	intern := func(s string) uint32 {
		if off, ok := offsets[s]; ok {
			return off
		}
		off := uint32(strs.Len())
		offsets[s] = off
		strs.WriteString(s)
		strs.WriteByte(0)
		return off
	}

	var syms bytes.Buffer
	for i := range st.Syms {
		sym := &st.Syms[i]
		nameOff := intern(sym.Name)
		if st.is64 {
			var ent [elf64SymSize]byte
			st.order.PutUint32(ent[0:4], nameOff)
			ent[4] = sym.Info
			ent[5] = sym.Other
			st.order.PutUint16(ent[6:8], sym.Shndx)
			st.order.PutUint64(ent[8:16], sym.Value)
			st.order.PutUint64(ent[16:24], sym.Size)
			syms.Write(ent[:])
		} else {
			var ent [elf32SymSize]byte
			st.order.PutUint32(ent[0:4], nameOff)
			st.order.PutUint32(ent[4:8], uint32(sym.Value))
			st.order.PutUint32(ent[8:12], uint32(sym.Size))
			ent[12] = sym.Info
			ent[13] = sym.Other
			st.order.PutUint16(ent[14:16], sym.Shndx)
			syms.Write(ent[:])
		}
	}
	return syms.Bytes(), strs.Bytes()
}
