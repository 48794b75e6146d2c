// Package elffile reads the sections dwarf-writer works on out of an
// ELF object and rebuilds its symbol table.
package elffile

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/immunant/dwarf-writer/pkg/logflags"
)

// DebugSections holds the raw contents of the DWARF sections this
// tool reads and rewrites. Absent sections are empty slices.
type DebugSections struct {
	Info   []byte
	Abbrev []byte
	Str    []byte
	Line   []byte
}

// File is an opened ELF object.
type File struct {
	Path string

	f   *elf.File
	log logflags.Logger
}

// Open reads an ELF object of either class and endianness.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	ef, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &File{Path: path, f: ef, log: logflags.ElfLogger()}, nil
}

// ByteOrder returns the object's byte order.
func (f *File) ByteOrder() binary.ByteOrder {
	return f.f.ByteOrder
}

// Is64 reports whether the object is ELFCLASS64.
func (f *File) Is64() bool {
	return f.f.Class == elf.ELFCLASS64
}

// AddrSize returns the size of an address in bytes.
func (f *File) AddrSize() uint8 {
	if f.Is64() {
		return 8
	}
	return 4
}

// DebugSections loads the DWARF sections. A missing section is not an
// error: stripped binaries get their debug info built from scratch.
func (f *File) DebugSections() (*DebugSections, error) {
	ds := &DebugSections{}
	for _, s := range []struct {
		name string
		dst  *[]byte
	}{
		{".debug_info", &ds.Info},
		{".debug_abbrev", &ds.Abbrev},
		{".debug_str", &ds.Str},
		{".debug_line", &ds.Line},
	} {
		sec := f.f.Section(s.name)
		if sec == nil {
			f.log.Debugf("no %s section", s.name)
			continue
		}
		data, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("could not load %s: %w", s.name, err)
		}
		*s.dst = data
	}
	return ds, nil
}

// HasSection reports whether the object carries the named section.
func (f *File) HasSection(name string) bool {
	return f.f.Section(name) != nil
}
