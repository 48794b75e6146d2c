// Package strbsi decodes STR BSI JSON function lists into the neutral
// fact model. Records carry a confidence score; anything below 1 is
// dropped unless the caller opts in to low-confidence facts.
package strbsi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/immunant/dwarf-writer/pkg/facts"
	"github.com/immunant/dwarf-writer/pkg/logflags"
)

type record struct {
	Address    address    `json:"address"`
	Name       string     `json:"name"`
	DeclFile   string     `json:"decl_file"`
	DeclLine   uint64     `json:"decl_line"`
	Parameters []varEntry `json:"parameters"`
	Locals     []varEntry `json:"locals"`
	Confidence float64    `json:"confidence"`
}

type varEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// address accepts both a JSON number and a "0x"-prefixed or decimal
// string.
type address uint64

func (a *address) UnmarshalJSON(data []byte) error {
	var n uint64
	if err := json.Unmarshal(data, &n); err == nil {
		*a = address(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	var (
		v   uint64
		err error
	)
	if hex, ok := strings.CutPrefix(s, "0x"); ok {
		v, err = strconv.ParseUint(hex, 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return fmt.Errorf("bad address %q: %w", s, err)
	}
	*a = address(v)
	return nil
}

// Decode converts a STR BSI document. Records below full confidence
// are skipped unless acceptAll is set; each skip is logged.
func Decode(data []byte, acceptAll bool) (*facts.FactSet, error) {
	log := logflags.DecoderLogger().WithField("format", "str-bsi")

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("str-bsi: %w", err)
	}

	fs := &facts.FactSet{}
	for i := range records {
		r := &records[i]
		if r.Confidence < 1 && !acceptAll {
			log.Warnf("skipping %q at %#x: confidence %v below threshold", r.Name, uint64(r.Address), r.Confidence)
			continue
		}
		f := &facts.Function{
			EntryPC: uint64(r.Address),
			Name:    r.Name,
			File:    r.DeclFile,
			Line:    r.DeclLine,
		}
		for _, p := range r.Parameters {
			f.Params = append(f.Params, facts.Parameter{Name: p.Name, Type: facts.ParseCType(p.Type)})
		}
		for _, l := range r.Locals {
			f.Locals = append(f.Locals, facts.Local{Name: l.Name, Type: facts.ParseCType(l.Type)})
		}
		if len(f.Params) > 0 {
			f.Prototyped = true
		}
		fs.Functions = append(fs.Functions, f)
	}

	fs.Sort()
	log.Debugf("decoded %d of %d records", len(fs.Functions), len(records))
	return fs, nil
}
