// Package ghidra decodes function lists exported from Ghidra as CSV.
// The header row is authoritative for column order.
package ghidra

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/immunant/dwarf-writer/pkg/facts"
	"github.com/immunant/dwarf-writer/pkg/logflags"
)

const (
	colName      = "Name"
	colLocation  = "Location"
	colSize      = "Function Size"
	colSignature = "Function Signature"
)

// Decode converts a Ghidra CSV export. Rows that fail to parse are
// logged and skipped; a missing required column is fatal.
func Decode(data []byte) (*facts.FactSet, error) {
	log := logflags.DecoderLogger().WithField("format", "ghidra")

	r := csv.NewReader(strings.NewReader(string(data)))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ghidra: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("ghidra: empty input")
	}

	cols := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		cols[strings.TrimSpace(h)] = i
	}
	for _, want := range []string{colName, colLocation, colSize, colSignature} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("ghidra: missing column %q", want)
		}
	}

	fs := &facts.FactSet{}
	for n, row := range rows[1:] {
		if len(row) != len(rows[0]) {
			log.Warnf("skipping row %d: %d fields, header has %d", n+2, len(row), len(rows[0]))
			continue
		}
		f, err := decodeRow(row, cols)
		if err != nil {
			log.WithError(err).Warnf("skipping row %d", n+2)
			continue
		}
		fs.Functions = append(fs.Functions, f)
	}

	fs.Sort()
	log.Debugf("decoded %d of %d rows", len(fs.Functions), len(rows)-1)
	return fs, nil
}

func decodeRow(row []string, cols map[string]int) (*facts.Function, error) {
	get := func(name string) string {
		i := cols[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	lowPC, err := parseHex(get(colLocation))
	if err != nil {
		return nil, fmt.Errorf("bad location: %w", err)
	}
	size, err := parseHex(get(colSize))
	if err != nil {
		return nil, fmt.Errorf("bad size: %w", err)
	}

	f := &facts.Function{
		EntryPC: lowPC,
		EndPC:   lowPC + size,
		HasEnd:  true,
		Name:    get(colName),
	}
	if err := parseSignature(f, get(colSignature)); err != nil {
		return nil, fmt.Errorf("bad signature: %w", err)
	}
	return f, nil
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	return strconv.ParseUint(s, 16, 64)
}

// parseSignature unpacks "ret_ty name(ty1 p1, ty2 p2)". Ghidra only
// reports a single return value.
func parseSignature(f *facts.Function, sig string) error {
	open := strings.IndexByte(sig, '(')
	closing := strings.LastIndexByte(sig, ')')
	if open < 0 || closing < open {
		return fmt.Errorf("no parameter list in %q", sig)
	}

	left := strings.TrimSpace(sig[:open])
	i := strings.LastIndexAny(left, " *")
	if i < 0 {
		return fmt.Errorf("no return type in %q", sig)
	}
	retStr := strings.TrimSpace(left[:i+1])
	if retStr != "" {
		f.Ret = facts.ParseCType(retStr)
	}

	for _, p := range strings.Split(sig[open+1:closing], ",") {
		p = strings.TrimSpace(p)
		if p == "" || p == "void" {
			break
		}
		if p == "..." {
			f.Variadic = true
			break
		}
		j := strings.LastIndexAny(p, " *")
		if j < 0 {
			f.Params = append(f.Params, facts.Parameter{Type: facts.ParseCType(p)})
			continue
		}
		f.Params = append(f.Params, facts.Parameter{
			Name: strings.TrimSpace(p[j+1:]),
			Type: facts.ParseCType(strings.TrimSpace(p[:j+1])),
		})
	}
	f.Prototyped = true
	return nil
}
