// Package anvill decodes Anvill JSON hint files into the neutral fact
// model.
package anvill

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/immunant/dwarf-writer/pkg/dwarf/regnum"
	"github.com/immunant/dwarf-writer/pkg/facts"
	"github.com/immunant/dwarf-writer/pkg/logflags"
)

// document mirrors a single Anvill input file. Unknown keys are
// ignored by encoding/json.
type document struct {
	Arch      string     `json:"arch"`
	OS        string     `json:"os"`
	Functions []function `json:"functions"`
	Variables []variable `json:"variables"`
	Symbols   []symbol   `json:"symbols"`
}

type function struct {
	Address            uint64  `json:"address"`
	Name               string  `json:"name"`
	ReturnAddress      *value  `json:"return_address"`
	ReturnStackPointer *value  `json:"return_stack_pointer"`
	Parameters         []arg   `json:"parameters"`
	ReturnValues       []value `json:"return_values"`
	IsVariadic         *bool   `json:"is_variadic"`
	IsNoreturn         *bool   `json:"is_noreturn"`
}

type variable struct {
	Address uint64   `json:"address"`
	Name    string   `json:"name"`
	Type    *typeRef `json:"type"`
}

type symbol struct {
	Address uint64 `json:"address"`
	Name    string `json:"name"`
}

type arg struct {
	Name string `json:"name"`
	value
}

// value is a located, typed slot: either a register or
// register+offset memory operand.
type value struct {
	Register string   `json:"register"`
	Memory   *memory  `json:"memory"`
	Type     *typeRef `json:"type"`
}

type memory struct {
	Register string `json:"register"`
	Offset   int64  `json:"offset"`
}

// typeRef is the recursive tagged type shape. A bare JSON string is
// accepted as a base-type spelling.
type typeRef struct {
	t *facts.Type
}

type typeObj struct {
	Kind    string    `json:"kind"`
	Name    string    `json:"name"`
	Size    uint64    `json:"size"`
	Pointee *typeRef  `json:"pointee"`
	Element *typeRef  `json:"element"`
	Count   uint64    `json:"count"`
	Members []member  `json:"members"`
	Return  *typeRef  `json:"return"`
	Params  []typeRef `json:"params"`
}

type member struct {
	Name   string   `json:"name"`
	Offset uint64   `json:"offset"`
	Type   *typeRef `json:"type"`
}

func (r *typeRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.t = facts.ParseCType(s)
		return nil
	}
	var obj typeObj
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	t, err := obj.convert()
	if err != nil {
		return err
	}
	r.t = t
	return nil
}

func (o *typeObj) convert() (*facts.Type, error) {
	switch o.Kind {
	case "", "void":
		return facts.Void(), nil
	case "bool", "char", "int", "uint", "float":
		return o.base(), nil
	case "ptr":
		return facts.PointerTo(deref(o.Pointee)), nil
	case "array":
		t := &facts.Type{Kind: facts.KindArray, Elem: deref(o.Element)}
		if o.Count > 0 {
			t.Counts = []uint64{o.Count}
		}
		return t, nil
	case "struct", "union":
		kind := facts.KindStruct
		if o.Kind == "union" {
			kind = facts.KindUnion
		}
		t := &facts.Type{Kind: kind, Name: o.Name}
		for _, m := range o.Members {
			t.Members = append(t.Members, facts.Member{Name: m.Name, Offset: m.Offset, Type: deref(m.Type)})
		}
		return t, nil
	case "typedef":
		return &facts.Type{Kind: facts.KindTypedef, Name: o.Name, Elem: deref(o.Element)}, nil
	case "func":
		t := &facts.Type{Kind: facts.KindFunc, Elem: deref(o.Return)}
		for i := range o.Params {
			t.Params = append(t.Params, o.Params[i].t)
		}
		return t, nil
	}
	return nil, fmt.Errorf("unknown type kind %q", o.Kind)
}

func (o *typeObj) base() *facts.Type {
	if o.Name != "" {
		t := facts.BaseType(o.Name)
		if !t.HasSize && o.Size > 0 && t.Kind == facts.KindBase {
			t.ByteSize = o.Size
			t.HasSize = true
		}
		return t
	}
	var name string
	switch o.Kind {
	case "bool":
		name = "bool"
	case "char":
		name = "char"
	case "int":
		name = fmt.Sprintf("int%d_t", o.Size*8)
	case "uint":
		name = fmt.Sprintf("uint%d_t", o.Size*8)
	case "float":
		if o.Size == 8 {
			name = "double"
		} else {
			name = "float"
		}
	}
	return facts.BaseType(name)
}

func deref(r *typeRef) *facts.Type {
	if r == nil || r.t == nil {
		return facts.Void()
	}
	return r.t
}

// Decode converts an Anvill JSON document to a fact set. The document
// is decoded as a whole, so a malformed document is fatal, and so is a
// single record that does not decode (a wrong JSON shape or an unknown
// type kind); records are not skipped one by one. A return address or
// parameter location naming an unknown register is logged and dropped,
// and its function is kept.
func Decode(data []byte) (*facts.FactSet, error) {
	log := logflags.DecoderLogger().WithField("format", "anvill")

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("anvill: %w", err)
	}

	regs, err := registerMapper(doc.Arch)
	if err != nil {
		return nil, fmt.Errorf("anvill: %w", err)
	}

	names := make(map[uint64]string, len(doc.Symbols))
	for _, s := range doc.Symbols {
		names[s.Address] = s.Name
	}

	fs := &facts.FactSet{}
	for i := range doc.Functions {
		fn := &doc.Functions[i]
		f := &facts.Function{EntryPC: fn.Address, Prototyped: true}
		if fn.Name != "" {
			f.Name = fn.Name
		} else if n, ok := names[fn.Address]; ok {
			f.Name = n
		}
		if fn.IsNoreturn != nil {
			f.NoReturn = *fn.IsNoreturn
			f.HasNoReturn = true
		}
		if fn.IsVariadic != nil && *fn.IsVariadic {
			f.Variadic = true
		}
		if len(fn.ReturnValues) > 0 {
			f.Ret = deref(fn.ReturnValues[0].Type)
		}
		if fn.ReturnAddress != nil {
			if expr, err := locate(fn.ReturnAddress, regs); err != nil {
				log.WithError(err).Warnf("skipping return address of %#x", fn.Address)
			} else {
				f.ReturnAddress = expr
			}
		}
		for j := range fn.Parameters {
			p := &fn.Parameters[j]
			param := facts.Parameter{Name: p.Name, Type: deref(p.Type)}
			if expr, err := locate(&p.value, regs); err != nil {
				log.WithError(err).Warnf("parameter %d of %#x has no usable location", j, fn.Address)
			} else {
				param.Loc = expr
			}
			f.Params = append(f.Params, param)
		}
		fs.Functions = append(fs.Functions, f)
	}

	for i := range doc.Variables {
		v := &doc.Variables[i]
		fv := &facts.Variable{Addr: v.Address, Type: deref(v.Type)}
		if v.Name != "" {
			fv.Name = v.Name
		} else if n, ok := names[v.Address]; ok {
			fv.Name = n
		}
		fs.Variables = append(fs.Variables, fv)
	}

	fs.Sort()
	log.Debugf("decoded %d functions, %d variables", len(fs.Functions), len(fs.Variables))
	return fs, nil
}

func locate(v *value, regs func(string) (int, bool)) ([]byte, error) {
	switch {
	case v.Memory != nil:
		n, ok := regs(v.Memory.Register)
		if !ok {
			return nil, fmt.Errorf("unknown register %q", v.Memory.Register)
		}
		return facts.MemoryLoc(n, v.Memory.Offset), nil
	case v.Register != "":
		n, ok := regs(v.Register)
		if !ok {
			return nil, fmt.Errorf("unknown register %q", v.Register)
		}
		return facts.RegisterLoc(n), nil
	}
	return nil, fmt.Errorf("value has no location")
}

func registerMapper(arch string) (func(string) (int, bool), error) {
	switch {
	case strings.HasPrefix(arch, "amd64"), strings.HasPrefix(arch, "x86"):
		return regnum.AMD64NameToDwarf, nil
	case arch == "aarch64", arch == "aarch32":
		return regnum.ARM64NameToDwarf, nil
	case arch == "":
		return nil, fmt.Errorf("missing arch")
	}
	return nil, fmt.Errorf("unsupported arch %q", arch)
}
