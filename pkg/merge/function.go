package merge

import (
	"debug/dwarf"
	"fmt"

	"github.com/immunant/dwarf-writer/pkg/dwarf/die"
	"github.com/immunant/dwarf-writer/pkg/facts"
)

func (s *Session) mergeFunction(f *facts.Function) error {
	id, exists := s.byPC[f.EntryPC]
	if !exists {
		if s.opts.OmitFunctions {
			s.log.Debugf("not creating subprogram for %#x: functions omitted", f.EntryPC)
			return nil
		}
		ui := s.homeUnit(f.EntryPC)
		if ui < 0 {
			ui = s.syntheticUnit()
		}
		u := s.forest.Units[ui]
		idx := u.Add(0, dwarf.TagSubprogram)
		id = die.EntryID{Unit: ui, Index: idx}
		u.Entry(idx).Set(dwarf.AttrLowpc, die.DW_FORM_addr, die.AddrValue(f.EntryPC))
		s.byPC[f.EntryPC] = id
		s.log.Debugf("created subprogram at %#x in unit %d", f.EntryPC, ui)
	}
	return s.updateFunction(id, f, !exists)
}

func (s *Session) updateFunction(id die.EntryID, f *facts.Function, created bool) error {
	u := s.forest.Units[id.Unit]
	e := u.Entry(id.Index)

	s.setName(e, f.Name, created, f.EntryPC, "FUN")

	if f.HasEnd {
		e.Set(dwarf.AttrHighpc, die.DW_FORM_addr, die.AddrValue(f.EndPC))
	}
	if f.HasNoReturn {
		if f.NoReturn {
			e.Set(dwarf.AttrNoreturn, 0, die.FlagValue(true))
		} else {
			e.Unset(dwarf.AttrNoreturn)
		}
	}
	if f.Prototyped {
		e.Set(dwarf.AttrPrototyped, 0, die.FlagValue(true))
	}
	if len(f.ReturnAddress) > 0 {
		e.Set(dwarf.AttrReturnAddr, 0, die.BlockValue(f.ReturnAddress))
	}
	if f.Line > 0 {
		e.Set(dwarf.AttrDeclLine, 0, die.UintValue(f.Line))
	}
	if f.File != "" {
		// DW_AT_decl_file indexes the line program's file table, which
		// is passed through unmodified.
		s.log.Debugf("dropping decl file %q for %#x", f.File, f.EntryPC)
	}

	if f.Ret != nil {
		if !f.Ret.IsVoid() {
			tid, err := s.typeRef(f.Ret)
			if err != nil {
				return err
			}
			e.Set(dwarf.AttrType, 0, die.RefValue(tid))
		} else if e.HasAttr(dwarf.AttrType) {
			s.log.Warnf("keeping return type of %#x over void", f.EntryPC)
		}
	}

	if err := s.updateParams(id, f); err != nil {
		return err
	}
	return s.updateLocals(id, f)
}

// updateParams reconciles formal parameters positionally: slots the
// fact covers are updated, existing parameters past the fact's count
// are retained, missing slots are appended.
func (s *Session) updateParams(id die.EntryID, f *facts.Function) error {
	u := s.forest.Units[id.Unit]
	e := u.Entry(id.Index)

	var params []int
	for _, ci := range e.Children {
		if u.Entry(ci).Tag == dwarf.TagFormalParameter {
			params = append(params, ci)
		}
	}

	for i, p := range f.Params {
		var ci int
		if i < len(params) {
			ci = params[i]
		} else {
			ci = u.Add(id.Index, dwarf.TagFormalParameter)
		}
		c := u.Entry(ci)
		if p.Name != "" {
			s.setName(c, p.Name, false, 0, "")
		}
		if p.Type != nil && !p.Type.IsVoid() {
			tid, err := s.typeRef(p.Type)
			if err != nil {
				return err
			}
			c.Set(dwarf.AttrType, 0, die.RefValue(tid))
		}
		if len(p.Loc) > 0 {
			c.Set(dwarf.AttrLocation, 0, die.BlockValue(p.Loc))
		}
	}
	if len(f.Params) > 0 && len(params) > len(f.Params) {
		s.log.Warnf("subprogram at %#x keeps %d parameters beyond the %d supplied", f.EntryPC, len(params)-len(f.Params), len(f.Params))
	}

	if f.Variadic {
		found := false
		for _, ci := range e.Children {
			if u.Entry(ci).Tag == dwarf.TagUnspecifiedParameters {
				found = true
				break
			}
		}
		if !found {
			u.Add(id.Index, dwarf.TagUnspecifiedParameters)
		}
	}
	return nil
}

// updateLocals matches local variables by name.
func (s *Session) updateLocals(id die.EntryID, f *facts.Function) error {
	if len(f.Locals) == 0 {
		return nil
	}
	u := s.forest.Units[id.Unit]
	e := u.Entry(id.Index)

	byName := make(map[string]int)
	for _, ci := range e.Children {
		c := u.Entry(ci)
		if c.Tag == dwarf.TagVariable && c.Name() != "" {
			byName[c.Name()] = ci
		}
	}

	for _, l := range f.Locals {
		if l.Name == "" {
			s.log.Debugf("skipping unnamed local in %#x", f.EntryPC)
			continue
		}
		ci, ok := byName[l.Name]
		if !ok {
			ci = u.Add(id.Index, dwarf.TagVariable)
			u.Entry(ci).Set(dwarf.AttrName, 0, die.StringValue(l.Name))
			byName[l.Name] = ci
		}
		c := u.Entry(ci)
		if l.Type != nil && !l.Type.IsVoid() {
			tid, err := s.typeRef(l.Type)
			if err != nil {
				return err
			}
			c.Set(dwarf.AttrType, 0, die.RefValue(tid))
		}
		if len(l.Loc) > 0 {
			c.Set(dwarf.AttrLocation, 0, die.BlockValue(l.Loc))
		}
	}
	return nil
}

// setName applies the naming policy: a placeholder name never
// replaces a real one, and an entry that would otherwise end up
// nameless gets a placeholder built from its address.
func (s *Session) setName(e *die.Entry, name string, created bool, addr uint64, genPrefix string) {
	existing := e.Name()
	switch {
	case name == "" && existing == "" && created && genPrefix != "":
		name = fmt.Sprintf("%s_%08x", genPrefix, addr)
	case name == "":
		return
	case existing != "" && facts.IsAutoGenerated(name) && !facts.IsAutoGenerated(existing):
		s.log.Warnf("keeping name %q over auto-generated %q", existing, name)
		return
	case existing != "" && existing != name:
		s.log.Debugf("overriding name %q with %q", existing, name)
	}

	if facts.IsMangled(name) {
		e.Set(dwarf.AttrLinkageName, 0, die.StringValue(name))
	}
	e.Set(dwarf.AttrName, 0, die.StringValue(facts.PrettyName(name)))
}
