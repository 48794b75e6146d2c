package merge

import (
	"bytes"
	"debug/dwarf"

	"github.com/immunant/dwarf-writer/pkg/dwarf/die"
	"github.com/immunant/dwarf-writer/pkg/facts"
)

func (s *Session) mergeVariable(v *facts.Variable) error {
	if v.Name != "" {
		if node, found := s.names.Find(v.Name); found {
			return s.updateVariable(node.Meta().(die.EntryID), v)
		}
	}
	if id, ok := s.byVarAddr[v.Addr]; ok {
		return s.updateVariable(id, v)
	}

	if s.opts.OmitVariables {
		s.log.Debugf("not creating variable for %#x: variables omitted", v.Addr)
		return nil
	}

	ui := s.syntheticUnit()
	u := s.forest.Units[ui]
	idx := u.Add(0, dwarf.TagVariable)
	id := die.EntryID{Unit: ui, Index: idx}
	e := u.Entry(idx)
	s.setName(e, v.Name, true, v.Addr, "VAR")
	e.Set(dwarf.AttrExternal, 0, die.FlagValue(true))
	if name := e.Name(); name != "" {
		s.names.Add(name, id)
	}
	s.byVarAddr[v.Addr] = id
	s.log.Debugf("created variable %q at %#x", e.Name(), v.Addr)
	return s.updateVariable(id, v)
}

func (s *Session) updateVariable(id die.EntryID, v *facts.Variable) error {
	e := s.forest.Entry(id)

	loc := v.Loc
	if len(loc) == 0 {
		loc = s.addrExpr(v.Addr)
	}
	e.Set(dwarf.AttrLocation, 0, die.BlockValue(loc))

	if v.Type != nil {
		if !v.Type.IsVoid() {
			tid, err := s.typeRef(v.Type)
			if err != nil {
				return err
			}
			e.Set(dwarf.AttrType, 0, die.RefValue(tid))
		} else if e.HasAttr(dwarf.AttrType) {
			s.log.Warnf("keeping type of variable %q over void", e.Name())
		}
	}
	return nil
}

// variableAddr recovers a global's address from a DW_OP_addr location
// expression.
func (s *Session) variableAddr(e *die.Entry) (uint64, bool) {
	v, ok := e.Attr(dwarf.AttrLocation)
	if !ok || v.Class != die.ClassBlock || len(v.Block) < 2 || v.Block[0] != facts.DW_OP_addr {
		return 0, false
	}
	rest := v.Block[1:]
	switch len(rest) {
	case 4:
		return uint64(s.forest.Order.Uint32(rest)), true
	case 8:
		return s.forest.Order.Uint64(rest), true
	}
	return 0, false
}

// addrExpr builds the DW_OP_addr expression locating a global.
func (s *Session) addrExpr(addr uint64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(facts.DW_OP_addr)
	if s.opts.AddrSize == 4 {
		b := make([]byte, 4)
		s.forest.Order.PutUint32(b, uint32(addr))
		buf.Write(b)
	} else {
		b := make([]byte, 8)
		s.forest.Order.PutUint64(b, addr)
		buf.Write(b)
	}
	return buf.Bytes()
}
