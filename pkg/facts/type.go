package facts

import (
	"strconv"
	"strings"

	"github.com/immunant/dwarf-writer/pkg/dwarf/die"
)

// TypeKind discriminates the Type variant.
type TypeKind uint8

const (
	KindVoid TypeKind = iota
	KindBase
	KindPointer
	KindArray
	KindStruct
	KindUnion
	KindTypedef
	KindConst
	KindVolatile
	KindFunc
)

// Type is the neutral type model. Fields beyond Kind are meaningful
// per variant: Base uses Name/ByteSize/Encoding; Pointer, Typedef,
// Const, Volatile and Func use Elem (pointee, aliased, inner, inner,
// return type); Array uses Elem and Counts; Struct and Union use Name
// and Members; Func additionally uses Params.
type Type struct {
	Kind TypeKind

	Name     string
	ByteSize uint64
	HasSize  bool
	Encoding die.Encoding

	Elem    *Type
	Counts  []uint64
	Members []Member
	Params  []*Type
}

// Member is one field of a struct or union.
type Member struct {
	Name   string
	Offset uint64
	Type   *Type
}

// Void is the canonical void type.
func Void() *Type {
	return &Type{Kind: KindVoid}
}

// PointerTo returns a pointer type.
func PointerTo(t *Type) *Type {
	return &Type{Kind: KindPointer, Elem: t}
}

// IsVoid reports whether t is nil or the void type.
func (t *Type) IsVoid() bool {
	return t == nil || t.Kind == KindVoid
}

type primitive struct {
	size     uint64
	encoding die.Encoding
}

// Primitive type properties, keyed by canonical name.
var primitives = map[string]primitive{
	"bool":        {1, die.DW_ATE_boolean},
	"char":        {1, die.DW_ATE_signed_char},
	"wchar_t":     {4, die.DW_ATE_signed},
	"int8_t":      {1, die.DW_ATE_signed},
	"uint8_t":     {1, die.DW_ATE_unsigned},
	"int16_t":     {2, die.DW_ATE_signed},
	"uint16_t":    {2, die.DW_ATE_unsigned},
	"int32_t":     {4, die.DW_ATE_signed},
	"uint32_t":    {4, die.DW_ATE_unsigned},
	"int64_t":     {8, die.DW_ATE_signed},
	"uint64_t":    {8, die.DW_ATE_unsigned},
	"int128_t":    {16, die.DW_ATE_signed},
	"uint128_t":   {16, die.DW_ATE_unsigned},
	"float16_t":   {2, die.DW_ATE_float},
	"float":       {4, die.DW_ATE_float},
	"double":      {8, die.DW_ATE_float},
	"long double": {16, die.DW_ATE_float},
	"__float128":  {16, die.DW_ATE_float},
}

// Type names have various spellings across sources; canonicalName
// folds them before comparison or emission.
var canonicalNames = map[string]string{
	"_Bool":              "bool",
	"signed char":        "int8_t",
	"i8":                 "int8_t",
	"unsigned char":      "uint8_t",
	"u8":                 "uint8_t",
	"short":              "int16_t",
	"i16":                "int16_t",
	"unsigned short":     "uint16_t",
	"u16":                "uint16_t",
	"int":                "int32_t",
	"i32":                "int32_t",
	"unsigned":           "uint32_t",
	"unsigned int":       "uint32_t",
	"u32":                "uint32_t",
	"long":               "int64_t",
	"long long":          "int64_t",
	"i64":                "int64_t",
	"unsigned long":      "uint64_t",
	"unsigned long long": "uint64_t",
	"u64":                "uint64_t",
	"__int128":           "int128_t",
	"i128":               "int128_t",
	"__uint128":          "uint128_t",
	"u128":               "uint128_t",
	"binary16":           "float16_t",
	"f32":                "float",
	"f64":                "double",
}

func canonicalName(name string) string {
	if c, ok := canonicalNames[name]; ok {
		return c
	}
	return name
}

// BaseType returns a base type for a (possibly non-canonical)
// primitive name. Names not in the primitive table come back as
// sizeless base types.
func BaseType(name string) *Type {
	c := canonicalName(name)
	if c == "void" {
		return Void()
	}
	t := &Type{Kind: KindBase, Name: c}
	if p, ok := primitives[c]; ok {
		t.ByteSize = p.size
		t.HasSize = true
		t.Encoding = p.encoding
	}
	return t
}

// ParseCType converts a C-like type spelling ("const char *",
// "uint32_t[4]", "struct node **") into the neutral model. It never
// fails: unrecognized spellings become named base types.
func ParseCType(s string) *Type {
	s = strings.TrimSpace(s)
	if s == "" || s == "void" {
		return Void()
	}

	if i := strings.LastIndexByte(s, '['); i >= 0 && strings.HasSuffix(s, "]") {
		countStr := s[i+1 : len(s)-1]
		elem := ParseCType(s[:i])
		n, err := strconv.ParseUint(strings.TrimSpace(countStr), 10, 64)
		if err != nil {
			return &Type{Kind: KindArray, Elem: elem}
		}
		return &Type{Kind: KindArray, Elem: elem, Counts: []uint64{n}}
	}

	if strings.HasSuffix(s, "*") {
		return PointerTo(ParseCType(s[:len(s)-1]))
	}

	if rest, ok := strings.CutPrefix(s, "const "); ok {
		return &Type{Kind: KindConst, Elem: ParseCType(rest)}
	}
	if rest, ok := strings.CutPrefix(s, "volatile "); ok {
		return &Type{Kind: KindVolatile, Elem: ParseCType(rest)}
	}
	if rest, ok := strings.CutPrefix(s, "struct "); ok {
		return &Type{Kind: KindStruct, Name: strings.TrimSpace(rest)}
	}
	if rest, ok := strings.CutPrefix(s, "union "); ok {
		return &Type{Kind: KindUnion, Name: strings.TrimSpace(rest)}
	}

	return BaseType(s)
}
