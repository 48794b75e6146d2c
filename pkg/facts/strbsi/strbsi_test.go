package strbsi

import (
	"testing"
)

const sample = `[
  {
    "address": "0x401000",
    "name": "parse_header",
    "decl_file": "parse.c",
    "decl_line": 41,
    "parameters": [{"name": "buf", "type": "const char *"}],
    "locals": [{"name": "n", "type": "int"}],
    "confidence": 1.0
  },
  {
    "address": 4199424,
    "name": "maybe_helper",
    "confidence": 0.6
  }
]`

func TestDecodeSkipsLowConfidence(t *testing.T) {
	fs, err := Decode([]byte(sample), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(fs.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(fs.Functions))
	}
	f := fs.Functions[0]
	if f.Name != "parse_header" || f.EntryPC != 0x401000 {
		t.Errorf("decoded %q at %#x", f.Name, f.EntryPC)
	}
	if f.File != "parse.c" || f.Line != 41 {
		t.Errorf("decl = %q:%d", f.File, f.Line)
	}
	if len(f.Params) != 1 || f.Params[0].Name != "buf" {
		t.Errorf("params = %+v", f.Params)
	}
	if len(f.Locals) != 1 || f.Locals[0].Name != "n" {
		t.Errorf("locals = %+v", f.Locals)
	}
}

func TestDecodeAcceptAll(t *testing.T) {
	fs, err := Decode([]byte(sample), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(fs.Functions) != 2 {
		t.Fatalf("got %d functions, want 2", len(fs.Functions))
	}
	if fs.Functions[1].Name != "maybe_helper" || fs.Functions[1].EntryPC != 0x401400 {
		t.Errorf("low-confidence record decoded as %q at %#x", fs.Functions[1].Name, fs.Functions[1].EntryPC)
	}
}

func TestDecodeBadDocument(t *testing.T) {
	if _, err := Decode([]byte(`{"not": "a list"}`), false); err == nil {
		t.Error("non-list document must be fatal")
	}
	if _, err := Decode([]byte(`[{"address": "zzz"}]`), false); err == nil {
		t.Error("unparseable address must be fatal")
	}
}
