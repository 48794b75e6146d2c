package splice

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// fakeSplicer records calls and can refuse updates for chosen
// sections.
type fakeSplicer struct {
	updated    []string
	added      []string
	failUpdate map[string]bool
	failAdd    map[string]bool
}

func (f *fakeSplicer) UpdateSection(name, path string) error {
	if f.failUpdate[name] {
		return errors.New("no such section")
	}
	f.updated = append(f.updated, name)
	return nil
}

func (f *fakeSplicer) AddSection(name, path string) error {
	if f.failAdd[name] {
		return errors.New("add failed")
	}
	f.added = append(f.added, name)
	return nil
}

func sections() []Section {
	return []Section{
		{Name: ".debug_info", Exists: true, Data: []byte{1}},
		{Name: ".debug_abbrev", Exists: true, Data: []byte{2}},
		{Name: ".debug_str", Exists: false, Data: []byte{3}},
	}
}

func TestApplyUpdatesAndAdds(t *testing.T) {
	fake := &fakeSplicer{}
	if err := Apply(fake, sections()); err != nil {
		t.Fatal(err)
	}
	if len(fake.updated) != 2 {
		t.Errorf("updated %v", fake.updated)
	}
	// A section the object never had goes straight to add.
	if len(fake.added) != 1 || fake.added[0] != ".debug_str" {
		t.Errorf("added %v", fake.added)
	}
}

func TestApplyFallsBackToAdd(t *testing.T) {
	fake := &fakeSplicer{failUpdate: map[string]bool{".debug_info": true}}
	if err := Apply(fake, sections()); err != nil {
		t.Fatal(err)
	}
	for _, name := range fake.added {
		if name == ".debug_info" {
			return
		}
	}
	t.Errorf("no add fallback for .debug_info: added %v", fake.added)
}

func TestApplyFatalWhenBothFail(t *testing.T) {
	fake := &fakeSplicer{
		failUpdate: map[string]bool{".debug_info": true},
		failAdd:    map[string]bool{".debug_info": true},
	}
	if err := Apply(fake, sections()); err == nil {
		t.Fatal("expected an error when update and add both fail")
	}
}

func TestWriteDir(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "sections")
	if err := WriteDir(out, sections()); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"debug_info", "debug_abbrev", "debug_str"} {
		data, err := os.ReadFile(filepath.Join(out, name))
		if err != nil {
			t.Errorf("missing %s: %v", name, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}
