// Package splice writes section contents back out: either as files in
// a directory the caller splices later, or into an ELF object through
// an external objcopy-compatible tool.
package splice

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/immunant/dwarf-writer/pkg/logflags"
)

// Splicer updates or adds one section of a target object. The
// external tool is injected behind this interface so tests can swap
// in a recorder.
type Splicer interface {
	UpdateSection(name, contentPath string) error
	AddSection(name, contentPath string) error
}

// Objcopy drives a binutils-style objcopy over one target file.
type Objcopy struct {
	tool   string
	target string
	log    logflags.Logger
}

// NewObjcopy resolves the splice tool and binds it to target. An
// empty tool path searches $PATH for "objcopy".
func NewObjcopy(tool, target string) (*Objcopy, error) {
	if tool == "" {
		tool = "objcopy"
	}
	path, err := exec.LookPath(tool)
	if err != nil {
		return nil, fmt.Errorf("splice tool %q not found: %w", tool, err)
	}
	return &Objcopy{tool: path, target: target, log: logflags.SpliceLogger()}, nil
}

// UpdateSection replaces the contents of an existing section.
func (o *Objcopy) UpdateSection(name, contentPath string) error {
	return o.run("--update-section", name+"="+contentPath)
}

// AddSection appends a section that does not exist yet.
func (o *Objcopy) AddSection(name, contentPath string) error {
	return o.run("--add-section", name+"="+contentPath)
}

func (o *Objcopy) run(args ...string) error {
	args = append(args, o.target)
	o.log.Debugf("%s %v", o.tool, args)
	cmd := exec.Command(o.tool, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w", o.tool, args, err)
	}
	return nil
}

// Section is one named blob destined for the target.
type Section struct {
	// Name is the ELF section name, ".debug_info" and friends.
	Name string
	// Exists records whether the input object already carried the
	// section; it decides update versus add.
	Exists bool
	Data   []byte
}

// WriteDir writes each section into dir under its name with the
// leading dot dropped, the layout callers of the section-file mode
// expect.
func WriteDir(dir string, sections []Section) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, s := range sections {
		name := filepath.Join(dir, s.Name[1:])
		if err := os.WriteFile(name, s.Data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Apply pushes every section through the splicer: update first, then
// the add-section fallback for sections the object did not have. The
// blobs are staged in a temporary directory that is removed on
// return.
func Apply(sp Splicer, sections []Section) error {
	log := logflags.SpliceLogger()
	stage, err := os.MkdirTemp("", "dwarf-writer-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(stage)

	for _, s := range sections {
		path := filepath.Join(stage, s.Name[1:])
		if err := os.WriteFile(path, s.Data, 0o644); err != nil {
			return err
		}
		if s.Exists {
			if err := sp.UpdateSection(s.Name, path); err == nil {
				continue
			} else {
				log.WithError(err).Warnf("update of %s failed, trying add", s.Name)
			}
		}
		if err := sp.AddSection(s.Name, path); err != nil {
			return fmt.Errorf("could not splice %s: %w", s.Name, err)
		}
	}
	return nil
}
