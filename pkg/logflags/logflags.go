// Package logflags routes the per-component loggers used across
// dwarf-writer. Components are enabled with a comma-separated spec
// ("merge,decoder") and share one logrus backend.
package logflags

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	merge   = false
	dwarf   = false
	decoder = false
	elf     = false
	splice  = false

	logOut io.Writer
)

func makeLogger(flag bool, fields logrus.Fields) Logger {
	lg := logrus.New()
	lg.Formatter = textFormatter()
	if logOut != nil {
		lg.Out = logOut
	} else {
		lg.Out = defaultOut()
	}
	lg.Level = logrus.WarnLevel
	if flag {
		lg.Level = logrus.DebugLevel
	}
	return &logrusLogger{lg.WithFields(fields)}
}

func defaultOut() io.Writer {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return colorable.NewColorableStderr()
	}
	return os.Stderr
}

func textFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		ForceColors:   isatty.IsTerminal(os.Stderr.Fd()),
		FullTimestamp: false,
	}
}

// Merge returns true if the merge engine should log.
func Merge() bool {
	return merge
}

// MergeLogger returns a logger for the merge engine.
func MergeLogger() Logger {
	return makeLogger(merge, logrus.Fields{"layer": "merge"})
}

// DWARF returns true if the DWARF parser/serializer should log.
func DWARF() bool {
	return dwarf
}

// DWARFLogger returns a logger for the DWARF wire codec.
func DWARFLogger() Logger {
	return makeLogger(dwarf, logrus.Fields{"layer": "dwarf"})
}

// DecoderLogger returns a logger for the fact decoders.
func DecoderLogger() Logger {
	return makeLogger(decoder, logrus.Fields{"layer": "decoder"})
}

// ElfLogger returns a logger for ELF section and symbol handling.
func ElfLogger() Logger {
	return makeLogger(elf, logrus.Fields{"layer": "elf"})
}

// SpliceLogger returns a logger for external tool invocations.
func SpliceLogger() Logger {
	return makeLogger(splice, logrus.Fields{"layer": "splice"})
}

var errLogDestRequiresOutput = errors.New("--log-dest specified without --log-output or -v")

// Setup enables components from the comma-separated logspec. verbose
// turns every component on. logDest redirects output to a file.
func Setup(verbose bool, logspec, logDest string) error {
	if logDest != "" {
		if !verbose && logspec == "" {
			return errLogDestRequiresOutput
		}
		f, err := os.Create(logDest)
		if err != nil {
			return fmt.Errorf("could not open log destination: %w", err)
		}
		logOut = f
	}
	if verbose {
		merge, dwarf, decoder, elf, splice = true, true, true, true, true
	}
	for _, logcmd := range strings.Split(logspec, ",") {
		switch logcmd {
		case "merge":
			merge = true
		case "dwarf":
			dwarf = true
		case "decoder":
			decoder = true
		case "elf":
			elf = true
		case "splice":
			splice = true
		case "":
		default:
			return fmt.Errorf("unknown log component %q", logcmd)
		}
	}
	return nil
}

// Close releases the log destination, if one was opened.
func Close() {
	if c, ok := logOut.(io.Closer); ok {
		c.Close()
	}
}
