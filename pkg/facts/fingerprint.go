package facts

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is a structural hash of a type: two types with the same
// kind, name, size and (recursively) children fingerprint alike. The
// merge engine uses it to intern type entries.
type Fingerprint uint64

// Fingerprint computes the structural hash. Named structs, unions and
// typedefs hash nominally: the name stands in for the body after its
// first occurrence, so cyclic types (a struct holding a pointer to
// itself) terminate and hash the same from whichever type the walk
// starts.
func (t *Type) Fingerprint() Fingerprint {
	h := xxhash.New()
	w := &fpWalker{h: h, names: make(map[string]bool), seen: make(map[*Type]bool)}
	w.hash(t)
	return Fingerprint(h.Sum64())
}

type fpWalker struct {
	h     *xxhash.Digest
	names map[string]bool
	seen  map[*Type]bool
}

func (w *fpWalker) hash(t *Type) {
	if t == nil {
		w.uint(uint64(KindVoid))
		return
	}

	w.uint(uint64(t.Kind))
	w.str(t.Name)

	if t.Name != "" {
		switch t.Kind {
		case KindStruct, KindUnion, KindTypedef:
			key := string(rune(t.Kind)) + t.Name
			if w.names[key] {
				return
			}
			w.names[key] = true
			// The body is hashed once, whichever type the walk
			// started from: identity guards set outside it must not
			// cut paths inside it short.
			outer := w.seen
			w.seen = make(map[*Type]bool)
			defer func() { w.seen = outer }()
		}
	}
	// Anonymous aggregates cannot name themselves, but guard against
	// malformed cyclic inputs all the same.
	if w.seen[t] {
		return
	}
	w.seen[t] = true

	if t.HasSize {
		w.uint(t.ByteSize)
	}
	w.uint(uint64(t.Encoding))
	for _, c := range t.Counts {
		w.uint(c)
	}
	if t.Elem != nil {
		w.hash(t.Elem)
	}
	for _, m := range t.Members {
		w.str(m.Name)
		w.uint(m.Offset)
		w.hash(m.Type)
	}
	for _, p := range t.Params {
		w.hash(p)
	}
}

func (w *fpWalker) uint(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.h.Write(b[:])
}

func (w *fpWalker) str(s string) {
	w.uint(uint64(len(s)))
	w.h.WriteString(s)
}
