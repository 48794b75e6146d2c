package leb128

// AppendUnsigned appends the ULEB128 encoding of x to dst and returns
// the extended slice.
func AppendUnsigned(dst []byte, x uint64) []byte {
	for x >= 0x80 {
		dst = append(dst, byte(x)|0x80)
		x >>= 7
	}
	return append(dst, byte(x))
}

// AppendSigned appends the SLEB128 encoding of x to dst and returns
// the extended slice.
func AppendSigned(dst []byte, x int64) []byte {
	for {
		b := byte(x) & 0x7f
		x >>= 7
		if (x == 0 && b&0x40 == 0) || (x == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// UnsignedLen returns the number of bytes AppendUnsigned emits for x.
func UnsignedLen(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}

// SignedLen returns the number of bytes AppendSigned emits for x.
func SignedLen(x int64) int {
	n := 0
	for {
		b := byte(x) & 0x7f
		x >>= 7
		n++
		if (x == 0 && b&0x40 == 0) || (x == -1 && b&0x40 != 0) {
			return n
		}
	}
}
