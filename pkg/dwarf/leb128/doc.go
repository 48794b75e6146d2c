// Package leb128 reads and writes the signed and unsigned Little
// Endian Base 128 integer formats used throughout the DWARF wire
// encoding (DWARF v4, section 7.6).
//
// Decoders work on byte slices and report the number of bytes
// consumed, zero meaning truncated input; encoders append to a slice
// in the manner of strconv.AppendInt. Malformed data is a return
// value, never a panic, so section parsers can wrap it in their own
// positioned errors.
package leb128
