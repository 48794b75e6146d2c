// Package die models DWARF debugging information entries in a form
// that can be both parsed from and serialized to the .debug_info,
// .debug_abbrev and .debug_str sections of an object file.
//
// Entries are kept in a dense arena per compilation unit and referenced
// by index; attribute values are a tagged variant, never a bare
// interface value. The serializer regenerates abbreviation tables and
// the string pool from the entries actually present, so a forest can be
// freely mutated between a Parse and a Serialize call.
package die
