package marc

import (
	"fmt"
	"strings"
)

// Fixed widths of a MARC-21 directory entry: a 3-byte tag followed by a
// 4-digit field length and a 5-digit field offset.
const (
	TagLength            = 3
	fieldLengthDigits    = 4
	fieldOffsetDigits    = 5
	DirectoryEntryLength = TagLength + fieldLengthDigits + fieldOffsetDigits

	// MaxFieldLength and MaxFieldOffset bound what the fixed-width digit
	// fields of an entry can represent.
	MaxFieldLength = 10000
	MaxFieldOffset = 100000
)

// DirectoryEntry describes where one field's contents live inside the data
// area of a record. FieldLength includes the trailing field terminator.
type DirectoryEntry struct {
	Tag         string
	FieldLength int
	FieldOffset int
}

// IsControlFieldEntry reports whether the entry belongs to a control field
// (tags 00X), which carry no indicators or subfields.
func (e DirectoryEntry) IsControlFieldEntry() bool {
	return strings.HasPrefix(e.Tag, "00")
}

// String renders the entry in its fixed-width binary form, without the
// directory terminator.
func (e DirectoryEntry) String() string {
	return fmt.Sprintf("%s%0*d%0*d", e.Tag, fieldLengthDigits, e.FieldLength, fieldOffsetDigits, e.FieldOffset)
}

func parseDigits(raw []byte) (int, error) {
	n := 0
	for _, b := range raw {
		if b < '0' || b > '9' {
			return 0, fmt.Errorf("non-digit byte 0x%02X in numeric field %q", b, raw)
		}
		n = n*10 + int(b-'0')
	}
	return n, nil
}

// ParseDirEntry decodes a single fixed-width directory entry.
func ParseDirEntry(raw []byte) (DirectoryEntry, error) {
	if len(raw) < DirectoryEntryLength {
		return DirectoryEntry{}, fmt.Errorf("directory entry too short: %d bytes, need %d", len(raw), DirectoryEntryLength)
	}

	length, err := parseDigits(raw[TagLength : TagLength+fieldLengthDigits])
	if err != nil {
		return DirectoryEntry{}, fmt.Errorf("bad field length: %w", err)
	}
	offset, err := parseDigits(raw[TagLength+fieldLengthDigits : DirectoryEntryLength])
	if err != nil {
		return DirectoryEntry{}, fmt.Errorf("bad field offset: %w", err)
	}

	return DirectoryEntry{
		Tag:         string(raw[:TagLength]),
		FieldLength: length,
		FieldOffset: offset,
	}, nil
}

// ParseDirEntries splits a directory blob into its entries. The blob must not
// include the directory terminator and its length must be a multiple of the
// entry width.
func ParseDirEntries(blob []byte) ([]DirectoryEntry, error) {
	if len(blob)%DirectoryEntryLength != 0 {
		return nil, fmt.Errorf("directory length %d is not a multiple of the entry width %d", len(blob), DirectoryEntryLength)
	}

	entries := make([]DirectoryEntry, 0, len(blob)/DirectoryEntryLength)
	for i := 0; i < len(blob); i += DirectoryEntryLength {
		entry, err := ParseDirEntry(blob[i : i+DirectoryEntryLength])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", len(entries), err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// FindField returns the index of the first entry with the given tag or
// FieldNotFound. Records hold a few dozen fields at most, so a linear scan
// is fine.
func FindField(tag string, entries []DirectoryEntry) int {
	for i := range entries {
		if entries[i].Tag == tag {
			return i
		}
	}
	return FieldNotFound
}

// FindFields returns the [start,end) range of the first run of entries with
// the given tag. start is FieldNotFound when the tag is absent.
func FindFields(tag string, entries []DirectoryEntry) (int, int) {
	start := FindField(tag, entries)
	if start == FieldNotFound {
		return FieldNotFound, FieldNotFound
	}
	end := start
	for end < len(entries) && entries[end].Tag == tag {
		end++
	}
	return start, end
}
