package marc

import (
	"fmt"
	"sort"
	"strings"
)

// FieldNotFound is the index sentinel returned by field lookups.
const FieldNotFound = -1

// localBlockHeaderPrefix marks the first field of an embedded local ("LOK")
// data block: blank indicators, then a $0 subfield starting with "000 ".
const localBlockHeaderPrefix = "  \x1F" + "0000"

// Record is one MARC-21 bibliographic record: a leader, an ordered directory
// and a raw data buffer holding the concatenated field contents, each
// terminated by the field terminator.
//
// The data buffer is an append-only arena: UpdateField and InsertField append
// new bytes and repoint the directory, leaving the old bytes orphaned until
// the record is re-serialized. Records are short-lived in the batch tools, so
// the growth is bounded by a single record's mutation chain.
type Record struct {
	Leader  Leader
	entries []DirectoryEntry
	rawData []byte
}

// Field is a (tag, contents) view of one field, used by merge logic.
// Contents excludes the trailing field terminator.
type Field struct {
	Tag      string
	Contents string
}

// Less orders fields by tag, then content, which is the ordering sorted-merge
// algorithms rely on.
func (f Field) Less(other Field) bool {
	if f.Tag != other.Tag {
		return f.Tag < other.Tag
	}
	return f.Contents < other.Contents
}

// IsControlField reports whether the field's tag denotes a control field.
func (f Field) IsControlField() bool {
	return strings.HasPrefix(f.Tag, "00")
}

// NewRecord returns an empty record with the given leader.
func NewRecord(leader Leader) *Record {
	return &Record{Leader: leader.Clone()}
}

// Clone returns a deep copy; the copy owns its own directory and data buffer.
func (r *Record) Clone() *Record {
	return &Record{
		Leader:  r.Leader.Clone(),
		entries: append([]DirectoryEntry(nil), r.entries...),
		rawData: append([]byte(nil), r.rawData...),
	}
}

// NumFields returns the number of directory entries.
func (r *Record) NumFields() int {
	return len(r.entries)
}

// Entries returns the directory. The slice aliases the record's directory and
// must not be modified.
func (r *Record) Entries() []DirectoryEntry {
	return r.entries
}

// GetTag returns the tag of the entry at index, or "" when out of range.
func (r *Record) GetTag(index int) string {
	if index < 0 || index >= len(r.entries) {
		return ""
	}
	return r.entries[index].Tag
}

// GetFieldIndex returns the index of the first field with the given tag, or
// FieldNotFound.
func (r *Record) GetFieldIndex(tag string) int {
	return FindField(tag, r.entries)
}

// GetFieldIndices returns the indices of all fields with the given tag.
func (r *Record) GetFieldIndices(tag string) []int {
	var indices []int
	for i := range r.entries {
		if r.entries[i].Tag == tag {
			indices = append(indices, i)
		}
	}
	return indices
}

// GetFieldData returns the contents of the field at index with the trailing
// field terminator stripped, or "" when the index is out of range.
func (r *Record) GetFieldData(index int) string {
	if index < 0 || index >= len(r.entries) {
		return ""
	}
	entry := r.entries[index]
	return string(r.rawData[entry.FieldOffset : entry.FieldOffset+entry.FieldLength-1])
}

// GetFieldDataByTag returns the contents of the first field with the given
// tag, or "" when the tag is absent.
func (r *Record) GetFieldDataByTag(tag string) string {
	return r.GetFieldData(r.GetFieldIndex(tag))
}

// GetSubfields parses the contents of the field at index.
func (r *Record) GetSubfields(index int) Subfields {
	return ParseSubfields(r.GetFieldData(index))
}

// GetControlNumber returns the record's control number, held by the first
// field, conventionally tag "001".
func (r *Record) GetControlNumber() string {
	return r.GetFieldData(0)
}

// Fields returns a (tag, contents) snapshot of all fields in directory order.
func (r *Record) Fields() []Field {
	fields := make([]Field, 0, len(r.entries))
	for i := range r.entries {
		fields = append(fields, Field{Tag: r.entries[i].Tag, Contents: r.GetFieldData(i)})
	}
	return fields
}

// UpdateField replaces the contents of the field at index. The new contents
// are appended to the data arena and the directory entry is repointed; the
// old bytes stay orphaned until the record is re-serialized.
func (r *Record) UpdateField(index int, newContents string) error {
	if index < 0 || index >= len(r.entries) {
		return fmt.Errorf("field index %d out of range (record has %d fields)", index, len(r.entries))
	}
	r.entries[index].FieldOffset = len(r.rawData)
	r.entries[index].FieldLength = len(newContents) + 1
	r.rawData = append(r.rawData, newContents...)
	r.rawData = append(r.rawData, FieldTerminator)
	return nil
}

// InsertField adds a new field at the tag-sorted insertion point: after any
// existing fields with the same tag. It returns the new field's index.
func (r *Record) InsertField(tag, contents string) int {
	insertAt := 0
	for insertAt < len(r.entries) && tag >= r.entries[insertAt].Tag {
		insertAt++
	}

	entry := DirectoryEntry{Tag: tag, FieldLength: len(contents) + 1, FieldOffset: len(r.rawData)}
	r.rawData = append(r.rawData, contents...)
	r.rawData = append(r.rawData, FieldTerminator)

	r.entries = append(r.entries, DirectoryEntry{})
	copy(r.entries[insertAt+1:], r.entries[insertAt:])
	r.entries[insertAt] = entry
	return insertAt
}

// InsertSubfield adds a new data field holding a single subfield.
func (r *Record) InsertSubfield(tag string, code byte, value string, indicator1, indicator2 byte) int {
	contents := string([]byte{indicator1, indicator2, SubfieldDelimiter, code}) + value
	return r.InsertField(tag, contents)
}

// AppendField adds a field at the end of the directory regardless of tag
// order. Merge logic uses this to build a record in its own order.
func (r *Record) AppendField(tag, contents string) {
	r.entries = append(r.entries, DirectoryEntry{Tag: tag, FieldLength: len(contents) + 1, FieldOffset: len(r.rawData)})
	r.rawData = append(r.rawData, contents...)
	r.rawData = append(r.rawData, FieldTerminator)
}

// DeleteField removes the directory entry at index. The field's bytes stay in
// the arena; serialization drops them.
func (r *Record) DeleteField(index int) {
	r.entries = append(r.entries[:index], r.entries[index+1:]...)
}

// DeleteFields removes the directory entries covered by the given [start,end)
// ranges. Ranges must be ascending and non-overlapping.
func (r *Record) DeleteFields(ranges [][2]int) {
	kept := make([]DirectoryEntry, 0, len(r.entries))
	copyStart := 0
	for _, blk := range ranges {
		kept = append(kept, r.entries[copyStart:blk[0]]...)
		copyStart = blk[1]
	}
	kept = append(kept, r.entries[copyStart:]...)
	r.entries = kept
}

// DeleteSubfield removes all subfields with the given code from the field at
// index and writes the field back.
func (r *Record) DeleteSubfield(index int, code byte) error {
	subfields := r.GetSubfields(index)
	subfields.Erase(code)
	return r.UpdateField(index, subfields.String())
}

// FilterTags removes every field whose tag is in dropTags.
func (r *Record) FilterTags(dropTags map[string]bool) {
	var deleted [][2]int
	for i := 0; i < len(r.entries); {
		if !dropTags[r.entries[i].Tag] {
			i++
			continue
		}
		start := i
		for i < len(r.entries) && r.entries[i].Tag == r.entries[start].Tag {
			i++
		}
		deleted = append(deleted, [2]int{start, i})
	}
	r.DeleteFields(deleted)
}

// ExtractFirstSubfield returns the value of the given subfield in the first
// field with the given tag, or "" if either is missing.
func (r *Record) ExtractFirstSubfield(tag string, code byte) string {
	index := r.GetFieldIndex(tag)
	if index == FieldNotFound {
		return ""
	}
	subfields := r.GetSubfields(index)
	return subfields.FirstSubfieldValue(code)
}

// ExtractSubfield collects the values of the given subfield code across every
// field with the given tag.
func (r *Record) ExtractSubfield(tag string, code byte) []string {
	return r.ExtractSubfields(tag, string(code))
}

// ExtractSubfields collects the values of all subfields whose code occurs in
// codes across every field with the given tag.
func (r *Record) ExtractSubfields(tag string, codes string) []string {
	var values []string
	for index := r.GetFieldIndex(tag); index != FieldNotFound && index < len(r.entries) && r.entries[index].Tag == tag; index++ {
		subfields := r.GetSubfields(index)
		values = append(values, subfields.ExtractSubfields(codes)...)
	}
	return values
}

// ExtractAllSubfields collects the values of all subfields in the fields named
// by the colon-separated tag list, skipping subfield codes in ignoreCodes.
func (r *Record) ExtractAllSubfields(tags string, ignoreCodes string) []string {
	var values []string
	for _, tag := range strings.Split(tags, ":") {
		for index := r.GetFieldIndex(tag); index != FieldNotFound && index < len(r.entries) && r.entries[index].Tag == tag; index++ {
			subfields := r.GetSubfields(index)
			for _, subfield := range subfields.All() {
				if strings.IndexByte(ignoreCodes, subfield.Code) == -1 {
					values = append(values, subfield.Value)
				}
			}
		}
	}
	return values
}

// FindAllLocalDataBlocks partitions the record's "LOK" fields into local data
// blocks. A block starts at a field whose first subfield value begins with
// "000 ". A record without LOK fields has zero blocks.
func (r *Record) FindAllLocalDataBlocks() [][2]int {
	blockStart := r.GetFieldIndex("LOK")
	if blockStart == FieldNotFound {
		return nil
	}

	var blocks [][2]int
	end := blockStart + 1
	for end < len(r.entries) {
		if strings.HasPrefix(r.GetFieldData(end), localBlockHeaderPrefix) {
			blocks = append(blocks, [2]int{blockStart, end})
			blockStart = end
		}
		end++
	}
	return append(blocks, [2]int{blockStart, end})
}

func indicatorsMatch(pattern string, indicators string) bool {
	if pattern[0] != '?' && pattern[0] != indicators[0] {
		return false
	}
	if pattern[1] != '?' && pattern[1] != indicators[1] {
		return false
	}
	return true
}

// FindFieldsInLocalBlock returns the indices of the local fields inside one
// local block whose embedded tag equals tag and whose indicator characters
// match the 2-character pattern, where '?' matches anything.
func (r *Record) FindFieldsInLocalBlock(tag, indicatorPattern string, block [2]int) ([]int, error) {
	if len(indicatorPattern) != 2 {
		return nil, fmt.Errorf("indicator pattern must be precisely 2 characters long, got %q", indicatorPattern)
	}

	fieldPrefix := "  \x1F" + "0" + tag
	var indices []int
	for index := block[0]; index < block[1]; index++ {
		contents := r.GetFieldData(index)
		if !strings.HasPrefix(contents, fieldPrefix) {
			continue
		}
		if len(contents) < 9 || !indicatorsMatch(indicatorPattern, contents[7:9]) {
			continue
		}
		indices = append(indices, index)
	}
	return indices, nil
}

// Combine appends the other record's fields to this record, skipping the
// other record's first field since the combined record keeps its own control
// number. Offsets are shifted past the current data arena.
func (r *Record) Combine(other *Record) {
	if len(other.entries) == 0 {
		return
	}
	offset := len(r.rawData)
	r.rawData = append(r.rawData, other.rawData...)

	for _, entry := range other.entries[1:] {
		entry.FieldOffset += offset
		r.entries = append(r.entries, entry)
	}
}

// ReTag renames every field carrying the tag from to the tag to. The
// directory may need re-sorting afterwards if tag order matters to the
// caller.
func (r *Record) ReTag(from, to string) {
	for i := range r.entries {
		if r.entries[i].Tag == from {
			r.entries[i].Tag = to
		}
	}
}

// SortFieldRange sorts the fields in [start,end) by tag, then contents.
func (r *Record) SortFieldRange(start, end int) {
	type taggedContents struct {
		field Field
		entry DirectoryEntry
	}
	run := make([]taggedContents, 0, end-start)
	for i := start; i < end; i++ {
		run = append(run, taggedContents{field: Field{Tag: r.entries[i].Tag, Contents: r.GetFieldData(i)}, entry: r.entries[i]})
	}
	sort.SliceStable(run, func(i, j int) bool { return run[i].field.Less(run[j].field) })
	for i := range run {
		r.entries[start+i] = run[i].entry
	}
}

// GetLanguage returns the first 041$a value, or defaultCode if absent.
func (r *Record) GetLanguage(defaultCode string) string {
	if language := r.ExtractFirstSubfield("041", 'a'); language != "" {
		return language
	}
	return defaultCode
}

// GetLanguageCode returns the 3-letter language code at bytes 35-37 of the
// 008 control field, or "" if missing or too short.
func (r *Record) GetLanguageCode() string {
	index := r.GetFieldIndex("008")
	if index == FieldNotFound {
		return ""
	}
	contents := r.GetFieldData(index)
	if len(contents) < 38 {
		return ""
	}
	return contents[35:38]
}
