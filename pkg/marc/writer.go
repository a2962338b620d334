package marc

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// maxRecordLength bounds what the 5-digit record length field of the leader
// can represent.
const maxRecordLength = 100000

// Writer serializes records back into the MARC-21 binary form. Serialization
// compacts the data area: fields are laid out contiguously in directory
// order, so bytes orphaned by earlier mutations are dropped here.
type Writer struct {
	w io.Writer
}

// NewWriter returns a writer emitting records to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// NewFileWriter creates (or truncates) the file at path and returns a writer
// to it along with the file for closing.
func NewFileWriter(path string) (*Writer, *os.File, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open MARC output: %w", err)
	}
	return &Writer{w: file}, file, nil
}

// Serialize renders the record in its binary form.
func Serialize(record *Record) ([]byte, error) {
	var directory strings.Builder
	var data strings.Builder

	for i := 0; i < record.NumFields(); i++ {
		contents := record.GetFieldData(i)
		entry := DirectoryEntry{
			Tag:         record.GetTag(i),
			FieldLength: len(contents) + 1,
			FieldOffset: data.Len(),
		}
		if entry.FieldLength >= MaxFieldLength {
			return nil, fmt.Errorf("field %s is too long to serialize (%d bytes)", entry.Tag, entry.FieldLength)
		}
		if entry.FieldOffset >= MaxFieldOffset {
			return nil, fmt.Errorf("field %s starts past the maximum data offset", entry.Tag)
		}
		directory.WriteString(entry.String())
		data.WriteString(contents)
		data.WriteByte(FieldTerminator)
	}

	baseAddress := LeaderLength + directory.Len() + 1
	recordLength := baseAddress + data.Len() + 1
	if recordLength >= maxRecordLength {
		return nil, fmt.Errorf("record %q is too long to serialize (%d bytes)", record.GetControlNumber(), recordLength)
	}

	leader := record.Leader.Clone()
	copy(leader[0:5], fmt.Sprintf("%05d", recordLength))
	copy(leader[12:17], fmt.Sprintf("%05d", baseAddress))

	out := make([]byte, 0, recordLength)
	out = append(out, leader...)
	out = append(out, directory.String()...)
	out = append(out, FieldTerminator)
	out = append(out, data.String()...)
	out = append(out, RecordTerminator)
	return out, nil
}

// Write serializes one record to the underlying stream.
func (w *Writer) Write(record *Record) error {
	blob, err := Serialize(record)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(blob); err != nil {
		return fmt.Errorf("writing record %q: %w", record.GetControlNumber(), err)
	}
	return nil
}
