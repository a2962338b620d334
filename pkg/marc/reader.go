package marc

import (
	"fmt"
	"io"
	"os"
)

// Reader streams MARC-21 records from a binary file. It reads directly from
// the file so that Tell/Seek offsets always name record boundaries, which the
// merge tool relies on to revisit partner records.
type Reader struct {
	file   *os.File
	offset int64
}

// NewReader opens the file at path for sequential record reading.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open MARC input: %w", err)
	}
	return &Reader{file: file}, nil
}

// Tell returns the offset of the next record to be read.
func (r *Reader) Tell() int64 {
	return r.offset
}

// Seek positions the reader at the given offset, which must be a record
// boundary previously obtained from Tell.
func (r *Reader) Seek(offset int64) error {
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek to %d: %w", offset, err)
	}
	r.offset = offset
	return nil
}

// Rewind positions the reader back at the first record.
func (r *Reader) Rewind() error {
	return r.Seek(0)
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ProcessRecords invokes visit for every remaining record of the stream.
// Returning an error from visit stops the pass.
func (r *Reader) ProcessRecords(visit func(*Record) error) error {
	for {
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := visit(record); err != nil {
			return err
		}
	}
}

// Read decodes the next record. It returns io.EOF at the end of the stream
// and a descriptive error for malformed input; the caller decides whether to
// skip or abort.
func (r *Reader) Read() (*Record, error) {
	leaderBytes := make([]byte, LeaderLength)
	if _, err := io.ReadFull(r.file, leaderBytes); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("offset %d: reading leader: %w", r.offset, err)
	}

	recordLength, err := parseDigits(leaderBytes[0:5])
	if err != nil {
		return nil, fmt.Errorf("offset %d: bad record length: %w", r.offset, err)
	}
	baseAddress, err := parseDigits(leaderBytes[12:17])
	if err != nil {
		return nil, fmt.Errorf("offset %d: bad base address: %w", r.offset, err)
	}
	if recordLength < LeaderLength+2 || baseAddress <= LeaderLength || baseAddress >= recordLength {
		return nil, fmt.Errorf("offset %d: inconsistent record length %d / base address %d", r.offset, recordLength, baseAddress)
	}

	rest := make([]byte, recordLength-LeaderLength)
	if _, err := io.ReadFull(r.file, rest); err != nil {
		return nil, fmt.Errorf("offset %d: truncated record: %w", r.offset, err)
	}
	if rest[len(rest)-1] != RecordTerminator {
		return nil, fmt.Errorf("offset %d: missing record terminator", r.offset)
	}

	directoryEnd := baseAddress - LeaderLength - 1
	if rest[directoryEnd] != FieldTerminator {
		return nil, fmt.Errorf("offset %d: missing directory terminator", r.offset)
	}

	leader, err := ParseLeader(leaderBytes)
	if err != nil {
		return nil, fmt.Errorf("offset %d: %w", r.offset, err)
	}
	entries, err := ParseDirEntries(rest[:directoryEnd])
	if err != nil {
		return nil, fmt.Errorf("offset %d: parsing directory: %w", r.offset, err)
	}

	rawData := append([]byte(nil), rest[directoryEnd+1:len(rest)-1]...)
	for _, entry := range entries {
		// A field length covers at least the terminator byte.
		if entry.FieldLength < 1 {
			return nil, fmt.Errorf("offset %d: field %s has zero length", r.offset, entry.Tag)
		}
		if entry.FieldOffset+entry.FieldLength > len(rawData) {
			return nil, fmt.Errorf("offset %d: field %s points past the data area", r.offset, entry.Tag)
		}
	}

	r.offset += int64(recordLength)
	return &Record{Leader: leader, entries: entries, rawData: rawData}, nil
}
