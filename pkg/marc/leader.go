package marc

import "fmt"

// LeaderLength is the fixed size of a MARC-21 leader in bytes.
const LeaderLength = 24

// Bibliographic levels stored in leader byte 7.
const (
	BibliographicLevelArticle    = 'a' // article / monograph component part
	BibliographicLevelSerialPart = 'b' // serial component part
	BibliographicLevelSerial     = 's' // serial
	bibliographicLevelOffset     = 7
	recordTypeOffset             = 6
	electronicResourceRecordType = 'm' // computer file / electronic resource
)

// Leader is the fixed 24-byte header of a MARC-21 record. The record length
// (bytes 0-4) and base address (bytes 12-16) are recomputed by the Writer, so
// mutations only need to touch the flag positions.
type Leader []byte

// NewLeader returns a blank leader with sensible defaults for a freshly
// constructed record.
func NewLeader() Leader {
	return Leader([]byte("00000nam a22000002  4500"))
}

// ParseLeader validates the length of a raw leader and copies it.
func ParseLeader(raw []byte) (Leader, error) {
	if len(raw) != LeaderLength {
		return nil, fmt.Errorf("leader must be exactly %d bytes, got %d", LeaderLength, len(raw))
	}
	return append(Leader(nil), raw...), nil
}

// Clone returns an independent copy of the leader.
func (l Leader) Clone() Leader {
	return append(Leader(nil), l...)
}

// At returns the leader byte at the given position.
func (l Leader) At(pos int) byte {
	return l[pos]
}

// Set overwrites the leader byte at the given position.
func (l Leader) Set(pos int, b byte) {
	l[pos] = b
}

// BibliographicLevel returns leader byte 7.
func (l Leader) BibliographicLevel() byte {
	return l[bibliographicLevelOffset]
}

// SetBibliographicLevel overwrites leader byte 7.
func (l Leader) SetBibliographicLevel(level byte) {
	l[bibliographicLevelOffset] = level
}

// IsSerial reports whether the leader flags the record as a serial.
func (l Leader) IsSerial() bool {
	return l.BibliographicLevel() == BibliographicLevelSerial
}

// IsArticle reports whether the leader flags the record as an article.
func (l Leader) IsArticle() bool {
	return l.BibliographicLevel() == BibliographicLevelArticle
}

// IsElectronicResource reports whether leader byte 6 marks the record as an
// electronic resource.
func (l Leader) IsElectronicResource() bool {
	return l[recordTypeOffset] == electronicResourceRecordType
}
