package marc

import (
	"regexp"
	"strings"
)

// MARC-21 structural delimiter bytes.
const (
	SubfieldDelimiter = 0x1F
	FieldTerminator   = 0x1E
	RecordTerminator  = 0x1D
)

// Subfield is a single code/value pair inside a data field.
type Subfield struct {
	Code  byte
	Value string
}

// Subfields is the parsed form of one data field's contents: two indicator
// characters followed by delimited subfields. A Subfields value is transient;
// mutations must be written back into the owning record with UpdateField.
type Subfields struct {
	Indicator1 byte
	Indicator2 byte
	subfields  []Subfield
}

// NewSubfields returns an empty subfield list with blank indicators.
func NewSubfields() Subfields {
	return Subfields{Indicator1: ' ', Indicator2: ' '}
}

// ParseSubfields decodes the contents of a data field. Callers must not pass
// control field contents; those carry neither indicators nor subfields.
func ParseSubfields(contents string) Subfields {
	s := NewSubfields()
	if len(contents) >= 2 {
		s.Indicator1 = contents[0]
		s.Indicator2 = contents[1]
		contents = contents[2:]
	}

	for _, group := range strings.Split(contents, string(rune(SubfieldDelimiter))) {
		if group == "" {
			continue
		}
		s.subfields = append(s.subfields, Subfield{Code: group[0], Value: group[1:]})
	}
	return s
}

// Len returns the number of subfields.
func (s *Subfields) Len() int {
	return len(s.subfields)
}

// All returns the subfields in order. The returned slice aliases the
// internal list and must not be modified.
func (s *Subfields) All() []Subfield {
	return s.subfields
}

// HasSubfield reports whether at least one subfield with the given code
// exists. Use this to distinguish "absent" from "present but empty", which
// FirstSubfieldValue cannot.
func (s *Subfields) HasSubfield(code byte) bool {
	for _, subfield := range s.subfields {
		if subfield.Code == code {
			return true
		}
	}
	return false
}

// FirstSubfieldValue returns the value of the first subfield with the given
// code, or the empty string if there is none.
func (s *Subfields) FirstSubfieldValue(code byte) string {
	for _, subfield := range s.subfields {
		if subfield.Code == code {
			return subfield.Value
		}
	}
	return ""
}

// ExtractSubfields returns the values of all subfields whose code occurs in
// codes, preserving field order.
func (s *Subfields) ExtractSubfields(codes string) []string {
	var values []string
	for _, subfield := range s.subfields {
		if strings.IndexByte(codes, subfield.Code) != -1 {
			values = append(values, subfield.Value)
		}
	}
	return values
}

// ExtractSubfieldWithPattern returns the value of the first subfield with the
// given code whose value matches the pattern.
func (s *Subfields) ExtractSubfieldWithPattern(code byte, pattern *regexp.Regexp) (string, bool) {
	for _, subfield := range s.subfields {
		if subfield.Code == code && pattern.MatchString(subfield.Value) {
			return subfield.Value, true
		}
	}
	return "", false
}

// AddSubfield appends a subfield to the end of the list.
func (s *Subfields) AddSubfield(code byte, value string) {
	s.subfields = append(s.subfields, Subfield{Code: code, Value: value})
}

// Erase removes all subfields with the given code.
func (s *Subfields) Erase(code byte) {
	kept := s.subfields[:0]
	for _, subfield := range s.subfields {
		if subfield.Code != code {
			kept = append(kept, subfield)
		}
	}
	s.subfields = kept
}

// ReplaceAllSubfields rewrites every subfield with the given code whose value
// equals oldValue. It reports whether anything changed.
func (s *Subfields) ReplaceAllSubfields(code byte, oldValue, newValue string) bool {
	replaced := false
	for i := range s.subfields {
		if s.subfields[i].Code == code && s.subfields[i].Value == oldValue {
			s.subfields[i].Value = newValue
			replaced = true
		}
	}
	return replaced
}

// ReplaceFirstSubfield rewrites the first subfield with the given code, or
// appends one if the code is absent.
func (s *Subfields) ReplaceFirstSubfield(code byte, value string) {
	for i := range s.subfields {
		if s.subfields[i].Code == code {
			s.subfields[i].Value = value
			return
		}
	}
	s.AddSubfield(code, value)
}

// String re-serializes the indicators and subfields. Unmodified lists
// round-trip byte-exactly through ParseSubfields.
func (s Subfields) String() string {
	var sb strings.Builder
	sb.WriteByte(s.Indicator1)
	sb.WriteByte(s.Indicator2)
	for _, subfield := range s.subfields {
		sb.WriteByte(SubfieldDelimiter)
		sb.WriteByte(subfield.Code)
		sb.WriteString(subfield.Value)
	}
	return sb.String()
}
