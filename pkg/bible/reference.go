// Package bible resolves bible references to the 7-digit range codes used by
// the search index. A code is a 2-digit book code followed by a 3-digit
// chapter and a 2-digit verse; queries use inclusive code ranges.
package bible

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	maxChapter = 999
	maxVerse   = 99
)

// Range is an inclusive range of bible codes.
type Range struct {
	Start string
	End   string
}

// FullBookRange covers every chapter and verse of a book.
func FullBookRange(bookCode string) Range {
	return Range{Start: bookCode + "00000", End: bookCode + "99999"}
}

func makeCode(bookCode string, chapter, verse int) string {
	return fmt.Sprintf("%s%03d%02d", bookCode, chapter, verse)
}

// parseVerse accepts a verse number with an optional trailing letter
// ("28a"), which liturgical references use for partial verses.
func parseVerse(s string) (int, error) {
	if len(s) > 1 {
		last := s[len(s)-1]
		if last >= 'a' && last <= 'z' {
			s = s[:len(s)-1]
		}
	}
	verse, err := strconv.Atoi(s)
	if err != nil || verse < 0 || verse > maxVerse {
		return 0, fmt.Errorf("bad verse %q", s)
	}
	return verse, nil
}

func parseChapter(s string) (int, error) {
	chapter, err := strconv.Atoi(s)
	if err != nil || chapter < 1 || chapter > maxChapter {
		return 0, fmt.Errorf("bad chapter %q", s)
	}
	return chapter, nil
}

// chapterAndVerse parses "C" or "C,V". The bool reports whether a verse was
// present.
func chapterAndVerse(s string) (int, int, bool, error) {
	parts := strings.SplitN(s, ",", 2)
	chapter, err := parseChapter(parts[0])
	if err != nil {
		return 0, 0, false, err
	}
	if len(parts) == 1 {
		return chapter, 0, false, nil
	}
	verse, err := parseVerse(parts[1])
	if err != nil {
		return 0, 0, false, err
	}
	return chapter, verse, true, nil
}

// ParseReference parses a chapters-and-verses expression for the given book
// code into code ranges. Supported forms, with ',' separating chapter from
// verse: "C", "C1-C2", "C,V", "C,V1-V2" and "C1,V1-C2,V2". Multiple
// expressions may be joined with ';'.
func ParseReference(chaptersAndVerses, bookCode string) ([]Range, error) {
	var ranges []Range
	for _, expr := range strings.Split(chaptersAndVerses, ";") {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			return nil, fmt.Errorf("empty reference component in %q", chaptersAndVerses)
		}
		r, err := parseSingle(expr, bookCode)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

func parseSingle(expr, bookCode string) (Range, error) {
	bounds := strings.Split(expr, "-")
	switch len(bounds) {
	case 1:
		chapter, verse, haveVerse, err := chapterAndVerse(bounds[0])
		if err != nil {
			return Range{}, err
		}
		if !haveVerse {
			return Range{Start: makeCode(bookCode, chapter, 0), End: makeCode(bookCode, chapter, maxVerse)}, nil
		}
		code := makeCode(bookCode, chapter, verse)
		return Range{Start: code, End: code}, nil
	case 2:
		startChapter, startVerse, startHasVerse, err := chapterAndVerse(bounds[0])
		if err != nil {
			return Range{}, err
		}
		endChapter, endVerse, endHasVerse, err := chapterAndVerse(bounds[1])
		if err != nil {
			if !startHasVerse {
				return Range{}, err
			}
			// "C,V1-V2" with a partial end verse such as "7,3-9a": the end
			// bound is a bare verse, which chapterAndVerse rejects.
			endVerse, err = parseVerse(bounds[1])
			if err != nil {
				return Range{}, err
			}
			endChapter = startChapter
			endHasVerse = true
		}

		if !startHasVerse && !endHasVerse {
			// "C1-C2"
			if endChapter < startChapter {
				return Range{}, fmt.Errorf("descending chapter range %q", expr)
			}
			return Range{Start: makeCode(bookCode, startChapter, 0), End: makeCode(bookCode, endChapter, maxVerse)}, nil
		}
		if startHasVerse && !endHasVerse {
			// "C,V1-V2": the end bound is a verse in the start chapter.
			endVerse, err = parseVerse(bounds[1])
			if err != nil {
				return Range{}, err
			}
			endChapter = startChapter
		}
		if !startHasVerse && endHasVerse {
			return Range{}, fmt.Errorf("range %q starts with a bare chapter but ends with a verse", expr)
		}

		start := makeCode(bookCode, startChapter, startVerse)
		end := makeCode(bookCode, endChapter, endVerse)
		if end < start {
			return Range{}, fmt.Errorf("descending range %q", expr)
		}
		return Range{Start: start, End: end}, nil
	default:
		return Range{}, fmt.Errorf("too many '-' in reference %q", expr)
	}
}
