package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ubtk/marctk/pkg/bible"
	"github.com/ubtk/marctk/pkg/mapio"
)

// bibRefCmd resolves a bible reference candidate to one or more numeric
// range codes.
var bibRefCmd = &cobra.Command{
	Use:   "bib-ref <reference> <books_to_codes_map> <books_to_canonical_map> <pericopes_map>",
	Short: "Map a bible reference to numeric range codes",
	Long: `Map a bible reference candidate such as "2 Kor 7,3-9" to one or more
start:end range code pairs. Pericope names are looked up first; everything
else is split into a book part and a chapters-and-verses part, the book name
is canonicalized and mapped to its two-digit code, and the chapters and
verses are parsed into seven-digit range bounds.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBibRef(cmd, args[0], args[1], args[2], args[3])
	},
}

// splitReference splits a bible reference candidate into the book part and
// the trailing chapters-and-verses part. References ending in a letter
// preceded by a digit still count as having chapters and verses ("7,3a").
func splitReference(candidate string) (book, chaptersAndVerses string) {
	if len(candidate) <= 3 {
		return candidate, ""
	}
	last := candidate[len(candidate)-1]
	secondToLast := candidate[len(candidate)-2]
	endsNumeric := isDigit(last) || (isLetter(last) && isDigit(secondToLast))
	if !endsNumeric {
		return candidate, ""
	}
	lastSpace := strings.LastIndexByte(candidate, ' ')
	if lastSpace == -1 {
		return candidate, ""
	}
	return candidate[:lastSpace], candidate[lastSpace+1:]
}

func isDigit(b byte) bool  { return b >= '0' && b <= '9' }
func isLetter(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func runBibRef(cmd *cobra.Command, reference, booksToCodesPath, booksToCanonicalPath, pericopesPath string) error {
	candidate := collapseWhitespace(strings.ToLower(strings.TrimSpace(reference)))

	pericopesToCodes, err := mapio.DeserializeMultiMap(pericopesPath)
	if err != nil {
		return err
	}
	if codes, ok := pericopesToCodes[candidate]; ok {
		logger.Debug("found a pericope to codes mapping", zap.String("pericope", candidate))
		for _, code := range codes {
			fmt.Fprintln(cmd.OutOrStdout(), code)
		}
		return nil
	}

	book, chaptersAndVerses := splitReference(candidate)
	logger.Debug("split reference",
		zap.String("book", book),
		zap.String("chapters_and_verses", chaptersAndVerses))

	booksToCanonical, err := mapio.DeserializeMap(booksToCanonicalPath)
	if err != nil {
		return err
	}
	if canonical, ok := booksToCanonical[book]; ok {
		logger.Debug("canonicalized book name", zap.String("from", book), zap.String("to", canonical))
		book = canonical
	}

	booksToCodes, err := mapio.DeserializeMap(booksToCodesPath)
	if err != nil {
		return err
	}
	bookCode, ok := booksToCodes[book]
	if !ok {
		return fmt.Errorf("unknown bible book %q", book)
	}

	if chaptersAndVerses == "" {
		fullRange := bible.FullBookRange(bookCode)
		fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", fullRange.Start, fullRange.End)
		return nil
	}

	ranges, err := bible.ParseReference(chaptersAndVerses, bookCode)
	if err != nil {
		return fmt.Errorf("parsing %q as chapters and verses: %w", chaptersAndVerses, err)
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].Start != ranges[j].Start {
			return ranges[i].Start < ranges[j].Start
		}
		return ranges[i].End < ranges[j].End
	})
	for _, r := range ranges {
		fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", r.Start, r.End)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(bibRefCmd)
}
