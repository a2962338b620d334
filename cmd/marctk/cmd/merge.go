package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ubtk/marctk/pkg/alert"
	"github.com/ubtk/marctk/pkg/kvmap"
	"github.com/ubtk/marctk/pkg/marc"
)

const ppnPrefix = "(DE-576)"

// issnSubfields names the tag/subfield pairs that may carry an ISSN.
var issnSubfields = []string{"022a", "029a", "440x", "490x", "730x", "773x", "776x", "780x", "785x"}

// uplinkTags are the fields pointing from a part record to its superior
// work.
var uplinkTags = map[string]bool{"800": true, "810": true, "830": true, "773": true, "776": true}

var mergeDebug bool

// mergeCmd merges print and online editions of the same serial into single
// records.
var mergeCmd = &cobra.Command{
	Use:   "merge-print-online <marc_input> <marc_output> <missing_ppn_partners_list>",
	Short: "Merge print and online serial editions into single records",
	Long: `Merge print and online editions of the same superior work into single
records. Cross links are taken from 776 "Erscheint auch als" fields and from
029 ISSN links. The missing-partners list receives the PPNs of superior works
whose cross-linked partner is absent from the input. Unless --debug is given,
journal subscriptions referring to a dropped PPN are re-keyed to the
surviving record.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMerge(args[0], args[1], args[2], mergeDebug, logger)
	},
}

func normalizeISSN(issn string, logger *zap.Logger) string {
	if len(issn) == 8 {
		return issn
	}
	if len(issn) == 9 && issn[4] == '-' {
		return issn[:4] + issn[5:]
	}
	logger.Warn("strange ISSN", zap.String("issn", issn))
	return issn
}

// populateISSNMap maps every ISSN found in a serial record to that record's
// control number.
func populateISSNMap(reader *marc.Reader, logger *zap.Logger) (map[string]string, error) {
	issnToControlNumber := make(map[string]string)
	count := 0
	err := reader.ProcessRecords(func(record *marc.Record) error {
		if !record.Leader.IsSerial() {
			return nil
		}
		foundISSN := false
		for _, tagAndCode := range issnSubfields {
			for _, value := range record.ExtractSubfield(tagAndCode[:3], tagAndCode[3]) {
				issnToControlNumber[normalizeISSN(value, logger)] = record.GetControlNumber()
				foundISSN = true
			}
		}
		if foundISSN {
			count++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("collected ISSNs", zap.Int("issns", len(issnToControlNumber)), zap.Int("records", count))
	return issnToControlNumber, nil
}

// pairPPNs stores a cross-linked pair with the alphanumerically smaller PPN
// as the key, so both directions land on the same entry.
func pairPPNs(ppnToPPN map[string]string, a, b string) {
	if a < b {
		ppnToPPN[a] = b
	} else {
		ppnToPPN[b] = a
	}
}

// collectMappings finds cross-linked print/online partners. It returns the
// record offsets of the dropped partners keyed by the surviving PPN and the
// surviving→dropped PPN map, and writes PPNs whose cross-linked partner is
// absent from the input to missingPartnersPath.
func collectMappings(reader *marc.Reader, missingPartnersPath string, issnToControlNumber map[string]string,
	logger *zap.Logger) (map[string]int64, map[string]string, error) {
	ppnToPPN := make(map[string]string)
	ppnToOffset := make(map[string]int64)

	lastOffset := reader.Tell()
	count := 0
	err := reader.ProcessRecords(func(record *marc.Record) error {
		count++
		recordPPN := record.GetControlNumber()
		ppnToOffset[recordPPN] = lastOffset
		lastOffset = reader.Tell()

		foundPartner := false
		for _, index := range record.GetFieldIndices("776") {
			subfields := record.GetSubfields(index)
			if subfields.FirstSubfieldValue('i') != "Erscheint auch als" {
				continue
			}
			for _, w := range subfields.ExtractSubfields("w") {
				if !strings.HasPrefix(w, ppnPrefix) {
					continue
				}
				pairPPNs(ppnToPPN, w[len(ppnPrefix):], recordPPN)
				foundPartner = true
			}
		}

		if !foundPartner {
			for _, index := range record.GetFieldIndices("029") {
				subfields := record.GetSubfields(index)
				if subfields.Indicator1 != 'x' || (subfields.Indicator2 != 'c' && subfields.Indicator2 != 'd') {
					continue
				}
				if !subfields.HasSubfield('a') {
					continue
				}
				partnerPPN, ok := issnToControlNumber[normalizeISSN(subfields.FirstSubfieldValue('a'), logger)]
				if ok && partnerPPN != recordPPN {
					pairPPNs(ppnToPPN, partnerPPN, recordPPN)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	missingPartners, err := os.Create(missingPartnersPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create missing partners list: %w", err)
	}
	defer missingPartners.Close()
	w := bufio.NewWriter(missingPartners)

	partnerOffsets := make(map[string]int64)
	noPartnerCount := 0
	for survivor, dropped := range ppnToPPN {
		_, haveSurvivor := ppnToOffset[survivor]
		droppedOffset, haveDropped := ppnToOffset[dropped]
		if !haveSurvivor || !haveDropped {
			noPartnerCount++
			if haveSurvivor {
				fmt.Fprintln(w, dropped)
			} else {
				fmt.Fprintln(w, survivor)
			}
			delete(ppnToPPN, survivor)
			continue
		}
		partnerOffsets[survivor] = droppedOffset
	}
	if err := w.Flush(); err != nil {
		return nil, nil, err
	}

	logger.Info("collected cross links",
		zap.Int("records", count),
		zap.Int("mergeable", len(partnerOffsets)),
		zap.Int("missing_partners", noPartnerCount))
	return partnerOffsets, ppnToPPN, nil
}

// patchUplinks rewrites the $w of uplink fields that point at a dropped PPN
// to point at the surviving record. It reports whether anything changed.
func patchUplinks(record *marc.Record, droppedToSurviving map[string]string) (bool, error) {
	patched := false
	for index := 0; index < record.NumFields(); index++ {
		if !uplinkTags[record.GetTag(index)] {
			continue
		}
		subfields := record.GetSubfields(index)
		w := subfields.FirstSubfieldValue('w')
		if !strings.HasPrefix(w, ppnPrefix) {
			continue
		}
		survivor, ok := droppedToSurviving[w[len(ppnPrefix):]]
		if !ok {
			continue
		}
		subfields.ReplaceFirstSubfield('w', ppnPrefix+survivor)
		if err := record.UpdateField(index, subfields.String()); err != nil {
			return false, err
		}
		patched = true
	}
	return patched, nil
}

// patch246i replaces the pre-RDA 246$i label "Nebentitel:" with
// "Abweichender Titel".
func patch246i(record *marc.Record) error {
	for _, index := range record.GetFieldIndices("246") {
		subfields := record.GetSubfields(index)
		if subfields.ReplaceAllSubfields('i', "Nebentitel:", "Abweichender Titel") {
			if err := record.UpdateField(index, subfields.String()); err != nil {
				return err
			}
		}
	}
	return nil
}

// mergeControlFields merges two occurrences of a non-repeatable control
// field. 005 (latest transaction) takes the maximum; everything else keeps
// the first record's contents.
func mergeControlFields(tag, contents1, contents2 string) string {
	if tag == "005" && contents2 > contents1 {
		return contents2
	}
	return contents1
}

// mergeFieldContents merges two occurrences of a non-repeatable data field.
// Unless both fields carry the same subfield structure the first record's
// contents win; otherwise differing values are joined with their
// print/online provenance.
func mergeFieldContents(contents1 string, record1Electronic bool, contents2 string, record2Electronic bool) string {
	subfields1 := marc.ParseSubfields(contents1)
	subfields2 := marc.ParseSubfields(contents2)

	codes := func(s marc.Subfields) string {
		var sb strings.Builder
		for _, subfield := range s.All() {
			sb.WriteByte(subfield.Code)
		}
		return sb.String()
	}
	if codes(subfields1) != codes(subfields2) {
		return contents1
	}

	merged := marc.NewSubfields()
	merged.Indicator1 = subfields1.Indicator1
	merged.Indicator2 = subfields1.Indicator2
	list1, list2 := subfields1.All(), subfields2.All()
	for i := range list1 {
		if list1[i].Value == list2[i].Value {
			merged.AddSubfield(list1[i].Code, list1[i].Value)
		} else {
			merged.AddSubfield(list1[i].Code, fmt.Sprintf("%s (%s); %s (%s)",
				list1[i].Value, carrierName(record1Electronic), list2[i].Value, carrierName(record2Electronic)))
		}
	}
	return merged.String()
}

// subfieldPrefixIsIdentical reports whether both fields begin with the same
// values for the given leading subfield codes.
func subfieldPrefixIsIdentical(contents1, contents2 string, codes []byte) bool {
	subfields1 := marc.ParseSubfields(contents1)
	subfields2 := marc.ParseSubfields(contents2)
	list1, list2 := subfields1.All(), subfields2.All()
	for i, code := range codes {
		if i >= len(list1) || i >= len(list2) {
			return false
		}
		if list1[i].Code != code || list2[i].Code != code {
			return false
		}
		if list1[i].Value != list2[i].Value {
			return false
		}
	}
	return true
}

func withSubfield2(contents, carrier string) string {
	subfields := marc.ParseSubfields(contents)
	subfields.ReplaceFirstSubfield('2', carrier)
	return subfields.String()
}

// merge264 merges two 264 fields whose $a and $b agree, joining differing
// $c (publication date) values with their provenance.
func merge264(contents1 string, record1Electronic bool, contents2 string, record2Electronic bool) string {
	subfields1 := marc.ParseSubfields(contents1)
	subfields2 := marc.ParseSubfields(contents2)
	c1 := subfields1.FirstSubfieldValue('c')
	c2 := subfields2.FirstSubfieldValue('c')
	if c1 == c2 {
		return contents1
	}

	var mergedC string
	if c1 != "" {
		mergedC = fmt.Sprintf("%s (%s)", c1, carrierName(record1Electronic))
	}
	if c2 != "" {
		if mergedC != "" {
			mergedC += "; "
		}
		mergedC += fmt.Sprintf("%s (%s)", c2, carrierName(record2Electronic))
	}
	if mergedC == "" {
		return contents1
	}
	subfields1.ReplaceFirstSubfield('c', mergedC)
	return subfields1.String()
}

// splitAtLocalData returns a record's fields sorted by tag and contents,
// with the LOK tail split off unsorted.
func splitAtLocalData(record *marc.Record) ([]marc.Field, []marc.Field) {
	lokStart := record.GetFieldIndex("LOK")
	if lokStart == marc.FieldNotFound {
		lokStart = record.NumFields()
	}
	record.SortFieldRange(0, lokStart)

	fields := record.Fields()
	return fields[:lokStart], fields[lokStart:]
}

// mergeRecords folds the print and online edition of one superior work into
// a single record.
func mergeRecords(record1, record2 *marc.Record) (*marc.Record, error) {
	record1.ReTag("260", "264")
	record2.ReTag("260", "264")

	if err := patch246i(record1); err != nil {
		return nil, err
	}
	if err := patch246i(record2); err != nil {
		return nil, err
	}

	fields1, local1 := splitAtLocalData(record1)
	fields2, local2 := splitAtLocalData(record2)
	electronic1 := record1.Leader.IsElectronicResource()
	electronic2 := record2.Leader.IsElectronicResource()

	merged := marc.NewRecord(record1.Leader)
	appendIfNew := func(field marc.Field) {
		fields := merged.Fields()
		if len(fields) > 0 && fields[len(fields)-1] == field {
			return
		}
		merged.AppendField(field.Tag, field.Contents)
	}

	i, j := 0, 0
	for i < len(fields1) && j < len(fields2) {
		f1, f2 := fields1[i], fields2[j]
		switch {
		case f1.Tag == f2.Tag && !marc.IsRepeatableField(f1.Tag):
			if f1.IsControlField() {
				appendIfNew(marc.Field{Tag: f1.Tag, Contents: mergeControlFields(f1.Tag, f1.Contents, f2.Contents)})
			} else {
				appendIfNew(marc.Field{Tag: f1.Tag, Contents: mergeFieldContents(f1.Contents, electronic1, f2.Contents, electronic2)})
			}
			i, j = i+1, j+1
		case f1.Tag == f2.Tag && f1.Tag == "022":
			// Keep both ISSNs, each tagged with its carrier.
			appendIfNew(marc.Field{Tag: "022", Contents: withSubfield2(f1.Contents, carrierName(electronic1))})
			appendIfNew(marc.Field{Tag: "022", Contents: withSubfield2(f2.Contents, carrierName(electronic2))})
			i, j = i+1, j+1
		case f1.Tag == f2.Tag && f1.Tag == "264" && subfieldPrefixIsIdentical(f1.Contents, f2.Contents, []byte{'a', 'b'}):
			appendIfNew(marc.Field{Tag: "264", Contents: merge264(f1.Contents, electronic1, f2.Contents, electronic2)})
			i, j = i+1, j+1
		case f1.Less(f2):
			appendIfNew(f1)
			i++
		case f2.Less(f1):
			appendIfNew(f2)
			j++
		default: // identical fields
			appendIfNew(f1)
			i, j = i+1, j+1
		}
	}
	for ; i < len(fields1); i++ {
		appendIfNew(fields1[i])
	}
	for ; j < len(fields2); j++ {
		appendIfNew(fields2[j])
	}

	// Local data follows whichever record has any.
	localData := local1
	if len(localData) == 0 {
		localData = local2
	}
	for _, field := range localData {
		merged.AppendField(field.Tag, field.Contents)
	}

	// Mark the record as both print and electronic and keep the dropped
	// partner's PPN.
	merged.InsertField("ZWI", "  \x1F"+"a1"+"\x1F"+"b"+record2.GetControlNumber())
	return merged, nil
}

func carrierName(electronic bool) string {
	if electronic {
		return "electronic"
	}
	return "print"
}

func readRecordFromOffset(reader *marc.Reader, offset int64) (*marc.Record, error) {
	savedOffset := reader.Tell()
	if err := reader.Seek(offset); err != nil {
		return nil, err
	}
	record, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading partner record at offset %d: %w", offset, err)
	}
	if err := reader.Seek(savedOffset); err != nil {
		return nil, err
	}
	return record, nil
}

func runMerge(inputPath, outputPath, missingPartnersPath string, debug bool, logger *zap.Logger) error {
	reader, err := marc.NewReader(inputPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	issnToControlNumber, err := populateISSNMap(reader, logger)
	if err != nil {
		return err
	}
	if err := reader.Rewind(); err != nil {
		return err
	}

	partnerOffsets, ppnToPPN, err := collectMappings(reader, missingPartnersPath, issnToControlNumber, logger)
	if err != nil {
		return err
	}
	if err := reader.Rewind(); err != nil {
		return err
	}

	writer, outputFile, err := marc.NewFileWriter(outputPath)
	if err != nil {
		return err
	}
	defer outputFile.Close()

	skipPPNs := make(map[string]bool)
	droppedToSurviving := make(map[string]string, len(ppnToPPN))
	for survivor, dropped := range ppnToPPN {
		skipPPNs[dropped] = true
		droppedToSurviving[dropped] = survivor
	}

	var recordCount, mergedCount, patchedUplinkCount int
	err = reader.ProcessRecords(func(record *marc.Record) error {
		recordCount++
		if skipPPNs[record.GetControlNumber()] {
			return nil
		}

		if offset, ok := partnerOffsets[record.GetControlNumber()]; ok {
			partner, err := readRecordFromOffset(reader, offset)
			if err != nil {
				return err
			}
			merged, err := mergeRecords(record, partner)
			if err != nil {
				return err
			}
			mergedCount++
			logger.Debug("merged records",
				zap.String("ppn1", record.GetControlNumber()),
				zap.String("ppn2", partner.GetControlNumber()))
			return writer.Write(merged)
		}

		patched, err := patchUplinks(record, droppedToSurviving)
		if err != nil {
			return err
		}
		if patched {
			patchedUplinkCount++
		}
		return writer.Write(record)
	})
	if err != nil {
		return err
	}

	logger.Info("merge pass finished",
		zap.Int("records", recordCount),
		zap.Int("merged", mergedCount),
		zap.Int("patched_uplinks", patchedUplinkCount))

	if debug {
		return nil
	}

	store, err := kvmap.Open(filepath.Join(cfg.DataDir, "subscriptions.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	patched, err := alert.PatchSubscriptions(store, droppedToSurviving)
	if err != nil {
		return err
	}
	logger.Info("patched subscriptions", zap.Int("patched", patched))
	return nil
}

func init() {
	mergeCmd.Flags().BoolVar(&mergeDebug, "debug", false, "Skip subscription patching and e-mail side effects")
	rootCmd.AddCommand(mergeCmd)
}
