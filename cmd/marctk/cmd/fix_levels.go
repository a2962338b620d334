package cmd

import (
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ubtk/marctk/pkg/marc"
)

// uplinkPPNPattern matches the "(prefix)PPN" form of an uplink subfield and
// captures the control number.
var uplinkPPNPattern = regexp.MustCompile(`\(.+\)(\d{8}[\dX])`)

// fixLevelsCmd patches the bibliographic level of article records. Article
// records frequently arrive with an 'a' in leader position 7 where a 'b'
// (serial component part) belongs; when the referenced parent is a serial the
// 'a' is flipped to a 'b'.
var fixLevelsCmd = &cobra.Command{
	Use:   "fix-article-levels <marc_input1> [marc_input2 ...] <marc_output>",
	Short: "Flip article records to serial component parts",
	Long: `Collect the control numbers of serial records from all MARC inputs, then
patch up records in the first input that are flagged as articles but whose
parent work is a serial, writing the patched collection to the output.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputPaths := args[:len(args)-1]
		outputPath := args[len(args)-1]

		serials := make(serialSet)
		for _, path := range inputPaths {
			if err := serials.collect(path); err != nil {
				return err
			}
		}
		logger.Debug("collected serial records", zap.Int("count", len(serials)))

		return patchUpArticles(serials, inputPaths[0], outputPath, logger)
	},
}

// serialSet accumulates the control numbers of serial records during the
// first pass; the patching pass only reads it.
type serialSet map[string]bool

func (s serialSet) collect(inputPath string) error {
	reader, err := marc.NewReader(inputPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	return reader.ProcessRecords(func(record *marc.Record) error {
		if record.Leader.IsSerial() {
			s[record.GetControlNumber()] = true
		}
		return nil
	})
}

// hasSerialParent checks one "TTTc" uplink descriptor (3-byte tag plus
// subfield code) against the serial set.
func hasSerialParent(uplink string, record *marc.Record, serials serialSet) bool {
	tag, code := uplink[:3], uplink[3]
	index := record.GetFieldIndex(tag)
	if index == marc.FieldNotFound {
		return false
	}

	subfields := record.GetSubfields(index)
	contents := subfields.FirstSubfieldValue(code)
	if contents == "" {
		return false
	}

	match := uplinkPPNPattern.FindStringSubmatch(contents)
	if match == nil {
		return false
	}
	return serials[match[1]]
}

func hasAtLeastOneSerialParent(uplinkList string, record *marc.Record, serials serialSet) bool {
	for _, uplink := range strings.Split(uplinkList, ":") {
		if hasSerialParent(uplink, record, serials) {
			return true
		}
	}
	return false
}

func patchUpArticles(serials serialSet, inputPath, outputPath string, logger *zap.Logger) error {
	reader, err := marc.NewReader(inputPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	writer, outputFile, err := marc.NewFileWriter(outputPath)
	if err != nil {
		return err
	}
	defer outputFile.Close()

	patchCount := 0
	err = reader.ProcessRecords(func(record *marc.Record) error {
		if record.Leader.IsArticle() && hasAtLeastOneSerialParent("800w:810w:830w:773w", record, serials) {
			record.Leader.SetBibliographicLevel(marc.BibliographicLevelSerialPart)
			patchCount++
		}
		return writer.Write(record)
	})
	if err != nil {
		return err
	}

	logger.Info("fixed bibliographic levels", zap.Int("patched", patchCount))
	return nil
}

func init() {
	rootCmd.AddCommand(fixLevelsCmd)
}
