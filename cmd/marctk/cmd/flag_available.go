package cmd

import (
	"regexp"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ubtk/marctk/pkg/marc"
)

var (
	tueSigilPattern   = regexp.MustCompile(`^DE-21.*`)
	superiorPPNMatch  = regexp.MustCompile(`.DE-576.(.*)`)
	availableLinkTags = []string{"800", "810", "830", "773", "776"}
)

// flagAvailableCmd adds an ITA field with $a set to "1" to every record
// representing an object held in Tübingen.
var flagAvailableCmd = &cobra.Command{
	Use:   "flag-available <marc_input> <marc_output>",
	Short: "Flag records available in Tübingen with an ITA field",
	Long: `Add an ITA field with $a set to "1" to every record representing an
object held in Tübingen. A record qualifies if one of its own local 852
fields carries a DE-21 sigil, or if it is an article whose uplinks point at a
superior work with such a sigil. Superior works must carry an SPR field for
the first pass to pick them up.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlagAvailable(args[0], args[1], logger)
	},
}

// hasLocalDE21Sigil reports whether any local 852 field carries a sigil
// matching DE-21.
func hasLocalDE21Sigil(record *marc.Record) (bool, error) {
	for _, block := range record.FindAllLocalDataBlocks() {
		indices, err := record.FindFieldsInLocalBlock("852", "??", block)
		if err != nil {
			return false, err
		}
		for _, index := range indices {
			subfields := record.GetSubfields(index)
			if _, ok := subfields.ExtractSubfieldWithPattern('a', tueSigilPattern); ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// collectDE21PPNs gathers the control numbers of superior works whose local
// holdings carry a DE-21 sigil.
func collectDE21PPNs(reader *marc.Reader, logger *zap.Logger) (map[string]bool, error) {
	de21PPNs := make(map[string]bool)
	err := reader.ProcessRecords(func(record *marc.Record) error {
		if record.GetFieldDataByTag("SPR") == "" {
			return nil
		}
		held, err := hasLocalDE21Sigil(record)
		if err != nil {
			return err
		}
		if held {
			de21PPNs[record.GetControlNumber()] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("extracted superior records held in Tübingen", zap.Int("ppns", len(de21PPNs)))
	return de21PPNs, nil
}

// superiorPPNs extracts the PPNs of all superior works linked from the
// record's uplink fields.
func superiorPPNs(record *marc.Record) []string {
	var ppns []string
	for _, tag := range availableLinkTags {
		for _, w := range record.ExtractSubfield(tag, 'w') {
			if matches := superiorPPNMatch.FindStringSubmatch(w); matches != nil {
				ppns = append(ppns, matches[1])
			}
		}
	}
	return ppns
}

func runFlagAvailable(inputPath, outputPath string, logger *zap.Logger) error {
	reader, err := marc.NewReader(inputPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	de21PPNs, err := collectDE21PPNs(reader, logger)
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

	flag := func(record *marc.Record) {
		record.InsertSubfield("ITA", 'a', "1", ' ', ' ')
	}

	var recordCount, modifiedCount int
	err = reader.ProcessRecords(func(record *marc.Record) error {
		recordCount++

		held, err := hasLocalDE21Sigil(record)
		if err != nil {
			return err
		}
		if held {
			flag(record)
			modifiedCount++
			return writer.Write(record)
		}

		if record.Leader.IsArticle() {
			for _, ppn := range superiorPPNs(record) {
				if de21PPNs[ppn] {
					flag(record)
					modifiedCount++
					break
				}
			}
		}
		return writer.Write(record)
	})
	if err != nil {
		return err
	}

	logger.Info("flagging finished", zap.Int("records", recordCount), zap.Int("modified", modifiedCount))
	return nil
}

func init() {
	rootCmd.AddCommand(flagAvailableCmd)
}
