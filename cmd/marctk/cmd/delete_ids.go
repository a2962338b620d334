package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ubtk/marctk/pkg/marc"
)

// deleteIDsCmd removes records and local data blocks named by a deletion
// list supplied by the union catalog.
var deleteIDsCmd = &cobra.Command{
	Use:   "delete-ids <deletion_list> <marc_input> <marc_output>",
	Short: "Delete records or local blocks listed in a deletion list",
	Long: `Delete records or local data blocks from a MARC-21 collection.

Each deletion list line carries a type character at offset 11: 'A' deletes a
whole title record by its control number, '9' deletes the local data block
with the given local system id. Records that lose their last local block are
dropped entirely.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		titleIDs, localIDs, err := extractDeletionIDs(args[0])
		if err != nil {
			return err
		}
		return runDeleteIDs(titleIDs, localIDs, args[1], args[2], logger)
	},
}

// extractDeletionIDs splits a deletion list into title and local system ids.
// The line format is fixed-width: a date, the type character at offset 11 and
// the id from offset 12 on.
func extractDeletionIDs(path string) (map[string]bool, map[string]bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open deletion list: %w", err)
	}
	defer file.Close()

	titleIDs := make(map[string]bool)
	localIDs := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if len(line) < 13 {
			return nil, nil, fmt.Errorf("short line %d in deletion list file: %q", lineNo, line)
		}
		id := strings.TrimSpace(line[12:])
		switch line[11] {
		case 'A':
			titleIDs[id] = true
		case '9':
			localIDs[id] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading deletion list: %w", err)
	}
	return titleIDs, localIDs, nil
}

// matchLocalBlock returns the range of the first local block whose "001 "
// local system id is in localIDs, or false.
func matchLocalBlock(record *marc.Record, localIDs map[string]bool) ([2]int, bool) {
	for _, block := range record.FindAllLocalDataBlocks() {
		for index := block[0]; index < block[1]; index++ {
			subfields := record.GetSubfields(index)
			if !subfields.HasSubfield('0') {
				continue
			}
			contents := subfields.FirstSubfieldValue('0')
			if strings.HasPrefix(contents, "001 ") && localIDs[contents[4:]] {
				return block, true
			}
		}
	}
	return [2]int{}, false
}

func runDeleteIDs(titleIDs, localIDs map[string]bool, inputPath, outputPath string, logger *zap.Logger) error {
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

	var totalCount, deletedCount, modifiedCount int
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		totalCount++

		if record.GetTag(0) != "001" {
			return fmt.Errorf("record %d: first field is not \"001\"", totalCount)
		}

		controlNumber := record.GetControlNumber()
		if titleIDs[controlNumber] {
			deletedCount++
			logger.Debug("deleted record", zap.String("ppn", controlNumber))
			continue
		}

		modified := false
		for {
			block, found := matchLocalBlock(record, localIDs)
			if !found {
				break
			}
			record.DeleteFields([][2]int{block})
			modified = true
		}

		if modified {
			if record.GetFieldIndex("LOK") == marc.FieldNotFound {
				// Without any holdings left the record is gone too.
				deletedCount++
				continue
			}
			modifiedCount++
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	logger.Info("deletion pass finished",
		zap.Int("read", totalCount),
		zap.Int("deleted", deletedCount),
		zap.Int("modified", modifiedCount))
	return nil
}

func init() {
	rootCmd.AddCommand(deleteIDsCmd)
}
