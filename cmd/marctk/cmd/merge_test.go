package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ubtk/marctk/pkg/marc"
)

func TestNormalizeISSN(t *testing.T) {
	logger := zap.NewNop()
	assert.Equal(t, "21928wxy", normalizeISSN("21928wxy", logger))
	assert.Equal(t, "21928wxy", normalizeISSN("2192-8wxy", logger))
	assert.Equal(t, "strange", normalizeISSN("strange", logger))
}

func TestPairPPNs(t *testing.T) {
	pairs := make(map[string]string)
	pairPPNs(pairs, "222222222", "111111111")
	pairPPNs(pairs, "333333333", "444444444")
	assert.Equal(t, map[string]string{
		"111111111": "222222222",
		"333333333": "444444444",
	}, pairs)
}

func TestMergeControlFields(t *testing.T) {
	assert.Equal(t, "20180301120000.0", mergeControlFields("005", "20180101120000.0", "20180301120000.0"))
	assert.Equal(t, "20180301120000.0", mergeControlFields("005", "20180301120000.0", "20180101120000.0"))
	assert.Equal(t, "first", mergeControlFields("001", "first", "second"))
}

func TestMergeFieldContents(t *testing.T) {
	t.Run("identical subfield structure with differing values", func(t *testing.T) {
		contents1 := "  " + usf + "aBerlin" + usf + "b2010"
		contents2 := "  " + usf + "aBerlin" + usf + "b2012"
		merged := mergeFieldContents(contents1, false, contents2, true)
		assert.Equal(t, "  "+usf+"aBerlin"+usf+"b2010 (print); 2012 (electronic)", merged)
	})
	t.Run("differing subfield structure keeps the first field", func(t *testing.T) {
		contents1 := "  " + usf + "aBerlin"
		contents2 := "  " + usf + "aBerlin" + usf + "b2012"
		assert.Equal(t, contents1, mergeFieldContents(contents1, false, contents2, true))
	})
}

func TestMerge264(t *testing.T) {
	contents1 := " 1" + usf + "aBerlin" + usf + "bSpringer" + usf + "c2010"
	contents2 := " 1" + usf + "aBerlin" + usf + "bSpringer" + usf + "c2012"

	assert.True(t, subfieldPrefixIsIdentical(contents1, contents2, []byte{'a', 'b'}))
	merged := merge264(contents1, false, contents2, true)
	assert.Equal(t, " 1"+usf+"aBerlin"+usf+"bSpringer"+usf+"c2010 (print); 2012 (electronic)", merged)

	// Identical dates collapse.
	assert.Equal(t, contents1, merge264(contents1, false, contents1, true))

	differentPlace := " 1" + usf + "aTübingen" + usf + "bMohr" + usf + "c2012"
	assert.False(t, subfieldPrefixIsIdentical(contents1, differentPlace, []byte{'a', 'b'}))
}

func TestPatch246i(t *testing.T) {
	record := marc.NewRecord(marc.NewLeader())
	record.AppendField("001", "111111111")
	record.AppendField("246", "1 "+usf+"iNebentitel:"+usf+"aDer andere Titel")

	require.NoError(t, patch246i(record))
	subfields := record.GetSubfields(record.GetFieldIndex("246"))
	assert.Equal(t, "Abweichender Titel", subfields.FirstSubfieldValue('i'))
}

func TestPatchUplinks(t *testing.T) {
	record := marc.NewRecord(marc.NewLeader())
	record.AppendField("001", "200000001")
	record.AppendField("773", "0 "+usf+"tParent"+usf+"w(DE-576)999999999")

	patched, err := patchUplinks(record, map[string]string{"999999999": "111111111"})
	require.NoError(t, err)
	assert.True(t, patched)
	uplink := record.GetSubfields(record.GetFieldIndex("773"))
	assert.Equal(t, "(DE-576)111111111", uplink.FirstSubfieldValue('w'))

	patched, err = patchUplinks(record, map[string]string{"888888888": "111111111"})
	require.NoError(t, err)
	assert.False(t, patched)
}

func makePrintSerial(controlNumber string) *marc.Record {
	record := marc.NewRecord(marc.NewLeader())
	record.Leader.SetBibliographicLevel(marc.BibliographicLevelSerial)
	record.AppendField("001", controlNumber)
	record.AppendField("005", "20180101120000.0")
	record.AppendField("022", "  "+usf+"a2192-8wxy")
	record.AppendField("245", "10"+usf+"aZeitschrift für Theologie")
	record.AppendField("260", "  "+usf+"aBerlin"+usf+"bSpringer"+usf+"c2010")
	record.AppendField("LOK", "  "+usf+"0000 xr")
	record.AppendField("LOK", "  "+usf+"0001 777777777")
	return record
}

func makeElectronicSerial(controlNumber string) *marc.Record {
	record := marc.NewRecord(marc.NewLeader())
	record.Leader.Set(6, 'm')
	record.Leader.SetBibliographicLevel(marc.BibliographicLevelSerial)
	record.AppendField("001", controlNumber)
	record.AppendField("005", "20180301120000.0")
	record.AppendField("022", "  "+usf+"a2193-0066")
	record.AppendField("245", "10"+usf+"aZeitschrift für Theologie")
	record.AppendField("260", "  "+usf+"aBerlin"+usf+"bSpringer"+usf+"c2012")
	record.AppendField("856", "40"+usf+"uhttps://example.org/zft")
	return record
}

func TestMergeRecords(t *testing.T) {
	printed := makePrintSerial("111111111")
	online := makeElectronicSerial("222222222")

	merged, err := mergeRecords(printed, online)
	require.NoError(t, err)

	// Control number of the surviving record is kept.
	assert.Equal(t, "111111111", merged.GetControlNumber())

	// 005 takes the later timestamp.
	assert.Equal(t, "20180301120000.0", merged.GetFieldDataByTag("005"))

	// Both ISSNs survive, each tagged with its carrier.
	issnFields := merged.GetFieldIndices("022")
	require.Len(t, issnFields, 2)
	issn1 := merged.GetSubfields(issnFields[0])
	issn2 := merged.GetSubfields(issnFields[1])
	carriers := []string{issn1.FirstSubfieldValue('2'), issn2.FirstSubfieldValue('2')}
	assert.ElementsMatch(t, []string{"print", "electronic"}, carriers)

	// 260 fields were retagged to 264 and their dates merged.
	assert.Equal(t, marc.FieldNotFound, merged.GetFieldIndex("260"))
	subfields264 := merged.GetSubfields(merged.GetFieldIndex("264"))
	assert.Equal(t, "2010 (print); 2012 (electronic)", subfields264.FirstSubfieldValue('c'))

	// The identical title appears once, the online-only 856 is carried over.
	assert.Len(t, merged.GetFieldIndices("245"), 1)
	assert.NotEqual(t, marc.FieldNotFound, merged.GetFieldIndex("856"))

	// The local data block follows the record that has one.
	blocks := merged.FindAllLocalDataBlocks()
	require.Len(t, blocks, 1)

	// The ZWI marker names the dropped partner.
	zwi := merged.GetFieldIndex("ZWI")
	require.NotEqual(t, marc.FieldNotFound, zwi)
	subfields := merged.GetSubfields(zwi)
	assert.Equal(t, "1", subfields.FirstSubfieldValue('a'))
	assert.Equal(t, "222222222", subfields.FirstSubfieldValue('b'))
}
