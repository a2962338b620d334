package mapio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMapFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.map")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestDeserializeMap(t *testing.T) {
	path := writeMapFile(t, `# a comment
genesis=01
exodus=02

1. mose=01
`)
	m, err := DeserializeMap(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"genesis": "01",
		"exodus":  "02",
		"1. mose": "01",
	}, m)
}

func TestDeserializeMap_LaterKeysWin(t *testing.T) {
	path := writeMapFile(t, "key=old\nkey=new\n")
	m, err := DeserializeMap(path)
	require.NoError(t, err)
	assert.Equal(t, "new", m["key"])
}

func TestDeserializeMultiMap(t *testing.T) {
	path := writeMapFile(t, "feeding the five thousand=0601401:0601415\nfeeding the five thousand=0301001:0301017\n")
	m, err := DeserializeMultiMap(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"0601401:0601415", "0301001:0301017"}, m["feeding the five thousand"])
}

func TestSerializeMap_RoundTripWithEscaping(t *testing.T) {
	original := map[string]string{
		"plain":           "value",
		"key=with=equals": "value=with=equals",
		`back\slash`:      `v\a`,
		"":                "empty key",
	}
	path := filepath.Join(t.TempDir(), "out.map")
	require.NoError(t, SerializeMap(path, original))

	m, err := DeserializeMap(path)
	require.NoError(t, err)
	assert.Equal(t, original, m)
}

func TestDeserializeMap_Errors(t *testing.T) {
	t.Run("missing separator", func(t *testing.T) {
		path := writeMapFile(t, "no separator here\n")
		_, err := DeserializeMap(path)
		assert.Error(t, err)
	})
	t.Run("trailing backslash", func(t *testing.T) {
		path := writeMapFile(t, "bad\\\n")
		_, err := DeserializeMap(path)
		assert.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := DeserializeMap(filepath.Join(t.TempDir(), "nope.map"))
		assert.Error(t, err)
	})
}
