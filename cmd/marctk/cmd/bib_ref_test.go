package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSplitReference(t *testing.T) {
	testCases := []struct {
		input             string
		book              string
		chaptersAndVerses string
	}{
		{input: "joh", book: "joh", chaptersAndVerses: ""},
		{input: "johannes", book: "johannes", chaptersAndVerses: ""},
		{input: "joh 3,16", book: "joh", chaptersAndVerses: "3,16"},
		{input: "2 kor 7,3-9", book: "2 kor", chaptersAndVerses: "7,3-9"},
		{input: "2 kor 7,3a", book: "2 kor", chaptersAndVerses: "7,3a"},
		{input: "hohes lied", book: "hohes lied", chaptersAndVerses: ""},
		{input: "16,1", book: "16,1", chaptersAndVerses: ""}, // no space, nothing to split
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			book, chaptersAndVerses := splitReference(tc.input)
			assert.Equal(t, tc.book, book)
			assert.Equal(t, tc.chaptersAndVerses, chaptersAndVerses)
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "2 kor 7,3", collapseWhitespace("  2   kor\t7,3 "))
}

func runBibRefForTest(t *testing.T, reference string) (string, error) {
	t.Helper()
	logger = zap.NewNop()

	booksToCodes := writeTempFile(t, "books_to_codes.map", "johannes=43\n2. korinther=47\n")
	booksToCanonical := writeTempFile(t, "books_to_canonical.map", "joh=johannes\n2 kor=2. korinther\n")
	pericopes := writeTempFile(t, "pericopes.map",
		"feeding the five thousand=4300601:4300615\nfeeding the five thousand=4100630:4100644\n")

	var out bytes.Buffer
	command := &cobra.Command{}
	command.SetOut(&out)
	err := runBibRef(command, reference, booksToCodes, booksToCanonical, pericopes)
	return out.String(), err
}

func TestRunBibRef(t *testing.T) {
	t.Run("pericope lookup", func(t *testing.T) {
		out, err := runBibRefForTest(t, "Feeding the  Five Thousand")
		require.NoError(t, err)
		assert.Equal(t, "4300601:4300615\n4100630:4100644\n", out)
	})

	t.Run("full book", func(t *testing.T) {
		out, err := runBibRefForTest(t, "Johannes")
		require.NoError(t, err)
		assert.Equal(t, "4300000:4399999\n", out)
	})

	t.Run("canonicalized book with chapter and verse", func(t *testing.T) {
		out, err := runBibRefForTest(t, "Joh 3,16")
		require.NoError(t, err)
		assert.Equal(t, "4300316:4300316\n", out)
	})

	t.Run("verse range", func(t *testing.T) {
		out, err := runBibRefForTest(t, "2 Kor 7,3-9")
		require.NoError(t, err)
		assert.Equal(t, "4700703:4700709\n", out)
	})

	t.Run("unknown book", func(t *testing.T) {
		_, err := runBibRefForTest(t, "Atlantis 3,16")
		assert.Error(t, err)
	})
}
