package corpus

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	assert.Nil(t, Split("   ", 10, 2))
	assert.Equal(t, []string{"short"}, Split("short", 10, 2))
	assert.Equal(t, []string{"no limit here"}, Split("no limit here", 0, 0))

	text := "alpha beta gamma delta epsilon zeta eta theta"
	chunks := Split(text, 12, 4)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 12)
		assert.Equal(t, c, strings.TrimSpace(c))
	}
	assert.Equal(t, "alpha beta", chunks[0], "breaks at whitespace")
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))
}

func TestSplit_LongWordAndRunes(t *testing.T) {
	chunks := Split(strings.Repeat("é", 25), 10, 0)
	assert.Equal(t, []string{strings.Repeat("é", 10), strings.Repeat("é", 10), strings.Repeat("é", 5)}, chunks)

	overlapped := Split("abcdefghij", 4, 2)
	assert.Equal(t, []string{"abcd", "cdef", "efgh", "ghij"}, overlapped)
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"who", "ada", "lovelace"}, Terms("Who is Ada Lovelace? ada, is it?"))
	assert.Empty(t, Terms("a an is of"))
}

func TestIndex_Retrieve(t *testing.T) {
	ix := NewIndex(1000, 0)
	assert.Equal(t, 1, ix.Add("zeta", "Ada Lovelace wrote notes on the engine."))
	assert.Equal(t, 1, ix.Add("alpha", "Babbage designed the engine."))
	assert.Equal(t, 1, ix.Add("beta", "Lovelace and the engine and Ada."))
	assert.Equal(t, 0, ix.Add("empty", "   "))
	assert.Equal(t, 3, ix.Documents())

	got := ix.Retrieve("ada lovelace engine", 10)
	require.Len(t, got, 3)
	assert.Equal(t, "beta", got[0].DocID, "ties on score keep doc id order")
	assert.Equal(t, "zeta", got[1].DocID)
	assert.Equal(t, "alpha", got[2].DocID)

	assert.Len(t, ix.Retrieve("ada lovelace engine", 1), 1)
	assert.Nil(t, ix.Retrieve("is a", 5))
	assert.Nil(t, ix.Retrieve("ada", 0))
	assert.Empty(t, ix.Retrieve("quantum", 5))
}

func TestIndex_AddReplacesDocument(t *testing.T) {
	ix := NewIndex(1000, 0)
	ix.Add("doc", "Ada Lovelace")
	ix.Add("doc", "Charles Babbage")

	assert.Empty(t, ix.Retrieve("lovelace", 5))
	got := ix.Retrieve("babbage", 5)
	require.Len(t, got, 1)
	assert.Equal(t, Chunk{DocID: "doc", Seq: 0, Text: "Charles Babbage"}, got[0])

	ix.Add("doc", "")
	assert.Equal(t, 0, ix.Documents())
}
