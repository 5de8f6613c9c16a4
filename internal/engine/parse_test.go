package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumberedBlocks(t *testing.T) {
	out, err := parseBatchResponse("1) A\n2) B\n3) C", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, out)
}

func TestParseNumberedBlocksDotStyle(t *testing.T) {
	out, err := parseBatchResponse("1. Hej då\n2. Hejsan", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hej då", "Hejsan"}, out)
}

func TestParseNumberedBlocksMultiline(t *testing.T) {
	raw := "1) Första raden\nfortsättning\n\n2) Andra raden"
	out, err := parseBatchResponse(raw, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Första raden\nfortsättning", "Andra raden"}, out)
}

func TestParseNumberedBlocksContentOnNextLine(t *testing.T) {
	out, err := parseBatchResponse("1)\nHej\n2)\nHå", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hej", "Hå"}, out)
}

func TestParseIgnoresPreamble(t *testing.T) {
	raw := "Here are the translations:\n1) Hej\n2) Hå"
	out, err := parseBatchResponse(raw, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hej", "Hå"}, out)
}

func TestParseFallsBackToBareLines(t *testing.T) {
	out, err := parseBatchResponse("Hej då\nHejsan\n", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hej då", "Hejsan"}, out)
}

func TestParseSingleItemPassthrough(t *testing.T) {
	raw := "Sure! The line translates to:\n\n  Hej på dig  "
	out, err := parseBatchResponse(raw, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Sure! The line translates to:\n\n  Hej på dig", out[0])
}

func TestParseFailureWhenCountsDisagree(t *testing.T) {
	// Two blocks, two non-empty lines, three expected: nothing matches.
	_, err := parseBatchResponse("1) Hej\n2) Hå", 3)
	assert.ErrorIs(t, err, ErrBatchParse)
}

func TestParseNumberedBeatsLineCount(t *testing.T) {
	// Numbered parse wins even though the response also has 2 bare lines.
	out, err := parseBatchResponse("1) Hej\n2) Hå", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hej", "Hå"}, out)
}
