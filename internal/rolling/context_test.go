package rolling

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyTrackerRendersNothing(t *testing.T) {
	tr := New(4, 40, "Swedish")
	assert.Empty(t, tr.BuildContextBlock())
}

func TestWindowsAreBounded(t *testing.T) {
	tr := New(3, 40, "Swedish")
	for i := 0; i < 10; i++ {
		tr.Update(
			fmt.Sprintf("Speaker%d", i),
			fmt.Sprintf("källa %d", i),
			fmt.Sprintf("source %d", i),
			fmt.Sprintf("utdata %d", i),
		)
		assert.LessOrEqual(t, len(tr.Speakers()), 3)
		assert.LessOrEqual(t, len(tr.SourceLines()), 3)
		assert.LessOrEqual(t, len(tr.Translations()), 3)
	}
}

func TestEvictionIsFIFO(t *testing.T) {
	tr := New(2, 40, "Swedish")
	tr.Update("Anna", "a", "", "x")
	tr.Update("Bertil", "b", "", "y")
	tr.Update("Cecilia", "c", "", "z")

	assert.Equal(t, []string{"Bertil", "Cecilia"}, tr.Speakers())
	assert.Equal(t, []string{"b", "c"}, tr.SourceLines())
	assert.Equal(t, []string{"y", "z"}, tr.Translations())
}

func TestEmptyFieldsDoNotEnterWindows(t *testing.T) {
	tr := New(4, 40, "Swedish")
	tr.Update("", "hello", "", "")
	assert.Empty(t, tr.Speakers())
	assert.Empty(t, tr.Translations())
	assert.Equal(t, []string{"hello"}, tr.SourceLines())
}

func TestSourceSnippetJoinsBothLanguages(t *testing.T) {
	tr := New(4, 40, "Swedish")
	tr.Update("Anna", "привіт", "hello", "")
	assert.Equal(t, []string{"привіт / hello"}, tr.SourceLines())

	tr.Update("Anna", "", "only english", "")
	assert.Equal(t, []string{"привіт / hello", "only english"}, tr.SourceLines())
}

func TestExtractCandidateTerms(t *testing.T) {
	terms := ExtractCandidateTerms("Anna met Björn at Overwatch HQ on a tuesday")
	assert.Contains(t, terms, "Anna")
	assert.Contains(t, terms, "Björn")
	assert.Contains(t, terms, "Overwatch")
	// too short
	assert.NotContains(t, terms, "HQ")
	// not capitalized
	assert.NotContains(t, terms, "tuesday")
}

func TestGlossaryCountsAndCap(t *testing.T) {
	tr := New(4, 3, "Swedish")
	tr.Update("Anna", "Anna talks", "", "")
	tr.Update("Anna", "", "", "")
	assert.Equal(t, 3, tr.GlossaryCount("Anna"))

	tr.Update("Bertil", "", "", "")
	tr.Update("Bertil", "", "", "")
	tr.Update("Cecilia", "", "", "")
	tr.Update("Cecilia", "", "", "")
	tr.Update("David", "", "", "")

	terms := tr.GlossaryTerms()
	require.Len(t, terms, 3)
	assert.Contains(t, terms, "Anna")
	assert.Contains(t, terms, "Bertil")
	assert.Contains(t, terms, "Cecilia")
	// David tied Cecilia's old count but lost to higher-frequency terms.
	assert.NotContains(t, terms, "David")
}

func TestGlossaryTieBreakPrefersRecent(t *testing.T) {
	tr := New(4, 2, "Swedish")
	tr.Update("Anna", "", "", "")
	tr.Update("Bertil", "", "", "")
	tr.Update("Cecilia", "", "", "")

	// All three have count 1; the two most recently seen survive.
	assert.Equal(t, []string{"Bertil", "Cecilia"}, tr.GlossaryTerms())
}

func TestBuildContextBlockSections(t *testing.T) {
	tr := New(4, 40, "Swedish")
	tr.Update("Anna", "Привіт", "Hello", "Hej")

	block := tr.BuildContextBlock()
	assert.Contains(t, block, "Recent speakers:\n- Anna")
	assert.Contains(t, block, "Recent lines (source):\n- Привіт / Hello")
	assert.Contains(t, block, "Recent Swedish lines:\n- Hej")
	assert.Contains(t, block, "Names/Terms glossary (keep consistent): ")

	sections := strings.Split(block, "\n\n")
	assert.Len(t, sections, 4)
}

func TestBuildContextBlockOmitsEmptySections(t *testing.T) {
	tr := New(4, 40, "Swedish")
	tr.Update("", "hello there", "", "")

	block := tr.BuildContextBlock()
	assert.NotContains(t, block, "Recent speakers:")
	assert.NotContains(t, block, "Recent Swedish lines:")
	assert.Contains(t, block, "Recent lines (source):")
}
