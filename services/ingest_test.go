package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMarkdown = `Preamble before any heading.

# Chapter One

Intro paragraph of chapter one.

## Section A

First paragraph of section A.
It continues on a second line.

Second paragraph of section A.

# Chapter Two

Body of chapter two.
`

func TestIngestMarkdownHeadingPaths(t *testing.T) {
	ing := NewIngester(2000)
	units := ing.IngestMarkdown("src", sampleMarkdown)

	require.Len(t, units, 5)

	assert.Empty(t, units[0].Position.Headings)
	assert.Equal(t, "Preamble before any heading.", units[0].Content)

	assert.Equal(t, []string{"Chapter One"}, units[1].Position.Headings)

	assert.Equal(t, []string{"Chapter One", "Section A"}, units[2].Position.Headings)
	// Wrapped lines join into one paragraph.
	assert.Equal(t, "First paragraph of section A. It continues on a second line.", units[2].Content)

	assert.Equal(t, []string{"Chapter One", "Section A"}, units[3].Position.Headings)

	// A new level-1 heading resets the path entirely.
	assert.Equal(t, []string{"Chapter Two"}, units[4].Position.Headings)
}

func TestIngestMarkdownIndexesAreSequential(t *testing.T) {
	ing := NewIngester(2000)
	units := ing.IngestMarkdown("src", sampleMarkdown)

	for i, u := range units {
		assert.Equal(t, i, u.Index)
		assert.Equal(t, "src", u.SourceID)
		assert.NotEmpty(t, u.ID)
	}
}

func TestIngestMarkdownSplitsOversizeParagraphs(t *testing.T) {
	long := strings.Repeat("lorem ipsum ", 100) // ~1200 chars
	ing := NewIngester(500)

	units := ing.IngestMarkdown("src", "# C\n\n"+long)

	require.Greater(t, len(units), 1)
	for _, u := range units {
		assert.LessOrEqual(t, len(u.Content), 500)
		assert.Equal(t, []string{"C"}, u.Position.Headings)
	}

	// No content lost at the seams.
	rejoined := ""
	for _, u := range units {
		rejoined += u.Content + " "
	}
	assert.Equal(t, strings.Fields(long), strings.Fields(rejoined))
}

func TestIngestMarkdownDeepHeadingsExtendPath(t *testing.T) {
	md := "# C\n\n## S\n\n### Sub\n\ndeep text\n"
	ing := NewIngester(2000)

	units := ing.IngestMarkdown("src", md)

	require.Len(t, units, 1)
	assert.Equal(t, []string{"C", "S", "Sub"}, units[0].Position.Headings)
}

func TestIngestMarkdownEmptyInput(t *testing.T) {
	ing := NewIngester(2000)
	assert.Empty(t, ing.IngestMarkdown("src", ""))
	assert.Empty(t, ing.IngestMarkdown("src", "# Heading only\n\n## And another\n"))
}

func TestSplitAtBudgetWordBoundaries(t *testing.T) {
	pieces := splitAtBudget("alpha beta gamma delta", 11)

	require.Len(t, pieces, 2)
	assert.Equal(t, "alpha beta", pieces[0])
	assert.Equal(t, "gamma delta", pieces[1])
}
