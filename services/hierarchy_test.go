package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-extraction-platform/models"
)

func TestBuildHierarchyGroupsByHeadings(t *testing.T) {
	units := []models.TextUnit{
		unit("u1", "src", "intro text", 0, "Chapter One"),
		unit("u2", "src", "section text", 1, "Chapter One", "Section A"),
		unit("u3", "src", "more section text", 2, "Chapter One", "Section A"),
		unit("u4", "src", "other chapter", 3, "Chapter Two"),
	}

	tree := BuildHierarchy(units, "src")

	require.Len(t, tree.Chapters, 2)

	ch1 := tree.Chapters[0]
	assert.Equal(t, "Chapter One", ch1.Title)
	// Chapter owns all units under it, section units included.
	assert.Equal(t, []string{"u1", "u2", "u3"}, ch1.UnitIDs())
	require.Len(t, ch1.Sections, 1)
	assert.Equal(t, "Section A", ch1.Sections[0].Title)
	assert.Equal(t, []string{"u2", "u3"}, ch1.Sections[0].UnitIDs())

	ch2 := tree.Chapters[1]
	assert.Equal(t, "Chapter Two", ch2.Title)
	assert.Equal(t, []string{"u4"}, ch2.UnitIDs())
	assert.Empty(t, ch2.Sections)
}

func TestBuildHierarchyUnknownChapterIsShared(t *testing.T) {
	units := []models.TextUnit{
		unit("u1", "src", "no headings at all", 0),
		unit("u2", "src", "with chapter", 1, "Real Chapter"),
		unit("u3", "src", "also no headings", 2),
	}

	tree := BuildHierarchy(units, "src")

	require.Len(t, tree.Chapters, 2)
	unknown := tree.Chapters[0]
	assert.Equal(t, "unknown", unknown.Title)
	// Both heading-less units land in the same node even though a real
	// chapter opened between them.
	assert.Equal(t, []string{"u1", "u3"}, unknown.UnitIDs())
}

func TestBuildHierarchyRepeatedHeadingPathReusesNode(t *testing.T) {
	units := []models.TextUnit{
		unit("u1", "src", "first visit", 0, "Chapter", "Section"),
		unit("u2", "src", "interlude", 1, "Other Chapter"),
		unit("u3", "src", "second visit", 2, "Chapter", "Section"),
	}

	tree := BuildHierarchy(units, "src")

	require.Len(t, tree.Chapters, 2)
	ch := tree.Chapters[0]
	require.Len(t, ch.Sections, 1)
	assert.Equal(t, []string{"u1", "u3"}, ch.Sections[0].UnitIDs())
}

func TestBuildHierarchyNoUnitLostOrDuplicated(t *testing.T) {
	units := []models.TextUnit{
		unit("u1", "src", "a", 0, "C1"),
		unit("u2", "src", "b", 1, "C1", "S1"),
		unit("u3", "src", "c", 2),
		unit("u4", "src", "d", 3, "C2", "S2"),
	}

	tree := BuildHierarchy(units, "src")

	seen := map[string]int{}
	for _, ch := range tree.Chapters {
		for _, id := range ch.UnitIDs() {
			seen[id]++
		}
	}

	require.Len(t, seen, len(units))
	for id, n := range seen {
		assert.Equal(t, 1, n, "unit %s appears in %d chapters", id, n)
	}
}

func TestBuildHierarchySortsByIndex(t *testing.T) {
	units := []models.TextUnit{
		unit("u3", "src", "third", 2, "C"),
		unit("u1", "src", "first", 0, "C"),
		unit("u2", "src", "second", 1, "C"),
	}

	tree := BuildHierarchy(units, "src")

	require.Len(t, tree.Chapters, 1)
	assert.Equal(t, []string{"u1", "u2", "u3"}, tree.Chapters[0].UnitIDs())
}

func TestNodeIDDeterministic(t *testing.T) {
	a := NodeID("src", "Chapter", "Section")
	b := NodeID("src", "Chapter", "Section")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)

	// Different paths and sources must not collide.
	assert.NotEqual(t, a, NodeID("src", "Chapter"))
	assert.NotEqual(t, a, NodeID("other", "Chapter", "Section"))
	// Separator prevents boundary ambiguity between path segments.
	assert.NotEqual(t, NodeID("src", "ab", "c"), NodeID("src", "a", "bc"))
}

func TestBuildHierarchyIDsStableAcrossRuns(t *testing.T) {
	units := []models.TextUnit{
		unit("u1", "src", "a", 0, "C1"),
		unit("u2", "src", "b", 1, "C1", "S1"),
	}

	first := BuildHierarchy(units, "src")
	second := BuildHierarchy(units, "src")

	assert.Equal(t, first.Chapters[0].ID, second.Chapters[0].ID)
	assert.Equal(t, first.Chapters[0].Sections[0].ID, second.Chapters[0].Sections[0].ID)
}
