package services

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"knowledge-extraction-platform/models"
)

// unknownChapterTitle is the shared bucket for units without heading
// metadata so no unit is ever dropped from the hierarchy.
const unknownChapterTitle = "unknown"

// SectionNode groups the units that share a chapter+section heading prefix.
type SectionNode struct {
	ID    string
	Title string
	Units []models.TextUnit
}

// ChapterNode groups the units that share a leading heading. A chapter owns
// every unit under it, including units that also belong to one of its
// sections.
type ChapterNode struct {
	ID       string
	Title    string
	Units    []models.TextUnit
	Sections []*SectionNode
}

// HierarchyTree is the in-memory chapter/section/unit view of one source.
// It is rebuilt for each extraction run and never persisted; node IDs are
// reused as context_id on extraction records.
type HierarchyTree struct {
	SourceID string
	Chapters []*ChapterNode
}

// UnitIDs returns the ordered IDs of the units under a section.
func (n *SectionNode) UnitIDs() []string { return unitIDs(n.Units) }

// UnitIDs returns the ordered IDs of the units under a chapter.
func (n *ChapterNode) UnitIDs() []string { return unitIDs(n.Units) }

func unitIDs(units []models.TextUnit) []string {
	ids := make([]string, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}
	return ids
}

// BuildHierarchy groups a flat, position-annotated unit stream into a
// chapter -> section -> unit tree. Units are walked in index order; the first
// heading names the chapter, the second names the section within it. Repeated
// heading paths reuse the already-open node so a unit can never land in two
// nodes with the same identity, and units without headings share a single
// "unknown" chapter per source. O(n) in the number of units.
func BuildHierarchy(units []models.TextUnit, sourceID string) *HierarchyTree {
	ordered := make([]models.TextUnit, len(units))
	copy(ordered, units)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	tree := &HierarchyTree{SourceID: sourceID}
	chapters := make(map[string]*ChapterNode)
	sections := make(map[string]*SectionNode)

	for _, unit := range ordered {
		chapterTitle := unknownChapterTitle
		sectionTitle := ""
		if len(unit.Position.Headings) > 0 && unit.Position.Headings[0] != "" {
			chapterTitle = unit.Position.Headings[0]
		}
		if len(unit.Position.Headings) > 1 {
			sectionTitle = unit.Position.Headings[1]
		}

		chapterID := NodeID(sourceID, chapterTitle)
		chapter, ok := chapters[chapterID]
		if !ok {
			chapter = &ChapterNode{ID: chapterID, Title: chapterTitle}
			chapters[chapterID] = chapter
			tree.Chapters = append(tree.Chapters, chapter)
		}
		chapter.Units = append(chapter.Units, unit)

		if sectionTitle == "" {
			continue
		}
		sectionID := NodeID(sourceID, chapterTitle, sectionTitle)
		section, ok := sections[sectionID]
		if !ok {
			section = &SectionNode{ID: sectionID, Title: sectionTitle}
			sections[sectionID] = section
			chapter.Sections = append(chapter.Sections, section)
		}
		section.Units = append(section.Units, unit)
	}

	return tree
}

// NodeID derives a stable hierarchy node identity from the source and the
// heading path. Rebuilding the tree from the same units must always yield
// the same IDs, since extraction records reference them as context_id across
// independent runs.
func NodeID(sourceID string, headingPath ...string) string {
	h := sha256.New()
	h.Write([]byte(sourceID))
	for _, heading := range headingPath {
		h.Write([]byte{0})
		h.Write([]byte(heading))
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}
