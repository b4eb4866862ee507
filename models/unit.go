package models

// UnitPosition carries the structural metadata a parser recorded for a unit.
// Headings is the ordered list of ancestor headings from the document root
// down to the unit; the hierarchy builder reads the first two entries.
type UnitPosition struct {
	Headings []string `bson:"headings,omitempty" json:"headings,omitempty"`
	Page     int      `bson:"page,omitempty" json:"page,omitempty"`
	Line     int      `bson:"line,omitempty" json:"line,omitempty"`
}

// TextUnit is the smallest retrievable piece of source content.
// Units are created once at ingest time and never mutated.
type TextUnit struct {
	ID          string       `bson:"unit_id" json:"unit_id"`
	SourceID    string       `bson:"source_id" json:"source_id"`
	Content     string       `bson:"content" json:"content"`
	Index       int          `bson:"index" json:"index"`
	Position    UnitPosition `bson:"position" json:"position"`
	Compressed  bool         `bson:"compressed,omitempty" json:"-"`
	Compression string       `bson:"compression,omitempty" json:"-"`
}
