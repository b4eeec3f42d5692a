package domain

type SegmentType string

const (
	SegmentSection   SegmentType = "section"
	SegmentTable     SegmentType = "table"
	SegmentTextBlock SegmentType = "text_block"
	SegmentParagraph SegmentType = "paragraph"
	SegmentPage      SegmentType = "page"
)

// Segment is a structurally coherent span of one page.
type Segment struct {
	ID       string      `json:"id"`
	Type     SegmentType `json:"type"`
	Page     int         `json:"page"`
	Depth    int         `json:"depth,omitempty"`
	Content  string      `json:"content"`
	Entities EntitySet   `json:"entities,omitempty"`
}
