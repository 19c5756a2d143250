package model

// SourceItem is metadata for one video as reported by the extractor.
type SourceItem struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	DurationSeconds float64 `json:"duration"`
}

// SourceInfo is the resolved metadata for a source reference. Children is set
// for multi-video sources and keeps the source's ordering.
type SourceInfo struct {
	SourceItem
	Children []SourceItem `json:"children,omitempty"`
}
