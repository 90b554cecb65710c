package models

// Document is the raw text of one file under the data directory.
type Document struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// Chunk is a bounded slice of a Document used as the unit of retrieval.
type Chunk struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Index   int    `json:"index"`
	Content string `json:"content"`
}

type SearchResult struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
}
