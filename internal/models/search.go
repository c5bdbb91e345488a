// Package models defines knowledge base search structures for FixPipe.
package models

// SearchHit is one knowledge base search result.
type SearchHit struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Page    string  `json:"page"`
	Score   float64 `json:"score"`
}
