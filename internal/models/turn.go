// Package models defines audit structures for FixPipe.
package models

// Turn records one dispatched chat turn for auditing.
type Turn struct {
	SessionID string       `json:"session_id"`
	Query     string       `json:"query"`
	Type      ResponseType `json:"type"`
	LatencyMS int64        `json:"latency_ms"`
	Time      int64        `json:"time"`
}
