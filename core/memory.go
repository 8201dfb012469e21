package core

import "time"

// MemoryRecord is one entry in the memory bank. IDs are stable and
// monotonically increasing, independent of the record's buffer position, so
// index references survive eviction of unrelated records.
type MemoryRecord struct {
	ID         int64          `json:"id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Importance float64        `json:"importance"`
	Timestamp  time.Time      `json:"timestamp"`
}

// ScoredMemory pairs a record with its keyword-match relevance score for a
// given query.
type ScoredMemory struct {
	MemoryRecord
	RelevanceScore float64 `json:"relevance_score"`
}

// MemoryBank is a bounded, append-mostly recall store with keyword
// retrieval. Implementations must serialize concurrent access: the bank is
// shared across parallel session workflows.
type MemoryBank interface {
	// Add appends a record (evicting the oldest at capacity) and returns its
	// stable id. Importance is clamped to [0, 1].
	Add(content string, metadata map[string]any, importance float64) int64

	// Retrieve returns up to limit records sharing keywords with the query,
	// filtered by minimum importance and sorted descending by
	// (relevance score, importance).
	Retrieve(query string, limit int, minImportance float64) []ScoredMemory

	// Recent returns the most recent records, oldest first.
	Recent(limit int) []MemoryRecord

	// Clear removes all records and index entries.
	Clear()
}
