// Package memory implements the bounded memory bank: an append-mostly recall
// store with a keyword inverted index and oldest-first eviction.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/caremesh/core"
	"github.com/hupe1980/caremesh/logging"
)

// DefaultCapacity bounds the bank when no capacity override is supplied.
const DefaultCapacity = 1000

// stopWords are excluded from keyword extraction.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {},
}

// maxKeywords caps how many keywords a single text contributes.
const maxKeywords = 10

// Bank is a fixed-capacity core.MemoryBank. Records carry stable,
// monotonically increasing ids independent of their buffer position; the
// inverted index stores those ids and is pruned on eviction so no index
// entry ever resolves to an absent record. All operations are serialized:
// the bank is shared by concurrently running session workflows.
type Bank struct {
	mu       sync.RWMutex
	capacity int
	nextID   int64
	records  []core.MemoryRecord    // ordered oldest -> newest
	byID     map[int64]int          // stable id -> current slot
	index    map[string][]int64     // keyword -> stable ids
	logger   logging.Logger
	metrics  core.MetricsRecorder
}

// Options holds configuration overrides for NewBank.
type Options struct {
	Capacity int
	Logger   logging.Logger
	Metrics  core.MetricsRecorder
}

// NewBank constructs an empty bank with the given options.
func NewBank(optFns ...func(o *Options)) *Bank {
	opts := Options{Capacity: DefaultCapacity, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Capacity < 1 {
		opts.Capacity = 1
	}
	b := &Bank{
		capacity: opts.Capacity,
		byID:     make(map[int64]int),
		index:    make(map[string][]int64),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
	return b
}

// Add appends a record, evicting the oldest when the bank is at capacity,
// and indexes the record's keywords. It returns the record's stable id.
func (b *Bank) Add(content string, metadata map[string]any, importance float64) int64 {
	if importance < 0 {
		importance = 0
	} else if importance > 1 {
		importance = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.records) >= b.capacity {
		b.evictOldestLocked()
	}

	rec := core.MemoryRecord{
		ID:         b.nextID,
		Content:    content,
		Metadata:   metadata,
		Importance: importance,
		Timestamp:  time.Now().UTC(),
	}
	b.nextID++

	b.byID[rec.ID] = len(b.records)
	b.records = append(b.records, rec)

	for _, kw := range extractKeywords(content) {
		b.index[kw] = append(b.index[kw], rec.ID)
	}

	b.logger.Debug("memory added id=%d importance=%.2f", rec.ID, importance)
	if b.metrics != nil {
		b.metrics.RecordMemoryOperation("add")
	}

	return rec.ID
}

// Retrieve scores every record sharing a keyword with the query by the
// count of shared keywords, filters by minimum importance and returns the
// top limit results sorted descending by (relevance score, importance).
func (b *Bank) Retrieve(query string, limit int, minImportance float64) []core.ScoredMemory {
	keywords := extractKeywords(query)

	b.mu.RLock()
	defer b.mu.RUnlock()

	scores := make(map[int64]float64)
	for _, kw := range keywords {
		for _, id := range b.index[kw] {
			scores[id]++
		}
	}

	results := make([]core.ScoredMemory, 0, len(scores))
	for id, score := range scores {
		slot, ok := b.byID[id]
		if !ok {
			continue
		}
		rec := b.records[slot]
		if rec.Importance >= minImportance {
			results = append(results, core.ScoredMemory{MemoryRecord: rec, RelevanceScore: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RelevanceScore != results[j].RelevanceScore {
			return results[i].RelevanceScore > results[j].RelevanceScore
		}
		return results[i].Importance > results[j].Importance
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	if b.metrics != nil {
		b.metrics.RecordMemoryOperation("retrieve")
	}

	return results
}

// Recent returns the most recent limit records, oldest first.
func (b *Bank) Recent(limit int) []core.MemoryRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	start := 0
	if limit > 0 && len(b.records) > limit {
		start = len(b.records) - limit
	}
	out := make([]core.MemoryRecord, len(b.records)-start)
	copy(out, b.records[start:])
	return out
}

// Clear removes all records and index entries.
func (b *Bank) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = nil
	b.byID = make(map[int64]int)
	b.index = make(map[string][]int64)
	b.logger.Info("memory bank cleared")
	if b.metrics != nil {
		b.metrics.RecordMemoryOperation("clear")
	}
}

// Len returns the number of stored records.
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// evictOldestLocked drops the oldest record, removes its id from the reverse
// lookup, reindexes the remaining slots and prunes the evicted id from every
// keyword posting list it contributed to. Caller must hold the write lock.
func (b *Bank) evictOldestLocked() {
	evicted := b.records[0]
	b.records = b.records[1:]
	delete(b.byID, evicted.ID)
	for id, slot := range b.byID {
		b.byID[id] = slot - 1
	}

	for _, kw := range extractKeywords(evicted.Content) {
		ids := b.index[kw]
		kept := ids[:0]
		for _, id := range ids {
			if id != evicted.ID {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(b.index, kw)
		} else {
			b.index[kw] = kept
		}
	}

	b.logger.Debug("memory evicted id=%d", evicted.ID)
	if b.metrics != nil {
		b.metrics.RecordMemoryOperation("evict")
	}
}

// extractKeywords lowercases the text and keeps words longer than three
// characters that are not stop words, capped at maxKeywords.
func extractKeywords(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	keywords := make([]string, 0, maxKeywords)
	for _, w := range words {
		if len(w) <= 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		keywords = append(keywords, w)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}
