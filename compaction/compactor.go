// Package compaction bounds the size of result payloads while preserving a
// fixed whitelist of essential fields.
package compaction

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/caremesh/logging"
)

// DefaultThreshold is the compaction threshold used when none is configured.
const DefaultThreshold = 0.8

// maxProcedureDetailsLen bounds the primary content field after compaction.
const maxProcedureDetailsLen = 2000

// maxReferences caps the references list after compaction.
const maxReferences = 5

// essentialFields survive compaction; everything else is dropped.
var essentialFields = []string{
	"service_name", "setting", "procedure_details",
	"validation", "equipment", "context",
}

// Compactor shrinks oversized payloads. Compaction is idempotent at a fixed
// threshold: compacting an already-compacted payload yields the same fields
// and lengths.
type Compactor struct {
	threshold float64
	logger    logging.Logger
}

// Options holds configuration overrides for NewCompactor.
type Options struct {
	Threshold float64
	Logger    logging.Logger
}

// NewCompactor constructs a Compactor with the default threshold.
func NewCompactor(optFns ...func(o *Options)) *Compactor {
	opts := Options{Threshold: DefaultThreshold, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Compactor{threshold: opts.Threshold, logger: opts.Logger}
}

// Compact estimates the serialized size of data and returns it unchanged
// when below threshold*1000 bytes. Oversized payloads are reduced to the
// essential field whitelist, with procedure_details truncated (marker
// appended) and references capped at the first five entries. A threshold of
// zero falls back to the configured default.
func (c *Compactor) Compact(data map[string]any, threshold float64) map[string]any {
	if threshold <= 0 {
		threshold = c.threshold
	}

	size := estimateSize(data)
	if float64(size) < threshold*1000 {
		return data
	}

	compacted := make(map[string]any, len(essentialFields)+1)
	for _, field := range essentialFields {
		if v, ok := data[field]; ok {
			compacted[field] = v
		}
	}

	if details, ok := compacted["procedure_details"].(string); ok && len(details) > maxProcedureDetailsLen {
		compacted["procedure_details"] = details[:maxProcedureDetailsLen] + "..."
	}

	if refs, ok := data["references"].([]any); ok {
		if len(refs) > maxReferences {
			refs = refs[:maxReferences]
		}
		compacted["references"] = refs
	}

	c.logger.Debug("context compacted original_size=%d compacted_size=%d", size, estimateSize(compacted))

	return compacted
}

// estimateSize approximates payload size via JSON serialization, falling
// back to the fmt representation for unmarshalable values.
func estimateSize(data map[string]any) int {
	raw, err := json.Marshal(data)
	if err != nil {
		return len(fmt.Sprint(data))
	}
	return len(raw)
}
