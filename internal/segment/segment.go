// Package segment packs an ordered group map into size-bounded batches so
// that each batch fits one completion request's token budget.
package segment

import (
	"log/slog"
	"strconv"

	"github.com/dgallion1/doctrans/internal/htmldoc"
)

// TokenCounter reports the number of model tokens in a string. The active
// model's tokenizer can be plugged in; EstimateTokens is the default.
type TokenCounter func(string) int

// Config controls segmentation.
type Config struct {
	MaxTokens int          // Token budget per segment.
	Counter   TokenCounter // Defaults to EstimateTokens.
	Log       *slog.Logger // Defaults to slog.Default.
}

// Entry pairs a group with its segment-local key ("0", "1", ...).
type Entry struct {
	Key   string
	Group *htmldoc.InlineGroup
}

// Segment is an ordered batch of groups sized for one request.
type Segment []Entry

// Split walks groups in order and packs them into segments whose combined
// token counts balance around ceil(total/nSeg). A segment is closed only
// once its running total already exceeds that target, so a segment may
// modestly exceed MaxTokens; downstream request sizing relies on this
// heuristic being approximate, not a hard ceiling. A single group larger
// than MaxTokens cannot be sent at all and is skipped with a warning.
//
// Every group that is not individually oversized lands in exactly one
// segment, in original relative order.
func Split(groups htmldoc.GroupMap, cfg Config) []Segment {
	counter := cfg.Counter
	if counter == nil {
		counter = EstimateTokens
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	total := 0
	for _, e := range groups {
		total += counter(e.Group.String())
	}
	if total == 0 {
		return nil
	}

	nSeg := (total + cfg.MaxTokens - 1) / cfg.MaxTokens
	target := (total + nSeg - 1) / nSeg

	var out []Segment
	var seg Segment
	tokenCnt := 0
	cnt := 0
	for _, e := range groups {
		n := counter(e.Group.String())
		if n > cfg.MaxTokens {
			log.Warn("group exceeds segment token budget, skipping",
				"key", e.Key, "tokens", n, "max_tokens", cfg.MaxTokens)
			continue
		}
		if tokenCnt > target && len(seg) > 0 {
			out = append(out, seg)
			seg = nil
			tokenCnt = 0
			cnt = 0
		}
		seg = append(seg, Entry{Key: strconv.Itoa(cnt), Group: e.Group})
		cnt++
		tokenCnt += n
	}
	// The final segment is appended even when rounding left it under-full.
	out = append(out, seg)
	return out
}
