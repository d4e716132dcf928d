// Package metadata generates the per-chunk metadata object stored in
// the chunks table. Keywords are frequency-based; summary and
// hypothetical_questions are reserved fields kept empty until a
// generation stage exists.
package metadata

import (
	"regexp"
	"sort"
	"strings"

	"github.com/prorag/ingest/chunker"
)

// MaxKeywords caps how many keywords each chunk carries.
const MaxKeywords = 8

var wordRe = regexp.MustCompile(`[a-zA-Z]{3,}`)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "shall": true, "can": true, "need": true,
	"must": true, "it": true, "its": true, "this": true, "that": true,
	"these": true, "those": true, "i": true, "you": true, "he": true,
	"she": true, "we": true, "they": true, "me": true, "him": true,
	"her": true, "us": true, "them": true, "my": true, "your": true,
	"his": true, "our": true, "their": true, "what": true, "which": true,
	"who": true, "whom": true, "when": true, "where": true, "why": true,
	"how": true, "all": true, "each": true, "every": true, "both": true,
	"few": true, "more": true, "most": true, "other": true, "some": true,
	"such": true, "no": true, "not": true, "only": true, "own": true,
	"same": true, "so": true, "than": true, "too": true, "very": true,
	"just": true, "because": true, "as": true, "until": true, "while": true,
	"about": true, "between": true, "through": true, "during": true,
	"before": true, "after": true, "above": true, "below": true,
	"up": true, "down": true, "out": true, "off": true, "over": true,
	"under": true, "again": true, "further": true, "then": true,
	"once": true, "here": true, "there": true, "also": true, "if": true,
	"into": true,
}

// Keywords extracts up to max keywords: lowercase alphabetic runs of
// three or more letters, stop words removed, ranked by frequency with
// first occurrence breaking ties.
func Keywords(text string, max int) []string {
	counts := make(map[string]int)
	var order []string

	for _, w := range wordRe.FindAllString(text, -1) {
		w = strings.ToLower(w)
		if stopWords[w] {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	if len(order) == 0 {
		return []string{}
	}

	firstSeen := make(map[string]int, len(order))
	for i, w := range order {
		firstSeen[w] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return firstSeen[order[i]] < firstSeen[order[j]]
	})

	if len(order) > max {
		order = order[:max]
	}
	return order
}

// ForChunk builds the metadata object for one chunk. Table chunks keep
// the table format under a nested key; extraction metadata like row
// counts does not survive into the stored object.
func ForChunk(text, kind string, extra map[string]any) map[string]any {
	m := map[string]any{
		"summary":                "",
		"keywords":               Keywords(text, MaxKeywords),
		"hypothetical_questions": []string{},
	}
	if kind == "table" && extra != nil {
		if format, ok := extra["format"]; ok {
			m["table"] = map[string]any{"format": format}
		}
	}
	return m
}

// Apply replaces each chunk's Meta with its generated metadata object.
func Apply(chunks []chunker.Chunk) {
	for i := range chunks {
		var extra map[string]any
		if chunks[i].Kind == "table" {
			extra = chunks[i].Meta
		}
		chunks[i].Meta = ForChunk(chunks[i].Text, chunks[i].Kind, extra)
	}
}
