package enrich

import (
	"strings"
	"unicode/utf8"

	"github.com/lysyi3m/patch-comb/app/changes"
)

const (
	MinChunkUnitLength = 20
	MaxChunkLength     = 500
	MaxChunks          = 10
)

// Chunks joins the sentence-like units of text into chunks of fewer than
// MaxChunkLength characters, keeping at most MaxChunks. A single unit longer
// than the budget becomes its own chunk.
func Chunks(text string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if chunk := strings.TrimSpace(current.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}

	for unit := range changes.Units(text, MinChunkUnitLength) {
		if utf8.RuneCountInString(current.String())+utf8.RuneCountInString(unit) >= MaxChunkLength {
			flush()
			if len(chunks) == MaxChunks {
				return chunks
			}
		}
		current.WriteString(unit)
		current.WriteString(". ")
	}
	flush()

	if len(chunks) > MaxChunks {
		chunks = chunks[:MaxChunks]
	}
	return chunks
}
