package summarizer

import (
	"strings"
	"unicode/utf8"
)

// ChunkConfig controls how long content is split before summarizing.
type ChunkConfig struct {
	MaxChunkChars int      // Max characters per chunk
	OverlapChars  int      // Characters carried over from the previous chunk
	Separators    []string // Preferred split points, coarsest first
}

// DefaultChunkConfig splits on paragraphs, then lines, at 10k characters.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChunkChars: 10000,
		OverlapChars:  500,
		Separators:    []string{"\n\n", "\n"},
	}
}

func (c ChunkConfig) normalized() ChunkConfig {
	def := DefaultChunkConfig()
	if c.MaxChunkChars <= 0 {
		c.MaxChunkChars = def.MaxChunkChars
	}
	if c.OverlapChars < 0 || c.OverlapChars >= c.MaxChunkChars {
		c.OverlapChars = 0
	}
	if len(c.Separators) == 0 {
		c.Separators = def.Separators
	}
	return c
}

// SplitIntoChunks splits content into chunks of at most MaxChunkChars.
// Content that already fits is returned as a single chunk. Pieces are cut at
// the coarsest separator that makes them fit, and consecutive chunks share up
// to OverlapChars of trailing text.
func SplitIntoChunks(content string, cfg ChunkConfig) []string {
	cfg = cfg.normalized()
	if len(content) <= cfg.MaxChunkChars {
		return []string{content}
	}

	pieces := splitPieces(content, cfg.Separators, cfg.MaxChunkChars)
	return mergePieces(pieces, cfg)
}

// splitPieces breaks text into pieces no longer than limit, keeping each
// separator attached to the piece it ends.
func splitPieces(text string, separators []string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	if len(separators) == 0 {
		return hardCut(text, limit)
	}

	sep, rest := separators[0], separators[1:]
	parts := strings.SplitAfter(text, sep)
	if len(parts) == 1 {
		return splitPieces(text, rest, limit)
	}

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if len(part) > limit {
			out = append(out, splitPieces(part, rest, limit)...)
			continue
		}
		out = append(out, part)
	}
	return out
}

func hardCut(text string, limit int) []string {
	out := make([]string, 0, len(text)/limit+1)
	for len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// mergePieces packs pieces greedily into chunks and seeds each new chunk
// with the tail pieces of the previous one that fit in the overlap budget.
func mergePieces(pieces []string, cfg ChunkConfig) []string {
	var (
		chunks  []string
		current []string
		size    int
	)

	flush := func() {
		if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, piece := range pieces {
		if size+len(piece) > cfg.MaxChunkChars && len(current) > 0 {
			flush()

			var carry []string
			carried := 0
			for i := len(current) - 1; i >= 0; i-- {
				if carried+len(current[i]) > cfg.OverlapChars || carried+len(current[i])+len(piece) > cfg.MaxChunkChars {
					break
				}
				carry = append([]string{current[i]}, carry...)
				carried += len(current[i])
			}
			current, size = carry, carried
		}
		current = append(current, piece)
		size += len(piece)
	}
	flush()

	return chunks
}
