package knowledge

import "strings"

// Chunker splits document text into overlapping chunks, preferring to break
// at paragraph, then line, then word boundaries before falling back to a hard
// character split.
type Chunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

const (
	DefaultChunkSize = 512
	DefaultOverlap   = 20
)

func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
	}
	return &Chunker{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: []string{"\n\n", "\n", " ", ""},
	}
}

// Split breaks text into chunks of at most chunkSize characters where each
// chunk after the first carries overlap characters from its predecessor
// (boundary adjustments at split points aside).
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	return c.splitRecursive(text, c.separators)
}

func (c *Chunker) splitRecursive(text string, separators []string) []string {
	if len(text) <= c.chunkSize {
		return []string{text}
	}

	separator := separators[len(separators)-1]
	rest := separators
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var parts []string
	if separator == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(text, separator)
	}

	// Oversized parts recurse with finer separators; the rest merge below.
	var splits []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if len(part) > c.chunkSize && len(rest) > 0 {
			splits = append(splits, c.splitRecursive(part, rest)...)
		} else {
			splits = append(splits, part)
		}
	}

	return c.merge(splits, separator)
}

// merge packs splits into chunks up to chunkSize, carrying overlap characters
// of trailing context into the next chunk.
func (c *Chunker) merge(splits []string, separator string) []string {
	sepLen := len(separator)

	var chunks []string
	var window []string
	total := 0

	flush := func() {
		if len(window) == 0 {
			return
		}
		chunk := strings.Join(window, separator)
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, split := range splits {
		addition := len(split)
		if len(window) > 0 {
			addition += sepLen
		}
		if total+addition > c.chunkSize && len(window) > 0 {
			flush()
			// Retain trailing splits as the next chunk's overlap.
			for total > c.overlap || (total+addition > c.chunkSize && total > 0) {
				removed := len(window[0])
				if len(window) > 1 {
					removed += sepLen
				}
				total -= removed
				window = window[1:]
				if len(window) == 0 {
					break
				}
			}
		}
		window = append(window, split)
		total += addition
	}
	flush()

	return chunks
}
