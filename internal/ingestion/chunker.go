// internal/ingestion/chunker.go
package ingestion

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

var ErrInvalidChunkStrategy = errors.New("INVALID_CHUNK_STRATEGY")

// Chunking strategies. Each writes into its own collection so retrieval
// quality can be compared across them.
type Strategy string

const (
	StrategyCharacter Strategy = "character"
	StrategySemantic  Strategy = "semantic"
)

func ValidStrategy(s Strategy) bool {
	return s == StrategyCharacter || s == StrategySemantic
}

// Chunker splits one document's text into passages sized for embedding.
type Chunker interface {
	Split(text string) []string
}

// ChunkerFor returns the chunker implementing the named strategy.
func ChunkerFor(strategy Strategy, cfg *Config) (Chunker, error) {
	switch strategy {
	case StrategyCharacter:
		return NewCharacterChunker(cfg.ChunkSize, cfg.ChunkOverlap), nil
	case StrategySemantic:
		return NewSemanticChunker(cfg.ChunkSize, cfg.ChunkOverlap), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidChunkStrategy, strategy)
	}
}

// CharacterChunker cuts sliding windows of at most size runes, overlapping
// by overlap runes, preferring to break on whitespace in the back half of
// each window so words stay intact.
type CharacterChunker struct {
	size    int
	overlap int
}

func NewCharacterChunker(size, overlap int) *CharacterChunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	return &CharacterChunker{size: size, overlap: overlap}
}

func (c *CharacterChunker) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.size {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			if chunk := strings.TrimSpace(string(runes[start:])); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		cut := c.breakPoint(runes, start, end)
		if chunk := strings.TrimSpace(string(runes[start:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := cut - c.overlap
		if next <= start {
			// overlap would stall the window, step past the cut instead
			next = cut
		}
		start = next
	}
	return chunks
}

// breakPoint scans backwards for whitespace so the cut lands between words,
// but never gives up more than half the window.
func (c *CharacterChunker) breakPoint(runes []rune, start, end int) int {
	for i := end; i > start+c.size/2; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

// SemanticChunker packs whole paragraphs into chunks up to size runes.
// A single paragraph larger than the budget falls back to character
// windows so no chunk ever exceeds the embedding input limit.
type SemanticChunker struct {
	size     int
	fallback *CharacterChunker
}

func NewSemanticChunker(size, overlap int) *SemanticChunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	return &SemanticChunker{
		size:     size,
		fallback: NewCharacterChunker(size, overlap),
	}
}

func (s *SemanticChunker) Split(text string) []string {
	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = current[:0]
			currentLen = 0
		}
	}

	for _, raw := range paragraphBreak.Split(text, -1) {
		paragraph := strings.TrimSpace(raw)
		if paragraph == "" {
			continue
		}

		length := utf8.RuneCountInString(paragraph)
		if length > s.size {
			flush()
			chunks = append(chunks, s.fallback.Split(paragraph)...)
			continue
		}

		// +2 accounts for the paragraph separator
		if currentLen > 0 && currentLen+2+length > s.size {
			flush()
		}
		current = append(current, paragraph)
		currentLen += length
		if len(current) > 1 {
			currentLen += 2
		}
	}
	flush()

	return chunks
}
