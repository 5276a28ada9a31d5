package rag

import (
	"fmt"
	"regexp"
	"strings"
)

// Default chunking parameters. Size is a soft character threshold
// checked at paragraph boundaries; overlap is expressed in characters
// and converted to words when seeding the next chunk.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 150
)

var headingPattern = regexp.MustCompile(`^#{1,3}\s+(.+)$`)

// Chunker splits raw document text into overlapping chunks aligned to
// paragraph boundaries, tracking the most recent markdown heading as the
// section label.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given size and overlap in
// characters. Non-positive values fall back to the defaults.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap <= 0 {
		overlap = DefaultChunkOverlap
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into ordered chunks. Paragraphs are delimited by
// blank lines and never split internally: a single paragraph longer than
// the chunk size becomes one oversized chunk. When a chunk closes, the
// next one is seeded with the last overlap/4 words of the closed chunk
// (treating 4 chars as an average word length), so consecutive chunks
// share trailing context.
func (c *Chunker) Chunk(text, source string) []DocumentChunk {
	var chunks []DocumentChunk

	paragraphs := splitParagraphs(text)
	currentChunk := ""
	currentSection := ""
	chunkIndex := 0

	for _, para := range paragraphs {
		trimmed := strings.TrimSpace(para)
		if trimmed == "" {
			continue
		}

		if m := headingPattern.FindStringSubmatch(trimmed); m != nil {
			currentSection = strings.TrimSpace(m[1])
		}

		if len(currentChunk)+len(trimmed) > c.size && len(currentChunk) > 0 {
			chunks = append(chunks, newChunk(currentChunk, source, currentSection, chunkIndex))
			chunkIndex++

			words := strings.Fields(currentChunk)
			n := c.overlap / 4
			if n > len(words) {
				n = len(words)
			}
			overlapWords := words[len(words)-n:]
			currentChunk = strings.Join(overlapWords, " ") + "\n\n" + trimmed
		} else {
			if currentChunk != "" {
				currentChunk += "\n\n"
			}
			currentChunk += trimmed
		}
	}

	if strings.TrimSpace(currentChunk) != "" {
		chunks = append(chunks, newChunk(currentChunk, source, currentSection, chunkIndex))
	}

	return chunks
}

var blankLinePattern = regexp.MustCompile(`\n\s*\n`)

// splitParagraphs splits on blank-line boundaries (a newline, optional
// whitespace, another newline).
func splitParagraphs(text string) []string {
	return blankLinePattern.Split(text, -1)
}

func newChunk(content, source, section string, index int) DocumentChunk {
	meta := ChunkMetadata{
		Source:     source,
		ChunkIndex: index,
	}
	if section != "" {
		meta.Section = section
	}
	return DocumentChunk{
		ID:       fmt.Sprintf("%s-chunk-%d", source, index),
		Content:  strings.TrimSpace(content),
		Metadata: meta,
	}
}
