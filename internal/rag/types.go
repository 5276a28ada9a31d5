// Package rag implements the retrieval-augmented generation core: text
// chunking, retrieval orchestration, and grounded prompt assembly.
package rag

// ChunkMetadata describes where a chunk came from. Source is always set;
// Section only when a heading preceded the chunk's content at chunking
// time.
type ChunkMetadata struct {
	Source     string `json:"source"`
	Section    string `json:"section,omitempty"`
	ChunkIndex int    `json:"chunkIndex"`
}

// DocumentChunk is a bounded segment of a source document, the unit of
// embedding and retrieval. The ID is deterministic per source+index and
// the chunk is immutable once stored.
type DocumentChunk struct {
	ID       string
	Content  string
	Metadata ChunkMetadata
}

// VectorSearchResult is one nearest-neighbor match. Score is a
// similarity, not a distance (score = 1 - cosine distance); higher is
// more relevant.
type VectorSearchResult struct {
	ID       string
	Document string
	Metadata ChunkMetadata
	Score    float64
}

// RAGPrompt is a grounded prompt, fully derived from its inputs and
// recomputed per query.
type RAGPrompt struct {
	System     string
	Context    string
	Question   string
	FullPrompt string
}

// Language selects the response language directive for prompt assembly.
type Language string

const (
	LanguageAuto       Language = "auto"
	LanguageEnglish    Language = "en"
	LanguageVietnamese Language = "vi"
	LanguageKorean     Language = "ko"
)

// ParseLanguage maps a client-supplied language tag to a Language,
// falling back to auto-detection for anything unrecognized.
func ParseLanguage(s string) Language {
	switch Language(s) {
	case LanguageEnglish, LanguageVietnamese, LanguageKorean:
		return Language(s)
	default:
		return LanguageAuto
	}
}
