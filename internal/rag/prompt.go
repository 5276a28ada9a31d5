package rag

import (
	"fmt"
	"strings"
)

// SystemPrompt is the fixed grounding policy: answer only from provided
// context, refuse when the context is insufficient, never pull in
// outside knowledge.
const SystemPrompt = "You are a Shinhan Bank AI assistant. Answer ONLY using the provided context. " +
	"If the context does not contain enough information to answer, say so clearly " +
	"in the language you are responding in. Never use outside knowledge or invent " +
	"unrelated examples. Be professional and concise."

// Language directives appended to the system prompt. Auto asks the model
// to mirror the question's language; the fixed variants pin the response
// language regardless of the question.
const (
	directiveAuto = "Detect whether the question is written in English, Vietnamese, or Korean " +
		"and respond in that same language."
	directiveEnglish    = "Always respond in English, regardless of the language of the question."
	directiveVietnamese = "Always respond in Vietnamese (Tiếng Việt), regardless of the language of the question."
	directiveKorean     = "Always respond in Korean (한국어), regardless of the language of the question."
)

func languageDirective(lang Language) string {
	switch lang {
	case LanguageEnglish:
		return directiveEnglish
	case LanguageVietnamese:
		return directiveVietnamese
	case LanguageKorean:
		return directiveKorean
	default:
		return directiveAuto
	}
}

// BuildPrompt assembles a grounded prompt from the question and the
// retrieved chunks, in retrieval order. It is a pure function: identical
// inputs produce an identical RAGPrompt.
func BuildPrompt(question string, chunks []VectorSearchResult, lang Language) RAGPrompt {
	contextParts := make([]string, len(chunks))
	for i, chunk := range chunks {
		sourceInfo := fmt.Sprintf("[Source: %s]", chunk.Metadata.Source)
		if chunk.Metadata.Section != "" {
			sourceInfo = fmt.Sprintf("[Source: %s - %s]", chunk.Metadata.Source, chunk.Metadata.Section)
		}
		contextParts[i] = fmt.Sprintf("--- Context %d %s ---\n%s", i+1, sourceInfo, chunk.Document)
	}
	contextStr := strings.Join(contextParts, "\n\n")

	system := SystemPrompt + " " + languageDirective(lang)

	fullPrompt := fmt.Sprintf("%s\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:",
		system, contextStr, question)

	return RAGPrompt{
		System:     system,
		Context:    contextStr,
		Question:   question,
		FullPrompt: fullPrompt,
	}
}
