package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shinhan-ai/kb-chatbot/internal/rag"
	"github.com/shinhan-ai/kb-chatbot/internal/upstream"
)

// apologyText replaces a failed assistant message's content so the UI
// never shows a half-generated answer.
const apologyText = "Sorry, an error occurred. Please try again."

// ContextRetriever fetches the chunks most similar to a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string) ([]rag.VectorSearchResult, error)
}

// Generator streams a completion for a prompt, invoking fn per token.
type Generator interface {
	GenerateStream(ctx context.Context, prompt string, fn func(token string) error) error
}

// Coordinator drives one chat turn through retrieval, prompt assembly,
// and generation, pushing token/done/error events to the client. Turn
// state progresses Retrieving -> Prompting -> Generating and ends
// Completed or Failed; any failure produces exactly one error event.
type Coordinator struct {
	retriever ContextRetriever
	generator Generator
	logger    zerolog.Logger

	// Endpoints included in connectivity hints when a dependency is
	// down.
	ollamaURL   string
	vectorDBURL string
}

// NewCoordinator creates a coordinator. The URLs are only used in
// user-facing failure hints.
func NewCoordinator(retriever ContextRetriever, generator Generator, ollamaURL, vectorDBURL string, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		retriever:   retriever,
		generator:   generator,
		logger:      logger.With().Str("component", "chat").Logger(),
		ollamaURL:   ollamaURL,
		vectorDBURL: vectorDBURL,
	}
}

// HandleTurn processes one inbound message to completion. Retrieval
// strictly precedes prompt assembly, which strictly precedes
// generation; tokens are forwarded in production order. Cancelling ctx
// finalizes the assistant message and drops any tokens still in flight;
// no further events are emitted for the turn.
func (c *Coordinator) HandleTurn(ctx context.Context, session *Session, req SendRequest, emit Emitter) {
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = "default"
	}

	session.AddUserMessage(req.Message)
	messageID := session.BeginAssistantMessage()

	// Retrieving. Zero results is not an error: the turn proceeds with
	// an empty context.
	results, err := c.retriever.Retrieve(ctx, req.Message)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			c.finishCancelled(session, messageID)
			return
		}
		c.failTurn(session, conversationID, messageID, err, emit)
		return
	}

	// Prompting. Pure and synchronous, cannot fail.
	prompt := rag.BuildPrompt(req.Message, results, rag.ParseLanguage(req.Language))

	// Generating.
	err = c.generator.GenerateStream(ctx, prompt.FullPrompt, func(token string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		session.AppendToken(messageID, token)
		emit.Token(TokenEvent{
			Token:          token,
			ConversationID: conversationID,
			MessageID:      messageID,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.finishCancelled(session, messageID)
			return
		}
		c.failTurn(session, conversationID, messageID, err, emit)
		return
	}

	// Completed. Sources report everything retrieved, not just chunks
	// that visibly influenced the answer.
	sources := make([]rag.ChunkMetadata, len(results))
	for i, r := range results {
		sources[i] = r.Metadata
	}
	session.Finalize(messageID, "", sources)
	emit.Done(DoneEvent{
		ConversationID: conversationID,
		MessageID:      messageID,
		Sources:        sources,
	})
}

// finishCancelled finalizes a stopped turn without emitting any events:
// the stop was the client's own request, not a failure.
func (c *Coordinator) finishCancelled(session *Session, messageID string) {
	session.Finalize(messageID, "", nil)
	c.logger.Debug().Str("message_id", messageID).Msg("turn cancelled")
}

// failTurn finalizes the assistant message with the apology text and
// emits a single error event with a dependency hint. No retry.
func (c *Coordinator) failTurn(session *Session, conversationID, messageID string, err error, emit Emitter) {
	c.logger.Error().Err(err).Str("message_id", messageID).Msg("chat turn failed")
	session.Finalize(messageID, apologyText, nil)
	emit.Error(ErrorEvent{
		ConversationID: conversationID,
		Error:          c.userMessage(err),
	})
}

// userMessage maps a classified upstream failure to a human-readable
// hint identifying the dependency that is likely down.
func (c *Coordinator) userMessage(err error) string {
	var ue *upstream.Error
	if !errors.As(err, &ue) {
		return "An error occurred while processing your message."
	}

	switch ue.Service {
	case upstream.ServiceOllama:
		if ue.Kind == upstream.KindUnavailable {
			return fmt.Sprintf("Cannot connect to the AI service. Please ensure Ollama is running at %s", c.ollamaURL)
		}
		return "The AI service returned an error. Please try again later."
	case upstream.ServiceVectorDB:
		if ue.Kind == upstream.KindUnavailable {
			return fmt.Sprintf("Cannot connect to the vector database. Please ensure it is running at %s", c.vectorDBURL)
		}
		return "The vector database returned an error. Please try again later."
	}
	return "An error occurred while processing your message."
}
