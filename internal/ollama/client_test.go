package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinhan-ai/kb-chatbot/internal/upstream"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL})
}

func TestEmbed_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultEmbedModel, req.Model)
		assert.Equal(t, "hello", req.Prompt)

		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	})

	embedding, err := client.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embedding)
}

func TestEmbed_NonSuccessResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, err := client.Embed(context.Background(), "hello")
	require.Error(t, err)

	var ue *upstream.Error
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, upstream.ServiceOllama, ue.Service)
	assert.Equal(t, upstream.KindFailed, ue.Kind)
}

func TestEmbed_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(Config{BaseURL: url})
	_, err := client.Embed(context.Background(), "hello")
	require.Error(t, err)

	var ue *upstream.Error
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, upstream.ServiceOllama, ue.Service)
	assert.Equal(t, upstream.KindUnavailable, ue.Kind)
}

func TestEmbedBatch_OrderPreserved(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Derive the vector from the prompt so ordering is observable.
		var n float32
		fmt.Sscanf(req.Prompt, "text-%f", &n)
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{n}})
	})

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}

	embeddings, err := client.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, embeddings, len(texts))
	for i, embedding := range embeddings {
		assert.Equal(t, []float32{float32(i)}, embedding, "embedding %d out of order", i)
	}
}

func TestEmbedBatch_SingleFailureFailsBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Prompt == "bad" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1}})
	})

	_, err := client.EmbedBatch(context.Background(), []string{"ok", "bad", "ok"})
	require.Error(t, err)

	var ue *upstream.Error
	assert.ErrorAs(t, err, &ue)
}

func TestGenerateStream_YieldsTokensThenTerminates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, DefaultChatModel, req.Model)

		fmt.Fprint(w, `{"response":"Hel","done":false}`+"\n")
		fmt.Fprint(w, `{"response":"lo","done":false}`+"\n")
		fmt.Fprint(w, `{"done":true}`+"\n")
		fmt.Fprint(w, `{"response":"never seen","done":false}`+"\n")
	})

	var tokens []string
	err := client.GenerateStream(context.Background(), "hi", func(token string) error {
		tokens = append(tokens, token)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, tokens)
}

func TestGenerateStream_SkipsMalformedRecords(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":"a","done":false}`+"\n")
		fmt.Fprint(w, "this is not json\n")
		fmt.Fprint(w, `{"response":"b","done":false}`+"\n")
		fmt.Fprint(w, `{"done":true}`+"\n")
	})

	var tokens []string
	err := client.GenerateStream(context.Background(), "hi", func(token string) error {
		tokens = append(tokens, token)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tokens)
}

func TestGenerateStream_InitialRequestFails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	err := client.GenerateStream(context.Background(), "hi", func(string) error {
		t.Fatal("callback must not run when the request fails")
		return nil
	})
	require.Error(t, err)

	var ue *upstream.Error
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, upstream.KindFailed, ue.Kind)
}

func TestGenerateStream_CallbackErrorStopsStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 100; i++ {
			fmt.Fprintf(w, `{"response":"t%d","done":false}`+"\n", i)
		}
		fmt.Fprint(w, `{"done":true}`+"\n")
	})

	stop := errors.New("stop")
	count := 0
	err := client.GenerateStream(context.Background(), "hi", func(string) error {
		count++
		if count == 3 {
			return stop
		}
		return nil
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 3, count)
}

func TestHealth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models":[]}`)
	})
	assert.NoError(t, client.Health(context.Background()))

	failing := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	assert.Error(t, failing.Health(context.Background()))
}
