package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ServiceHealth describes one dependency in the health response.
type ServiceHealth struct {
	Status string `json:"status"`
	URL    string `json:"url"`
}

// HealthResponse is the /health payload. Status is "healthy" only when
// every dependency answers; otherwise "degraded".
type HealthResponse struct {
	Status    string                   `json:"status"`
	Services  map[string]ServiceHealth `json:"services"`
	Timestamp string                   `json:"timestamp"`
}

// NewHealthHandler probes Ollama and the vector store concurrently with
// a short per-request deadline.
func NewHealthHandler(ollama HealthChecker, ollamaURL string, store HealthChecker, storeURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		var wg sync.WaitGroup
		var ollamaErr, storeErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			ollamaErr = ollama.Health(ctx)
		}()
		go func() {
			defer wg.Done()
			storeErr = store.Health(ctx)
		}()
		wg.Wait()

		response := HealthResponse{
			Status: "healthy",
			Services: map[string]ServiceHealth{
				"ollama": {Status: upDown(ollamaErr), URL: ollamaURL},
				"vector": {Status: upDown(storeErr), URL: storeURL},
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		status := http.StatusOK
		if ollamaErr != nil || storeErr != nil {
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, response)
	}
}

func upDown(err error) string {
	if err != nil {
		return "down"
	}
	return "up"
}
