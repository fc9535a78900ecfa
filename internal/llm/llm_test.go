package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func completionBody(content string) string {
	return fmt.Sprintf(`{"id":"cmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, content)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/v1", "test-key", 5*time.Second)
}

func TestGenerate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody(`{"stem":"ok"}`))
	})

	client := newTestClient(t, mux)
	out, err := client.Generate(context.Background(), "test-model", "prompt")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != `{"stem":"ok"}` {
		t.Errorf("Generate() = %q", out)
	}
}

func TestGenerateNoChoices(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cmpl-1","object":"chat.completion","choices":[]}`)
	})

	client := newTestClient(t, mux)
	_, err := client.Generate(context.Background(), "test-model", "prompt")
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error = %v, want *GenerationError", err)
	}
	if genErr.Status != http.StatusOK {
		t.Errorf("status = %d, want 200", genErr.Status)
	}
}

func TestGenerateBackendError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"model is loading","type":"server_error"}}`)
	})

	client := newTestClient(t, mux)
	_, err := client.Generate(context.Background(), "test-model", "prompt")
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error = %v, want *GenerationError", err)
	}
	if genErr.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", genErr.Status)
	}
	if genErr.Body != "model is loading" {
		t.Errorf("body = %q", genErr.Body)
	}
}

func TestGenerateUnreachableBackend(t *testing.T) {
	// Point at a closed port.
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client := New(addr+"/v1", "test-key", time.Second)
	_, err := client.Generate(context.Background(), "test-model", "prompt")
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if tErr.Unwrap() == nil {
		t.Error("TransportError should carry its cause")
	}
}

func TestGenerateStream(t *testing.T) {
	fragments := []string{`{"stem":`, `"streamed`, ` question"}`}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frag := range fragments {
			fmt.Fprintf(w, "data: {\"id\":\"cmpl-1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", frag)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	client := newTestClient(t, mux)
	out, err := client.GenerateStream(context.Background(), "test-model", "prompt")
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}
	want := `{"stem":"streamed question"}`
	if out != want {
		t.Errorf("GenerateStream() = %q, want %q", out, want)
	}
}

func TestPing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"test-model","object":"model"}]}`)
	})

	client := newTestClient(t, mux)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}
