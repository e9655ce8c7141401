package generator

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordedRequest is what the fake endpoint saw for one call.
type recordedRequest struct {
	Path   string
	Query  map[string]string
	Header http.Header
	Body   map[string]any
}

type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	status   int
	reply    string
	chunks   []string
}

// newFakeServer serves chat completions. Streaming requests get chunks
// (one SSE event per element), the rest get a single JSON completion.
func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{status: http.StatusOK, reply: "Hello there!"}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	query := map[string]string{}
	for k := range r.URL.Query() {
		query[k] = r.URL.Query().Get(k)
	}

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Path:   r.URL.Path,
		Query:  query,
		Header: r.Header.Clone(),
		Body:   body,
	})
	status, reply, chunks := f.status, f.reply, f.chunks
	f.mu.Unlock()

	if status != http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, `{"error":{"message":"boom","type":"server_error"}}`)
		return
	}

	if stream, _ := body["stream"].(bool); stream {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		// Azure opens with a chunk that has no choices.
		fmt.Fprint(w, `data: {"id":"","object":"","created":0,"model":"","choices":[]}`+"\n\n")
		for _, c := range chunks {
			fmt.Fprintf(w, `data: {"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`+"\n\n", c)
		}
		fmt.Fprint(w, `data: {"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": %q}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
	}`, reply)
}

func (f *fakeServer) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

// clearEnv unsets the given variables for the duration of the test.
func clearEnv(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		prev, had := os.LookupEnv(name)
		require.NoError(t, os.Unsetenv(name))
		t.Cleanup(func() {
			if had {
				os.Setenv(name, prev)
			} else {
				os.Unsetenv(name)
			}
		})
	}
}

func clearGeneratorEnv(t *testing.T) {
	clearEnv(t,
		envAzureEndpoint,
		envAzureAPIKey,
		envAzureADToken,
		envOpenAIAPIKey,
		envTimeout,
		envMaxRetries,
		"OPENAI_BASE_URL",
		"OPENAI_ORG_ID",
		"OPENAI_PROJECT_ID",
	)
}

func messagesOf(t *testing.T, body map[string]any) []map[string]any {
	t.Helper()
	raw, ok := body["messages"].([]any)
	require.True(t, ok, "messages missing from body: %v", body)
	out := make([]map[string]any, 0, len(raw))
	for _, m := range raw {
		msg, ok := m.(map[string]any)
		require.True(t, ok)
		out = append(out, msg)
	}
	return out
}

func contentText(msg map[string]any) string {
	return fmt.Sprint(msg["content"])
}

func joinChunks(chunks []StreamingChunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Content)
	}
	return b.String()
}
