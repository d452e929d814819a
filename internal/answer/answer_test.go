package answer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finsight/internal/domain"
)

var retrieved = []domain.RetrievalResult{
	{IndexEntry: domain.IndexEntry{ChunkID: 12, Page: 5, Text: "Total revenue was $2.4 billion in Q4 2023."}, Score: 0.91},
	{IndexEntry: domain.IndexEntry{ChunkID: 3, Page: 2, Text: "Operating costs rose 4%."}, Score: 0.55},
}

func TestBuildContext(t *testing.T) {
	got := BuildContext(retrieved)
	want := "[Page 5, Chunk 12]\nTotal revenue was $2.4 billion in Q4 2023.\n\n---\n[Page 2, Chunk 3]\nOperating costs rose 4%.\n"
	if got != want {
		t.Fatalf("BuildContext = %q\nwant %q", got, want)
	}
}

func TestLocalAnswer(t *testing.T) {
	long := domain.RetrievalResult{IndexEntry: domain.IndexEntry{ChunkID: 0, Page: 1, Text: strings.Repeat("x", 500)}}
	results := append([]domain.RetrievalResult{long}, retrieved...)
	results = append(results, domain.RetrievalResult{IndexEntry: domain.IndexEntry{ChunkID: 99, Page: 9, Text: "fourth"}})

	got, err := Local{}.Answer(context.Background(), "q", results, nil)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if !strings.Contains(got, "**Page 1, Chunk 0:**\n"+strings.Repeat("x", 300)+"...") {
		t.Fatalf("long chunk not truncated to 300 chars:\n%s", got)
	}
	if strings.Contains(got, "Chunk 99") {
		t.Fatalf("local answer should quote only the top 3 chunks")
	}
	if !strings.Contains(got, "GROQ_API_KEY") {
		t.Fatalf("missing local-mode note")
	}

	empty, _ := Local{}.Answer(context.Background(), "q", nil, nil)
	if empty != "No relevant information found in the document." {
		t.Fatalf("empty answer = %q", empty)
	}
}

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestGroqAnswer(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer gsk-test" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Revenue was $2.4B (page: 5, chunk: 12)"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()
	t.Setenv("TEST_GROQ_KEY", "gsk-test")

	g, err := NewGroq(GroqConfig{BaseURL: srv.URL, APIKeyEnv: "TEST_GROQ_KEY", Temperature: 0.3, HistoryWindow: 2})
	if err != nil {
		t.Fatalf("NewGroq failed: %v", err)
	}
	history := []domain.Message{
		{Role: domain.RoleUser, Content: "old question"},
		{Role: domain.RoleAssistant, Content: "old answer"},
		{Role: domain.RoleUser, Content: "recent question"},
	}
	out, err := g.Answer(context.Background(), "What was revenue?", retrieved, history)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if out != "Revenue was $2.4B (page: 5, chunk: 12)" {
		t.Fatalf("answer = %q", out)
	}
	if got.Model != DefaultGroqModel || got.MaxTokens != 1000 || got.Temperature != 0.3 {
		t.Fatalf("request = %+v", got)
	}
	if len(got.Messages) != 4 {
		t.Fatalf("expected system + 2 history + user, got %d messages", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[1].Content != "old answer" {
		t.Fatalf("unexpected message order: %+v", got.Messages)
	}
	last := got.Messages[3].Content
	if !strings.Contains(last, "[Page 5, Chunk 12]") || !strings.Contains(last, "User question: What was revenue?") {
		t.Fatalf("user message lacks context: %q", last)
	}
}

func TestNewGroqWithoutKey(t *testing.T) {
	t.Setenv("TEST_GROQ_EMPTY", "")
	if _, err := NewGroq(GroqConfig{APIKeyEnv: "TEST_GROQ_EMPTY"}); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
	if Available("TEST_GROQ_EMPTY") {
		t.Fatalf("Available should be false")
	}
}

type failingAnswerer struct{}

func (failingAnswerer) Answer(context.Context, string, []domain.RetrievalResult, []domain.Message) (string, error) {
	return "", errors.New("upstream 503")
}

func TestFallback(t *testing.T) {
	f := WithFallback(failingAnswerer{}, Local{}, nil)
	out, err := f.Answer(context.Background(), "q", retrieved, nil)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if !strings.HasPrefix(out, "Here are the most relevant excerpts") {
		t.Fatalf("fallback answer = %q", out)
	}
}
