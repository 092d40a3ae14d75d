package reranker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"helpdesk-rag/internal/llmservice"
	"helpdesk-rag/internal/models"

	"github.com/tmc/langchaingo/llms"
)

type fakeLLM struct {
	response string
	err      error
	delay    time.Duration
	calls    int
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	res, err := f.GenerateContent(ctx, nil, options...)
	if err != nil {
		return "", err
	}
	return res.Choices[0].Content, nil
}

func candidates(n int) []models.ScoredChunk {
	out := make([]models.ScoredChunk, n)
	for i := range out {
		out[i] = models.ScoredChunk{
			Chunk:      models.Chunk{ID: int64(i + 1), Content: fmt.Sprintf("passage %d", i)},
			Similarity: 0.9 - float64(i)*0.1,
		}
	}
	return out
}

func ids(chunks []models.ScoredChunk) []int64 {
	out := make([]int64, len(chunks))
	for i, c := range chunks {
		out[i] = c.Chunk.ID
	}
	return out
}

func TestRerankSkipsSmallInput(t *testing.T) {
	llm := &fakeLLM{response: "[0.1, 0.9, 0.5]"}
	r := New(llmservice.NewClientWithModel(llm), DefaultTimeout)

	in := candidates(3)
	got := r.Rerank(context.Background(), "query", in)
	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3", len(got))
	}
	for i := range in {
		if got[i].Chunk.ID != in[i].Chunk.ID {
			t.Errorf("order changed at %d", i)
		}
	}
	if llm.calls != 0 {
		t.Errorf("remote was called for a trivial input")
	}
}

func TestRerankOrdersByJSONScores(t *testing.T) {
	llm := &fakeLLM{response: "[0.1, 0.9, 0.5, 0.7]"}
	r := New(llmservice.NewClientWithModel(llm), DefaultTimeout)

	got := r.Rerank(context.Background(), "query", candidates(4))
	want := []int64{2, 4, 3, 1}
	for i := range want {
		if got[i].Chunk.ID != want[i] {
			t.Fatalf("order = %v, want %v", ids(got), want)
		}
	}
	if !got[0].Reranked {
		t.Errorf("rerank flag not set")
	}
}

func TestRerankParsesProseWrappedJSON(t *testing.T) {
	llm := &fakeLLM{response: "Here are the scores: [0.2, 0.8, 0.4, 0.6] as requested."}
	r := New(llmservice.NewClientWithModel(llm), DefaultTimeout)

	got := r.Rerank(context.Background(), "query", candidates(4))
	if got[0].Chunk.ID != 2 {
		t.Errorf("order = %v, want chunk 2 first", ids(got))
	}
}

func TestRerankFallsBackToLooseNumbers(t *testing.T) {
	llm := &fakeLLM{response: "passage scores are 0.2 then 0.8 then 0.4 then 0.6"}
	r := New(llmservice.NewClientWithModel(llm), DefaultTimeout)

	got := r.Rerank(context.Background(), "query", candidates(4))
	if got[0].Chunk.ID != 2 {
		t.Errorf("order = %v, want chunk 2 first", ids(got))
	}
}

func TestRerankDefaultsMissingScoresToNeutral(t *testing.T) {
	llm := &fakeLLM{response: "[0.9, 0.1]"}
	r := New(llmservice.NewClientWithModel(llm), DefaultTimeout)

	got := r.Rerank(context.Background(), "query", candidates(4))
	if len(got) != 4 {
		t.Fatalf("got %d chunks, want 4", len(got))
	}
	// chunks 3 and 4 get the neutral 0.5 and sort between 0.9 and 0.1
	want := []int64{1, 3, 4, 2}
	for i := range want {
		if got[i].Chunk.ID != want[i] {
			t.Fatalf("order = %v, want %v", ids(got), want)
		}
	}
}

func TestRerankClampsScores(t *testing.T) {
	llm := &fakeLLM{response: "[5.0, -3.0, 0.5, 0.5]"}
	r := New(llmservice.NewClientWithModel(llm), DefaultTimeout)

	got := r.Rerank(context.Background(), "query", candidates(4))
	for _, c := range got {
		if c.RerankScore < 0 || c.RerankScore > 1 {
			t.Errorf("score %f outside [0,1]", c.RerankScore)
		}
	}
	if got[0].Chunk.ID != 1 {
		t.Errorf("order = %v, want clamped 1.0 first", ids(got))
	}
}

func TestRerankStableOnTies(t *testing.T) {
	llm := &fakeLLM{response: "[0.5, 0.5, 0.5, 0.5]"}
	r := New(llmservice.NewClientWithModel(llm), DefaultTimeout)

	got := r.Rerank(context.Background(), "query", candidates(4))
	want := []int64{1, 2, 3, 4}
	for i := range want {
		if got[i].Chunk.ID != want[i] {
			t.Fatalf("tied scores changed order: %v", ids(got))
		}
	}
}

func TestRerankFailSafeOnError(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("status 500")}
	r := New(llmservice.NewClientWithModel(llm), DefaultTimeout)

	in := candidates(5)
	got := r.Rerank(context.Background(), "query", in)
	if len(got) != 5 {
		t.Fatalf("got %d chunks, want original 5", len(got))
	}
	for i := range in {
		if got[i].Chunk.ID != in[i].Chunk.ID {
			t.Errorf("order changed at %d after a failed call", i)
		}
		if got[i].Reranked {
			t.Errorf("chunk %d marked reranked after a failed call", i)
		}
	}
}

func TestRerankFailSafeOnTimeout(t *testing.T) {
	llm := &fakeLLM{response: "[0.9, 0.1, 0.5, 0.7]", delay: 500 * time.Millisecond}
	r := New(llmservice.NewClientWithModel(llm), 20*time.Millisecond)

	in := candidates(4)
	start := time.Now()
	got := r.Rerank(context.Background(), "query", in)
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("rerank blocked for %v past its timeout", elapsed)
	}
	for i := range in {
		if got[i].Chunk.ID != in[i].Chunk.ID {
			t.Errorf("order changed at %d after a timeout", i)
		}
	}
}
