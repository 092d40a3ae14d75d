package indexer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"helpdesk-rag/internal/config"
	"helpdesk-rag/internal/embedding"
	"helpdesk-rag/internal/models"
	"helpdesk-rag/internal/store"
)

// memStore is a minimal in-memory ChunkStore for exercising the indexer.
type memStore struct {
	mu     sync.Mutex
	chunks []models.Chunk
	fail   bool
}

func (m *memStore) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if m.fail {
		return fmt.Errorf("store unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *memStore) ReplaceParentChunks(ctx context.Context, parentRef string, categories []string, chunks []models.Chunk) error {
	if m.fail {
		return fmt.Errorf("store unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(parentRef, categories)
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *memStore) DeleteByParent(ctx context.Context, parentRef string, categories []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(parentRef, categories)
	return nil
}

func (m *memStore) deleteLocked(parentRef string, categories []string) {
	var kept []models.Chunk
	for _, c := range m.chunks {
		if c.ParentRef == parentRef && (len(categories) == 0 || containsCat(categories, c.SourceCategory)) {
			continue
		}
		kept = append(kept, c)
	}
	m.chunks = kept
}

func (m *memStore) Search(ctx context.Context, queryVector []float32, opts store.SearchOptions) ([]models.ScoredChunk, error) {
	return nil, nil
}

func (m *memStore) byParent(parentRef string) []models.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Chunk
	for _, c := range m.chunks {
		if c.ParentRef == parentRef {
			out = append(out, c)
		}
	}
	return out
}

func containsCat(categories []string, cat string) bool {
	for _, c := range categories {
		if c == cat {
			return true
		}
	}
	return false
}

// failEmbedder errors for any text containing failOn.
type failEmbedder struct {
	failOn string
}

func (f *failEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, fmt.Errorf("status 502")
	}
	return make([]float32, models.EmbeddingDim), nil
}

func (f *failEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type fakeCaptioner struct {
	caption string
	err     error
}

func (f *fakeCaptioner) Caption(ctx context.Context, imageURL, promptHint string) (string, error) {
	return f.caption, f.err
}

func newIndexer(s store.ChunkStore, emb *failEmbedder, capt *fakeCaptioner) *Indexer {
	var c Captioner
	if capt != nil {
		c = capt
	}
	return New(s, embedding.NewClientWithEmbedder(emb, "test-model"), c,
		&config.RAGConfig{ChunkSize: 120, ChunkOverlap: 20})
}

func longBody(sentence string, n int) string {
	return strings.TrimSpace(strings.Repeat(sentence+" ", n))
}

func TestIndexContentCreatesChunks(t *testing.T) {
	s := &memStore{}
	ix := newIndexer(s, &failEmbedder{}, nil)

	content := models.Content{
		ID:    "content-1",
		Title: "Refund policy",
		Body:  longBody("Refunds are processed in five business days.", 12),
	}
	n, err := ix.IndexContent(context.Background(), content)
	if err != nil {
		t.Fatalf("IndexContent: %v", err)
	}
	rows := s.byParent("content-1")
	if len(rows) != n || n < 2 {
		t.Fatalf("created %d rows, reported %d, want a multi-chunk split", len(rows), n)
	}
	for i, c := range rows {
		if c.SourceCategory != models.CategoryDocument {
			t.Errorf("row %d category = %q", i, c.SourceCategory)
		}
		if c.SourceLabel != "Refund policy" {
			t.Errorf("row %d label = %q", i, c.SourceLabel)
		}
		if c.Priority != models.CategoryPriority(models.CategoryDocument) {
			t.Errorf("row %d priority = %d", i, c.Priority)
		}
		if c.EmbeddingModelID != "test-model" {
			t.Errorf("row %d model id = %q", i, c.EmbeddingModelID)
		}
	}
}

func TestIndexContentIsIdempotent(t *testing.T) {
	s := &memStore{}
	ix := newIndexer(s, &failEmbedder{}, nil)

	content := models.Content{
		ID:    "content-1",
		Title: "Refund policy",
		Body:  longBody("Refunds are processed in five business days.", 12),
	}
	if _, err := ix.IndexContent(context.Background(), content); err != nil {
		t.Fatal(err)
	}
	first := len(s.byParent("content-1"))
	if _, err := ix.IndexContent(context.Background(), content); err != nil {
		t.Fatal(err)
	}
	if second := len(s.byParent("content-1")); second != first {
		t.Errorf("re-indexing changed row count: %d -> %d", first, second)
	}
}

func TestIndexContentFoldsCaptionsInline(t *testing.T) {
	s := &memStore{}
	ix := newIndexer(s, &failEmbedder{}, &fakeCaptioner{caption: "a screenshot of the billing page"})

	content := models.Content{
		ID:        "content-2",
		Title:     "Billing overview",
		Body:      "Invoices are issued on the first of the month.",
		ImageURLs: []string{"https://cdn.example.com/billing.png"},
	}
	if _, err := ix.IndexContent(context.Background(), content); err != nil {
		t.Fatal(err)
	}
	var all strings.Builder
	for _, c := range s.byParent("content-2") {
		all.WriteString(c.Content)
	}
	if !strings.Contains(all.String(), "[image] a screenshot of the billing page") {
		t.Errorf("caption not folded into the text stream: %s", all.String())
	}
}

func TestIndexContentSkipsFailedChunks(t *testing.T) {
	s := &memStore{}
	ix := newIndexer(s, &failEmbedder{failOn: "poison"}, nil)

	body := longBody("Refunds are processed in five business days.", 6) +
		" This poison sentence cannot be embedded at all right now. " +
		longBody("Suspended accounts keep their data for a year.", 6)
	n, err := ix.IndexContent(context.Background(), models.Content{ID: "content-3", Title: "Mixed", Body: body})
	if err != nil {
		t.Fatalf("partial failure must not fail the run: %v", err)
	}
	if n == 0 {
		t.Fatal("no chunks survived")
	}
	for _, c := range s.byParent("content-3") {
		if strings.Contains(c.Content, "poison") {
			t.Errorf("failed chunk was persisted: %q", c.Content)
		}
	}
}

func TestIndexImageStandaloneChunk(t *testing.T) {
	s := &memStore{}
	ix := newIndexer(s, &failEmbedder{}, &fakeCaptioner{caption: "diagram of the ticket lifecycle"})

	err := ix.IndexImage(context.Background(), "content-4", "Ticket lifecycle", "https://cdn.example.com/flow.png")
	if err != nil {
		t.Fatalf("IndexImage: %v", err)
	}
	rows := s.byParent("content-4")
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	c := rows[0]
	if c.SourceCategory != models.CategoryImageCaption {
		t.Errorf("category = %q", c.SourceCategory)
	}
	if c.ImageRef != "https://cdn.example.com/flow.png" {
		t.Errorf("image_ref = %q", c.ImageRef)
	}
	if c.SequenceTotal != 1 || c.SequenceIndex != 0 {
		t.Errorf("sequence = %d/%d, want 0/1", c.SequenceIndex, c.SequenceTotal)
	}
	if c.Content != "diagram of the ticket lifecycle" {
		t.Errorf("content = %q", c.Content)
	}
}

func TestIndexQAPairIdempotentReindex(t *testing.T) {
	s := &memStore{}
	ix := newIndexer(s, &failEmbedder{}, nil)

	pair := models.QAPair{
		QuestionID:    "q-1",
		AnswerID:      "a-1",
		QuestionTitle: "How do I change my plan?",
		QuestionBody:  longBody("I would like to move from the basic plan to the pro plan.", 4),
		AnswerBody:    longBody("Open the billing page and pick the new plan from the list.", 4),
	}
	ix.IndexQAPair(context.Background(), pair)
	first := len(s.byParent("q-1"))
	if first == 0 {
		t.Fatal("no chunks indexed")
	}

	ix.IndexQAPair(context.Background(), pair)
	if second := len(s.byParent("q-1")); second != first {
		t.Errorf("re-approval duplicated rows: %d -> %d", first, second)
	}
}

func TestIndexQAPairReindexReflectsNewestText(t *testing.T) {
	s := &memStore{}
	ix := newIndexer(s, &failEmbedder{}, nil)

	pair := models.QAPair{
		QuestionID:    "q-2",
		AnswerID:      "a-2",
		QuestionTitle: "How long do refunds take?",
		AnswerBody:    "Refunds take five business days.",
	}
	ix.IndexQAPair(context.Background(), pair)

	pair.AnswerBody = "Refunds take three business days."
	ix.IndexQAPair(context.Background(), pair)

	for _, c := range s.byParent("q-2") {
		if strings.Contains(c.Content, "five business days") {
			t.Errorf("stale chunk survived re-indexing: %q", c.Content)
		}
	}
}

func TestIndexQAPairTagsBothHalves(t *testing.T) {
	s := &memStore{}
	ix := newIndexer(s, &failEmbedder{}, nil)

	pair := models.QAPair{
		QuestionID:    "q-3",
		AnswerID:      "a-3",
		QuestionTitle: "Can I export my data?",
		AnswerBody:    "Yes, from the account settings page.",
	}
	ix.IndexQAPair(context.Background(), pair)

	var sawQuestion, sawAnswer bool
	for _, c := range s.byParent("q-3") {
		switch c.SourceCategory {
		case models.CategoryQAQuestion:
			sawQuestion = true
		case models.CategoryQAAnswer:
			sawAnswer = true
		default:
			t.Errorf("unexpected category %q", c.SourceCategory)
		}
		if c.Metadata["question_id"] != "q-3" || c.Metadata["answer_id"] != "a-3" {
			t.Errorf("metadata missing cross-references: %v", c.Metadata)
		}
	}
	if !sawQuestion || !sawAnswer {
		t.Errorf("missing a half: question=%v answer=%v", sawQuestion, sawAnswer)
	}
}

func TestIndexQAPairSwallowsStoreFailure(t *testing.T) {
	s := &memStore{fail: true}
	ix := newIndexer(s, &failEmbedder{}, nil)

	// must not panic or propagate anything
	ix.IndexQAPair(context.Background(), models.QAPair{
		QuestionID:    "q-4",
		AnswerID:      "a-4",
		QuestionTitle: "Is there a mobile app?",
		AnswerBody:    "Yes, on both stores.",
	})
}

func TestQueueProcessesJobs(t *testing.T) {
	s := &memStore{}
	ix := newIndexer(s, &failEmbedder{}, nil)
	q := NewQueue(ix, 2, 8)

	for i := 0; i < 4; i++ {
		ok := q.Enqueue(models.QAPair{
			QuestionID:    fmt.Sprintf("q-%d", i),
			AnswerID:      fmt.Sprintf("a-%d", i),
			QuestionTitle: "Does the queue work?",
			AnswerBody:    "It should.",
		})
		if !ok {
			t.Fatalf("enqueue %d rejected", i)
		}
	}
	q.Close()

	deadline := time.Now().Add(time.Second)
	for i := 0; i < 4; i++ {
		parent := fmt.Sprintf("q-%d", i)
		for len(s.byParent(parent)) == 0 {
			if time.Now().After(deadline) {
				t.Fatalf("pair %s never indexed", parent)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
}
