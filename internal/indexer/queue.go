package indexer

import (
	"context"
	"sync"

	"helpdesk-rag/internal/models"

	"github.com/rs/zerolog/log"
)

// Queue decouples QA indexing from the approval workflow that triggers it.
// Approval hands the pair off and moves on; workers do the slow remote calls
// and report failures to the log stream instead of a detached goroutine
// swallowing them.
type Queue struct {
	indexer *Indexer
	jobs    chan models.QAPair
	wg      sync.WaitGroup

	closeOnce sync.Once
}

func NewQueue(ix *Indexer, workers, buffer int) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if buffer <= 0 {
		buffer = 64
	}
	q := &Queue{
		indexer: ix,
		jobs:    make(chan models.QAPair, buffer),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue submits a pair for background indexing. It never blocks the
// caller: when the buffer is full the pair is dropped with an error log, to
// be picked up by the next re-approval or an operational retry.
func (q *Queue) Enqueue(pair models.QAPair) bool {
	select {
	case q.jobs <- pair:
		return true
	default:
		log.Error().
			Str("question_id", pair.QuestionID).
			Msg("indexing queue full, dropping QA pair")
		return false
	}
}

// Close stops accepting work and waits for in-flight jobs to finish.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.jobs)
	})
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for pair := range q.jobs {
		q.indexer.IndexQAPair(context.Background(), pair)
	}
}
