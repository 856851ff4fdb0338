// Package jobqueue runs AI conversation turns as River background jobs.
//
// A job is enqueued when a room message mentions the AI participant. The
// worker is a thin shell around ai.Orchestrator: all conversation state
// lives in Postgres, so a crashed worker loses at most the in-flight
// turn and the room is recovered by the orchestrator's release path.
package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/zerolog/log"

	"github.com/anochat/internal/ai"
)

const (
	// maxWorkers bounds concurrent AI conversations across all rooms.
	maxWorkers = 10

	// jobTimeout must cover a full multi-round conversation including
	// tool execution, which can run long.
	jobTimeout = 15 * time.Minute
)

// AIReplyJobArgs identifies one conversation turn: the room to reply in
// and the message that triggered the reply.
type AIReplyJobArgs struct {
	RoomID    int64  `json:"room_id"`
	MessageID string `json:"message_id"`
}

func (AIReplyJobArgs) Kind() string {
	return "ai_reply"
}

// InsertOpts disables retries. A failed turn already released the room
// and left a visible error message; replaying it would answer a stale
// conversation.
func (AIReplyJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 1}
}

// AIReplyWorker executes AI reply jobs.
type AIReplyWorker struct {
	river.WorkerDefaults[AIReplyJobArgs]
	orchestrator *ai.Orchestrator
}

func (w *AIReplyWorker) Timeout(*river.Job[AIReplyJobArgs]) time.Duration {
	return jobTimeout
}

// Work runs one conversation turn. The orchestrator reports failures as
// room messages and always releases the room, so there is never an error
// to hand back to River.
func (w *AIReplyWorker) Work(ctx context.Context, job *river.Job[AIReplyJobArgs]) error {
	log.Debug().Int64("room_id", job.Args.RoomID).Str("message_id", job.Args.MessageID).
		Msg("Starting AI reply job")

	w.orchestrator.Run(ctx, job.Args.RoomID, job.Args.MessageID)
	return nil
}

// JobQueue manages the River client and its worker pool.
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
}

// NewJobQueue connects to the database, applies River's own schema
// migrations and prepares the worker pool. Start must be called before
// jobs are processed.
func NewJobQueue(ctx context.Context, databaseURL string, orchestrator *ai.Orchestrator) (*JobQueue, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run river migrations: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &AIReplyWorker{orchestrator: orchestrator})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create river client: %w", err)
	}

	return &JobQueue{client: client, pool: pool}, nil
}

// Start starts the job queue workers.
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the workers and closes the pool.
func (jq *JobQueue) Stop(ctx context.Context) error {
	err := jq.client.Stop(ctx)
	jq.pool.Close()
	return err
}

// EnqueueAIReply queues one conversation turn for the room.
func (jq *JobQueue) EnqueueAIReply(ctx context.Context, roomID int64, messageID string) error {
	_, err := jq.client.Insert(ctx, AIReplyJobArgs{RoomID: roomID, MessageID: messageID}, nil)
	if err != nil {
		return fmt.Errorf("failed to queue AI reply job: %w", err)
	}
	return nil
}
