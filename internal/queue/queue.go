// Package queue implements a durable at-least-once job queue on Redis Streams.
//
// Each named channel maps to one stream consumed through a consumer group.
// A dequeued message is leased: it stays in the group's pending list until
// acked, and a lease that outlives the visibility timeout is reclaimed for
// another consumer via XAUTOCLAIM. Delayed redelivery (retry backoff) goes
// through a sorted set scored by ready time, promoted back into the stream.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lexibase/lexibase/internal/db"
	"github.com/lexibase/lexibase/internal/domain"
)

// Channel names, one per job type.
const (
	ChannelIndexDocument = "index-document"
	ChannelSendReminder  = "send-reminder"
)

const (
	group          = "workers"
	promoteBatch   = 100
	defaultBlock   = 2 * time.Second
	defaultLease   = 60 * time.Second
	streamKeyTmpl  = "lexibase:queue:%s"
	delayedKeyTmpl = "lexibase:queue:%s:delayed"
)

// Message is a typed work item keyed by tenant+document.
type Message struct {
	JobID      string `json:"job_id"`
	TenantID   string `json:"tenant_id"`
	DocumentID string `json:"document_id"`
}

// Lease is temporary ownership of a dequeued message. It expires when the
// visibility timeout elapses without an ack, making the message deliverable
// again.
type Lease struct {
	entryID string
	msg     Message
}

// EntryID returns the underlying stream entry ID, for logging.
func (l Lease) EntryID() string { return l.entryID }

// store is the consumer interface for the queue (streams + delay set).
type store interface {
	XAdd(ctx context.Context, stream string, fields map[string]string) (string, error)
	XGroupCreate(ctx context.Context, stream, group string) error
	XReadGroup(ctx context.Context, stream, group, consumer string, block time.Duration) ([]db.StreamMessage, error)
	XAutoClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration) ([]db.StreamMessage, error)
	XAck(ctx context.Context, stream, group string, ids ...string) error
	XDel(ctx context.Context, stream string, ids ...string) error
	XLen(ctx context.Context, stream string) (int64, error)
	XPending(ctx context.Context, stream, group string) (int64, error)
	ZAdd(ctx context.Context, key string, members ...db.ScoredMember) error
	ZRem(ctx context.Context, key string, members ...string) error
	ZCard(ctx context.Context, key string) (int64, error)
	ZRangeByScore(ctx context.Context, key string, min, max float64, limit int) ([]string, error)
}

// Queue is one named channel of the job queue. Construct it explicitly at
// process start and close it on shutdown; do not share a process-wide handle.
type Queue struct {
	store    store
	stream   string
	delayed  string
	consumer string
	lease    time.Duration
	block    time.Duration
	logger   *zap.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithLease overrides the visibility timeout for dequeued messages.
func WithLease(d time.Duration) Option {
	return func(q *Queue) { q.lease = d }
}

// WithBlock overrides how long a single dequeue poll blocks.
func WithBlock(d time.Duration) Option {
	return func(q *Queue) { q.block = d }
}

// New creates a queue for the given channel. consumer names this process
// within the consumer group.
func New(s store, channel, consumer string, logger *zap.Logger, opts ...Option) *Queue {
	q := &Queue{
		store:    s,
		stream:   fmt.Sprintf(streamKeyTmpl, channel),
		delayed:  fmt.Sprintf(delayedKeyTmpl, channel),
		consumer: consumer,
		lease:    defaultLease,
		block:    defaultBlock,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Init creates the consumer group, creating the stream if needed. Idempotent.
func (q *Queue) Init(ctx context.Context) error {
	if err := q.store.XGroupCreate(ctx, q.stream, group); err != nil {
		return fmt.Errorf("create group %s: %w: %w", q.stream, domain.ErrQueueUnavailable, err)
	}
	return nil
}

// Enqueue appends a message to the channel. Duplicate enqueues for the same
// document produce duplicate messages; consumers must tolerate reprocessing.
func (q *Queue) Enqueue(ctx context.Context, msg Message) error {
	if _, err := q.store.XAdd(ctx, q.stream, msgFields(msg)); err != nil {
		return fmt.Errorf("enqueue %s: %w: %w", q.stream, domain.ErrQueueUnavailable, err)
	}
	return nil
}

// Dequeue blocks until a message is available or ctx is done. Messages whose
// lease expired on another consumer are reclaimed before new ones are read.
func (q *Queue) Dequeue(ctx context.Context) (Message, Lease, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Message{}, Lease{}, err
		}

		claimed, err := q.store.XAutoClaim(ctx, q.stream, group, q.consumer, q.lease)
		if err != nil {
			return Message{}, Lease{}, fmt.Errorf("autoclaim %s: %w: %w", q.stream, domain.ErrQueueUnavailable, err)
		}
		if lease, ok := q.firstDeliverable(ctx, claimed); ok {
			return lease.msg, lease, nil
		}

		read, err := q.store.XReadGroup(ctx, q.stream, group, q.consumer, q.block)
		if err != nil {
			return Message{}, Lease{}, fmt.Errorf("readgroup %s: %w: %w", q.stream, domain.ErrQueueUnavailable, err)
		}
		if lease, ok := q.firstDeliverable(ctx, read); ok {
			return lease.msg, lease, nil
		}
	}
}

// Ack acknowledges a processed message and drops it from the stream.
func (q *Queue) Ack(ctx context.Context, lease Lease) error {
	if err := q.store.XAck(ctx, q.stream, group, lease.entryID); err != nil {
		return fmt.Errorf("ack %s: %w: %w", lease.entryID, domain.ErrQueueUnavailable, err)
	}
	if err := q.store.XDel(ctx, q.stream, lease.entryID); err != nil {
		return fmt.Errorf("del %s: %w: %w", lease.entryID, domain.ErrQueueUnavailable, err)
	}
	return nil
}

// Nack schedules redelivery after delay and then releases the lease. A zero
// delay re-enqueues immediately. The reschedule is persisted before the ack:
// if Nack fails partway the message is either still leased (lease expiry
// redelivers it) or rescheduled twice, never gone.
func (q *Queue) Nack(ctx context.Context, lease Lease, delay time.Duration) error {
	if delay <= 0 {
		if err := q.Enqueue(ctx, lease.msg); err != nil {
			return err
		}
		return q.Ack(ctx, lease)
	}

	payload, err := json.Marshal(lease.msg)
	if err != nil {
		return fmt.Errorf("marshal delayed message: %w", err)
	}
	readyAt := float64(time.Now().Add(delay).UnixMilli())
	if err := q.store.ZAdd(ctx, q.delayed, db.ScoredMember{Member: string(payload), Score: readyAt}); err != nil {
		return fmt.Errorf("schedule retry: %w: %w", domain.ErrQueueUnavailable, err)
	}
	return q.Ack(ctx, lease)
}

// PromoteDue moves delayed messages whose ready time has passed back into the
// stream. Returns the number promoted. Run it periodically alongside workers.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := q.store.ZRangeByScore(ctx, q.delayed, 0, float64(now.UnixMilli()), promoteBatch)
	if err != nil {
		return 0, fmt.Errorf("promote %s: %w: %w", q.delayed, domain.ErrQueueUnavailable, err)
	}

	promoted := 0
	for _, payload := range due {
		var msg Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			q.logger.Warn("Dropping malformed delayed message",
				zap.String("channel", q.stream), zap.Error(err))
			_ = q.store.ZRem(ctx, q.delayed, payload)
			continue
		}
		if err := q.Enqueue(ctx, msg); err != nil {
			return promoted, err
		}
		if err := q.store.ZRem(ctx, q.delayed, payload); err != nil {
			return promoted, fmt.Errorf("unschedule: %w: %w", domain.ErrQueueUnavailable, err)
		}
		promoted++
	}
	return promoted, nil
}

// Len returns the number of messages waiting for delivery: deliverable stream
// entries plus delayed retries not yet promoted. Leased messages are in flight
// and not counted.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	total, err := q.store.XLen(ctx, q.stream)
	if err != nil {
		return 0, fmt.Errorf("len %s: %w: %w", q.stream, domain.ErrQueueUnavailable, err)
	}
	leased, err := q.store.XPending(ctx, q.stream, group)
	if err != nil {
		return 0, fmt.Errorf("pending %s: %w: %w", q.stream, domain.ErrQueueUnavailable, err)
	}
	delayed, err := q.store.ZCard(ctx, q.delayed)
	if err != nil {
		return 0, fmt.Errorf("delayed %s: %w: %w", q.delayed, domain.ErrQueueUnavailable, err)
	}
	depth := total - leased + delayed
	if depth < 0 {
		depth = 0
	}
	return depth, nil
}

// firstDeliverable returns a lease for the first parseable message, acking
// and skipping malformed entries so they cannot wedge the channel.
func (q *Queue) firstDeliverable(ctx context.Context, msgs []db.StreamMessage) (Lease, bool) {
	for _, m := range msgs {
		msg, err := parseFields(m.Fields)
		if err != nil {
			q.logger.Warn("Skipping malformed queue entry",
				zap.String("entry_id", m.ID), zap.Error(err))
			_ = q.store.XAck(ctx, q.stream, group, m.ID)
			_ = q.store.XDel(ctx, q.stream, m.ID)
			continue
		}
		return Lease{entryID: m.ID, msg: msg}, true
	}
	return Lease{}, false
}

func msgFields(msg Message) map[string]string {
	return map[string]string{
		"job":    msg.JobID,
		"tenant": msg.TenantID,
		"doc":    msg.DocumentID,
	}
}

func parseFields(fields map[string]string) (Message, error) {
	msg := Message{
		JobID:      fields["job"],
		TenantID:   fields["tenant"],
		DocumentID: fields["doc"],
	}
	if msg.JobID == "" || msg.TenantID == "" || msg.DocumentID == "" {
		return Message{}, fmt.Errorf("missing fields in queue entry")
	}
	return msg, nil
}
