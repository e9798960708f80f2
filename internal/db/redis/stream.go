package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/lexibase/lexibase/internal/db"
)

// XAdd appends an entry to a stream and returns its ID.
func (s *Store) XAdd(ctx context.Context, stream string, fields map[string]string) (string, error) {
	cmd := s.b().Xadd().Key(stream).Id("*").FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	id, err := s.do(ctx, cmd.Build()).ToString()
	if err != nil {
		return "", &db.Error{Op: db.OpXAdd, Err: err}
	}
	return id, nil
}

// XGroupCreate creates a consumer group reading the stream from the start,
// creating the stream if absent. Idempotent: an existing group is not an error.
func (s *Store) XGroupCreate(ctx context.Context, stream, group string) error {
	cmd := s.b().XgroupCreate().Key(stream).Group(group).Id("0").Mkstream().Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "BUSYGROUP") {
			return nil
		}
		return &db.Error{Op: db.OpXGroup, Err: err}
	}
	return nil
}

// XReadGroup reads new entries for a consumer, blocking up to block.
// Returns an empty slice when the block times out with no work.
func (s *Store) XReadGroup(
	ctx context.Context, stream, group, consumer string, block time.Duration,
) ([]db.StreamMessage, error) {
	cmd := s.b().Xreadgroup().
		Group(group, consumer).
		Count(1).
		Block(block.Milliseconds()).
		Streams().
		Key(stream).
		Id(">").
		Build()
	res, err := s.do(ctx, cmd).AsXRead()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, &db.Error{Op: db.OpXReadGroup, Err: err}
	}
	return toMessages(res[stream]), nil
}

// XAutoClaim transfers ownership of pending entries idle for at least minIdle
// to the given consumer. This is the lease-expiry redelivery path.
func (s *Store) XAutoClaim(
	ctx context.Context, stream, group, consumer string, minIdle time.Duration,
) ([]db.StreamMessage, error) {
	cmd := s.b().Xautoclaim().
		Key(stream).
		Group(group).
		Consumer(consumer).
		MinIdleTime(formatScore(float64(minIdle.Milliseconds()))).
		Start("0").
		Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpXAutoClaim, Err: err}
	}
	// Reply: [next-start-id, claimed-entries, deleted-ids]
	if len(raw) < 2 {
		return nil, nil
	}
	entries, err := raw[1].AsXRange()
	if err != nil {
		return nil, &db.Error{Op: db.OpXAutoClaim, Err: err}
	}
	return toMessages(entries), nil
}

// XAck acknowledges delivered entries, removing them from the pending list.
func (s *Store) XAck(ctx context.Context, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	cmd := s.b().Xack().Key(stream).Group(group).Id(ids...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpXAck, Err: err}
	}
	return nil
}

// XDel removes entries from the stream.
func (s *Store) XDel(ctx context.Context, stream string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	cmd := s.b().Xdel().Key(stream).Id(ids...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpXDel, Err: err}
	}
	return nil
}

// XLen returns the number of entries in the stream.
func (s *Store) XLen(ctx context.Context, stream string) (int64, error) {
	cmd := s.b().Xlen().Key(stream).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpXLen, Err: err}
	}
	return n, nil
}

// XPending returns the number of delivered-but-unacked entries in the group
// (the XPENDING summary count).
func (s *Store) XPending(ctx context.Context, stream, group string) (int64, error) {
	cmd := s.b().Xpending().Key(stream).Group(group).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpXPending, Err: err}
	}
	// Summary reply: [count, min-id, max-id, consumers]
	if len(raw) == 0 {
		return 0, nil
	}
	n, err := raw[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpXPending, Err: err}
	}
	return n, nil
}

func toMessages(entries []rueidis.XRangeEntry) []db.StreamMessage {
	if len(entries) == 0 {
		return nil
	}
	msgs := make([]db.StreamMessage, len(entries))
	for i, e := range entries {
		msgs[i] = db.StreamMessage{ID: e.ID, Fields: e.FieldValues}
	}
	return msgs
}
