package stream

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Entry is one envelope read back from a topic, with its log-assigned id.
// Ids are topic-scoped and strictly increasing.
type Entry struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// PendingEntry records a delivery that has not been acknowledged yet.
type PendingEntry struct {
	ID            string        `json:"id"`
	Consumer      string        `json:"consumer"`
	Idle          time.Duration `json:"idle"`
	DeliveryCount int64         `json:"delivery_count"`
}

type Info struct {
	Length int64  `json:"length"`
	First  *Entry `json:"first,omitempty"`
	Last   *Entry `json:"last,omitempty"`
}

// ErrGroupExists is returned by Log.CreateGroup when the consumer group is
// already present on the topic. Callers treat it as success.
var ErrGroupExists = errors.New("consumer group already exists")

// Log is the durable append-only log the pipeline runs on. The production
// implementation wraps Redis Streams; tests substitute an in-memory fake.
// All calls are network round-trips except on the fake.
type Log interface {
	// Append adds fields to the topic and approximately trims it to maxLen.
	Append(ctx context.Context, topic string, fields map[string]string, maxLen int64) (string, error)
	// ReadNew blocks up to block waiting for entries not yet delivered to the
	// group, returning at most count. An empty batch is not an error.
	ReadNew(ctx context.Context, topic, group, consumer string, block time.Duration, count int64) ([]Entry, error)
	Ack(ctx context.Context, topic, group string, ids ...string) error
	// ListPending reports deliveries not yet acknowledged, oldest first.
	ListPending(ctx context.Context, topic, group string, count int64) ([]PendingEntry, error)
	// Claim reassigns the given pending ids to consumer if they have been idle
	// at least minIdle, returning the entries actually claimed.
	Claim(ctx context.Context, topic, group, consumer string, minIdle time.Duration, ids []string) ([]Entry, error)
	CreateGroup(ctx context.Context, topic, group string) error
	Info(ctx context.Context, topic string) (Info, error)
	// Range reads a page of entries starting at id (inclusive), for the
	// read-only admin surface.
	Range(ctx context.Context, topic, start string, count int64) ([]Entry, error)
}

// Permanent marks a handler error as not retryable. The worker dead-letters
// the entry instead of leaving it pending.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return fmt.Sprintf("permanent: %v", e.err) }

func (e *permanentError) Unwrap() error { return e.err }

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
