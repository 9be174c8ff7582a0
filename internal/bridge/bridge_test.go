package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"cdp/internal/stream"
	"cdp/internal/usecase"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeConsumer serves a fixed slice of messages and cancels the run context
// once they are exhausted.
type fakeConsumer struct {
	msgs    []kafka.Message
	fetches int
	commits []kafka.Message
	cancel  context.CancelFunc
}

func (f *fakeConsumer) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if f.fetches >= len(f.msgs) {
		if f.cancel != nil {
			f.cancel()
		}
		return kafka.Message{}, context.Canceled
	}
	m := f.msgs[f.fetches]
	f.fetches++
	return m, nil
}

func (f *fakeConsumer) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.commits = append(f.commits, msgs...)
	return nil
}

// flakyLog fails the first n appends, then accepts.
type flakyLog struct {
	stream.Log
	failures int
	attempts int
	appended []map[string]string
}

func (l *flakyLog) Append(ctx context.Context, topic string, fields map[string]string, maxLen int64) (string, error) {
	l.attempts++
	if l.failures > 0 {
		l.failures--
		return "", errors.New("connection refused")
	}
	l.appended = append(l.appended, fields)
	return fmt.Sprintf("%d-0", len(l.appended)), nil
}

func newTestBridge(consumer Consumer, log stream.Log) *Bridge {
	ingest := usecase.NewIngestEvent(stream.NewPublisher(log, testLogger()))
	b := New(consumer, ingest, testLogger())
	b.backoff = time.Millisecond
	return b
}

func TestBridgeRetriesSameRecordUntilPublished(t *testing.T) {
	log := &flakyLog{failures: 2}
	consumer := &fakeConsumer{}
	b := newTestBridge(consumer, log)

	msg := kafka.Message{Value: []byte(`{"brand_id":"b1","event_type":"page_view"}`)}
	b.handle(context.Background(), msg)

	// Two failed attempts plus the successful one, all for the same record,
	// with no commit until the publish landed.
	require.Equal(t, 3, log.attempts)
	require.Len(t, log.appended, 1)
	require.Equal(t, "b1", log.appended[0]["brand_id"])
	require.Len(t, consumer.commits, 1)
}

func TestBridgeDropsRecordAfterExhaustedRetries(t *testing.T) {
	log := &flakyLog{failures: 100}
	consumer := &fakeConsumer{}
	b := newTestBridge(consumer, log)
	b.maxRetries = 2

	msg := kafka.Message{Value: []byte(`{"brand_id":"b1","event_type":"page_view"}`)}
	b.handle(context.Background(), msg)

	// The drop is deliberate: the offset is committed so the group does not
	// stall, but only after the initial attempt and every retry failed.
	require.Equal(t, 3, log.attempts)
	require.Len(t, consumer.commits, 1)
}

func TestBridgeDropsMalformedRecord(t *testing.T) {
	log := &flakyLog{}
	consumer := &fakeConsumer{}
	b := newTestBridge(consumer, log)

	b.handle(context.Background(), kafka.Message{Value: []byte(`not json`)})

	require.Zero(t, log.attempts)
	require.Len(t, consumer.commits, 1)
}

func TestBridgeDropsInvalidRecordWithoutRetry(t *testing.T) {
	log := &flakyLog{}
	consumer := &fakeConsumer{}
	b := newTestBridge(consumer, log)

	b.handle(context.Background(), kafka.Message{Value: []byte(`{"event_type":"page_view"}`)})

	require.Len(t, consumer.commits, 1)
	require.Empty(t, log.appended)
}

func TestBridgeResolvesEachRecordBeforeFetchingNext(t *testing.T) {
	log := &flakyLog{failures: 1}
	ctx, cancel := context.WithCancel(context.Background())
	consumer := &fakeConsumer{
		msgs: []kafka.Message{
			{Offset: 10, Value: []byte(`{"brand_id":"b1","event_type":"page_view"}`)},
			{Offset: 11, Value: []byte(`{"brand_id":"b2","event_type":"purchase"}`)},
		},
		cancel: cancel,
	}
	b := newTestBridge(consumer, log)

	err := b.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The first record survives its transient failure and both are published
	// in order, each committed before the next fetch.
	require.Len(t, log.appended, 2)
	require.Equal(t, "b1", log.appended[0]["brand_id"])
	require.Equal(t, "b2", log.appended[1]["brand_id"])
	require.Len(t, consumer.commits, 2)
	require.Equal(t, int64(10), consumer.commits[0].Offset)
	require.Equal(t, int64(11), consumer.commits[1].Offset)
}
