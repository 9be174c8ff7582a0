package stream

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// fakeLog is an in-memory stream.Log with the same consumer-group semantics
// the Redis implementation relies on: strictly increasing topic-scoped ids,
// single ownership of new deliveries, a pending list per group, idle-based
// claiming and approximate trim. Time is advanced manually by tests.
type fakeLog struct {
	mu      sync.Mutex
	now     time.Time
	streams map[string]*fakeStream

	appendErr      error
	createGroupErr error
}

type fakeStream struct {
	seq     int64
	entries []Entry
	groups  map[string]*fakeGroup
}

type fakeGroup struct {
	cursor  int64
	pending map[string]*fakePending
}

type fakePending struct {
	consumer    string
	deliveredAt time.Time
	count       int64
}

func newFakeLog() *fakeLog {
	return &fakeLog{
		now:     time.Unix(1700000000, 0),
		streams: make(map[string]*fakeStream),
	}
}

func (f *fakeLog) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeLog) stream(topic string) *fakeStream {
	st, ok := f.streams[topic]
	if !ok {
		st = &fakeStream{groups: make(map[string]*fakeGroup)}
		f.streams[topic] = st
	}
	return st
}

func seqOf(id string) int64 {
	n, _ := strconv.ParseInt(strings.SplitN(id, "-", 2)[0], 10, 64)
	return n
}

func (f *fakeLog) Append(ctx context.Context, topic string, fields map[string]string, maxLen int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return "", f.appendErr
	}

	st := f.stream(topic)
	st.seq++
	id := fmt.Sprintf("%d-0", st.seq)
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	st.entries = append(st.entries, Entry{ID: id, Fields: copied})
	if maxLen > 0 && int64(len(st.entries)) > maxLen {
		st.entries = st.entries[int64(len(st.entries))-maxLen:]
	}
	return id, nil
}

func (f *fakeLog) ReadNew(ctx context.Context, topic, group, consumer string, block time.Duration, count int64) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := f.stream(topic)
	g, ok := st.groups[group]
	if !ok {
		return nil, fmt.Errorf("NOGROUP no such consumer group %q for stream %q", group, topic)
	}

	var out []Entry
	for _, e := range st.entries {
		if seqOf(e.ID) <= g.cursor {
			continue
		}
		g.pending[e.ID] = &fakePending{consumer: consumer, deliveredAt: f.now, count: 1}
		g.cursor = seqOf(e.ID)
		out = append(out, e)
		if int64(len(out)) >= count {
			break
		}
	}
	if len(out) == 0 && block > 0 {
		// The real client parks in XREADGROUP for up to the block bound when
		// nothing is ready; model the elapsed wait on the clock.
		f.now = f.now.Add(block)
	}
	return out, nil
}

func (f *fakeLog) Ack(ctx context.Context, topic, group string, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	g, ok := f.stream(topic).groups[group]
	if !ok {
		return fmt.Errorf("NOGROUP no such consumer group %q for stream %q", group, topic)
	}
	for _, id := range ids {
		delete(g.pending, id)
	}
	return nil
}

func (f *fakeLog) ListPending(ctx context.Context, topic, group string, count int64) ([]PendingEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	g, ok := f.stream(topic).groups[group]
	if !ok {
		return nil, fmt.Errorf("NOGROUP no such consumer group %q for stream %q", group, topic)
	}

	var out []PendingEntry
	for id, p := range g.pending {
		out = append(out, PendingEntry{
			ID:            id,
			Consumer:      p.consumer,
			Idle:          f.now.Sub(p.deliveredAt),
			DeliveryCount: p.count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return seqOf(out[i].ID) < seqOf(out[j].ID) })
	if int64(len(out)) > count {
		out = out[:count]
	}
	return out, nil
}

func (f *fakeLog) Claim(ctx context.Context, topic, group, consumer string, minIdle time.Duration, ids []string) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := f.stream(topic)
	g, ok := st.groups[group]
	if !ok {
		return nil, fmt.Errorf("NOGROUP no such consumer group %q for stream %q", group, topic)
	}

	var out []Entry
	for _, id := range ids {
		p, ok := g.pending[id]
		if !ok || f.now.Sub(p.deliveredAt) < minIdle {
			continue
		}
		var entry *Entry
		for i := range st.entries {
			if st.entries[i].ID == id {
				entry = &st.entries[i]
				break
			}
		}
		if entry == nil {
			// Trimmed away while pending; drop the stale delivery record.
			delete(g.pending, id)
			continue
		}
		p.consumer = consumer
		p.deliveredAt = f.now
		p.count++
		out = append(out, *entry)
	}
	return out, nil
}

func (f *fakeLog) CreateGroup(ctx context.Context, topic, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createGroupErr != nil {
		return f.createGroupErr
	}

	st := f.stream(topic)
	if _, ok := st.groups[group]; ok {
		return ErrGroupExists
	}
	st.groups[group] = &fakeGroup{pending: make(map[string]*fakePending)}
	return nil
}

func (f *fakeLog) Info(ctx context.Context, topic string) (Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.streams[topic]
	if !ok || len(st.entries) == 0 {
		return Info{}, nil
	}
	first, last := st.entries[0], st.entries[len(st.entries)-1]
	return Info{Length: int64(len(st.entries)), First: &first, Last: &last}, nil
}

func (f *fakeLog) Range(ctx context.Context, topic, start string, count int64) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var from int64
	if start != "-" && start != "" {
		from = seqOf(start)
	}

	var out []Entry
	for _, e := range f.stream(topic).entries {
		if seqOf(e.ID) < from {
			continue
		}
		out = append(out, e)
		if int64(len(out)) >= count {
			break
		}
	}
	return out, nil
}
