package stream

// Topic is a logical channel with its retention bound. Retention is enforced
// approximately at append time (MAXLEN ~); it does not consult acknowledgment
// state, so an old unacked entry can be evicted under sustained overload.
// That is the accepted trade-off for bounded broker memory.
type Topic struct {
	Key    string
	MaxLen int64
}

// DeadLetter is the stream that receives entries whose handler failed
// permanently or whose delivery count was exhausted.
func (t Topic) DeadLetter() string { return t.Key + ":dead" }

var (
	TopicRawEvents          = Topic{Key: "events:raw", MaxLen: 10000}
	TopicNormalizedEvents   = Topic{Key: "events:normalized", MaxLen: 10000}
	TopicMergeRequests      = Topic{Key: "merge:requests", MaxLen: 1000}
	TopicPredictionRequests = Topic{Key: "prediction:requests", MaxLen: 5000}
)

// Consumer group names, one per consumed topic.
const (
	GroupEventProcessors      = "event-processors"
	GroupMergeProcessors      = "merge-processors"
	GroupPredictionProcessors = "prediction-processors"
)

func Topics() []Topic {
	return []Topic{
		TopicRawEvents,
		TopicNormalizedEvents,
		TopicMergeRequests,
		TopicPredictionRequests,
	}
}

func TopicByKey(key string) (Topic, bool) {
	for _, t := range Topics() {
		if t.Key == key {
			return t, true
		}
	}
	return Topic{}, false
}
