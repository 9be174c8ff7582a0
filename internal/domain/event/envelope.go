package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Envelopes are the typed units appended to the durable streams. Each type
// encodes to the flat string field map the log store carries and decodes back
// at the consumer boundary; nested structures travel as serialized JSON.

const timeLayout = time.RFC3339Nano

// RawEvent is one customer event exactly as it arrived at ingestion.
type RawEvent struct {
	EventID   string
	BrandID   string
	EventType string
	Payload   json.RawMessage
	Timestamp time.Time
}

func (e RawEvent) Fields() map[string]string {
	return map[string]string{
		"event_id":   e.EventID,
		"brand_id":   e.BrandID,
		"event_type": e.EventType,
		"payload":    string(e.Payload),
		"timestamp":  e.Timestamp.Format(timeLayout),
	}
}

func DecodeRawEvent(fields map[string]string) (RawEvent, error) {
	ts, err := parseTimestamp(fields)
	if err != nil {
		return RawEvent{}, err
	}
	e := RawEvent{
		EventID:   fields["event_id"],
		BrandID:   fields["brand_id"],
		EventType: fields["event_type"],
		Payload:   json.RawMessage(fields["payload"]),
		Timestamp: ts,
	}
	if e.EventID == "" || e.BrandID == "" || e.EventType == "" {
		return RawEvent{}, fmt.Errorf("raw event missing required fields: %v", keys(fields))
	}
	return e, nil
}

// NormalizedEvent is a raw event after profile normalization. ProfileID is
// empty when identity resolution has not matched a profile yet.
type NormalizedEvent struct {
	EventID           string
	BrandID           string
	EventType         string
	ProfileID         string
	Identifiers       map[string]string
	NormalizedPayload json.RawMessage
	Timestamp         time.Time
}

func (e NormalizedEvent) Fields() map[string]string {
	ids, _ := json.Marshal(e.Identifiers)
	f := map[string]string{
		"event_id":           e.EventID,
		"brand_id":           e.BrandID,
		"event_type":         e.EventType,
		"identifiers":        string(ids),
		"normalized_payload": string(e.NormalizedPayload),
		"timestamp":          e.Timestamp.Format(timeLayout),
	}
	if e.ProfileID != "" {
		f["profile_id"] = e.ProfileID
	}
	return f
}

func DecodeNormalizedEvent(fields map[string]string) (NormalizedEvent, error) {
	ts, err := parseTimestamp(fields)
	if err != nil {
		return NormalizedEvent{}, err
	}
	e := NormalizedEvent{
		EventID:           fields["event_id"],
		BrandID:           fields["brand_id"],
		EventType:         fields["event_type"],
		ProfileID:         fields["profile_id"],
		NormalizedPayload: json.RawMessage(fields["normalized_payload"]),
		Timestamp:         ts,
	}
	if e.EventID == "" || e.BrandID == "" || e.EventType == "" {
		return NormalizedEvent{}, fmt.Errorf("normalized event missing required fields: %v", keys(fields))
	}
	if raw := fields["identifiers"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &e.Identifiers); err != nil {
			return NormalizedEvent{}, fmt.Errorf("unmarshal identifiers: %w", err)
		}
	}
	return e, nil
}

// MergeRequest asks downstream processing to look at a set of candidate
// profiles. Auto-merges happen upstream; only the manual-review path acts on
// these here.
type MergeRequest struct {
	BrandID              string
	ProfileIDs           []string
	Reason               string
	RequiresManualReview bool
	Timestamp            time.Time
}

func (e MergeRequest) Fields() map[string]string {
	ids, _ := json.Marshal(e.ProfileIDs)
	return map[string]string{
		"brand_id":               e.BrandID,
		"profile_ids":            string(ids),
		"reason":                 e.Reason,
		"requires_manual_review": strconv.FormatBool(e.RequiresManualReview),
		"timestamp":              e.Timestamp.Format(timeLayout),
	}
}

func DecodeMergeRequest(fields map[string]string) (MergeRequest, error) {
	ts, err := parseTimestamp(fields)
	if err != nil {
		return MergeRequest{}, err
	}
	e := MergeRequest{
		BrandID:   fields["brand_id"],
		Reason:    fields["reason"],
		Timestamp: ts,
	}
	if e.BrandID == "" {
		return MergeRequest{}, fmt.Errorf("merge request missing brand_id")
	}
	if err := json.Unmarshal([]byte(fields["profile_ids"]), &e.ProfileIDs); err != nil {
		return MergeRequest{}, fmt.Errorf("unmarshal profile_ids: %w", err)
	}
	review, err := strconv.ParseBool(fields["requires_manual_review"])
	if err != nil {
		return MergeRequest{}, fmt.Errorf("parse requires_manual_review: %w", err)
	}
	e.RequiresManualReview = review
	return e, nil
}

// RequestType selects which predictions a PredictionRequest asks for.
type RequestType string

const (
	RequestTypeChurn   RequestType = "churn"
	RequestTypeLTV     RequestType = "ltv"
	RequestTypeSegment RequestType = "segment"
	RequestTypeAll     RequestType = "all"
)

func ParseRequestType(s string) (RequestType, error) {
	switch RequestType(s) {
	case RequestTypeChurn, RequestTypeLTV, RequestTypeSegment, RequestTypeAll:
		return RequestType(s), nil
	}
	return "", fmt.Errorf("unknown prediction request type %q", s)
}

type PredictionRequest struct {
	ProfileID   string
	BrandID     string
	RequestType RequestType
	Timestamp   time.Time
}

func (e PredictionRequest) Fields() map[string]string {
	return map[string]string{
		"profile_id":   e.ProfileID,
		"brand_id":     e.BrandID,
		"request_type": string(e.RequestType),
		"timestamp":    e.Timestamp.Format(timeLayout),
	}
}

func DecodePredictionRequest(fields map[string]string) (PredictionRequest, error) {
	ts, err := parseTimestamp(fields)
	if err != nil {
		return PredictionRequest{}, err
	}
	rt, err := ParseRequestType(fields["request_type"])
	if err != nil {
		return PredictionRequest{}, err
	}
	e := PredictionRequest{
		ProfileID:   fields["profile_id"],
		BrandID:     fields["brand_id"],
		RequestType: rt,
		Timestamp:   ts,
	}
	if e.ProfileID == "" || e.BrandID == "" {
		return PredictionRequest{}, fmt.Errorf("prediction request missing profile_id or brand_id")
	}
	return e, nil
}

func parseTimestamp(fields map[string]string) (time.Time, error) {
	ts, err := time.Parse(timeLayout, fields["timestamp"])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return ts, nil
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
