package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"cdp/internal/stream"

	"github.com/go-chi/chi/v5"
)

// Admin is the read-only operator surface over the streams. None of these
// endpoints mutate delivery state: entry pages come from range reads and the
// pending listing is the non-consuming extended form.
type Admin struct {
	log stream.Log
}

func NewAdmin(log stream.Log) *Admin {
	return &Admin{log: log}
}

type streamStatus struct {
	Topic     string        `json:"topic"`
	MaxLength int64         `json:"max_length"`
	Length    int64         `json:"length"`
	First     *stream.Entry `json:"first,omitempty"`
	Last      *stream.Entry `json:"last,omitempty"`
}

func (a *Admin) ListStreams(w http.ResponseWriter, r *http.Request) {
	statuses := make([]streamStatus, 0, len(stream.Topics()))
	for _, t := range stream.Topics() {
		info, err := a.log.Info(r.Context(), t.Key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		statuses = append(statuses, streamStatus{
			Topic:     t.Key,
			MaxLength: t.MaxLen,
			Length:    info.Length,
			First:     info.First,
			Last:      info.Last,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statuses)
}

func (a *Admin) StreamEntries(w http.ResponseWriter, r *http.Request) {
	t, ok := stream.TopicByKey(chi.URLParam(r, "topic"))
	if !ok {
		http.Error(w, "unknown topic", http.StatusNotFound)
		return
	}

	start := r.URL.Query().Get("start")
	if start == "" {
		start = "-"
	}
	count := queryCount(r, 50)

	entries, err := a.log.Range(r.Context(), t.Key, start, count)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if entries == nil {
		entries = []stream.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (a *Admin) StreamPending(w http.ResponseWriter, r *http.Request) {
	t, ok := stream.TopicByKey(chi.URLParam(r, "topic"))
	if !ok {
		http.Error(w, "unknown topic", http.StatusNotFound)
		return
	}
	group := r.URL.Query().Get("group")
	if group == "" {
		http.Error(w, "missing group", http.StatusBadRequest)
		return
	}

	pending, err := a.log.ListPending(r.Context(), t.Key, group, queryCount(r, 50))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if pending == nil {
		pending = []stream.PendingEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pending)
}

func queryCount(r *http.Request, def int64) int64 {
	raw := r.URL.Query().Get("count")
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	if n > 1000 {
		n = 1000
	}
	return n
}
