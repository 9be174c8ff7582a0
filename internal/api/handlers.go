package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"cdp/internal/domain/review"
	"cdp/internal/usecase"
)

type Handlers struct {
	ingestUC *usecase.IngestEvent
	reviews  review.Repository
}

func NewHandlers(ingestUC *usecase.IngestEvent, reviews review.Repository) *Handlers {
	return &Handlers{
		ingestUC: ingestUC,
		reviews:  reviews,
	}
}

func (h *Handlers) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var params usecase.IngestEventParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.ingestUC.Execute(r.Context(), params)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// The stream is the system of record; if the append failed the event
		// was not ingested and the caller must retry.
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(res)
}

func (h *Handlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviews.ListOpen(r.Context(), 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if reviews == nil {
		reviews = []*review.Review{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reviews)
}
