package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/corvidlabs/querycore/domain"
	"github.com/corvidlabs/querycore/orchestrator"
	"github.com/corvidlabs/querycore/store/postgres"
)

// apiHandler groups the request handlers that need access to the
// orchestrator and (optionally) direct store access for endpoints the
// writer/audit abstractions don't cover.
type apiHandler struct {
	orch  *orchestrator.Orchestrator
	store *postgres.Store
}

type askRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id"`
	ThreadContext  string `json:"thread_context"`
	FileContext    string `json:"file_context"`
	ManualAgent    string `json:"manual_agent"`
	BypassCache    bool   `json:"bypass_cache"`
}

// wireEvent is the SSE wire shape for domain.Event; the domain type
// itself carries no JSON tags since it is an internal tagged union, not
// a transport contract.
type wireEvent struct {
	Kind    domain.EventKind      `json:"kind"`
	Step    string                `json:"step,omitempty"`
	Message string                `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Text    string                `json:"text,omitempty"`
	Reason  string                `json:"reason,omitempty"`

	Content        string          `json:"content,omitempty"`
	AgentUsed      domain.AgentType `json:"agent_used,omitempty"`
	IntentDetected domain.Intent    `json:"intent_detected,omitempty"`
	CostUSD        float64          `json:"cost_usd,omitempty"`
	LatencyMS      int64            `json:"latency_ms,omitempty"`
	QueryID        string           `json:"query_id,omitempty"`
	FromCache      bool             `json:"from_cache,omitempty"`
}

func toWireEvent(e domain.Event) wireEvent {
	w := wireEvent{Kind: e.Kind, Step: e.Step, Message: e.Message, Details: e.Details, Text: e.Text, Reason: e.Reason}
	if e.Response != nil {
		w.Content = e.Response.Content
		w.AgentUsed = e.Response.AgentUsed
		w.IntentDetected = e.Response.IntentDetected
		w.CostUSD = e.Response.CostUSD
		w.LatencyMS = e.Response.LatencyMS
		w.QueryID = e.Response.QueryID
		w.FromCache = e.Response.FromCache
	}
	return w
}

// ask streams Server-Sent Events as the orchestrator's pipeline progresses:
// status updates, response chunks, then one terminal done or error event.
func (h *apiHandler) ask(w http.ResponseWriter, r *http.Request) {
	var body askRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	claims := claimsFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	req := domain.Request{
		Query:          body.Query,
		UserID:         claims.UserID,
		TenantID:       claims.TenantID,
		Role:           claims.Role,
		ManualAgent:    body.ManualAgent,
		BypassCache:    body.BypassCache,
		ConversationID: body.ConversationID,
		ThreadContext:  body.ThreadContext,
		FileContext:    body.FileContext,
	}

	emit := func(e domain.Event) error {
		payload, err := json.Marshal(toWireEvent(e))
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return err
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := h.orch.Execute(r.Context(), req, emit); err != nil {
		emit(domain.ErrorEvent("transport", "stream terminated unexpectedly", err.Error(), nil))
	}
}

type feedbackRequest struct {
	QueryID string `json:"query_id"`
	Rating  int    `json:"rating"`
	Text    string `json:"text"`
}

// feedback records a thumbs-up/thumbs-down signal against a prior
// response, outside the memory/audit writer abstractions since it
// updates an existing row rather than appending a new one.
func (h *apiHandler) feedback(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "feedback storage not configured", http.StatusServiceUnavailable)
		return
	}

	var body feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.QueryID == "" || (body.Rating != 1 && body.Rating != 5) {
		http.Error(w, "query_id and rating (1 or 5) are required", http.StatusBadRequest)
		return
	}

	found, err := h.store.UpdateFeedback(context.Background(), body.QueryID, body.Rating, body.Text)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !found {
		http.Error(w, "query not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"recorded"}`))
}
