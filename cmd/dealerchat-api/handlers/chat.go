// Package handlers provides HTTP handlers for the dealer chat API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/floorservicemsk/dealerchat/internal/chat"
	"github.com/floorservicemsk/dealerchat/internal/middleware"
	"github.com/floorservicemsk/dealerchat/internal/queue"
)

// ChatHandler serves the chat endpoints.
type ChatHandler struct {
	logger       zerolog.Logger
	orchestrator *chat.Orchestrator
	queue        *queue.Queue
	limiter      *middleware.Limiter
}

// NewChatHandler creates a chat handler.
func NewChatHandler(logger zerolog.Logger, orchestrator *chat.Orchestrator, q *queue.Queue, limiter *middleware.Limiter) *ChatHandler {
	return &ChatHandler{
		logger:       logger,
		orchestrator: orchestrator,
		queue:        q,
		limiter:      limiter,
	}
}

// ChatRequestDTO is the inbound chat message.
type ChatRequestDTO struct {
	Message     string                `json:"message"`
	SessionID   string                `json:"sessionId"`
	ChatHistory []chat.HistoryMessage `json:"chatHistory,omitempty"`
}

// ChatResponseDTO is the assembled answer. Content is markdown or a
// JSON-encoded structured payload; clients probe before rendering.
type ChatResponseDTO struct {
	Content     string            `json:"content"`
	Attachments []chat.Attachment `json:"attachments"`
	Cached      bool              `json:"cached,omitempty"`
}

type errorDTO struct {
	Error         string `json:"error"`
	EstimatedWait int    `json:"estimatedWaitSeconds,omitempty"`
}

// Chat handles POST /api/v1/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	middleware.SetRateHeaders(w, h.limiter, req.SessionID)

	resp, err := h.orchestrator.Handle(r.Context(), chat.Request{
		Message:   req.Message,
		SessionID: req.SessionID,
		History:   req.ChatHistory,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ChatResponseDTO{
		Content:     resp.Content,
		Attachments: attachments(resp),
		Cached:      resp.Cached,
	})
}

// ChatStream handles POST /api/v1/chat/stream as server-sent events:
// data: {"content":"<chunk>"} lines terminated by data: [DONE].
func (h *ChatHandler) ChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	middleware.SetRateHeaders(w, h.limiter, req.SessionID)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	chunks := make(chan string, 16)
	result := make(chan error, 1)

	go func() {
		_, err := h.orchestrator.HandleStream(r.Context(), chat.Request{
			Message:   req.Message,
			SessionID: req.SessionID,
			History:   req.ChatHistory,
		}, chunks)
		close(chunks)
		result <- err
	}()

	wroteAny := false
	for chunk := range chunks {
		payload, err := json.Marshal(map[string]string{"content": chunk})
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
		wroteAny = true
	}

	if err := <-result; err != nil {
		// Headers are already out once any chunk was written; an SSE
		// error line is the only way to signal failure then.
		if !wroteAny {
			h.writeError(w, err)
			return
		}
		h.logger.Warn().Err(err).Msg("stream ended with error")
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// QueueStats handles GET /api/v1/queue/stats.
func (h *ChatHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.queue.Stats())
}

func (h *ChatHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (ChatRequestDTO, bool) {
	var req ChatRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorDTO{Error: "некорректный запрос"})
		return req, false
	}
	if req.Message == "" {
		h.writeJSON(w, http.StatusBadRequest, errorDTO{Error: "сообщение не может быть пустым"})
		return req, false
	}
	return req, true
}

// writeError maps pipeline errors to their HTTP statuses: 429 for rate
// limiting, 503 for backpressure, 504 for the per-request timeout.
func (h *ChatHandler) writeError(w http.ResponseWriter, err error) {
	var rateErr *chat.RateLimitError
	if errors.As(err, &rateErr) {
		w.Header().Set("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())+1))
		h.writeJSON(w, http.StatusTooManyRequests, errorDTO{Error: "слишком много запросов, подождите немного"})
		return
	}

	var capErr *chat.CapacityError
	if errors.As(err, &capErr) {
		h.writeJSON(w, http.StatusServiceUnavailable, errorDTO{
			Error:         "сервис перегружен, попробуйте позже",
			EstimatedWait: int(capErr.EstimatedWait.Seconds()) + 1,
		})
		return
	}

	if errors.Is(err, queue.ErrQueueFull) {
		h.writeJSON(w, http.StatusServiceUnavailable, errorDTO{Error: "сервис перегружен, попробуйте позже"})
		return
	}

	if errors.Is(err, queue.ErrRequestTimeout) {
		h.writeJSON(w, http.StatusGatewayTimeout, errorDTO{Error: "обработка запроса заняла слишком много времени"})
		return
	}

	h.logger.Error().Err(err).Msg("chat request failed")
	h.writeJSON(w, http.StatusInternalServerError, errorDTO{Error: "внутренняя ошибка сервиса"})
}

func (h *ChatHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().Err(err).Msg("response encoding failed")
	}
}

func attachments(resp chat.Response) []chat.Attachment {
	if resp.Attachments == nil {
		return []chat.Attachment{}
	}
	return resp.Attachments
}
