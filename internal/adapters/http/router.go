package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/okravchuk/devfinder/internal/core/domain"
	"github.com/okravchuk/devfinder/internal/core/ports"
	"github.com/okravchuk/devfinder/internal/observability/metrics"
)

type Router struct {
	service string
	chat    ports.ChatService
	metrics *metrics.HTTPServerMetrics
	limiter *rate.Limiter
}

func NewRouter(service string, chat ports.ChatService, m *metrics.HTTPServerMetrics, limiter *rate.Limiter) *Router {
	return &Router{
		service: service,
		chat:    chat,
		metrics: m,
		limiter: limiter,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware(rt.service, next)
		})
	}

	r.Get("/healthz", rt.healthz)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(rt.limiter, next)
		})
		r.Post("/api/chat", rt.handleChat)
	})

	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// chatRequestBody keeps the raw JSON per field so that type errors produce a
// field-specific 400 instead of a generic decode failure.
type chatRequestBody struct {
	Message json.RawMessage `json:"message"`
	ChatID  json.RawMessage `json:"chatId"`
}

func (rt *Router) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}

	message, ok := decodeStringField(body.Message)
	if !ok || strings.TrimSpace(message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "field 'message' is required and must be a non-empty string"})
		return
	}

	chatID := ""
	if len(body.ChatID) > 0 && !isJSONNull(body.ChatID) {
		chatID, ok = decodeStringField(body.ChatID)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "field 'chatId' must be a string"})
			return
		}
	}

	start := time.Now()
	result, err := rt.chat.Chat(r.Context(), domain.ChatRequest{
		ConversationID: chatID,
		Message:        message,
	})
	if err != nil {
		rt.recordRun("error", 0, 0, time.Since(start))
		status := mapErrorToHTTPStatus(err)
		if status >= http.StatusInternalServerError {
			writeJSON(w, status, map[string]string{
				"error":   "internal error",
				"details": err.Error(),
			})
			return
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	runStatus := "ok"
	if result.FallbackReason != "" {
		runStatus = result.FallbackReason
	}
	rt.recordRun(runStatus, result.Attempts, result.MemoryHits, time.Since(start))

	writeJSON(w, http.StatusOK, map[string]string{
		"response": result.Answer,
		"chatId":   result.ConversationID,
	})
}

func (rt *Router) recordRun(status string, attempts, memoryHits int, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordChatRun(rt.service, status, attempts, duration)
	rt.metrics.RecordMemoryHits(rt.service, memoryHits)
}

func decodeStringField(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || isJSONNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func isJSONNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
