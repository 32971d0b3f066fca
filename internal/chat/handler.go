package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/act-prep/backend/internal/llm"
	"github.com/act-prep/backend/internal/models"
	"github.com/act-prep/backend/internal/questions"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(protected *mux.Router) {
	protected.HandleFunc("/chat", h.Chat).Methods("POST")
	protected.HandleFunc("/chat/question/{subject}/{id}", h.ChatAboutQuestion).Methods("POST")
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	content, err := h.service.Reply(r.Context(), req.Messages, req.Instruction)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ChatResponse{Content: content})
}

func (h *Handler) ChatAboutQuestion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	subject := models.Subject(vars["subject"])
	id, err := strconv.Atoi(vars["id"])
	if !subject.Valid() || err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid question"})
		return
	}

	var req models.QuestionChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	content, err := h.service.ReplyAboutQuestion(r.Context(), subject, id, req.Messages)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ChatResponse{Content: content})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var rateLimited *llm.ErrRateLimit
	switch {
	case errors.Is(err, ErrEmptyConversation), errors.Is(err, ErrNoInstruction):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, questions.ErrQuestionNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Question not found"})
	case errors.As(err, &rateLimited):
		writeJSON(w, http.StatusTooManyRequests, models.ErrorResponse{Error: "Assistant is busy, try again shortly"})
	default:
		log.Printf("[handler] Chat error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to process chat request"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
