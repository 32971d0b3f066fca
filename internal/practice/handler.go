package practice

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/act-prep/backend/internal/catalog"
	"github.com/act-prep/backend/internal/models"
	"github.com/gorilla/mux"
)

type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes registers practice endpoints on the protected subrouter.
func (h *Handler) RegisterRoutes(protected *mux.Router) {
	protected.HandleFunc("/practice/selection", h.Preview).Methods("GET")
	protected.HandleFunc("/practice/sessions", h.OpenSession).Methods("POST")
	protected.HandleFunc("/practice/sessions/{id}", h.GetSession).Methods("GET")
	protected.HandleFunc("/practice/sessions/{id}", h.CloseSession).Methods("DELETE")
	protected.HandleFunc("/practice/sessions/{id}/choice", h.Choose).Methods("POST")
	protected.HandleFunc("/practice/sessions/{id}/submit", h.Submit).Methods("POST")
	protected.HandleFunc("/practice/sessions/{id}/next", h.Next).Methods("POST")
	protected.HandleFunc("/practice/sessions/{id}/filters", h.SetFilters).Methods("PUT")
}

// getUserID extracts the authenticated user ID from the request context.
func getUserID(r *http.Request) (int64, bool) {
	uid, ok := r.Context().Value("user_id").(int64)
	return uid, ok
}

func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	sess, err := h.manager.Open(r.Context(), userID, req.Subject)
	if errors.Is(err, catalog.ErrUnknownSubject) {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "subject must be one of math, reading, english, science"})
		return
	}
	if err != nil {
		log.Printf("[handler] OpenSession error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to load your progress"})
		return
	}

	writeJSON(w, http.StatusCreated, sess.View())
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	if err := h.manager.Close(userID, mux.Vars(r)["id"]); err != nil {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Session not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Choose(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.ChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	h.respond(w, sess, sess.Controller().Choose(strings.ToUpper(strings.TrimSpace(req.Choice))))
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respond(w, sess, sess.Controller().Submit(r.Context()))
}

func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respond(w, sess, sess.Controller().Next(r.Context()))
}

func (h *Handler) SetFilters(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req models.FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	h.respond(w, sess, sess.Controller().SetFilters(r.Context(), req.Standards, req.Levels))
}

// Preview answers "what would come next" for a subject and filter set.
// Standards default to every standard of the subject; levels default to none,
// which disables the level filter.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	query := r.URL.Query()
	subject := models.Subject(query.Get("subject"))
	standards := query["standard"]
	if len(standards) == 0 {
		standards = models.Standards[subject]
	}

	resp, err := h.manager.Preview(r.Context(), userID, subject, standards, query["level"])
	if errors.Is(err, catalog.ErrUnknownSubject) {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "subject must be one of math, reading, english, science"})
		return
	}
	if err != nil {
		log.Printf("[handler] Preview error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to load your progress"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ── Helpers ─────────────────────────────────────────────

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return nil, false
	}
	sess, err := h.manager.Get(userID, mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Session not found"})
		return nil, false
	}
	return sess, true
}

// respond maps a controller error to a status code. Unavailable and failed
// saves still return the session view, which carries the notice to show.
func (h *Handler) respond(w http.ResponseWriter, sess *Session, err error) {
	switch {
	case err == nil, errors.Is(err, ErrQuestionUnavailable):
		writeJSON(w, http.StatusOK, sess.View())
	case errors.Is(err, ErrStoreWrite):
		writeJSON(w, http.StatusServiceUnavailable, sess.View())
	case errors.Is(err, ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrNoChoice), errors.Is(err, ErrInvalidChoice):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	default:
		log.Printf("[handler] practice session %s error: %v", sess.ID, err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
