package questions

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/act-prep/backend/internal/catalog"
	"github.com/act-prep/backend/internal/models"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers question, passage and practice-test endpoints on
// the protected subrouter.
func (h *Handler) RegisterRoutes(protected *mux.Router) {
	protected.HandleFunc("/questions/{subject}/{id}", h.GetQuestion).Methods("GET")
	protected.HandleFunc("/passages/{id}", h.GetPassage).Methods("GET")

	protected.HandleFunc("/tests/{subject}", h.CreateTest).Methods("POST")
	protected.HandleFunc("/tests/{subject}/answers/{id}", h.SaveTestAnswer).Methods("PUT")
	protected.HandleFunc("/tests/{subject}/grade", h.GradeTest).Methods("POST")
}

// RegisterAdminRoutes registers content upload on the admin subrouter.
func (h *Handler) RegisterAdminRoutes(admin *mux.Router) {
	admin.HandleFunc("/questions/upload", h.Upload).Methods("POST")
}

// getUserID extracts the authenticated user ID from the request context.
func getUserID(r *http.Request) (int64, bool) {
	uid, ok := r.Context().Value("user_id").(int64)
	return uid, ok
}

func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	subject, id, ok := subjectAndID(w, r)
	if !ok {
		return
	}

	q, err := h.service.GetQuestion(r.Context(), subject, id)
	if errors.Is(err, ErrQuestionNotFound) {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Question not found"})
		return
	}
	if err != nil {
		log.Printf("[handler] GetQuestion error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to load question"})
		return
	}

	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) GetPassage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid passage ID"})
		return
	}

	p, err := h.service.GetPassage(r.Context(), id)
	if errors.Is(err, ErrPassageNotFound) {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Passage not found"})
		return
	}
	if err != nil {
		log.Printf("[handler] GetPassage error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to load passage"})
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) CreateTest(w http.ResponseWriter, r *http.Request) {
	subject := models.Subject(mux.Vars(r)["subject"])
	size := intQueryParam(r.URL.Query(), "size", DefaultTestSize)

	resp, err := h.service.SampleTest(subject, size)
	if errors.Is(err, catalog.ErrUnknownSubject) {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid subject"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to create test"})
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) SaveTestAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	subject, id, ok := subjectAndID(w, r)
	if !ok {
		return
	}

	var req models.TestAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	err := h.service.SaveTestAnswer(r.Context(), userID, subject, id, strings.ToUpper(strings.TrimSpace(req.Choice)))
	switch {
	case errors.Is(err, ErrInvalidUpload):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "choice must be A, B, C or D"})
		return
	case errors.Is(err, ErrQuestionNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Question not found"})
		return
	case err != nil:
		log.Printf("[handler] SaveTestAnswer error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to save answer"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Answer saved"})
}

func (h *Handler) GradeTest(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}
	subject := models.Subject(mux.Vars(r)["subject"])
	if !subject.Valid() {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid subject"})
		return
	}

	var req models.TestGradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.QuestionIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "question_ids is required"})
		return
	}

	resp, err := h.service.GradeTest(r.Context(), userID, subject, req.QuestionIDs)
	if err != nil {
		log.Printf("[handler] GradeTest error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to grade test"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var req models.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.Upload(r.Context(), req.Subject, req.Questions)
	switch {
	case errors.Is(err, catalog.ErrUnknownSubject):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid subject"})
		return
	case errors.Is(err, ErrInvalidUpload):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		log.Printf("[handler] Upload error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Upload failed: " + err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// ── Helpers ─────────────────────────────────────────────

func subjectAndID(w http.ResponseWriter, r *http.Request) (models.Subject, int, bool) {
	vars := mux.Vars(r)
	subject := models.Subject(vars["subject"])
	if !subject.Valid() {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid subject"})
		return "", 0, false
	}
	id, err := strconv.Atoi(vars["id"])
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid question ID"})
		return "", 0, false
	}
	return subject, id, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func intQueryParam(query url.Values, key string, defaultVal int) int {
	s := query.Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
