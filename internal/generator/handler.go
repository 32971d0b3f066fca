package generator

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/act-prep/backend/internal/models"
	"github.com/gorilla/mux"
)

type Handler struct {
	generator *Generator
}

func NewHandler(g *Generator) *Handler {
	return &Handler{generator: g}
}

// RegisterAdminRoutes registers generation on the admin subrouter.
func (h *Handler) RegisterAdminRoutes(admin *mux.Router) {
	admin.HandleFunc("/generate", h.Generate).Methods("POST")
}

type generateResponse struct {
	Results map[models.Subject]*Result `json:"results"`
	Errors  map[models.Subject]string  `json:"errors,omitempty"`
}

// Generate returns freshly generated sets. Nothing is stored; the admin
// reviews the output and uploads it separately.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	subjects := req.Subjects
	if req.Subject != "" {
		subjects = append([]models.Subject{req.Subject}, subjects...)
	}
	if len(subjects) == 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Missing subject"})
		return
	}
	seen := make(map[models.Subject]bool, len(subjects))
	unique := subjects[:0]
	for _, s := range subjects {
		if !s.Valid() {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid subject: " + string(s)})
			return
		}
		if !seen[s] {
			seen[s] = true
			unique = append(unique, s)
		}
	}

	results, errs := h.generator.GenerateMany(r.Context(), unique)
	resp := generateResponse{Results: results}
	if len(errs) > 0 {
		resp.Errors = make(map[models.Subject]string, len(errs))
		for s, err := range errs {
			resp.Errors[s] = err.Error()
		}
	}

	if len(results) == 0 {
		status := http.StatusBadGateway
		for _, err := range errs {
			if errors.Is(err, ErrInvalidBatch) {
				status = http.StatusUnprocessableEntity
			}
		}
		log.Printf("[handler] Generate error: %v", errs)
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
