package progress

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/act-prep/backend/internal/models"
	"github.com/gorilla/mux"
)

const dateLayout = "2006-01-02"

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes registers review endpoints on the protected subrouter.
func (h *Handler) RegisterRoutes(protected *mux.Router) {
	protected.HandleFunc("/review", h.ListReview).Methods("GET")
	protected.HandleFunc("/review/{subject}/{id}", h.AnnotateReview).Methods("PUT")
}

// getUserID extracts the authenticated user ID from the request context.
func getUserID(r *http.Request) (int64, bool) {
	uid, ok := r.Context().Value("user_id").(int64)
	return uid, ok
}

func (h *Handler) ListReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	filter := models.ReviewFilter{
		Standard: queryStringPtr(r, "standard"),
		Status:   models.ReviewStatus(queryStringDefault(r, "status", string(models.ReviewStatusAttempted))),
		Page:     intQueryParam(r.URL.Query(), "page", 1),
		PageSize: intQueryParam(r.URL.Query(), "page_size", 20),
	}
	if filter.Status != models.ReviewStatusAttempted && filter.Status != models.ReviewStatusNew {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "status must be 'attempted' or 'new'"})
		return
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}

	if s := queryStringPtr(r, "subject"); s != nil {
		subject := models.Subject(*s)
		if !subject.Valid() {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid subject"})
			return
		}
		filter.Subject = &subject
	}

	if res := queryStringPtr(r, "result"); res != nil {
		result := models.ReviewResult(*res)
		if result != models.ReviewResultCorrect && result != models.ReviewResultWrong {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "result must be 'correct' or 'wrong'"})
			return
		}
		filter.Result = &result
	}

	var err error
	if filter.DateFrom, err = queryDatePtr(r, "date_from"); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "date_from must be YYYY-MM-DD"})
		return
	}
	if filter.DateTo, err = queryDatePtr(r, "date_to"); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "date_to must be YYYY-MM-DD"})
		return
	}
	if filter.DateTo != nil {
		// inclusive of the whole day
		end := filter.DateTo.AddDate(0, 0, 1)
		filter.DateTo = &end
	}

	resp, err := h.store.ListAttempts(r.Context(), userID, filter)
	if err != nil {
		log.Printf("[handler] ListReview error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to load review list"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) AnnotateReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	vars := mux.Vars(r)
	subject := models.Subject(vars["subject"])
	if !subject.Valid() {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid subject"})
		return
	}
	questionID, err := strconv.Atoi(vars["id"])
	if err != nil || questionID < 1 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid question ID"})
		return
	}

	var req models.ReviewNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	err = h.store.AnnotateReview(r.Context(), userID, subject, questionID, req.Reason, req.Notes)
	switch {
	case errors.Is(err, ErrInvalidReason):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "wrongReason is not a known reason"})
		return
	case errors.Is(err, ErrAttemptNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "No attempt for this question"})
		return
	case err != nil:
		log.Printf("[handler] AnnotateReview error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to save review"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Review saved"})
}

// ── Query param helpers ──────────────────────────────────

func queryStringPtr(r *http.Request, key string) *string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	return &v
}

func queryStringDefault(r *http.Request, key, defaultVal string) string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func queryDatePtr(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, v, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
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

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
