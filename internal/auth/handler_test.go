package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/act-prep/backend/internal/auth"
	"github.com/act-prep/backend/internal/database/dbtest"
	"github.com/act-prep/backend/internal/middleware"
	"github.com/act-prep/backend/internal/models"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func newRouter(t *testing.T) (*mux.Router, *auth.Store) {
	t.Helper()
	store := auth.NewStore(dbtest.Open(t))
	h := auth.NewHandler(store, secret)

	r := mux.NewRouter()
	r.HandleFunc("/auth/register", h.Register).Methods("POST")
	r.HandleFunc("/auth/login", h.Login).Methods("POST")
	protected := r.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth(secret))
	protected.HandleFunc("/auth/me", h.GetCurrentUser).Methods("GET")
	return r, store
}

func post(r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", path, &buf))
	return rec
}

func TestRegisterLoginMe(t *testing.T) {
	r, _ := newRouter(t)

	rec := post(r, "/auth/register", models.RegisterRequest{Email: " Sam@Example.com ", Name: "Sam Lee", Password: "password123"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg models.AuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reg))
	assert.Equal(t, "sam@example.com", reg.User.Email)
	assert.NotEmpty(t, reg.Token)

	rec = post(r, "/auth/register", models.RegisterRequest{Email: "sam@example.com", Name: "Other", Password: "password123"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = post(r, "/auth/login", models.LoginRequest{Email: "sam@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(r, "/auth/login", models.LoginRequest{Email: "sam@example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login models.AuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&login))

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, reg.User.ID, me.ID)
	assert.Equal(t, "Sam", me.FirstName())
}

func TestRegisterValidation(t *testing.T) {
	r, _ := newRouter(t)

	tests := []struct {
		name string
		req  models.RegisterRequest
	}{
		{"missing name", models.RegisterRequest{Email: "a@b.c", Password: "password123"}},
		{"short password", models.RegisterRequest{Email: "a@b.c", Name: "A", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(r, "/auth/register", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUpdatePlan(t *testing.T) {
	_, store := newRouter(t)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, "p@example.com", "Pat", "hash")
	require.NoError(t, err)
	assert.Nil(t, u.ACTTestDate)

	perDay := 25
	require.NoError(t, store.UpdatePlan(ctx, u.ID, "2024-06-08", &perDay))

	got, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ACTTestDate)
	assert.Equal(t, "2024-06-08", *got.ACTTestDate)
	assert.Equal(t, 25, *got.QuestionsPerDay)

	assert.ErrorIs(t, store.UpdatePlan(ctx, 9999, "", nil), auth.ErrUserNotFound)
}
