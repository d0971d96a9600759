package template

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certdesk/certdesk/backend-go/internal/auth"
	"github.com/certdesk/certdesk/backend-go/internal/document"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newService(t *testing.T) *Service {
	svc := NewService(newStore(t))
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc
}

func a4Doc(t *testing.T) []byte {
	t.Helper()
	p, err := document.LookupPreset(document.PresetA4)
	require.NoError(t, err)
	data, err := document.Marshal(document.Blank(p))
	require.NoError(t, err)
	return data
}

func TestSQLiteStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tpl := &Template{
		ID: "tpl_1", Name: "Award", OwnerID: "user_1", Width: 1056, Height: 816,
		Document: json.RawMessage(`{"width":1056}`), CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.Create(ctx, tpl))

	got, err := store.Get(ctx, "tpl_1")
	require.NoError(t, err)
	assert.Equal(t, tpl, got)

	tpl.Name = "Renamed"
	tpl.UpdatedAt = now.Add(time.Hour)
	require.NoError(t, store.Save(ctx, tpl))

	list, err := store.List(ctx, "user_1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Renamed", list[0].Name)
	assert.Nil(t, list[0].Document)

	others, err := store.List(ctx, "user_2")
	require.NoError(t, err)
	assert.Empty(t, others)

	require.NoError(t, store.Delete(ctx, "tpl_1"))
	_, err = store.Get(ctx, "tpl_1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "tpl_1"), ErrNotFound)
	assert.ErrorIs(t, store.Save(ctx, tpl), ErrNotFound)
}

func TestOpenSchemes(t *testing.T) {
	store, err := Open(context.Background(), "sqlite://:memory:")
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(context.Background(), "mysql://localhost/db")
	assert.Error(t, err)
}

func TestServiceCreateSeedsBlankDocument(t *testing.T) {
	svc := newService(t)
	tpl, err := svc.Create(context.Background(), "user_1", "  ", nil)
	require.NoError(t, err)

	assert.Equal(t, "Untitled certificate", tpl.Name)
	assert.Equal(t, 1056, tpl.Width)
	assert.Equal(t, 816, tpl.Height)

	doc, err := document.Unmarshal(tpl.Document)
	require.NoError(t, err)
	assert.Empty(t, doc.Elements)
}

func TestServiceValidatesDocuments(t *testing.T) {
	svc := newService(t)
	_, err := svc.Create(context.Background(), "user_1", "bad", []byte(`{"width":0,"height":10,"backgroundColor":"#fff","elements":[]}`))
	var verr *document.ValidationError
	assert.ErrorAs(t, err, &verr)

	tpl, err := svc.Create(context.Background(), "user_1", "ok", nil)
	require.NoError(t, err)
	_, err = svc.Save(context.Background(), tpl.ID, "user_1", "", nil)
	assert.ErrorAs(t, err, &verr)
}

func TestServiceOwnership(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	tpl, err := svc.Create(ctx, "user_1", "Mine", nil)
	require.NoError(t, err)

	_, err = svc.Get(ctx, tpl.ID, "user_2")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Save(ctx, tpl.ID, "user_2", "", a4Doc(t))
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, tpl.ID, "user_2"), ErrForbidden)
	_, err = svc.Get(ctx, "tpl_missing", "user_1")
	assert.ErrorIs(t, err, ErrNotFound)

	saved, err := svc.Save(ctx, tpl.ID, "user_1", "", a4Doc(t))
	require.NoError(t, err)
	assert.Equal(t, "Mine", saved.Name)
	assert.Equal(t, 1123, saved.Width)
	assert.True(t, saved.UpdatedAt.After(saved.CreatedAt))

	require.NoError(t, svc.Delete(ctx, tpl.ID, "user_1"))
}

func TestHandlerRoutes(t *testing.T) {
	svc := newService(t)
	h := NewHandler(svc)

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUserID(req.Context(), req.Header.Get("X-User"))))
		})
	})
	api.HandleFunc("/templates", h.List).Methods(http.MethodGet)
	api.HandleFunc("/templates", h.Create).Methods(http.MethodPost)
	api.HandleFunc("/templates/{templateId}", h.Get).Methods(http.MethodGet)
	api.HandleFunc("/templates/{templateId}", h.Save).Methods(http.MethodPut)
	api.HandleFunc("/templates/{templateId}", h.Delete).Methods(http.MethodDelete)

	do := func(method, path, user string, body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("X-User", user)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	body, err := json.Marshal(writeRequest{Name: "Award", Document: a4Doc(t)})
	require.NoError(t, err)
	rec := do(http.MethodPost, "/api/templates", "user_1", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Award", created.Name)

	rec = do(http.MethodGet, "/api/templates", "user_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/templates/"+created.ID, "user_1", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/api/templates/"+created.ID, "user_2", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/api/templates/tpl_nope", "user_1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPut, "/api/templates/"+created.ID, "user_1", []byte("{")).Code)
	assert.Equal(t, http.StatusUnprocessableEntity,
		do(http.MethodPut, "/api/templates/"+created.ID, "user_1", []byte(`{"document":{"width":-1,"height":1,"backgroundColor":"#fff","elements":[]}}`)).Code)
	assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, "/api/templates/"+created.ID, "user_1", nil).Code)
}
