package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atodared/deployd/internal/collection"
	"github.com/atodared/deployd/internal/dsl"
	"github.com/atodared/deployd/internal/live"
	"github.com/atodared/deployd/internal/store"
)

func newTestApp(t *testing.T, events map[string]collection.Script) (*gin.Engine, store.Backend) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := store.NewMemory()
	col := collection.New(collection.Config{
		Name: "todos",
		Properties: []dsl.Property{
			{Name: "title", Type: "string", Required: true},
			{Name: "votes", Type: "number"},
			{Name: "done", Type: "boolean"},
		},
		Events: events,
	}, backend.Namespace("todos"))

	app := &App{
		Collections: map[string]*collection.Collection{"todos": col},
		Hub:         live.NewHub(),
		RootKey:     "secret",
	}
	return NewRouter(app), backend
}

func do(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateMissingRequired(t *testing.T) {
	r, backend := newTestApp(t, nil)

	w := do(t, r, "POST", "/api/todos", map[string]any{"votes": 3}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	out := decode(t, w)
	errs := out["errors"].(map[string]any)
	assert.Equal(t, "is required", errs["title"])

	n, _ := backend.Namespace("todos").Count(context.Background(), store.Query{})
	assert.Equal(t, 0, n)
}

func TestCreateWithCoercion(t *testing.T) {
	r, backend := newTestApp(t, nil)

	w := do(t, r, "POST", "/api/todos", map[string]any{"title": "a", "votes": "7"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	out := decode(t, w)
	assert.NotEmpty(t, out["id"])
	assert.Equal(t, float64(7), out["votes"])
	assert.Equal(t, false, out["done"])

	stored, _ := backend.Namespace("todos").First(context.Background(), store.Query{"id": out["id"]})
	require.NotNil(t, stored)
	assert.Equal(t, float64(7), stored["votes"])
}

func TestUpdateByIDWithInc(t *testing.T) {
	r, backend := newTestApp(t, nil)
	_, err := backend.Namespace("todos").Insert(context.Background(),
		store.Document{"id": "x", "title": "a", "votes": float64(7), "done": false})
	require.NoError(t, err)

	w := do(t, r, "POST", "/api/todos/x", map[string]any{"votes": map[string]any{"$inc": 2}}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	out := decode(t, w)
	assert.Equal(t, "x", out["id"])
	assert.Equal(t, float64(9), out["votes"])
}

func TestGetByIDNotFound(t *testing.T) {
	r, _ := newTestApp(t, nil)

	w := do(t, r, "GET", "/api/todos/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not found", decode(t, w)["message"])
}

func TestGetListWithQuery(t *testing.T) {
	r, backend := newTestApp(t, nil)
	ns := backend.Namespace("todos")
	_, _ = ns.Insert(context.Background(), store.Document{"title": "a", "done": false})
	_, _ = ns.Insert(context.Background(), store.Document{"title": "b", "done": true})

	// строка "true" из query приводится к boolean
	w := do(t, r, "GET", "/api/todos?done=true", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0]["title"])
}

func TestCountRequiresRoot(t *testing.T) {
	r, backend := newTestApp(t, nil)
	_, _ = backend.Namespace("todos").Insert(context.Background(), store.Document{"title": "a"})

	w := do(t, r, "GET", "/api/todos/count", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, "GET", "/api/todos/count", nil, map[string]string{RootHeader: "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])
}

func TestBulkCreatePermissions(t *testing.T) {
	r, _ := newTestApp(t, nil)
	body := []any{
		map[string]any{"title": "a"},
		map[string]any{"title": "b"},
	}

	// массовое создание не входит в набор прав по умолчанию
	w := do(t, r, "POST", "/api/todos", body, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, "POST", "/api/todos", body, map[string]string{RootHeader: "secret"})
	require.Equal(t, http.StatusOK, w.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Len(t, out, 2)
}

func TestDeleteByID(t *testing.T) {
	r, backend := newTestApp(t, nil)
	_, _ = backend.Namespace("todos").Insert(context.Background(), store.Document{"id": "x", "title": "a"})

	w := do(t, r, "DELETE", "/api/todos/x", nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	n, _ := backend.Namespace("todos").Count(context.Background(), store.Query{})
	assert.Equal(t, 0, n)
}

func TestGetListScriptFilter(t *testing.T) {
	hideDone := collection.ScriptFunc(func(ctx *collection.Context, d *collection.Domain) error {
		if done, _ := d.Data["done"].(bool); done {
			d.Error("hide", "yes")
		}
		return nil
	})
	r, backend := newTestApp(t, map[string]collection.Script{collection.EventGet: hideDone})
	ns := backend.Namespace("todos")
	_, _ = ns.Insert(context.Background(), store.Document{"id": "1", "title": "a", "done": false})
	_, _ = ns.Insert(context.Background(), store.Document{"id": "2", "title": "b", "done": true})

	w := do(t, r, "GET", "/api/todos", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0]["id"])
}

func TestUnknownCollection(t *testing.T) {
	r, _ := newTestApp(t, nil)
	w := do(t, r, "GET", "/api/users", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestIDHeader(t *testing.T) {
	r, _ := newTestApp(t, nil)

	w := do(t, r, "GET", "/api/todos", nil, nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = do(t, r, "GET", "/api/todos", nil, map[string]string{"X-Request-Id": "rid-1"})
	assert.Equal(t, "rid-1", w.Header().Get("X-Request-Id"))
}
