package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/denismitr/lemonrest"
	"github.com/denismitr/lemonrest/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type item struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type routerTestSuite struct {
	suite.Suite
	path   string
	c      *lemonrest.Collection
	closer lemonrest.Closer
	m      *metrics.Collector
	h      http.Handler
}

func TestRouter(t *testing.T) {
	suite.Run(t, &routerTestSuite{})
}

func (rts *routerTestSuite) SetupTest() {
	rts.path = filepath.Join(rts.T().TempDir(), "items.json")

	c, closer, err := lemonrest.Open(rts.path)
	rts.Require().NoError(err)

	rts.c = c
	rts.closer = closer
	rts.m = metrics.New()
	rts.h = NewRouter(c, Options{Metrics: rts.m, MaxBodyBytes: 256})
}

func (rts *routerTestSuite) TearDownTest() {
	rts.Require().NoError(rts.closer())
}

func (rts *routerTestSuite) do(method, target, body string) (*httptest.ResponseRecorder, envelope) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	rec := httptest.NewRecorder()
	rts.h.ServeHTTP(rec, httptest.NewRequest(method, target, r))

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		rts.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}

	return rec, env
}

func (rts *routerTestSuite) item(env envelope) item {
	var it item
	rts.Require().NoError(json.Unmarshal(env.Data, &it))
	return it
}

func (rts *routerTestSuite) TestScenario() {
	rec, env := rts.do(http.MethodPost, "/items", `{"name":"Widget"}`)
	rts.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	rts.True(env.Success)
	created := rts.item(env)
	rts.Equal("Widget", created.Name)
	rts.NotZero(created.ID)
	rts.Equal("/items/1", rec.Header().Get("Location"))

	rec, env = rts.do(http.MethodGet, "/items/1", "")
	rts.Require().Equal(http.StatusOK, rec.Code)
	rts.Equal(created, rts.item(env))

	rec, env = rts.do(http.MethodPut, "/items/1", `{"name":"Gadget"}`)
	rts.Require().Equal(http.StatusOK, rec.Code)
	updated := rts.item(env)
	rts.Equal(created.ID, updated.ID)
	rts.Equal("Gadget", updated.Name)

	rec, env = rts.do(http.MethodDelete, "/items/1", "")
	rts.Require().Equal(http.StatusOK, rec.Code)
	rts.JSONEq(`{"id":1,"deleted":true}`, string(env.Data))

	rec, env = rts.do(http.MethodGet, "/items/1", "")
	rts.Equal(http.StatusNotFound, rec.Code)
	rts.False(env.Success)
	rts.Equal("record not found", env.Error)
}

func (rts *routerTestSuite) TestListEmptyCollection() {
	rec, env := rts.do(http.MethodGet, "/items", "")
	rts.Require().Equal(http.StatusOK, rec.Code)
	rts.True(env.Success)
	rts.JSONEq(`[]`, string(env.Data))
}

func (rts *routerTestSuite) TestPatchMergesShallowly() {
	rts.do(http.MethodPost, "/items", `{"name":"Widget","price":10,"dims":{"w":1,"h":2}}`)

	rec, env := rts.do(http.MethodPatch, "/items/1", `{"price":12.5,"dims":{"w":3},"id":42}`)
	rts.Require().Equal(http.StatusOK, rec.Code)
	rts.JSONEq(`{"id":1,"name":"Widget","price":12.5,"dims":{"w":3}}`, string(env.Data))
}

func (rts *routerTestSuite) TestMissingRecordOnWrite() {
	rec, _ := rts.do(http.MethodPut, "/items/9", `{"name":"Gadget"}`)
	rts.Equal(http.StatusNotFound, rec.Code)

	rec, _ = rts.do(http.MethodDelete, "/items/9", "")
	rts.Equal(http.StatusNotFound, rec.Code)

	b, err := os.ReadFile(rts.path)
	rts.Require().NoError(err)
	rts.JSONEq(`[]`, string(b))
}

func (rts *routerTestSuite) TestValidation() {
	rts.do(http.MethodPost, "/items", `{"name":"Widget"}`)

	tt := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{name: "non integer id", method: http.MethodGet, target: "/items/abc", status: http.StatusBadRequest},
		{name: "fractional id", method: http.MethodDelete, target: "/items/1.5", status: http.StatusBadRequest},
		{name: "malformed body", method: http.MethodPost, target: "/items", body: `{"name":`, status: http.StatusBadRequest},
		{name: "array body", method: http.MethodPost, target: "/items", body: `[{"name":"x"}]`, status: http.StatusBadRequest},
		{name: "empty body", method: http.MethodPost, target: "/items", status: http.StatusBadRequest},
		{name: "string body on update", method: http.MethodPut, target: "/items/1", body: `"x"`, status: http.StatusBadRequest},
		{name: "body too large", method: http.MethodPost, target: "/items", body: `{"blob":"` + strings.Repeat("x", 300) + `"}`, status: http.StatusRequestEntityTooLarge},
		{name: "method not allowed", method: http.MethodPost, target: "/items/1", body: `{}`, status: http.StatusMethodNotAllowed},
		{name: "unknown route", method: http.MethodGet, target: "/nope", status: http.StatusNotFound},
		{name: "bad order", method: http.MethodGet, target: "/items?order=sideways", status: http.StatusBadRequest},
		{name: "bad limit", method: http.MethodGet, target: "/items?limit=many", status: http.StatusBadRequest},
		{name: "bad filter", method: http.MethodGet, target: "/items?filter=nocolon", status: http.StatusBadRequest},
		{name: "empty range", method: http.MethodGet, target: "/items?from=5&to=2", status: http.StatusBadRequest},
	}

	for _, tc := range tt {
		rts.Run(tc.name, func() {
			rec, env := rts.do(tc.method, tc.target, tc.body)
			rts.Equal(tc.status, rec.Code, rec.Body.String())
			rts.False(env.Success)
			rts.NotEmpty(env.Error)
		})
	}

	// nothing above changed the collection
	rec, env := rts.do(http.MethodGet, "/items", "")
	rts.Require().Equal(http.StatusOK, rec.Code)
	rts.JSONEq(`[{"id":1,"name":"Widget"}]`, string(env.Data))
}

func (rts *routerTestSuite) TestListQuery() {
	for _, body := range []string{
		`{"name":"Widget","color":"red"}`,
		`{"name":"Gadget","color":"blue"}`,
		`{"name":"Gizmo","color":"red"}`,
	} {
		rec, _ := rts.do(http.MethodPost, "/items", body)
		rts.Require().Equal(http.StatusCreated, rec.Code)
	}

	ids := func(target string) []int64 {
		rec, env := rts.do(http.MethodGet, target, "")
		rts.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		var items []item
		rts.Require().NoError(json.Unmarshal(env.Data, &items))
		result := make([]int64, 0, len(items))
		for _, it := range items {
			result = append(result, it.ID)
		}
		return result
	}

	rts.Equal([]int64{1, 2, 3}, ids("/items"))
	rts.Equal([]int64{3, 2, 1}, ids("/items?order=desc"))
	rts.Equal([]int64{1, 3}, ids("/items?filter=color:red"))
	rts.Equal([]int64{3}, ids("/items?filter=color:red&filter=name:G*"))
	rts.Equal([]int64{2, 3}, ids("/items?from=2"))
	rts.Equal([]int64{2}, ids("/items?order=asc&offset=1&limit=1"))
}

func (rts *routerTestSuite) TestCorruptFileIsServerError() {
	rts.do(http.MethodPost, "/items", `{"name":"Widget"}`)
	rts.Require().NoError(os.WriteFile(rts.path, []byte(`[{"id":1,`), 0644))

	rec, env := rts.do(http.MethodGet, "/items", "")
	rts.Equal(http.StatusInternalServerError, rec.Code)
	rts.Equal(http.StatusText(http.StatusInternalServerError), env.Error)

	rec, _ = rts.do(http.MethodPost, "/items", `{"name":"Gadget"}`)
	rts.Equal(http.StatusInternalServerError, rec.Code)

	// the file is left as it was
	b, err := os.ReadFile(rts.path)
	rts.Require().NoError(err)
	rts.Equal(`[{"id":1,`, string(b))
}

func (rts *routerTestSuite) TestHealthAndMetrics() {
	rts.do(http.MethodPost, "/items", `{"name":"Widget"}`)
	rts.do(http.MethodGet, "/items/1", "")

	rec, env := rts.do(http.MethodGet, "/healthz", "")
	rts.Require().Equal(http.StatusOK, rec.Code)
	rts.JSONEq(`{"status":"ok","records":1}`, string(env.Data))

	rec, _ = rts.do(http.MethodGet, "/metrics", "")
	rts.Require().Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	rts.Contains(body, `lemonrest_http_requests_total{method="GET",route="/items/{id}",status="200"} 1`)
	rts.Contains(body, `lemonrest_http_requests_total{method="POST",route="/items",status="201"} 1`)
}

func (rts *routerTestSuite) TestRequestID() {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	rts.h.ServeHTTP(rec, req)
	rts.Equal("abc-123", rec.Header().Get(RequestIDHeader))

	rec, _ = rts.do(http.MethodGet, "/healthz", "")
	rts.Len(rec.Header().Get(RequestIDHeader), 36)
}

func TestRouter_BasePathAndResource(t *testing.T) {
	c, closer, err := lemonrest.Open(lemonrest.InMemory)
	require.NoError(t, err)
	defer func() { assert.NoError(t, closer()) }()

	h := NewRouter(c, Options{BasePath: "/api/v1/", Resource: "products"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"name":"Widget"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// no metrics collector, no endpoint
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RecoversFromPanics(t *testing.T) {
	// a nil collection panics on first use
	h := NewRouter(nil, Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Internal Server Error"}`, rec.Body.String())
}

func TestRouter_RateLimit(t *testing.T) {
	c, closer, err := lemonrest.Open(lemonrest.InMemory)
	require.NoError(t, err)
	defer func() { assert.NoError(t, closer()) }()

	h := NewRouter(c, Options{RateLimit: 0.001, RateBurst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/items", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// other clients have their own bucket
	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RealServer(t *testing.T) {
	c, closer, err := lemonrest.Open(lemonrest.InMemory)
	require.NoError(t, err)
	defer func() { assert.NoError(t, closer()) }()

	srv := httptest.NewServer(NewRouter(c, Options{}))
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/items", "application/json", strings.NewReader(`{"name":"Widget"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.JSONEq(t, `{"id":1,"name":"Widget"}`, string(env.Data))
}
