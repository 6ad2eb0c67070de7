package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathRouter_ParamBinding(t *testing.T) {
	r := NewPathRouter()
	var got string
	r.Handle(http.MethodGet, "/workspaces/:name/chunks", func(w http.ResponseWriter, req *http.Request) {
		got = Param(req, "name")
	})

	req := httptest.NewRequest(http.MethodGet, "/workspaces/acme/chunks", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "acme", got)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPathRouter_WildcardCapturesRemainder(t *testing.T) {
	r := NewPathRouter()
	var got string
	r.Handle(http.MethodGet, "/static/*", func(w http.ResponseWriter, req *http.Request) {
		got = Param(req, "*")
	})

	req := httptest.NewRequest(http.MethodGet, "/static/css/app/main.css", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "css/app/main.css", got)
}

func TestPathRouter_MoreSpecificRouteWins(t *testing.T) {
	r := NewPathRouter()
	var which string
	r.Handle(http.MethodGet, "/workspaces/:name", func(w http.ResponseWriter, req *http.Request) {
		which = "param"
	})
	r.Handle(http.MethodGet, "/workspaces/default", func(w http.ResponseWriter, req *http.Request) {
		which = "literal"
	})

	req := httptest.NewRequest(http.MethodGet, "/workspaces/default", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "literal", which)
}

func TestPathRouter_RegistrationOrderTiebreak(t *testing.T) {
	r := NewPathRouter()
	var which string
	r.Handle(http.MethodGet, "/a/:x", func(w http.ResponseWriter, req *http.Request) { which = "first" })
	r.Handle(http.MethodGet, "/a/:y", func(w http.ResponseWriter, req *http.Request) { which = "second" })

	req := httptest.NewRequest(http.MethodGet, "/a/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "first", which)
}

func TestPathRouter_NoMatchIs404(t *testing.T) {
	r := NewPathRouter()
	r.Handle(http.MethodGet, "/known", func(w http.ResponseWriter, req *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/unknown", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.JSONEq(t, `{"error":"Not found"}`, w.Body.String())
}

func TestPathRouter_MethodMustMatch(t *testing.T) {
	r := NewPathRouter()
	r.Handle(http.MethodGet, "/x", func(w http.ResponseWriter, req *http.Request) {})

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}
