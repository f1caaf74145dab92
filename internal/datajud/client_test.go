package datajud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xscopehub/datajud-bridge/internal/config"
)

type recordedRequest struct {
	Path          string
	Authorization string
	ContentType   string
	Body          map[string]any
}

func newUpstream(t *testing.T, status int, body string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var decoded map[string]any
		_ = json.Unmarshal(raw, &decoded)
		mu.Lock()
		reqs = append(reqs, recordedRequest{
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			Body:          decoded,
		})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func newClient(t *testing.T, baseURL, apiKey string, opts ...Option) *Client {
	t.Helper()
	c, err := New(config.UpstreamConfig{
		BaseURL:      baseURL,
		DefaultAlias: config.DefaultAlias,
		APIKey:       apiKey,
		Timeout:      2 * time.Second,
	}, opts...)
	require.NoError(t, err)
	return c
}

func TestSearchSendsQueryToAlias(t *testing.T) {
	srv, reqs := newUpstream(t, http.StatusOK, `{"hits":{"hits":[]}}`)
	c := newClient(t, srv.URL, "k1")

	_, err := c.Search(context.Background(), "api_publica_tjsp", Match(FieldNumero, "123").Size(1))
	require.NoError(t, err)

	require.Len(t, *reqs, 1)
	got := (*reqs)[0]
	assert.Equal(t, "/api_publica_tjsp/_search", got.Path)
	assert.Equal(t, "APIKey k1", got.Authorization)
	assert.Equal(t, "application/json", got.ContentType)
	assert.Equal(t, map[string]any{"match": map[string]any{"numeroProcesso": "123"}}, got.Body["query"])
	assert.EqualValues(t, 1, got.Body["size"])
	assert.NotContains(t, got.Body, "_source")
}

func TestSearchBlankAliasUsesDefault(t *testing.T) {
	srv, reqs := newUpstream(t, http.StatusOK, `{}`)
	c := newClient(t, srv.URL, "")

	res, err := c.Search(context.Background(), "   ", Term(FieldClasseCodigo, 7).Size(10))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultAlias, res.Alias)

	require.Len(t, *reqs, 1)
	assert.Equal(t, "/"+config.DefaultAlias+"/_search", (*reqs)[0].Path)
	assert.Empty(t, (*reqs)[0].Authorization, "authorization header must be omitted without a key")
}

func TestSearchSurfacesUpstreamStatus(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusInternalServerError, "internal error")
	c := newClient(t, srv.URL, "")

	_, err := c.Search(context.Background(), "", Match(FieldNumero, "1"))
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
	assert.Equal(t, "internal error", statusErr.Body)
	assert.Contains(t, err.Error(), "internal error")
}

func TestSearchTransportFailure(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	c := newClient(t, url, "")
	_, err := c.Search(context.Background(), "", Match(FieldNumero, "1"))
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.False(t, transportErr.Timeout())
}

func TestSearchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c, err := New(config.UpstreamConfig{
		BaseURL:      srv.URL,
		DefaultAlias: config.DefaultAlias,
		Timeout:      50 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "", Match(FieldNumero, "1"))
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr), "got %v", err)
	assert.True(t, transportErr.Timeout())
}

func TestSearchRejectsMalformedBody(t *testing.T) {
	for _, body := range []string{`<html>maintenance</html>`, `{"hits":{"hits":[{"_source":{"a":}}]}}`, ``} {
		t.Run(body, func(t *testing.T) {
			srv, _ := newUpstream(t, http.StatusOK, body)
			c := newClient(t, srv.URL, "")

			_, err := c.Search(context.Background(), "", Match(FieldNumero, "1"))
			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr), "got %v", err)
			assert.Equal(t, http.StatusOK, decodeErr.Status)
			assert.Equal(t, config.DefaultAlias, decodeErr.Alias)
		})
	}
}

func TestSearchRejectsInvalidAlias(t *testing.T) {
	srv, reqs := newUpstream(t, http.StatusOK, `{}`)
	c := newClient(t, srv.URL, "")

	for _, alias := range []string{"x/../../other", "API_PUBLICA_TJRJ", "a b", "tjrj?x=1"} {
		_, err := c.Search(context.Background(), alias, Match(FieldNumero, "1"))
		assert.ErrorIs(t, err, ErrInvalidAlias, alias)
	}
	assert.Empty(t, *reqs)
	assert.True(t, ValidAlias("api_publica_tjrj"))
}

type observation struct {
	alias  string
	status int
}

type fakeObserver struct {
	mu   sync.Mutex
	seen []observation
}

func (f *fakeObserver) ObserveUpstream(alias string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, observation{alias: alias, status: status})
}

func TestSearchReportsToObserver(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusNotFound, "no such index")
	obs := &fakeObserver{}
	c := newClient(t, srv.URL, "", WithObserver(obs))

	_, err := c.Search(context.Background(), "missing", Match(FieldNumero, "1"))
	require.Error(t, err)
	assert.Equal(t, []observation{{alias: "missing", status: http.StatusNotFound}}, obs.seen)
}

func TestQueryMarshalIncludes(t *testing.T) {
	raw, err := json.Marshal(Match(FieldNumero, "9").Size(1).Includes("numeroProcesso", "movimentos"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":{"match":{"numeroProcesso":"9"}},"size":1,"_source":{"includes":["numeroProcesso","movimentos"]}}`, string(raw))

	raw, err = json.Marshal(Term(FieldClasseCodigo, 7).Size(3))
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":{"term":{"classe.codigo":7}},"size":3}`, string(raw))
}

func TestResultExtraction(t *testing.T) {
	res := Result{Raw: json.RawMessage(`{"hits":{"hits":[
		{"_source":{"numeroProcesso":"A","classe":{"codigo":7}}},
		{"_id":"no-source"},
		{"_source":{"numeroProcesso":"B"}}
	]}}`)}

	assert.JSONEq(t, `{"numeroProcesso":"A","classe":{"codigo":7}}`, string(res.FirstSource()))
	sources := res.Sources()
	require.Len(t, sources, 2)
	assert.JSONEq(t, `{"numeroProcesso":"B"}`, string(sources[1]))

	ids := res.SourceField(FieldNumero)
	require.Len(t, ids, 2)
	assert.Equal(t, "A", ids[0].String())
	assert.Equal(t, "B", ids[1].String())
}

func TestResultExtractionEmpty(t *testing.T) {
	for _, raw := range []string{`{}`, `{"hits":{"hits":[]}}`, `{"hits":{"hits":[{"_source":{}}]}}`} {
		res := Result{Raw: json.RawMessage(raw)}
		assert.Nil(t, res.FirstSource(), raw)
	}
	assert.Empty(t, Result{Raw: json.RawMessage(`{}`)}.Sources())
}
