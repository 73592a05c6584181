package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/marcelsud/webhook-sink/capture"
	"github.com/marcelsud/webhook-sink/ingest"
	"github.com/marcelsud/webhook-sink/presets"
	"github.com/marcelsud/webhook-sink/store"
	"github.com/marcelsud/webhook-sink/store/redis"
	"github.com/marcelsud/webhook-sink/token"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/* These tests run the whole stack (router, services, Redis adapter) against an
 * in-process Redis, so every scenario exercises the real key layout and TTLs.
 */

type sink struct {
	mr      *miniredis.Miniredis
	handler http.Handler
	keys    store.Keyspace
}

func newSink(t *testing.T) *sink {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := redis.NewClient(redis.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	keys := store.NewKeyspace("")
	tokenRepo := redis.NewTokenRepository(client, keys)
	captureService := capture.NewService(redis.NewCaptureRepository(client, keys), tokenRepo)
	tokenService := token.NewService(tokenRepo, captureService)

	h := Handlers(context.Background(), Dependencies{
		Tokens:   tokenService,
		Captures: captureService,
		Ingest:   ingest.NewPipeline(tokenService, captureService),
		Presets:  presets.NewLoader(),
		Health:   tokenRepo,
		Logger:   zerolog.Nop(),
	})
	return &sink{mr: mr, handler: h, keys: keys}
}

func (s *sink) do(t *testing.T, method, path string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *sink) createToken(t *testing.T, body string) tokenResponse {
	t.Helper()

	w := s.do(t, http.MethodPost, "/tokens", strings.NewReader(body), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var tk tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tk))
	return tk
}

func (s *sink) requests(t *testing.T, id string) []requestResponse {
	t.Helper()

	w := s.do(t, http.MethodGet, "/tokens/"+id+"/requests", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Requests []requestResponse `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out.Requests
}

func TestWebhook_DefaultReply(t *testing.T) {
	s := newSink(t)
	tk := s.createToken(t, "")

	assert.True(t, strings.HasPrefix(tk.Name, "New Token-"))
	assert.Equal(t, 200, tk.Config.Status)
	assert.Equal(t, "json", tk.Config.Type)

	w := s.do(t, http.MethodPost, "/webhook/"+tk.Token+"?source=test",
		strings.NewReader(`{"event":"ping"}`),
		map[string]string{"Content-Type": "application/json", "X-Event": "ping"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"success": true}`, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "DevTools", w.Header().Get("X-Powered-By"))

	reqs := s.requests(t, tk.Token)
	require.Len(t, reqs, 1)
	got := reqs[0]
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/webhook/"+tk.Token+"?source=test", got.Path)
	assert.Equal(t, []string{"test"}, got.Query["source"])
	assert.Equal(t, "ping", got.Headers["X-Event"])
	assert.Equal(t, "json", got.BodyKind)
	assert.JSONEq(t, `{"event":"ping"}`, string(got.Body))
	assert.Equal(t, 200, got.Response.Status)
	assert.Equal(t, `{"success": true}`, got.Response.Body)
}

func TestWebhook_ConfiguredReply(t *testing.T) {
	s := newSink(t)
	tk := s.createToken(t, `{"name":"teapot"}`)
	assert.Equal(t, "teapot", tk.Name)

	w := s.do(t, http.MethodPut, "/tokens/"+tk.Token+"/config", strings.NewReader(`{
		"status": "418",
		"type": "text",
		"body": "I'm a teapot",
		"headers": [
			{"key": "X-Brew", "value": "earl grey"},
			{"key": "Content-Type", "value": "image/png"},
			{"key": "", "value": "dropped"}
		]
	}`), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/webhook/"+tk.Token+"/deep/path", nil, nil)

	assert.Equal(t, 418, w.Code)
	assert.Equal(t, "I'm a teapot", w.Body.String())
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, "earl grey", w.Header().Get("X-Brew"))

	reqs := s.requests(t, tk.Token)
	require.Len(t, reqs, 1)
	assert.Equal(t, "/webhook/"+tk.Token+"/deep/path", reqs[0].Path)
	assert.Equal(t, "none", reqs[0].BodyKind)
	assert.Equal(t, 418, reqs[0].Response.Status)
	assert.Equal(t, "text/plain", reqs[0].Response.Headers["Content-Type"])

	// history is frozen: a later config change does not rewrite it
	w = s.do(t, http.MethodPatch, "/tokens/"+tk.Token, strings.NewReader(`{"config":{"status":201}}`), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 418, s.requests(t, tk.Token)[0].Response.Status)
	assert.Contains(t, w.Body.String(), `"body":"I'm a teapot"`)
}

func TestWebhook_UnknownToken(t *testing.T) {
	s := newSink(t)

	w := s.do(t, http.MethodPost, "/webhook/doesnotexist", strings.NewReader("x"), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Invalid webhook token"}`, w.Body.String())
	assert.Empty(t, s.mr.Keys())
}

func TestWebhook_ConcurrentCalls(t *testing.T) {
	s := newSink(t)
	tk := s.createToken(t, `{"preset":"accepted"}`)

	const calls = 25
	var wg sync.WaitGroup
	codes := make([]int, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf("n=%d", i)
			w := s.do(t, http.MethodPost, "/webhook/"+tk.Token, strings.NewReader(body),
				map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusAccepted, code, "call %d", i)
	}
	reqs := s.requests(t, tk.Token)
	require.Len(t, reqs, calls)
	seen := map[string]bool{}
	for i, r := range reqs {
		assert.Equal(t, "form", r.BodyKind)
		seen[r.ID] = true
		if i > 0 {
			assert.GreaterOrEqual(t, reqs[i-1].Timestamp, r.Timestamp)
		}
	}
	assert.Len(t, seen, calls)
}

func TestTokens_RenameKeepsTTL(t *testing.T) {
	s := newSink(t)
	tk := s.createToken(t, "")
	key := s.keys.Token(tk.Token)

	s.mr.FastForward(time.Hour)
	before := s.mr.TTL(key)

	w := s.do(t, http.MethodPatch, "/tokens/"+tk.Token, strings.NewReader(`{"name":"renamed"}`), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, before, s.mr.TTL(key))
	assert.Equal(t, token.DefaultTTL-time.Hour, before)

	w = s.do(t, http.MethodGet, "/tokens/"+tk.Token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "renamed", got.Name)
	require.NotNil(t, got.ExpiresIn)
	assert.Equal(t, int64((token.DefaultTTL - time.Hour).Seconds()), *got.ExpiresIn)
}

func TestTokens_PatchValidation(t *testing.T) {
	s := newSink(t)
	tk := s.createToken(t, "")

	cases := map[string]string{
		"nothing to update":   `{}`,
		"empty name":          `{"name":"  "}`,
		"status out of range": `{"config":{"status":700}}`,
		"status continue":     `{"config":{"status":100}}`,
		"status switching":    `{"config":{"status":101}}`,
		"status early hints":  `{"config":{"status":103}}`,
		"status not a number": `{"config":{"status":"abc"}}`,
		"malformed json":      `{"name":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := s.do(t, http.MethodPatch, "/tokens/"+tk.Token, strings.NewReader(body), nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	w := s.do(t, http.MethodPatch, "/tokens/unknown", strings.NewReader(`{"name":"x"}`), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodPatch, "/tokens/unknown", strings.NewReader(`{"config":{"status":201}}`), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/tokens/"+tk.Token+"/config", strings.NewReader(`{"type":"json"}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	w = s.do(t, http.MethodPut, "/tokens/"+tk.Token+"/config", strings.NewReader(`{"status":101}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	// nothing was stored by the rejected updates
	w = s.do(t, http.MethodGet, "/tokens/"+tk.Token+"/config", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":200`)
}

func TestTokens_PatchMergesConfig(t *testing.T) {
	s := newSink(t)
	tk := s.createToken(t, "")

	w := s.do(t, http.MethodPatch, "/tokens/"+tk.Token, strings.NewReader(`{"config":{"status":"201"}}`), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 201, got.Config.Status)
	assert.Equal(t, "json", got.Config.Type)
	assert.Equal(t, token.DefaultBody, got.Config.Body)
	assert.Equal(t, []headerPayload{{Key: "X-Powered-By", Value: "DevTools"}}, got.Config.Headers)

	w = s.do(t, http.MethodPatch, "/tokens/"+tk.Token, strings.NewReader(`{"config":{"type":"text","headers":[]}}`), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 201, got.Config.Status)
	assert.Equal(t, "text", got.Config.Type)
	assert.Equal(t, token.DefaultBody, got.Config.Body)
	assert.Empty(t, got.Config.Headers)

	w = s.do(t, http.MethodPost, "/webhook/"+tk.Token, nil, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, token.DefaultBody, w.Body.String())
	assert.Empty(t, w.Header().Get("X-Powered-By"))
}

func TestWebhook_StatusReachesCaller(t *testing.T) {
	s := newSink(t)
	srv := httptest.NewServer(s.handler)
	t.Cleanup(srv.Close)

	for _, status := range []int{200, 202, 204, 404, 503} {
		t.Run(fmt.Sprintf("success - %d", status), func(t *testing.T) {
			tk := s.createToken(t, "")
			w := s.do(t, http.MethodPatch, "/tokens/"+tk.Token,
				strings.NewReader(fmt.Sprintf(`{"config":{"status":%d,"body":""}}`, status)), nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			resp, err := http.Post(srv.URL+"/webhook/"+tk.Token, "text/plain", strings.NewReader("hi"))
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, status, resp.StatusCode)
			reqs := s.requests(t, tk.Token)
			require.Len(t, reqs, 1)
			assert.Equal(t, status, reqs[0].Response.Status)
		})
	}
}

func TestTokens_DeleteCascades(t *testing.T) {
	s := newSink(t)
	tk := s.createToken(t, "")
	for i := 0; i < 3; i++ {
		w := s.do(t, http.MethodPost, "/webhook/"+tk.Token, bytes.NewReader([]byte{0xff, 0x00}), nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	require.Len(t, s.requests(t, tk.Token), 3)

	w := s.do(t, http.MethodDelete, "/tokens/"+tk.Token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Empty(t, s.mr.Keys())

	// idempotent
	w = s.do(t, http.MethodDelete, "/tokens/"+tk.Token, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/tokens/"+tk.Token+"/requests", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/webhook/"+tk.Token, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTokens_ExpiryTakesCaptures(t *testing.T) {
	s := newSink(t)
	tk := s.createToken(t, "")
	w := s.do(t, http.MethodPost, "/webhook/"+tk.Token, strings.NewReader("hello"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	captureKeys := s.mr.Keys()
	require.Len(t, captureKeys, 2)
	for _, key := range captureKeys {
		assert.LessOrEqual(t, s.mr.TTL(key), token.DefaultTTL)
	}

	s.mr.FastForward(token.DefaultTTL + time.Second)

	assert.Empty(t, s.mr.Keys())
	w = s.do(t, http.MethodGet, "/tokens/"+tk.Token, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTokens_ListValidatePresets(t *testing.T) {
	s := newSink(t)
	first := s.createToken(t, `{"name":"first"}`)
	time.Sleep(2 * time.Millisecond)
	second := s.createToken(t, `{"name":"second","preset":"xml-ack"}`)
	assert.Equal(t, "xml", second.Config.Type)

	w := s.do(t, http.MethodGet, "/tokens", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Tokens []tokenResponse `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Tokens, 2)
	assert.Equal(t, second.Token, list.Tokens[0].Token)
	assert.Equal(t, first.Token, list.Tokens[1].Token)

	w = s.do(t, http.MethodGet, "/tokens/validate?token="+first.Token, nil, nil)
	assert.JSONEq(t, `{"valid":true}`, w.Body.String())
	w = s.do(t, http.MethodGet, "/tokens/validate?token=nope", nil, nil)
	assert.JSONEq(t, `{"valid":false}`, w.Body.String())
	w = s.do(t, http.MethodGet, "/tokens/validate", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/tokens", strings.NewReader(`{"preset":"missing"}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/presets", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"no-content"`)

	w = s.do(t, http.MethodGet, "/tokens/"+first.Token+"/config", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":200`)
}

func TestHealth(t *testing.T) {
	s := newSink(t)

	w := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	s.mr.Close()

	w = s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(t, http.MethodGet, "/tokens", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}
