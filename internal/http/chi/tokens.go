package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-sink/capture"
	"github.com/marcelsud/webhook-sink/presets"
	"github.com/marcelsud/webhook-sink/token"
)

/* HTTP layer DTOs for the token API
 * Separate from domain entities to avoid leaking internal structure
 */

// headerPayload is one configured response header
type headerPayload struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// statusPayload accepts 418 as well as "418"
type statusPayload int

func (s *statusPayload) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*s = statusPayload(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("status must be a number")
	}
	n, err := strconv.Atoi(strings.TrimSpace(str))
	if err != nil {
		return fmt.Errorf("status must be a number")
	}
	*s = statusPayload(n)
	return nil
}

// configRequest is the incoming response config; bodyKind is accepted as an alias of type.
// Absent fields are nil so that PATCH can tell them apart from zero values.
type configRequest struct {
	Status   *statusPayload   `json:"status"`
	Type     *string          `json:"type"`
	BodyKind *string          `json:"bodyKind"`
	Body     *string          `json:"body"`
	Headers  *[]headerPayload `json:"headers"`
}

// toDomain builds a complete config, absent fields left empty
func (c configRequest) toDomain() token.ResponseConfig {
	return c.mergeInto(token.ResponseConfig{BodyKind: token.JSON})
}

// mergeInto overlays the fields present in c on base
func (c configRequest) mergeInto(base token.ResponseConfig) token.ResponseConfig {
	cfg := base
	if c.Status != nil {
		cfg.StatusCode = int(*c.Status)
	}
	kind := c.Type
	if kind == nil {
		kind = c.BodyKind
	}
	if kind != nil {
		cfg.BodyKind = token.NewBodyKind(strings.ToLower(strings.TrimSpace(*kind)))
	}
	if c.Body != nil {
		cfg.Body = *c.Body
	}
	if c.Headers != nil {
		headers := make([]token.Header, 0, len(*c.Headers))
		for _, h := range *c.Headers {
			headers = append(headers, token.Header{Key: h.Key, Value: h.Value})
		}
		cfg.Headers = headers
	} else {
		cfg.Headers = append([]token.Header(nil), base.Headers...)
	}
	return cfg
}

// configResponse represents a response config in the API
type configResponse struct {
	Status  int             `json:"status"`
	Type    string          `json:"type"`
	Body    string          `json:"body"`
	Headers []headerPayload `json:"headers"`
}

func newConfigResponse(cfg token.ResponseConfig) configResponse {
	headers := make([]headerPayload, 0, len(cfg.Headers))
	for _, h := range cfg.Headers {
		headers = append(headers, headerPayload{Key: h.Key, Value: h.Value})
	}
	status := cfg.StatusCode
	if !token.ValidStatus(status) {
		status = token.DefaultStatusCode
	}
	return configResponse{
		Status:  status,
		Type:    cfg.BodyKind.String(),
		Body:    cfg.Body,
		Headers: headers,
	}
}

// tokenResponse represents a token in the API
type tokenResponse struct {
	Token     string         `json:"token"`
	Name      string         `json:"name"`
	CreatedAt int64          `json:"createdAt"`
	ExpiresIn *int64         `json:"expiresIn,omitempty"`
	Config    configResponse `json:"config"`
}

func newTokenResponse(t token.Token) tokenResponse {
	return tokenResponse{
		Token:     t.ID,
		Name:      t.DisplayName(),
		CreatedAt: t.CreatedAt.UnixMilli(),
		Config:    newConfigResponse(t.Config),
	}
}

type createTokenRequest struct {
	Name   string `json:"name"`
	Preset string `json:"preset"`
}

type patchTokenRequest struct {
	Name   *string        `json:"name"`
	Config *configRequest `json:"config"`
}

// decodeOptional reads a JSON body that may be absent
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func isInvalidArgument(err error) bool {
	return errors.Is(err, token.ErrInvalidArgument)
}

// postToken handles POST /tokens
func postToken(tokenService token.UseCase, loader *presets.Loader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createTokenRequest
		if err := decodeOptional(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		var opts []token.CreateOption
		if strings.TrimSpace(req.Name) != "" {
			opts = append(opts, token.WithName(req.Name))
		}
		if req.Preset != "" {
			preset, err := loader.Get(req.Preset)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown preset: %s", req.Preset))
				return
			}
			opts = append(opts, token.WithConfig(preset.Config))
		}

		t, err := tokenService.Create(r.Context(), opts...)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newTokenResponse(t))
	})
}

// getTokens handles GET /tokens
func getTokens(tokenService token.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		all, err := tokenService.List(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		result := make([]tokenResponse, 0, len(all))
		for _, t := range all {
			result = append(result, newTokenResponse(t))
		}
		writeJSON(w, http.StatusOK, map[string][]tokenResponse{"tokens": result})
	})
}

// getToken handles GET /tokens/{id}
func getToken(tokenService token.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		t, err := tokenService.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		ttl, err := tokenService.TTL(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		result := newTokenResponse(t)
		if ttl != token.NoExpiry {
			seconds := int64(ttl.Seconds())
			result.ExpiresIn = &seconds
		}
		writeJSON(w, http.StatusOK, result)
	})
}

// patchToken handles PATCH /tokens/{id}
func patchToken(tokenService token.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req patchTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Name == nil && req.Config == nil {
			writeError(w, http.StatusBadRequest, "nothing to update: name or config is required")
			return
		}

		if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
			writeError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}

		// Config fields left out of the body keep their current value
		var cfg token.ResponseConfig
		if req.Config != nil {
			current, err := tokenService.Get(r.Context(), id)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			normalized, err := req.Config.mergeInto(current.Config).Normalize()
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			cfg = normalized
		}

		var (
			t   token.Token
			err error
		)
		if req.Name != nil {
			if t, err = tokenService.Rename(r.Context(), id, *req.Name); err != nil {
				writeServiceError(w, r, err)
				return
			}
		}
		if req.Config != nil {
			if t, err = tokenService.UpdateConfig(r.Context(), id, cfg); err != nil {
				writeServiceError(w, r, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, newTokenResponse(t))
	})
}

// deleteToken handles DELETE /tokens/{id}; deleting an unknown token succeeds
func deleteToken(tokenService token.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := tokenService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})
}

// getConfig handles GET /tokens/{id}/config
func getConfig(tokenService token.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, err := tokenService.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newConfigResponse(t.Config))
	})
}

// putConfig handles PUT /tokens/{id}/config; the body replaces the whole config
func putConfig(tokenService token.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req configRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		t, err := tokenService.UpdateConfig(r.Context(), chi.URLParam(r, "id"), req.toDomain())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"config":  newConfigResponse(t.Config),
		})
	})
}

// validateToken handles GET /tokens/validate?token=
func validateToken(tokenService token.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("token")
		if id == "" {
			writeError(w, http.StatusBadRequest, "token is required")
			return
		}
		_, err := tokenService.Get(r.Context(), id)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
		case token.IsNotFound(err):
			writeJSON(w, http.StatusOK, map[string]bool{"valid": false})
		default:
			writeServiceError(w, r, err)
		}
	})
}

// requestResponse represents a captured request in the API
type requestResponse struct {
	ID          string              `json:"id"`
	Timestamp   int64               `json:"timestamp"`
	Method      string              `json:"method"`
	Path        string              `json:"path"`
	Headers     map[string]string   `json:"headers"`
	Query       map[string][]string `json:"query"`
	RemoteAddr  string              `json:"remoteAddr,omitempty"`
	ContentType string              `json:"contentType,omitempty"`
	Size        int                 `json:"size"`
	BodyKind    string              `json:"bodyKind"`
	Body        json.RawMessage     `json:"body"`
	Response    respondedWith       `json:"response"`
}

type respondedWith struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

func newRequestResponse(c capture.CapturedRequest) requestResponse {
	headers := c.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	query := c.Query
	if query == nil {
		query = map[string][]string{}
	}
	return requestResponse{
		ID:          c.ID,
		Timestamp:   c.ReceivedAt.UnixMilli(),
		Method:      c.Method,
		Path:        c.Path,
		Headers:     headers,
		Query:       query,
		RemoteAddr:  c.RemoteAddr,
		ContentType: c.ContentType,
		Size:        c.Size,
		BodyKind:    c.Body.Kind.String(),
		Body:        c.Body.JSONValue(),
		Response: respondedWith{
			Status:  c.RespondedWith.Status,
			Headers: c.RespondedWith.Headers,
			Body:    c.RespondedWith.Body,
		},
	}
}

// getRequests handles GET /tokens/{id}/requests
func getRequests(tokenService token.UseCase, captureService capture.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := tokenService.Get(r.Context(), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		all, err := captureService.List(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		result := make([]requestResponse, 0, len(all))
		for _, c := range all {
			result = append(result, newRequestResponse(c))
		}
		writeJSON(w, http.StatusOK, map[string][]requestResponse{"requests": result})
	})
}

type presetResponse struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Config      configResponse `json:"config"`
}

// getPresets handles GET /presets
func getPresets(loader *presets.Loader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		all := loader.List()
		result := make([]presetResponse, 0, len(all))
		for _, p := range all {
			result = append(result, presetResponse{
				Name:        p.Name,
				Description: p.Description,
				Config:      newConfigResponse(p.Config),
			})
		}
		writeJSON(w, http.StatusOK, map[string][]presetResponse{"presets": result})
	})
}
