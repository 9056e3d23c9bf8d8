package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultHTTPTimeout = 300 * time.Second

// httpEndpoint is the JSON-over-HTTP plumbing shared by every adapter.
type httpEndpoint struct {
	providerName string
	apiBase      string
	auth         AuthStrategy
	client       *http.Client
	headers      map[string]string
}

func newHTTPEndpoint(providerName, apiBase, proxy string, auth AuthStrategy, extraHeaders map[string]string) (*httpEndpoint, error) {
	providerName = strings.TrimSpace(strings.ToLower(providerName))
	if providerName == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if apiBase == "" {
		return nil, fmt.Errorf("%s API base not configured", providerName)
	}
	if auth == nil {
		return nil, fmt.Errorf("%s auth is not configured", providerName)
	}

	client := &http.Client{Timeout: defaultHTTPTimeout}
	if proxy = strings.TrimSpace(proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse %s proxy: %w", providerName, err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	headers := map[string]string{}
	for k, v := range extraHeaders {
		name, value := strings.TrimSpace(k), strings.TrimSpace(v)
		if name == "" || value == "" {
			continue
		}
		headers[name] = value
	}

	return &httpEndpoint{
		providerName: providerName,
		apiBase:      apiBase,
		auth:         auth,
		client:       client,
		headers:      headers,
	}, nil
}

// postJSON sends body to apiBase+path and returns the raw 2xx response body.
func (e *httpEndpoint) postJSON(ctx context.Context, path string, body interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", e.providerName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiBase+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", e.providerName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := e.auth.Apply(ctx, req); err != nil {
		return nil, fmt.Errorf("apply %s auth: %w", e.providerName, err)
	}
	for name, value := range e.headers {
		req.Header.Set(name, value)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send %s request: %w", e.providerName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", e.providerName, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := augmentProviderError(e.providerName, extractAPIError(respBody))
		return nil, fmt.Errorf("%s API request failed: status=%d error=%s", e.providerName, resp.StatusCode, msg)
	}
	return respBody, nil
}

func extractAPIError(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "empty response body"
	}

	var payload struct {
		Error json.RawMessage `json:"error"`
		Message string        `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		var nested struct {
			Message string `json:"message"`
		}
		if len(payload.Error) > 0 {
			if json.Unmarshal(payload.Error, &nested) == nil && strings.TrimSpace(nested.Message) != "" {
				return strings.TrimSpace(nested.Message)
			}
			// Ollama reports {"error": "..."}.
			var flat string
			if json.Unmarshal(payload.Error, &flat) == nil && strings.TrimSpace(flat) != "" {
				return strings.TrimSpace(flat)
			}
		}
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
	}

	if len(trimmed) > 2000 {
		return trimmed[:2000] + "..."
	}
	return trimmed
}

func optionAsInt(opts map[string]interface{}, key string) (int, bool) {
	v, ok := opts[key]
	if !ok || v == nil {
		return 0, false
	}
	switch vv := v.(type) {
	case int:
		return vv, true
	case int32:
		return int(vv), true
	case int64:
		return int(vv), true
	case float32:
		return int(vv), true
	case float64:
		return int(vv), true
	default:
		return 0, false
	}
}

func optionAsFloat(opts map[string]interface{}, key string) (float64, bool) {
	v, ok := opts[key]
	if !ok || v == nil {
		return 0, false
	}
	switch vv := v.(type) {
	case float64:
		return vv, true
	case float32:
		return float64(vv), true
	case int:
		return float64(vv), true
	case int64:
		return float64(vv), true
	default:
		return 0, false
	}
}

// decodeArguments parses a JSON argument string, keeping unparseable input
// under "raw".
func decodeArguments(raw string) map[string]interface{} {
	args := map[string]interface{}{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]interface{}{"raw": raw}
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args
}
