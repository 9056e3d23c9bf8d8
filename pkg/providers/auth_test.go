package providers

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStaticTokenSource_RejectsPlaceholderToken(t *testing.T) {
	for _, tok := range []string{"<OPENAI_API_KEY>", "${ANTHROPIC_API_KEY}"} {
		src := NewStaticTokenSource(tok, "providers.openai.api_key")
		if _, err := src.Token(context.Background()); err == nil {
			t.Fatalf("expected placeholder %q to be rejected", tok)
		}
	}
}

func TestFileTokenSource_PlainTokenFile(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.txt")
	if err := os.WriteFile(tokenFile, []byte("oauth-token-123\n"), 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}

	got, err := NewFileTokenSource(tokenFile).Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if got != "oauth-token-123" {
		t.Fatalf("expected plain token, got %q", got)
	}
}

func TestFileTokenSource_NestedAuthJSON(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "auth.json")
	payload := `{"auth_mode":"chatgpt","tokens":{"access_token":"oauth-from-json"}}`
	if err := os.WriteFile(tokenFile, []byte(payload), 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}

	got, err := NewFileTokenSource(tokenFile).Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if got != "oauth-from-json" {
		t.Fatalf("expected token from json, got %q", got)
	}
}

func TestFileTokenSource_JSONMissingAccessToken(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "auth.json")
	if err := os.WriteFile(tokenFile, []byte(`{"tokens":{"refresh_token":"rt_123"}}`), 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}

	_, err := NewFileTokenSource(tokenFile).Token(context.Background())
	if err == nil {
		t.Fatalf("expected missing access token error")
	}
	if !strings.Contains(err.Error(), "missing access_token") {
		t.Fatalf("expected missing access_token message, got %v", err)
	}
}

func TestHeaderKeyAuth_SetsProviderHeader(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid", nil)
	auth := NewHeaderKeyAuth("x-api-key", NewStaticTokenSource("sk-ant", "providers.anthropic.api_key"))
	if err := auth.Apply(context.Background(), req); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := req.Header.Get("x-api-key"); got != "sk-ant" {
		t.Fatalf("expected x-api-key header, got %q", got)
	}
	if req.Header.Get("Authorization") != "" {
		t.Fatalf("header key auth must not set Authorization")
	}
}
