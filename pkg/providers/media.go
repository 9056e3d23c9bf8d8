package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultMaxMediaBytes = 20 << 20

// MediaData is a base64-encoded media payload ready for a wire format.
type MediaData struct {
	MIMEType string
	Data     string
}

func (m MediaData) DataURI() string {
	return "data:" + m.MIMEType + ";base64," + m.Data
}

// MediaLoader resolves media references (local paths, data URIs, http URLs)
// into base64 payloads.
type MediaLoader struct {
	client   *http.Client
	maxBytes int64
}

func NewMediaLoader(client *http.Client) *MediaLoader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &MediaLoader{client: client, maxBytes: defaultMaxMediaBytes}
}

func IsRemoteURL(ref string) bool {
	lower := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func IsDataURI(ref string) bool {
	return strings.HasPrefix(strings.TrimSpace(ref), "data:")
}

func (l *MediaLoader) Load(ctx context.Context, ref string) (*MediaData, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return nil, fmt.Errorf("empty media reference")
	case IsDataURI(ref):
		return parseDataURI(ref)
	case IsRemoteURL(ref):
		return l.fetch(ctx, ref)
	default:
		return l.readFile(ref)
	}
}

func (l *MediaLoader) fetch(ctx context.Context, ref string) (*MediaData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("create media request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch media %s: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fetch media %s: status=%d", ref, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read media %s: %w", ref, err)
	}
	if int64(len(body)) > l.maxBytes {
		return nil, fmt.Errorf("media %s exceeds %d bytes", ref, l.maxBytes)
	}

	mimeType := resp.Header.Get("Content-Type")
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = parsed
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = guessMIMEType(urlPath(ref), body)
	}
	return &MediaData{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(body)}, nil
}

func (l *MediaLoader) readFile(path string) (*MediaData, error) {
	path = expandHome(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat media %s: %w", path, err)
	}
	if info.Size() > l.maxBytes {
		return nil, fmt.Errorf("media %s exceeds %d bytes", path, l.maxBytes)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read media %s: %w", path, err)
	}
	return &MediaData{MIMEType: guessMIMEType(path, body), Data: base64.StdEncoding.EncodeToString(body)}, nil
}

func parseDataURI(ref string) (*MediaData, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI")
	}
	mimeType := "text/plain"
	isBase64 := false
	for i, part := range strings.Split(meta, ";") {
		switch {
		case i == 0 && part != "":
			mimeType = part
		case part == "base64":
			isBase64 = true
		}
	}
	if isBase64 {
		if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
			return nil, fmt.Errorf("decode data URI: %w", err)
		}
		return &MediaData{MIMEType: mimeType, Data: payload}, nil
	}
	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URI: %w", err)
	}
	return &MediaData{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString([]byte(decoded))}, nil
}

func guessMIMEType(name string, body []byte) string {
	if ext := filepath.Ext(name); ext != "" {
		if t := mime.TypeByExtension(strings.ToLower(ext)); t != "" {
			if parsed, _, err := mime.ParseMediaType(t); err == nil {
				return parsed
			}
			return t
		}
	}
	t := http.DetectContentType(body)
	if parsed, _, err := mime.ParseMediaType(t); err == nil {
		return parsed
	}
	return t
}

func urlPath(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return u.Path
}

// audioFormat maps a MIME type to the short format names OpenAI expects.
func audioFormat(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	default:
		if _, sub, ok := strings.Cut(mimeType, "/"); ok {
			return sub
		}
		return "wav"
	}
}
