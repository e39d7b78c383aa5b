package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fixtureTransport struct {
	status  int
	body    []byte
	lastURL string
	sawKey  string
	sent    []byte
	calls   int
}

func (ft *fixtureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ft.calls++
	ft.lastURL = req.URL.String()
	ft.sawKey = req.Header.Get("x-goog-api-key")
	if req.Body != nil {
		ft.sent, _ = io.ReadAll(req.Body)
	}
	return &http.Response{
		StatusCode: ft.status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(ft.body)),
		Request:    req,
	}, nil
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return b
}

func newTestGemini(ft *fixtureTransport, opts ...GeminiOption) *GeminiProvider {
	p := NewGeminiProvider(append([]GeminiOption{WithGeminiKey("k-123")}, opts...)...)
	p.h.HTTPClient.Transport = ft
	return p
}

func TestGeminiComplete_Success(t *testing.T) {
	ft := &fixtureTransport{status: 200, body: readFixture(t, "gemini-ok.json")}
	p := newTestGemini(ft, WithGeminiBaseURL("https://example.test/v1beta/"))

	out, err := p.Complete(context.Background(), Request{
		System: "be a coach",
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "leg day please"},
		},
	})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if !strings.Contains(out, `{"name":"Leg Blast"}`) || !strings.HasPrefix(out, "Here you go!") {
		t.Fatalf("unexpected text %q", out)
	}
	if ft.lastURL != "https://example.test/v1beta/models/gemini-1.5-flash-latest:generateContent" {
		t.Fatalf("unexpected url %q", ft.lastURL)
	}
	if ft.sawKey != "k-123" {
		t.Fatalf("expected api key header, got %q", ft.sawKey)
	}

	var sent geminiRequest
	if err := json.Unmarshal(ft.sent, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if len(sent.Contents) != 3 || sent.Contents[1].Role != "model" {
		t.Fatalf("unexpected contents %+v", sent.Contents)
	}
	if sent.SystemInstruction == nil || sent.SystemInstruction.Parts[0].Text != "be a coach" {
		t.Fatalf("system instruction missing: %+v", sent.SystemInstruction)
	}
	if sent.GenerationConfig.Temperature != DefaultTemperature || sent.GenerationConfig.MaxOutputTokens != DefaultMaxTokens {
		t.Fatalf("unexpected generation config %+v", sent.GenerationConfig)
	}
	if len(sent.SafetySettings) != 2 {
		t.Fatalf("expected 2 safety settings, got %d", len(sent.SafetySettings))
	}
}

func TestGeminiComplete_StatusError(t *testing.T) {
	ft := &fixtureTransport{status: 503, body: []byte(`{"error":"overloaded"}`)}
	p := newTestGemini(ft)

	_, err := p.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != 503 || !strings.Contains(se.Body, "overloaded") {
		t.Fatalf("unexpected status error %+v", se)
	}
	if ft.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", ft.calls)
	}
}

func TestGeminiComplete_NoCandidate(t *testing.T) {
	ft := &fixtureTransport{status: 200, body: []byte(`{"candidates":[]}`)}
	p := newTestGemini(ft)

	_, err := p.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if !errors.Is(err, ErrNoCandidate) {
		t.Fatalf("expected ErrNoCandidate, got %v", err)
	}
}

func TestGeminiComplete_MalformedBody(t *testing.T) {
	ft := &fixtureTransport{status: 200, body: []byte(`<html>upstream proxy error</html>`)}
	p := newTestGemini(ft)

	_, err := p.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestGeminiComplete_MissingKey(t *testing.T) {
	ft := &fixtureTransport{status: 200}
	p := NewGeminiProvider()
	p.h.HTTPClient.Transport = ft

	_, err := p.Complete(context.Background(), Request{})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if ft.calls != 0 {
		t.Fatalf("expected no network call, got %d", ft.calls)
	}
}
