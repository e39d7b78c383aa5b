package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider calls the generateContent REST endpoint.
type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string

	h *retryablehttp.Client
}

type GeminiOption func(*GeminiProvider)

func WithGeminiKey(k string) GeminiOption {
	return func(p *GeminiProvider) { p.apiKey = k }
}

func WithGeminiModel(m string) GeminiOption {
	return func(p *GeminiProvider) {
		if m != "" {
			p.model = m
		}
	}
}

func WithGeminiBaseURL(u string) GeminiOption {
	return func(p *GeminiProvider) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func NewGeminiProvider(opts ...GeminiOption) *GeminiProvider {
	h := retryablehttp.NewClient()
	h.RetryMax = 0
	h.Logger = nil
	h.ErrorHandler = retryablehttp.PassthroughErrorHandler
	p := &GeminiProvider{model: DefaultGeminiModel, baseURL: DefaultGeminiBaseURL, h: h}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Validate() error {
	if p.apiKey == "" {
		return fmt.Errorf("gemini: %w", ErrMissingCredentials)
	}
	return nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		TopK            int     `json:"topK"`
		TopP            float64 `json:"topP"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
	SafetySettings []geminiSafety `json:"safetySettings"`
}

type geminiSafety struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiResponse struct {
	Candidates []struct {
		Content *geminiContent `json:"content"`
	} `json:"candidates"`
}

func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	var body geminiRequest
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	for _, m := range req.Messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		body.Contents = append(body.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	body.GenerationConfig.Temperature = req.temperature()
	body.GenerationConfig.TopK = 40
	body.GenerationConfig.TopP = 0.95
	body.GenerationConfig.MaxOutputTokens = req.maxTokens()
	body.SafetySettings = []geminiSafety{
		{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
		{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	u := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, p.model)
	hreq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("gemini: build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.h.Do(hreq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &StatusError{Provider: p.Name(), Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gemini: %w: %w", ErrMalformedResponse, err)
	}
	if len(out.Candidates) == 0 || out.Candidates[0].Content == nil || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: %w", ErrNoCandidate)
	}
	var b strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	s := strings.TrimSpace(b.String())
	if s == "" {
		return "", fmt.Errorf("gemini: %w", ErrNoCandidate)
	}
	return s, nil
}
