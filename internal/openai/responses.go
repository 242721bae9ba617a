package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Minimal subset of the Responses API used for field suggestions.
// Fields mirror the documented wire format; unknown fields are omitted.

const defaultBaseURL = "https://api.openai.com/v1"

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithBaseURL points the client at another endpoint (proxies, tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{apiKey: apiKey, baseURL: defaultBaseURL, http: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ResponsesService struct{ c *Client }

func (c *Client) Responses() *ResponsesService { return &ResponsesService{c: c} }

type ResponseRequest struct {
	Model           string          `json:"model"`
	Input           []ResponseInput `json:"input"`
	MaxOutputTokens int             `json:"max_output_tokens,omitempty"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
	Text            *TextConfig     `json:"text,omitempty"`
}

// TextConfig selects the output format, e.g. {"format":{"type":"json_object"}}.
type TextConfig struct {
	Format TextFormat `json:"format"`
}

type TextFormat struct {
	Type string `json:"type"`
}

type ResponseInput struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type Response struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Output []OutputItem `json:"output"`
}

type OutputItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// OutputText concatenates every output_text part of the response.
func (r Response) OutputText() string {
	var b strings.Builder
	for _, item := range r.Output {
		for _, part := range item.Content {
			if part.Type == "output_text" {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai: http %d: %s", e.StatusCode, e.Message)
}

func (s *ResponsesService) CreateResponse(ctx context.Context, req ResponseRequest) (Response, error) {
	var out Response
	body, err := json.Marshal(req)
	if err != nil {
		return out, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.c.apiKey)
	resp, err := s.c.http.Do(httpReq)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return out, &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("openai: decode response: %w", err)
	}
	return out, nil
}
