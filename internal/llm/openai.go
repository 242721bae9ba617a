package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jask/ledgergrid/internal/openai"
)

// OpenAIProvider calls the Responses API and asks for a JSON answer.
type OpenAIProvider struct {
	apiKey string
	model  string
	opts   []openai.Option
	client *openai.Client
}

func NewOpenAIProvider(apiKey, model string, opts ...openai.Option) *OpenAIProvider {
	return &OpenAIProvider{apiKey: strings.TrimSpace(apiKey), model: strings.TrimSpace(model), opts: opts}
}

var ErrOpenAINoAPIKey = errors.New("openai: api key not configured")

func (p *OpenAIProvider) ensureClient() error {
	if p.apiKey == "" {
		return ErrOpenAINoAPIKey
	}
	if p.client == nil {
		p.client = openai.NewClient(p.apiKey, p.opts...)
	}
	return nil
}

func (p *OpenAIProvider) SetAPIKey(key string) {
	p.apiKey = strings.TrimSpace(key)
	p.client = nil
}

func (p *OpenAIProvider) SetModel(model string) {
	p.model = strings.TrimSpace(model)
}

const suggestSystemPrompt = "You are a bookkeeping assistant for an editable transaction ledger. " +
	"Return ONLY valid JSON: {\"suggestions\":[{\"field\":string,\"value\":string,\"confidence\":number 0-1,\"rationale\":string}]}. " +
	"Only use fields listed in `fields`. Prefer values from `categories`, `subcategories` and `known_entities`. " +
	"Omit a field rather than guess."

func (p *OpenAIProvider) SuggestFields(ctx context.Context, req SuggestRequest) (SuggestResponse, error) {
	if err := p.ensureClient(); err != nil {
		return SuggestResponse{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return SuggestResponse{}, err
	}
	respText, err := p.callResponse(ctx, suggestSystemPrompt, "Input JSON:\n"+string(payload))
	if err != nil {
		return SuggestResponse{}, err
	}
	var out SuggestResponse
	if err := decodeJSON(respText, &out); err != nil {
		return SuggestResponse{}, fmt.Errorf("openai: parse suggestions: %w", err)
	}
	kept := out.Suggestions[:0]
	for _, s := range out.Suggestions {
		s.Value = strings.TrimSpace(s.Value)
		if s.Value == "" || !req.Wants(s.Field) {
			continue
		}
		s.Confidence = clamp01(s.Confidence)
		kept = append(kept, s)
	}
	out.Suggestions = kept
	return out, nil
}

func (p *OpenAIProvider) callResponse(ctx context.Context, system, user string) (string, error) {
	model := p.model
	if model == "" {
		model = "gpt-4o-mini"
	}
	req := openai.ResponseRequest{
		Model:           model,
		MaxOutputTokens: 600,
		Input: []openai.ResponseInput{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Text: &openai.TextConfig{Format: openai.TextFormat{Type: "json_object"}},
	}
	resp, err := p.client.Responses().CreateResponse(ctx, req)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return "", fmt.Errorf("openai: empty response")
	}
	return text, nil
}

// Fallback tries primary first and uses secondary when it fails.
type Fallback struct {
	Primary   Provider
	Secondary Provider
	OnError   func(error)
}

func (f Fallback) SuggestFields(ctx context.Context, req SuggestRequest) (SuggestResponse, error) {
	resp, err := f.Primary.SuggestFields(ctx, req)
	if err == nil {
		return resp, nil
	}
	if f.OnError != nil {
		f.OnError(err)
	}
	if f.Secondary == nil {
		return SuggestResponse{}, err
	}
	return f.Secondary.SuggestFields(ctx, req)
}
