package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Provider proposes values for the fields of one transaction.
type Provider interface {
	SuggestFields(ctx context.Context, req SuggestRequest) (SuggestResponse, error)
}

// SuggestRequest carries one transaction and the vocabulary the answer must draw from.
type SuggestRequest struct {
	Transaction             TransactionInput     `json:"transaction"`
	Fields                  []string             `json:"fields"`
	Categories              []string             `json:"categories"`
	Subcategories           map[string][]string  `json:"subcategories,omitempty"`
	KnownEntities           []string             `json:"known_entities"`
	SimilarPastTransactions []SimilarTransaction `json:"similar_past_transactions"`
}

type TransactionInput struct {
	Description string            `json:"description"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Date        string            `json:"date"`
	Current     map[string]string `json:"current,omitempty"`
}

type SimilarTransaction struct {
	Description string `json:"description"`
	Entity      string `json:"entity,omitempty"`
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
}

type SuggestResponse struct {
	Suggestions []FieldSuggestion `json:"suggestions"`
}

type FieldSuggestion struct {
	Field      string  `json:"field"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Wants reports whether field was requested.
func (r SuggestRequest) Wants(field string) bool {
	for _, f := range r.Fields {
		if f == field {
			return true
		}
	}
	return false
}

var errNoJSON = errors.New("no JSON object in model output")

// decodeJSON extracts the first JSON object from s, tolerating code fences and chatter.
func decodeJSON(s string, v any) error {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return errNoJSON
	}
	return json.Unmarshal([]byte(s[start:end+1]), v)
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
