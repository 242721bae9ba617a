package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledgergrid/internal/openai"
)

func TestOpenAIProviderParsesSuggestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"output":[{"type":"message","content":[{"type":"output_text",
			"text":"{\"suggestions\":[{\"field\":\"accounting_category\",\"value\":\" Travel \",\"confidence\":1.4},{\"field\":\"date\",\"value\":\"2020-01-01\"},{\"field\":\"subcategory\",\"value\":\"\"}]}"}]}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", "", openai.WithBaseURL(srv.URL))
	resp, err := p.SuggestFields(context.Background(), SuggestRequest{
		Transaction: TransactionInput{Description: "UBER"},
		Fields:      []string{"accounting_category", "subcategory"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Suggestions, 1)
	require.Equal(t, "Travel", resp.Suggestions[0].Value)
	require.Equal(t, 1.0, resp.Suggestions[0].Confidence)
}

func TestOpenAIProviderRequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(" ", "").SuggestFields(context.Background(), SuggestRequest{})
	require.ErrorIs(t, err, ErrOpenAINoAPIKey)
}

func TestFallbackUsesSecondaryOnError(t *testing.T) {
	var seen error
	f := Fallback{
		Primary:   NewOpenAIProvider("", ""),
		Secondary: NewHeuristicProvider(),
		OnError:   func(err error) { seen = err },
	}
	resp, err := f.SuggestFields(context.Background(), SuggestRequest{
		Transaction: TransactionInput{Description: "NETFLIX.COM"},
		Fields:      []string{"accounting_category"},
		Categories:  []string{"Subscriptions"},
	})
	require.NoError(t, err)
	require.True(t, errors.Is(seen, ErrOpenAINoAPIKey))
	require.Len(t, resp.Suggestions, 1)
	require.Equal(t, "Subscriptions", resp.Suggestions[0].Value)
}
