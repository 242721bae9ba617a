package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/jask/ledgergrid/internal/database/repository"
	"github.com/jask/ledgergrid/internal/grid"
	"github.com/jask/ledgergrid/internal/llm"
)

// suggestFields lists what each kind asks the provider for.
var suggestFields = map[grid.SuggestionKind][]grid.Field{
	grid.SuggestClassification: {grid.FieldClassifiedEntity, grid.FieldAccountingCategory, grid.FieldSubcategory},
	grid.SuggestAll: {
		grid.FieldClassifiedEntity, grid.FieldAccountingCategory, grid.FieldSubcategory,
		grid.FieldJustification,
	},
}

const historySize = 10

// FetchSuggestions proposes field values for one transaction. Learned rules take
// precedence over the provider; a provider failure only surfaces when no rule matched.
func (l *Ledger) FetchSuggestions(ctx context.Context, txID string, kind grid.SuggestionKind, hints map[string]string) ([]grid.Suggestion, error) {
	fields, ok := suggestFields[kind]
	if !ok {
		return nil, fmt.Errorf("suggestion kind %q: %w", kind, ErrInvalidValue)
	}
	key := string(kind) + ":" + txID
	if cached, ok := l.suggestions.Get(key); ok {
		return cached.([]grid.Suggestion), nil
	}

	t, err := l.Transactions.Get(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if t == nil {
		return nil, fmt.Errorf("transaction %s: %w", txID, repository.ErrNotFound)
	}
	rec := toRecord(*t)

	byField := map[grid.Field]grid.Suggestion{}
	rules, err := l.Rules.Match(ctx, normalizeDescription(t.Description))
	if err != nil {
		return nil, fmt.Errorf("match rules: %w", err)
	}
	for _, f := range fields {
		r, ok := rules[string(f)]
		if !ok || r.Value == rec.Value(f) {
			continue
		}
		byField[f] = grid.Suggestion{
			Field:          f,
			CurrentValue:   rec.Value(f),
			SuggestedValue: r.Value,
			Rationale:      "same as earlier edits to " + r.Pattern,
			Confidence:     r.Confidence,
		}
	}

	req, err := l.suggestRequest(ctx, *t, rec, fields, hints)
	if err != nil {
		return nil, err
	}
	resp, err := l.Provider.SuggestFields(ctx, req)
	if err != nil {
		if len(byField) == 0 {
			return nil, fmt.Errorf("suggest: %w", err)
		}
		l.log.Warn("provider failed, using learned rules only", zap.String("tx", txID), zap.Error(err))
	}
	for _, s := range resp.Suggestions {
		f := grid.Field(s.Field)
		if _, taken := byField[f]; taken || !req.Wants(s.Field) || s.Value == rec.Value(f) {
			continue
		}
		byField[f] = grid.Suggestion{
			Field:          f,
			CurrentValue:   rec.Value(f),
			SuggestedValue: s.Value,
			Rationale:      s.Rationale,
			Confidence:     s.Confidence,
		}
	}

	out := make([]grid.Suggestion, 0, len(byField))
	for _, f := range grid.Columns {
		if s, ok := byField[f]; ok {
			out = append(out, s)
		}
	}
	l.suggestions.Set(key, out, cache.DefaultExpiration)
	return out, nil
}

func (l *Ledger) suggestRequest(ctx context.Context, t repository.Transaction, rec grid.Record, fields []grid.Field, hints map[string]string) (llm.SuggestRequest, error) {
	current := map[string]string{}
	for k, v := range hints {
		if !grid.IsPlaceholder(v) {
			current[k] = v
		}
	}
	for f, v := range rec.Values {
		if !grid.IsPlaceholder(v) {
			current[string(f)] = v
		}
	}
	req := llm.SuggestRequest{
		Transaction: llm.TransactionInput{
			Description: t.Description,
			Amount:      t.AmountCents,
			Currency:    t.Currency,
			Date:        t.Date.Format(DateLayout),
			Current:     current,
		},
		Categories:    l.Taxonomy.CategoryNames(),
		Subcategories: l.Taxonomy.Subcategories(),
	}
	for _, f := range fields {
		req.Fields = append(req.Fields, string(f))
	}

	entities, err := l.Transactions.DistinctValues(ctx, "classified_entity", 200)
	if err != nil {
		return req, fmt.Errorf("known entities: %w", err)
	}
	req.KnownEntities = mergeUnique(l.Taxonomy.Entities, entities)

	past, err := l.Transactions.Candidates(ctx, t.ID, 500)
	if err != nil {
		return req, fmt.Errorf("history: %w", err)
	}
	type scored struct {
		t     repository.Transaction
		score float64
	}
	var ranked []scored
	for _, p := range past {
		if p.ClassifiedEntity == nil && p.AccountingCategory == nil {
			continue
		}
		ranked = append(ranked, scored{p, descriptionSimilarity(t.Description, p.Description)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	for i := 0; i < len(ranked) && i < historySize; i++ {
		p := ranked[i].t
		req.SimilarPastTransactions = append(req.SimilarPastTransactions, llm.SimilarTransaction{
			Description: p.Description,
			Entity:      deref(p.ClassifiedEntity),
			Category:    deref(p.AccountingCategory),
			Subcategory: deref(p.Subcategory),
		})
	}
	return req, nil
}

func mergeUnique(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, l := range lists {
		for _, v := range l {
			if _, ok := seen[v]; ok || v == "" {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
