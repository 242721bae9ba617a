package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// HeuristicProvider is an offline keyword and history based implementation.
// It has the same timeout behaviour as the remote provider so callers stay
// non-blocking either way.
type HeuristicProvider struct{}

func NewHeuristicProvider() *HeuristicProvider { return &HeuristicProvider{} }

// minimum score for a suggestion to be returned at all
const heuristicFloor = 0.3

// SuggestFields guesses entity, category, subcategory and justification.
// Timeout: 8s.
func (h *HeuristicProvider) SuggestFields(ctx context.Context, req SuggestRequest) (SuggestResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return SuggestResponse{}, err
	}

	desc := strings.ToLower(req.Transaction.Description)
	best, bestSim := bestPast(desc, req.SimilarPastTransactions)
	var out []FieldSuggestion
	add := func(field, value string, conf float64, why string) {
		if value == "" || conf < heuristicFloor || !req.Wants(field) {
			return
		}
		if req.Transaction.Current[field] == value {
			return
		}
		out = append(out, FieldSuggestion{Field: field, Value: value, Confidence: clamp01(conf), Rationale: why})
	}

	entity, entityConf, entityWhy := h.entity(desc, req, best, bestSim)
	add("classified_entity", entity, entityConf, entityWhy)

	category, catConf, catWhy := "", 0.0, ""
	for _, cat := range req.Categories {
		if score := keywordScore(desc, cat); score > catConf {
			category, catConf, catWhy = cat, score, "description matches "+cat
		}
	}
	if best != nil && best.Category != "" && bestSim > catConf {
		category, catConf, catWhy = best.Category, bestSim, fmt.Sprintf("like %q", best.Description)
	}
	add("accounting_category", category, catConf, catWhy)

	if category != "" {
		sub, subConf := "", 0.0
		for _, s := range req.Subcategories[category] {
			if score := keywordScore(desc, s); score > subConf {
				sub, subConf = s, score
			}
		}
		if best != nil && best.Category == category && best.Subcategory != "" && bestSim > subConf {
			sub, subConf = best.Subcategory, bestSim
		}
		add("subcategory", sub, subConf, "within "+category)
	}

	if entity != "" && category != "" && strings.TrimSpace(req.Transaction.Current["justification"]) == "" {
		add("justification", fmt.Sprintf("%s payment to %s", category, entity), min(entityConf, catConf)*0.8, "derived from entity and category")
	}

	return SuggestResponse{Suggestions: out}, nil
}

func (h *HeuristicProvider) entity(desc string, req SuggestRequest, best *SimilarTransaction, bestSim float64) (string, float64, string) {
	for _, e := range req.KnownEntities {
		if e != "" && strings.Contains(desc, strings.ToLower(e)) {
			return e, 0.85, "known entity in description"
		}
	}
	if best != nil && best.Entity != "" {
		return best.Entity, bestSim, fmt.Sprintf("like %q", best.Description)
	}
	// merchant hint: take first word if it looks like a brandish token
	if parts := strings.Fields(req.Transaction.Description); len(parts) > 0 && len(parts[0]) > 2 {
		return properCap(strings.Trim(parts[0], "*#.,")), 0.4, "first word of description"
	}
	return "", 0, ""
}

func bestPast(desc string, past []SimilarTransaction) (*SimilarTransaction, float64) {
	var best *SimilarTransaction
	bestSim := 0.0
	for i := range past {
		sim := textSimilarity(desc, strings.ToLower(past[i].Description))
		if sim > bestSim {
			best, bestSim = &past[i], sim
		}
	}
	if bestSim < 0.5 {
		return nil, 0
	}
	return best, bestSim * 0.9
}

func keywordScore(desc, cat string) float64 {
	catLower := strings.ToLower(cat)
	if strings.Contains(desc, catLower) {
		return 0.9
	}
	// coarse heuristics
	switch {
	case strings.Contains(desc, "uber") || strings.Contains(desc, "lyft") || strings.Contains(desc, "taxi"):
		if strings.Contains(catLower, "transport") || strings.Contains(catLower, "travel") {
			return 0.85
		}
	case strings.Contains(desc, "aws") || strings.Contains(desc, "gcp") || strings.Contains(desc, "azure"):
		if strings.Contains(catLower, "hosting") || strings.Contains(catLower, "software") {
			return 0.85
		}
	case strings.Contains(desc, "payroll") || strings.Contains(desc, "salary"):
		if strings.Contains(catLower, "payroll") || strings.Contains(catLower, "salar") {
			return 0.85
		}
	case strings.Contains(desc, "gas fee") || strings.Contains(desc, "swap") || strings.Contains(desc, "bridge"):
		if strings.Contains(catLower, "fee") || strings.Contains(catLower, "crypto") {
			return 0.8
		}
	case strings.Contains(desc, "spotify") || strings.Contains(desc, "netflix") || strings.Contains(desc, "github"):
		if strings.Contains(catLower, "subscription") || strings.Contains(catLower, "software") {
			return 0.8
		}
	}
	// fallback: partial overlap ratio
	return textSimilarity(desc, catLower)
}

// textSimilarity is a simple token overlap ratio in [0,1].
func textSimilarity(a, b string) float64 {
	aTokens := tokens(a)
	bTokens := tokens(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}
	intersect := 0
	for t := range aTokens {
		if _, ok := bTokens[t]; ok {
			intersect++
		}
	}
	union := len(aTokens) + len(bTokens) - intersect
	return float64(intersect) / float64(union)
}

func tokens(s string) map[string]struct{} {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '-' || r == '_' || r == '/' || r == '*' })
	out := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out[p] = struct{}{}
	}
	return out
}

func properCap(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
