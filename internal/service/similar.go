package service

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/jask/ledgergrid/internal/database/repository"
	"github.com/jask/ledgergrid/internal/grid"
)

const (
	similarThreshold = 0.55
	similarLimit     = 25
	similarScan      = 1000
)

// FetchSimilarByFields finds transactions that look like txID and do not yet
// carry every applied value. The source row is never returned.
func (l *Ledger) FetchSimilarByFields(ctx context.Context, txID string, applied map[grid.Field]string) ([]grid.Record, error) {
	src, err := l.Transactions.Get(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if src == nil {
		return nil, fmt.Errorf("transaction %s: %w", txID, repository.ErrNotFound)
	}
	candidates, err := l.Transactions.Candidates(ctx, txID, similarScan)
	if err != nil {
		return nil, fmt.Errorf("candidates: %w", err)
	}

	type scored struct {
		rec   grid.Record
		score float64
	}
	var ranked []scored
	for _, c := range candidates {
		rec := toRecord(c)
		if alreadyApplied(rec, applied) {
			continue
		}
		score := similarity(*src, c, applied)
		if score < similarThreshold {
			continue
		}
		ranked = append(ranked, scored{rec, score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > similarLimit {
		ranked = ranked[:similarLimit]
	}
	out := make([]grid.Record, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.rec)
	}
	return out, nil
}

func alreadyApplied(rec grid.Record, applied map[grid.Field]string) bool {
	for f, v := range applied {
		if rec.Value(f) != v {
			return false
		}
	}
	return true
}

// similarity blends description distance with shared counterparties.
func similarity(a, b repository.Transaction, applied map[grid.Field]string) float64 {
	score := descriptionSimilarity(a.Description, b.Description)
	if _, ok := applied[grid.FieldClassifiedEntity]; !ok && a.ClassifiedEntity != nil && b.ClassifiedEntity != nil && *a.ClassifiedEntity == *b.ClassifiedEntity {
		score += 0.2
	}
	if sameWallet(a.Origin, b.Origin) || sameWallet(a.Destination, b.Destination) {
		score += 0.2
	}
	if (a.AmountCents < 0) == (b.AmountCents < 0) {
		score += 0.05
	}
	if score > 1 {
		score = 1
	}
	return score
}

func sameWallet(a, b *string) bool {
	return a != nil && b != nil && *a != "" && *a == *b
}

// descriptionSimilarity is 1 - normalised Levenshtein distance of the
// descriptions with reference numbers removed.
func descriptionSimilarity(a, b string) float64 {
	na, nb := normalizeDescription(a), normalizeDescription(b)
	if na == "" || nb == "" {
		return 0
	}
	maxLen := max(utf8.RuneCountInString(na), utf8.RuneCountInString(nb))
	return 1 - float64(levenshtein.ComputeDistance(na, nb))/float64(maxLen)
}
