package repository

import (
	"context"
)

// FieldRuleRepo stores learned description -> value rules.
type FieldRuleRepo struct{ db DBTX }

func NewFieldRuleRepo(db DBTX) *FieldRuleRepo { return &FieldRuleRepo{db: db} }

// Upsert adds a rule or replaces the value of an existing (pattern, type, field) rule.
func (r *FieldRuleRepo) Upsert(ctx context.Context, fr FieldRule) error {
	if fr.Source == "" {
		fr.Source = "user"
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO field_rules(id, pattern, pattern_type, field, value, confidence, source, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(pattern, pattern_type, field) DO UPDATE SET
	 value=excluded.value,
	 confidence=excluded.confidence,
	 source=excluded.source
	`, fr.ID, fr.Pattern, fr.PatternType, fr.Field, fr.Value, fr.Confidence, fr.Source)
	return err
}

// Match returns the best rule per field for description. Exact rules win over
// contains rules; ties go to the higher confidence.
func (r *FieldRuleRepo) Match(ctx context.Context, description string) (map[string]FieldRule, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, pattern, pattern_type, field, value, confidence, source, created_at
	FROM field_rules
	WHERE (pattern_type = 'exact' AND pattern = ?)
	   OR (pattern_type = 'contains' AND ? LIKE '%' || pattern || '%')
	ORDER BY CASE pattern_type WHEN 'exact' THEN 0 ELSE 1 END, confidence DESC, created_at DESC
	`, description, description)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]FieldRule{}
	for rows.Next() {
		var fr FieldRule
		if err := rows.Scan(&fr.ID, &fr.Pattern, &fr.PatternType, &fr.Field, &fr.Value, &fr.Confidence, &fr.Source, &fr.CreatedAt); err != nil {
			return nil, err
		}
		if _, ok := out[fr.Field]; !ok {
			out[fr.Field] = fr
		}
	}
	return out, rows.Err()
}
