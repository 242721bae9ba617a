package grid

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// SuggestionItem is one row of the suggestion panel.
type SuggestionItem struct {
	Suggestion
	Selected bool
}

// SuggestionBatch is the open suggestion panel for one transaction.
type SuggestionBatch struct {
	TxID  string
	Items []SuggestionItem
}

// SimilarCandidate is one row of the find-similar panel.
type SimilarCandidate struct {
	Record   Record
	Selected bool
}

// SimilarPanel lists transactions that could receive the applied fields.
type SimilarPanel struct {
	SourceID   string
	Applied    map[Field]string
	Candidates []SimilarCandidate
}

// Workflow runs AI suggestions and the find-similar follow-up. Every response
// is dropped unless its token is still the arbiter's active one.
type Workflow struct {
	d       *deps
	reg     *Registry
	arb     *Arbiter
	token   Token
	pending bool
	batch   *SuggestionBatch
	similar *SimilarPanel
}

// Pending reports the workflow kind waiting on a response.
func (w *Workflow) Pending() (OpKind, bool) {
	if !w.pending {
		return "", false
	}
	return w.token.Kind, true
}

// Batch returns the open suggestion panel.
func (w *Workflow) Batch() (SuggestionBatch, bool) {
	if w.batch == nil {
		return SuggestionBatch{}, false
	}
	out := SuggestionBatch{TxID: w.batch.TxID, Items: append([]SuggestionItem(nil), w.batch.Items...)}
	return out, true
}

// Similar returns the open find-similar panel.
func (w *Workflow) Similar() (SimilarPanel, bool) {
	if w.similar == nil {
		return SimilarPanel{}, false
	}
	out := SimilarPanel{SourceID: w.similar.SourceID, Applied: copyFields(w.similar.Applied)}
	out.Candidates = append([]SimilarCandidate(nil), w.similar.Candidates...)
	return out, true
}

// RequestSuggestions starts a suggestion fetch for txID, superseding whatever
// workflow was running.
func (w *Workflow) RequestSuggestions(txID string) tea.Cmd {
	tok := w.arb.Start(OpSuggest, txID)
	w.token = tok
	w.pending = true
	w.batch = nil
	w.similar = nil
	hints := map[string]string{}
	if rec, ok := w.reg.Get(txID); ok {
		for f, v := range rec.Values {
			if !IsPlaceholder(v) {
				hints[string(f)] = v
			}
		}
	}
	ctx, backend := w.d.ctx, w.d.backend
	return func() tea.Msg {
		out, err := backend.FetchSuggestions(ctx, txID, SuggestAll, hints)
		return SuggestionsMsg{Token: tok, TxID: txID, Suggestions: out, Err: err}
	}
}

func (w *Workflow) handleSuggestions(m SuggestionsMsg) tea.Cmd {
	if !w.arb.IsStillActive(m.Token) {
		w.d.superseded(m.Token)
		return nil
	}
	w.pending = false
	if m.Err != nil {
		w.arb.Finish(m.Token)
		w.d.fail("fetch suggestions", m.Err)
		return nil
	}
	items := make([]SuggestionItem, 0, len(m.Suggestions))
	for _, s := range m.Suggestions {
		if !s.Field.Editable() || Sanitize(s.SuggestedValue) == "" {
			continue
		}
		if IsPlaceholder(s.CurrentValue) {
			s.CurrentValue = ""
		}
		items = append(items, SuggestionItem{Suggestion: s})
	}
	if len(items) == 0 {
		w.arb.Finish(m.Token)
		w.d.notify(NoticeInfo, "No suggestions for this transaction")
		return nil
	}
	w.batch = &SuggestionBatch{TxID: m.TxID, Items: items}
	return nil
}

// Toggle flips the checkbox of suggestion i.
func (w *Workflow) Toggle(i int) bool {
	if w.batch == nil || i < 0 || i >= len(w.batch.Items) {
		return false
	}
	w.batch.Items[i].Selected = !w.batch.Items[i].Selected
	return w.batch.Items[i].Selected
}

// CanApply reports whether "apply selected" is enabled.
func (w *Workflow) CanApply() bool {
	if w.batch == nil || w.pending {
		return false
	}
	for _, it := range w.batch.Items {
		if it.Selected {
			return true
		}
	}
	return false
}

// ApplySelected writes each checked suggestion with its own request, one after
// another. A failed field does not stop the rest.
func (w *Workflow) ApplySelected() (tea.Cmd, error) {
	if !w.CanApply() {
		w.d.notify(NoticeWarn, ErrNothingChecked.Error())
		return nil, ErrNothingChecked
	}
	var chosen []Suggestion
	for _, it := range w.batch.Items {
		if it.Selected {
			chosen = append(chosen, it.Suggestion)
		}
	}
	tok, txID := w.token, w.batch.TxID
	w.pending = true
	ctx, backend := w.d.ctx, w.d.backend
	return func() tea.Msg {
		outcomes := make([]FieldOutcome, 0, len(chosen))
		for _, s := range chosen {
			value := Sanitize(s.SuggestedValue)
			res, err := backend.UpdateField(ctx, txID, s.Field, value)
			outcomes = append(outcomes, FieldOutcome{Field: s.Field, Value: value, Confidence: res.Confidence, Err: err})
		}
		return SuggestionsAppliedMsg{Token: tok, TxID: txID, Outcomes: outcomes}
	}, nil
}

func (w *Workflow) handleApplied(m SuggestionsAppliedMsg) tea.Cmd {
	applied := map[Field]string{}
	var failures []string
	for _, o := range m.Outcomes {
		if o.Err != nil {
			w.d.metrics.Failure("apply suggestion")
			failures = append(failures, fmt.Sprintf("%s: %v", o.Field.Title(), o.Err))
			continue
		}
		w.reg.SetValue(m.TxID, o.Field, o.Value)
		if o.Confidence != nil {
			w.reg.SetConfidence(m.TxID, *o.Confidence)
		}
		applied[o.Field] = o.Value
	}
	if len(applied) > 0 {
		w.d.metrics.Commit("suggestion", 1)
	}
	if !w.arb.IsStillActive(m.Token) {
		w.d.superseded(m.Token)
		return nil
	}
	w.pending = false
	switch {
	case len(applied) == 0:
		w.d.notify(NoticeError, "No suggestions applied: "+strings.Join(failures, "; "))
		return nil
	case len(failures) > 0:
		w.d.notify(NoticeWarn, fmt.Sprintf("Applied %d of %d suggestions (%s)", len(applied), len(m.Outcomes), strings.Join(failures, "; ")))
	default:
		w.d.notify(NoticeInfo, fmt.Sprintf("Applied %d suggestions", len(applied)))
	}
	w.batch = nil
	return w.FindSimilar(m.TxID, applied)
}

// FindSimilar looks for transactions that could take the same field values.
func (w *Workflow) FindSimilar(txID string, applied map[Field]string) tea.Cmd {
	if len(applied) == 0 {
		return nil
	}
	tok := w.arb.Start(OpSimilar, txID)
	w.token = tok
	w.pending = true
	w.batch = nil
	w.similar = nil
	fields := copyFields(applied)
	ctx, backend := w.d.ctx, w.d.backend
	return func() tea.Msg {
		out, err := backend.FetchSimilarByFields(ctx, txID, fields)
		return SimilarFoundMsg{Token: tok, TxID: txID, Applied: fields, Candidates: out, Err: err}
	}
}

func (w *Workflow) handleSimilarFound(m SimilarFoundMsg) tea.Cmd {
	if !w.arb.IsStillActive(m.Token) {
		w.d.superseded(m.Token)
		return nil
	}
	w.pending = false
	if m.Err != nil {
		w.arb.Finish(m.Token)
		w.d.fail("find similar", m.Err)
		return nil
	}
	candidates := make([]SimilarCandidate, 0, len(m.Candidates))
	for _, rec := range m.Candidates {
		if rec.ID == m.TxID {
			continue
		}
		candidates = append(candidates, SimilarCandidate{Record: rec.Clone(), Selected: true})
	}
	if len(candidates) == 0 {
		w.arb.Finish(m.Token)
		return nil
	}
	w.similar = &SimilarPanel{SourceID: m.TxID, Applied: m.Applied, Candidates: candidates}
	return nil
}

// ToggleCandidate flips the checkbox of candidate i.
func (w *Workflow) ToggleCandidate(i int) bool {
	if w.similar == nil || i < 0 || i >= len(w.similar.Candidates) {
		return false
	}
	w.similar.Candidates[i].Selected = !w.similar.Candidates[i].Selected
	return w.similar.Candidates[i].Selected
}

// CanApplySimilar reports whether the find-similar apply action is enabled.
func (w *Workflow) CanApplySimilar() bool {
	if w.similar == nil || w.pending {
		return false
	}
	for _, c := range w.similar.Candidates {
		if c.Selected {
			return true
		}
	}
	return false
}

// ApplySimilar issues one bulk request per applied field across the checked candidates.
func (w *Workflow) ApplySimilar() (tea.Cmd, error) {
	if !w.CanApplySimilar() {
		w.d.notify(NoticeWarn, ErrNothingChecked.Error())
		return nil, ErrNothingChecked
	}
	var ids []string
	for _, c := range w.similar.Candidates {
		if c.Selected {
			ids = append(ids, c.Record.ID)
		}
	}
	fields := sortedFields(w.similar.Applied)
	applied := copyFields(w.similar.Applied)
	tok := w.token
	w.pending = true
	ctx, backend := w.d.ctx, w.d.backend
	return func() tea.Msg {
		outcomes := make([]FieldOutcome, 0, len(fields))
		for _, f := range fields {
			updates := make([]FieldUpdate, 0, len(ids))
			for _, id := range ids {
				updates = append(updates, FieldUpdate{TxID: id, Field: f, Value: applied[f]})
			}
			_, err := backend.BulkUpdateFields(ctx, updates)
			outcomes = append(outcomes, FieldOutcome{Field: f, Value: applied[f], Err: err})
		}
		return SimilarAppliedMsg{Token: tok, IDs: ids, Outcomes: outcomes}
	}, nil
}

func (w *Workflow) handleSimilarApplied(m SimilarAppliedMsg) tea.Cmd {
	ok := 0
	var failures []string
	for _, o := range m.Outcomes {
		if o.Err != nil {
			w.d.metrics.Failure("apply similar")
			failures = append(failures, fmt.Sprintf("%s: %v", o.Field.Title(), o.Err))
			continue
		}
		ok++
		for _, id := range m.IDs {
			w.reg.SetValue(id, o.Field, o.Value)
		}
	}
	if ok > 0 {
		w.d.metrics.Commit("similar", len(m.IDs))
	}
	if !w.arb.IsStillActive(m.Token) {
		w.d.superseded(m.Token)
		return nil
	}
	w.pending = false
	w.similar = nil
	w.arb.Finish(m.Token)
	w.d.log.Info("similar applied", zap.Int("rows", len(m.IDs)), zap.Int("fields", ok))
	switch {
	case ok == 0:
		w.d.notify(NoticeError, "Nothing applied to similar transactions: "+strings.Join(failures, "; "))
	case len(failures) > 0:
		w.d.notify(NoticeWarn, fmt.Sprintf("Applied %d of %d fields to %d transactions (%s)", ok, len(m.Outcomes), len(m.IDs), strings.Join(failures, "; ")))
	default:
		w.d.notify(NoticeInfo, fmt.Sprintf("Applied %d fields to %d transactions", ok, len(m.IDs)))
	}
	return nil
}

// Close discards any open panel and releases the arbitration slot.
func (w *Workflow) Close() {
	w.arb.Finish(w.token)
	w.batch = nil
	w.similar = nil
	w.pending = false
}

func copyFields(in map[Field]string) map[Field]string {
	out := make(map[Field]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedFields(in map[Field]string) []Field {
	out := make([]Field, 0, len(in))
	for f := range in {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
