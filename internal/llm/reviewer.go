package llm

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/ppiankov/claimlink/internal/model"
)

var errorKindPattern = regexp.MustCompile(`\b[a-z]+(?:_[a-z]+)+\b`)

// Reviewer drafts notes for claims that need a human decision
type Reviewer struct {
	provider Provider
}

// NewReviewer wraps provider; a nil provider disables notes
func NewReviewer(provider Provider) *Reviewer {
	return &Reviewer{provider: provider}
}

// IsEnabled reports whether a provider is configured
func (r *Reviewer) IsEnabled() bool {
	return r != nil && r.provider != nil
}

// Note drafts a note for report. Approved claims get no note (nil, nil).
// Error kinds the note mentions that were not flagged are reported as warnings.
func (r *Reviewer) Note(ctx context.Context, report model.Report) (*model.ReviewerNote, error) {
	if !r.IsEnabled() || report.Verdict.Status == model.StatusApproved {
		return nil, nil
	}

	resp, err := r.provider.Draft(ctx, NoteRequest{Report: report})
	if err != nil {
		return nil, fmt.Errorf("draft reviewer note: %w", err)
	}

	return &model.ReviewerNote{
		Provider: r.provider.Name(),
		Model:    resp.Model,
		NoteMD:   resp.Note,
		Warnings: unflaggedKinds(resp.Note, report.Verdict.Errors),
	}, nil
}

// unflaggedKinds lists known error kinds mentioned in note but absent from errs
func unflaggedKinds(note string, errs model.ErrorScoreMap) []string {
	known := make(map[string]bool, len(model.ErrorKinds))
	for _, k := range model.ErrorKinds {
		known[string(k)] = true
	}

	seen := make(map[string]bool)
	var warnings []string
	for _, m := range errorKindPattern.FindAllString(note, -1) {
		if !known[m] || seen[m] || errs.Has(model.ErrorKind(m)) {
			continue
		}
		seen[m] = true
		warnings = append(warnings, fmt.Sprintf("note mentions %s, which was not flagged", m))
	}
	sort.Strings(warnings)
	return warnings
}
