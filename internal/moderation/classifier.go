package moderation

import (
	"context"
	"strings"
	"time"
)

// Verdict is the moderation result for one piece of content.
type Verdict struct {
	Abusive      bool      `json:"abusive"`
	Confidence   float64   `json:"confidence"`
	FlaggedTerms []string  `json:"flagged_terms,omitempty"`
	Category     string    `json:"category,omitempty"`
	Severity     string    `json:"severity,omitempty"`
	Method       string    `json:"method"`
	CheckedAt    time.Time `json:"checked_at"`
}

// Classifier decides whether content is abusive. Implementations are
// interchangeable; the gate only relies on this contract.
type Classifier interface {
	Classify(ctx context.Context, content string, userID int) (Verdict, error)
}

// DefaultTerms seeds the in-process classifier.
var DefaultTerms = []string{"damn", "hell", "stupid", "idiot", "hate", "kill"}

// TermClassifier flags content containing any term from its list. It exists
// so the backend works without an external model; swap in HTTPClassifier for
// real classification.
type TermClassifier struct {
	terms []string
}

// NewTermClassifier builds a classifier over the given terms, falling back to
// DefaultTerms when none are given.
func NewTermClassifier(terms []string) *TermClassifier {
	if len(terms) == 0 {
		terms = DefaultTerms
	}
	normalized := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		normalized = append(normalized, t)
	}
	return &TermClassifier{terms: normalized}
}

// Classify does a case-insensitive substring scan and flags every term the
// content contains.
func (c *TermClassifier) Classify(_ context.Context, content string, _ int) (Verdict, error) {
	lowered := strings.ToLower(content)
	var flagged []string
	for _, term := range c.terms {
		if strings.Contains(lowered, term) {
			flagged = append(flagged, term)
		}
	}

	verdict := Verdict{
		Confidence: 0.1,
		Method:     "term_list",
		CheckedAt:  time.Now().UTC(),
	}
	if len(flagged) > 0 {
		verdict.Abusive = true
		verdict.Confidence = 0.9
		verdict.FlaggedTerms = flagged
		verdict.Category = "profanity"
		verdict.Severity = "medium"
	}
	return verdict, nil
}
