package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClassifier calls an external classifier sidecar over JSON. Deadlines
// come from the caller's context; the gate owns the timeout.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

// NewHTTPClassifier builds a client for the given classify endpoint.
func NewHTTPClassifier(url string) *HTTPClassifier {
	return &HTTPClassifier{url: url, client: &http.Client{}}
}

type classifyRequest struct {
	Content string `json:"content"`
	UserID  int    `json:"user_id"`
}

type classifyResponse struct {
	Abusive      bool     `json:"abusive"`
	Confidence   float64  `json:"confidence"`
	FlaggedTerms []string `json:"flagged_terms"`
	Category     string   `json:"category"`
	Severity     string   `json:"severity"`
}

// Classify posts the content and maps the sidecar's answer to a Verdict.
func (c *HTTPClassifier) Classify(ctx context.Context, content string, userID int) (Verdict, error) {
	body, err := json.Marshal(classifyRequest{Content: content, UserID: userID})
	if err != nil {
		return Verdict{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Verdict{}, fmt.Errorf("decode classifier response: %w", err)
	}

	return Verdict{
		Abusive:      out.Abusive,
		Confidence:   out.Confidence,
		FlaggedTerms: out.FlaggedTerms,
		Category:     out.Category,
		Severity:     out.Severity,
		Method:       "http",
		CheckedAt:    time.Now().UTC(),
	}, nil
}
