package moderation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermClassifierFlagsListedTerms(t *testing.T) {
	classifier := NewTermClassifier(nil)

	verdict, err := classifier.Classify(context.Background(), "you absolute IDIOT, stop", 1)
	require.NoError(t, err)

	assert.True(t, verdict.Abusive)
	assert.Equal(t, []string{"idiot"}, verdict.FlaggedTerms)
	assert.Equal(t, 0.9, verdict.Confidence)
	assert.Equal(t, "profanity", verdict.Category)
	assert.Equal(t, "medium", verdict.Severity)
	assert.Equal(t, "term_list", verdict.Method)
	assert.False(t, verdict.CheckedAt.IsZero())
}

func TestTermClassifierPassesCleanContent(t *testing.T) {
	classifier := NewTermClassifier(nil)

	verdict, err := classifier.Classify(context.Background(), "see you at lunch", 1)
	require.NoError(t, err)

	assert.False(t, verdict.Abusive)
	assert.Empty(t, verdict.FlaggedTerms)
	assert.Equal(t, 0.1, verdict.Confidence)
}

func TestTermClassifierMatchesInsideWords(t *testing.T) {
	classifier := NewTermClassifier(nil)

	// Substring scan: "hello" contains "hell".
	verdict, err := classifier.Classify(context.Background(), "hello there", 1)
	require.NoError(t, err)
	assert.True(t, verdict.Abusive)
	assert.Equal(t, []string{"hell"}, verdict.FlaggedTerms)
}

func TestTermClassifierFlagsEachTermOnce(t *testing.T) {
	classifier := NewTermClassifier([]string{"spam", "Spam", "scam"})

	verdict, err := classifier.Classify(context.Background(), "spam spam and more spam", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"spam"}, verdict.FlaggedTerms)
}

func TestTermClassifierReportsTermsInListOrder(t *testing.T) {
	classifier := NewTermClassifier(nil)

	verdict, err := classifier.Classify(context.Background(), "kill that stupid idea", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"stupid", "kill"}, verdict.FlaggedTerms)
}

func TestHTTPClassifierMapsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req classifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bad words", req.Content)
		assert.Equal(t, 9, req.UserID)

		json.NewEncoder(w).Encode(classifyResponse{
			Abusive:      true,
			Confidence:   0.87,
			FlaggedTerms: []string{"bad"},
			Category:     "toxicity",
			Severity:     "high",
		})
	}))
	defer srv.Close()

	classifier := NewHTTPClassifier(srv.URL)
	verdict, err := classifier.Classify(context.Background(), "bad words", 9)
	require.NoError(t, err)

	assert.True(t, verdict.Abusive)
	assert.Equal(t, 0.87, verdict.Confidence)
	assert.Equal(t, []string{"bad"}, verdict.FlaggedTerms)
	assert.Equal(t, "toxicity", verdict.Category)
	assert.Equal(t, "high", verdict.Severity)
	assert.Equal(t, "http", verdict.Method)
}

func TestHTTPClassifierRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	classifier := NewHTTPClassifier(srv.URL)
	_, err := classifier.Classify(context.Background(), "anything", 1)
	assert.Error(t, err)
}

func TestHTTPClassifierHonorsContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	classifier := NewHTTPClassifier(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := classifier.Classify(ctx, "anything", 1)
	assert.Error(t, err)
}
