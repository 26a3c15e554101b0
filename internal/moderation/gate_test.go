package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/models"
	"chat-backend/internal/telemetry"
)

type stubClassifier struct {
	fn func(ctx context.Context, content string, userID int) (Verdict, error)
}

func (s stubClassifier) Classify(ctx context.Context, content string, userID int) (Verdict, error) {
	return s.fn(ctx, content, userID)
}

type captureAbuseRepo struct {
	entries chan models.AbuseLog
}

func (c *captureAbuseRepo) InsertAbuseLog(_ context.Context, entry models.AbuseLog) error {
	c.entries <- entry
	return nil
}

type capturePublisher struct {
	events chan any
}

func (c *capturePublisher) Publish(_ context.Context, _ string, event any) error {
	c.events <- event
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func TestGateRecordsFlaggedVerdict(t *testing.T) {
	repo := &captureAbuseRepo{entries: make(chan models.AbuseLog, 1)}
	publisher := &capturePublisher{events: make(chan any, 1)}
	audit := telemetry.NewAuditEmitter(publisher, "audit.chat", "chat-backend", "test")

	gate := NewGate(NewTermClassifier(nil), time.Second, false, repo, audit)
	verdict := gate.Check(context.Background(), "you idiot", 7)

	require.True(t, verdict.Abusive)
	assert.Equal(t, []string{"idiot"}, verdict.FlaggedTerms)

	select {
	case entry := <-repo.entries:
		assert.Equal(t, 7, entry.UserID)
		assert.Equal(t, "you idiot", entry.MessageContent)
		assert.True(t, entry.DetectionResult)
		assert.Equal(t, "idiot", entry.FlaggedWords)
		assert.Equal(t, "term_list", entry.DetectionMethod)
	case <-time.After(2 * time.Second):
		t.Fatal("abuse log insert not observed")
	}

	select {
	case event := <-publisher.events:
		envelope, ok := event.(telemetry.AuditEnvelope)
		require.True(t, ok)
		assert.Equal(t, "WARN", envelope.Payload.Level)
		require.NotNil(t, envelope.UserID)
		assert.Equal(t, 7, *envelope.UserID)
	case <-time.After(time.Second):
		t.Fatal("audit event not observed")
	}
}

func TestGatePassesCleanContentWithoutSideEffects(t *testing.T) {
	repo := &captureAbuseRepo{entries: make(chan models.AbuseLog, 1)}

	gate := NewGate(NewTermClassifier(nil), time.Second, false, repo, nil)
	verdict := gate.Check(context.Background(), "good morning", 7)

	assert.False(t, verdict.Abusive)
	select {
	case <-repo.entries:
		t.Fatal("clean content must not be logged")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGateFailOpenOnTimeout(t *testing.T) {
	slow := stubClassifier{fn: func(ctx context.Context, _ string, _ int) (Verdict, error) {
		<-ctx.Done()
		return Verdict{}, ctx.Err()
	}}

	gate := NewGate(slow, 20*time.Millisecond, false, nil, nil)
	verdict := gate.Check(context.Background(), "anything", 1)

	assert.False(t, verdict.Abusive)
	assert.Equal(t, "fail_open", verdict.Method)
}

func TestGateFailClosedOnTimeout(t *testing.T) {
	slow := stubClassifier{fn: func(ctx context.Context, _ string, _ int) (Verdict, error) {
		<-ctx.Done()
		return Verdict{}, ctx.Err()
	}}

	gate := NewGate(slow, 20*time.Millisecond, true, nil, nil)
	verdict := gate.Check(context.Background(), "anything", 1)

	assert.True(t, verdict.Abusive)
	assert.Equal(t, "unavailable", verdict.Category)
	assert.Equal(t, "fail_closed", verdict.Method)
}

func TestGateBoundsClassifiersIgnoringContext(t *testing.T) {
	stuck := stubClassifier{fn: func(_ context.Context, _ string, _ int) (Verdict, error) {
		time.Sleep(500 * time.Millisecond)
		return Verdict{}, nil
	}}

	gate := NewGate(stuck, 20*time.Millisecond, false, nil, nil)
	start := time.Now()
	verdict := gate.Check(context.Background(), "anything", 1)

	assert.Less(t, time.Since(start), 300*time.Millisecond)
	assert.Equal(t, "fail_open", verdict.Method)
}

func TestGateFailOpenOnClassifierError(t *testing.T) {
	broken := stubClassifier{fn: func(_ context.Context, _ string, _ int) (Verdict, error) {
		return Verdict{}, errors.New("model exploded")
	}}

	gate := NewGate(broken, time.Second, false, nil, nil)
	verdict := gate.Check(context.Background(), "anything", 1)

	assert.False(t, verdict.Abusive)
	assert.Equal(t, "fail_open", verdict.Method)
}
