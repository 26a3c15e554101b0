package moderation

import (
	"context"
	"strings"
	"time"

	"chat-backend/internal/logging"
	"chat-backend/internal/models"
	"chat-backend/internal/observability"
	"chat-backend/internal/repositories"
	"chat-backend/internal/telemetry"
)

// Gate wraps a Classifier with a bounded wait and an availability policy.
// Check always returns a verdict: when the classifier fails or exceeds the
// timeout, fail-open lets the content through and fail-closed blocks it.
type Gate struct {
	classifier Classifier
	timeout    time.Duration
	failClosed bool
	abuseLogs  repositories.AbuseLogRepository
	audit      *telemetry.AuditEmitter
}

// NewGate constructs a Gate. abuseLogs and audit may be nil; flagged verdicts
// are then only logged and counted.
func NewGate(classifier Classifier, timeout time.Duration, failClosed bool, abuseLogs repositories.AbuseLogRepository, audit *telemetry.AuditEmitter) *Gate {
	return &Gate{
		classifier: classifier,
		timeout:    timeout,
		failClosed: failClosed,
		abuseLogs:  abuseLogs,
		audit:      audit,
	}
}

type checkResult struct {
	verdict Verdict
	err     error
}

// Check classifies content within the configured timeout. The wait is bounded
// even if the classifier ignores context cancellation.
func (g *Gate) Check(ctx context.Context, content string, userID int) Verdict {
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resultCh := make(chan checkResult, 1)
	go func() {
		verdict, err := g.classifier.Classify(cctx, content, userID)
		resultCh <- checkResult{verdict: verdict, err: err}
	}()

	var verdict Verdict
	var err error
	select {
	case r := <-resultCh:
		verdict, err = r.verdict, r.err
	case <-cctx.Done():
		err = cctx.Err()
	}
	elapsed := time.Since(start)

	if err != nil {
		if g.failClosed {
			observability.ObserveModeration("fail_closed", elapsed)
			logging.Ctx(ctx).Warn().Err(err).Int(logging.FieldUserID, userID).Msg("moderation unavailable, blocking message")
			return Verdict{
				Abusive:   true,
				Category:  "unavailable",
				Method:    "fail_closed",
				CheckedAt: time.Now().UTC(),
			}
		}
		observability.ObserveModeration("fail_open", elapsed)
		logging.Ctx(ctx).Warn().Err(err).Int(logging.FieldUserID, userID).Msg("moderation unavailable, allowing message")
		return Verdict{
			Method:    "fail_open",
			CheckedAt: time.Now().UTC(),
		}
	}

	if verdict.Abusive {
		observability.ObserveModeration("flagged", elapsed)
		g.recordFlagged(ctx, content, userID, verdict)
		return verdict
	}

	observability.ObserveModeration("clean", elapsed)
	return verdict
}

// recordFlagged logs, audits, and persists a flagged verdict. Persistence is
// best-effort on a detached context so a slow insert never stalls a send.
func (g *Gate) recordFlagged(ctx context.Context, content string, userID int, verdict Verdict) {
	terms := strings.Join(verdict.FlaggedTerms, ", ")
	logging.Ctx(ctx).Warn().
		Int(logging.FieldUserID, userID).
		Str("flagged_terms", terms).
		Str("category", verdict.Category).
		Float64("confidence", verdict.Confidence).
		Msg("moderation flagged content")

	g.audit.Emit(ctx, "WARN", "moderation flagged content: "+terms, "", &userID)

	if g.abuseLogs == nil {
		return
	}
	go func() {
		insertCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		entry := models.AbuseLog{
			UserID:            userID,
			MessageContent:    content,
			DetectionResult:   true,
			ConfidenceScore:   verdict.Confidence,
			FlaggedCategories: verdict.Category,
			FlaggedWords:      terms,
			DetectionMethod:   verdict.Method,
		}
		if err := g.abuseLogs.InsertAbuseLog(insertCtx, entry); err != nil {
			logging.L().Error().Err(err).Int(logging.FieldUserID, userID).Msg("abuse log insert failed")
		}
	}()
}
