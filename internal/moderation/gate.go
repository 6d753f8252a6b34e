package moderation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fintalk-ai/agenthub/internal/telemetry"
)

// DefaultThreshold is the severity at or above which content is blocked.
const DefaultThreshold = 4

// Verdict is the gate's decision for a piece of text.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictBlock Verdict = "block"
	// VerdictUnavailable means the classifier could not be reached; the
	// action taken depends on the gate's fail-open setting.
	VerdictUnavailable Verdict = "unavailable"
)

// Action is what the caller should do with the text.
type Action string

const (
	ActionAllow  Action = "allow"
	ActionWarn   Action = "warn"
	ActionBlock  Action = "block"
	ActionFilter Action = "filter"
)

// Result is the outcome of gating one piece of text. It lives only for the
// current exchange; nothing is persisted.
type Result struct {
	Safe    bool
	Verdict Verdict
	Action  Action
	Flagged []string
	Scores  []CategoryScore
	Detail  string
}

// Gate applies a fixed per-category severity threshold to classifier scores.
// The same gate is applied to user input and to agent output before display.
type Gate struct {
	analyzer  Analyzer
	threshold int
	failOpen  bool
	tracer    trace.Tracer
}

// NewGate creates a Gate. A nil analyzer disables moderation entirely: every
// check allows with an "unavailable" verdict, matching a deployment without a
// content-safety endpoint. Thresholds outside 0-7 fall back to the default.
func NewGate(analyzer Analyzer, threshold int, failOpen bool) *Gate {
	if threshold < 0 || threshold > 7 {
		threshold = DefaultThreshold
	}
	return &Gate{
		analyzer:  analyzer,
		threshold: threshold,
		failOpen:  failOpen,
		tracer:    telemetry.Tracer("agenthub/moderation"),
	}
}

// Threshold returns the configured blocking severity.
func (g *Gate) Threshold() int {
	return g.threshold
}

// Check classifies text and decides allow or block. Any category severity at
// or above the threshold blocks. A classifier transport failure yields
// VerdictUnavailable and blocks unless the gate was built fail-open; the error
// is returned alongside the result so callers can log it.
func (g *Gate) Check(ctx context.Context, text string) (Result, error) {
	ctx, span := g.tracer.Start(ctx, "moderation.check")
	defer span.End()
	span.SetAttributes(attribute.Int("moderation.text_length", len(text)))

	if g.analyzer == nil {
		span.SetAttributes(attribute.Bool("moderation.enabled", false))
		return Result{
			Safe:    true,
			Verdict: VerdictUnavailable,
			Action:  ActionAllow,
			Detail:  "moderation disabled",
		}, nil
	}

	scores, err := g.analyzer.AnalyzeText(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classifier unavailable")
		res := Result{Verdict: VerdictUnavailable, Detail: "moderation service unavailable"}
		if g.failOpen {
			res.Safe = true
			res.Action = ActionAllow
		} else {
			res.Safe = false
			res.Action = ActionBlock
		}
		return res, fmt.Errorf("moderation: classify: %w", err)
	}

	res := Result{Scores: scores}
	maxSeverity := 0
	for _, s := range scores {
		if s.Severity > maxSeverity {
			maxSeverity = s.Severity
		}
		span.SetAttributes(attribute.Int("moderation."+s.Category+".severity", s.Severity))
		if s.Severity >= g.threshold {
			res.Flagged = append(res.Flagged, s.Category)
		}
	}
	span.SetAttributes(attribute.Int("moderation.max_severity", maxSeverity))

	if len(res.Flagged) > 0 {
		res.Safe = false
		res.Verdict = VerdictBlock
		res.Action = ActionBlock
		res.Detail = fmt.Sprintf("content flagged: %v", res.Flagged)
		span.SetAttributes(attribute.Bool("moderation.flagged", true))
		return res, nil
	}

	res.Safe = true
	res.Verdict = VerdictAllow
	res.Action = ActionAllow
	res.Detail = "content is safe"
	return res, nil
}
