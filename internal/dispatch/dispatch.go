// Package dispatch routes chat turns through the FixPipe core.
//
// The Dispatcher is the single point of total coverage: every combination of
// mode, session state, and classification outcome maps to exactly one of the
// five response types, and no failure from a collaborator or internal
// component ever escapes to the transport layer.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fixpipe/fixpipe/internal/executor"
	"github.com/fixpipe/fixpipe/internal/flow"
	"github.com/fixpipe/fixpipe/internal/intent"
	"github.com/fixpipe/fixpipe/internal/models"
	"github.com/fixpipe/fixpipe/internal/store"
)

// User-facing messages for the fixed routing outcomes.
const (
	msgNoDocs        = "No relevant documentation found. Try rephrasing."
	msgLowConfidence = "Could not determine intent. Please provide more details."
	msgNeedMoreInfo  = "I need more information to resolve this issue."
	msgSystemError   = "A system error occurred. Please try again."
)

// Classifier scores a query against the intent catalog.
type Classifier interface {
	Classify(ctx context.Context, query string) (models.ClassificationResult, error)
}

// Searcher is the knowledge base collaborator contract.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]models.SearchHit, error)
}

// Generator is the response generation collaborator contract. Both methods
// degrade internally and never fail.
type Generator interface {
	Enhance(ctx context.Context, query string, hits []models.SearchHit) string
	Humanize(ctx context.Context, text string) string
}

// Opts holds optional collaborators for the Dispatcher.
type Opts struct {
	KnowledgeBase Searcher
	Generator     Generator
	Audit         store.Store
}

// Option defines a configuration option for the Dispatcher.
type Option func(*Opts)

// WithKnowledgeBase wires the documentation search collaborator.
func WithKnowledgeBase(kb Searcher) Option {
	return func(o *Opts) {
		o.KnowledgeBase = kb
	}
}

// WithGenerator wires the response generation collaborator.
func WithGenerator(g Generator) Option {
	return func(o *Opts) {
		o.Generator = g
	}
}

// WithAudit wires the audit store; turns are recorded best-effort.
func WithAudit(s store.Store) Option {
	return func(o *Opts) {
		o.Audit = s
	}
}

// Dispatcher routes (query, session, mode) through the classifier, flow
// engine, script executor, and knowledge base.
type Dispatcher struct {
	classifier Classifier
	engine     *flow.Engine
	runner     *executor.Runner
	kb         Searcher
	generator  Generator
	audit      store.Store
}

// NewDispatcher creates a dispatcher with the required core components and
// any optional collaborators.
func NewDispatcher(classifier Classifier, engine *flow.Engine, runner *executor.Runner, opts ...Option) *Dispatcher {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("dispatch.NewDispatcher created",
		"kb_set", cfg.KnowledgeBase != nil, "generator_set", cfg.Generator != nil, "audit_set", cfg.Audit != nil)
	return &Dispatcher{
		classifier: classifier,
		engine:     engine,
		runner:     runner,
		kb:         cfg.KnowledgeBase,
		generator:  cfg.Generator,
		audit:      cfg.Audit,
	}
}

// HandleQuery processes one chat turn and always returns a structured
// result. It never panics and never returns an error to the caller;
// internal failures are logged and converted to a generic error response.
func (d *Dispatcher) HandleQuery(ctx context.Context, query, sessionID string, mode models.Mode) (result flow.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Dispatcher.HandleQuery: recovered from panic", "panic", r, "session_id", sessionID)
			result = flow.Result{Response: msgSystemError, Type: models.ResponseTypeError}
		}
		d.recordTurn(sessionID, query, result.Type, time.Since(start))
	}()

	slog.Debug("Dispatcher.HandleQuery: processing turn", "session_id", sessionID, "mode", mode, "query_len", len(query))

	if mode == models.ModeKB {
		return d.handleKnowledge(ctx, query)
	}

	if d.engine.HasSession(sessionID) {
		return d.handleContinue(ctx, query, sessionID)
	}

	return d.handleClassify(ctx, query, sessionID)
}

// handleKnowledge serves a documentation lookup.
func (d *Dispatcher) handleKnowledge(ctx context.Context, query string) flow.Result {
	if d.kb == nil {
		slog.Warn("Dispatcher.handleKnowledge: no knowledge base configured")
		return flow.Result{Response: msgNoDocs, Type: models.ResponseTypeKnowledge}
	}
	hits, err := d.kb.Search(ctx, query, 0)
	if err != nil {
		slog.Error("Dispatcher.handleKnowledge: search failed", "error", err)
		return flow.Result{Response: msgSystemError, Type: models.ResponseTypeError}
	}
	if len(hits) == 0 {
		return flow.Result{Response: msgNoDocs, Type: models.ResponseTypeKnowledge}
	}
	if d.generator == nil {
		return flow.Result{Response: formatHits(hits), Type: models.ResponseTypeKnowledge}
	}
	return flow.Result{Response: d.generator.Enhance(ctx, query, hits), Type: models.ResponseTypeKnowledge}
}

// handleContinue advances an active flow.
func (d *Dispatcher) handleContinue(ctx context.Context, answer, sessionID string) flow.Result {
	res, err := d.engine.ContinueFlow(ctx, sessionID, answer)
	if err != nil {
		// The session was evicted between the existence check and the turn.
		slog.Warn("Dispatcher.handleContinue: session expired mid-turn", "session_id", sessionID)
		return flow.Result{Response: "Session expired. Please start over.", Type: models.ResponseTypeError}
	}
	return res
}

// handleClassify classifies the query and acts on the match.
func (d *Dispatcher) handleClassify(ctx context.Context, query, sessionID string) flow.Result {
	cls, err := d.classifier.Classify(ctx, query)
	if err != nil {
		slog.Error("Dispatcher.handleClassify: classification failed", "error", err)
		return flow.Result{Response: msgSystemError, Type: models.ResponseTypeError}
	}
	slog.Debug("Dispatcher.handleClassify: classified", "tag", cls.Tag, "confidence", cls.Confidence)

	if cls.Confidence < intent.ConfidenceThreshold {
		return flow.Result{Response: msgLowConfidence, Type: models.ResponseTypeClarify}
	}
	if len(cls.Flow) > 0 {
		return d.engine.StartFlow(cls.Flow, sessionID)
	}
	if cls.Script != "" {
		return d.runScript(ctx, cls)
	}
	return flow.Result{Response: msgNeedMoreInfo, Type: models.ResponseTypeClarify}
}

// runScript executes a matched intent's remediation script synchronously.
// Executor failures surface as a distinct error response, never as a
// success-shaped action.
func (d *Dispatcher) runScript(ctx context.Context, cls models.ClassificationResult) flow.Result {
	output, err := d.runner.Run(ctx, cls.Script, nil)
	if err != nil {
		slog.Error("Dispatcher.runScript: script failed", "error", err, "tag", cls.Tag)
		return flow.Result{Response: executor.UserMessage(err), Type: models.ResponseTypeError}
	}
	return flow.Result{
		Response: fmt.Sprintf("%s:\n%s", cls.Tag, output),
		Type:     models.ResponseTypeAction,
	}
}

// recordTurn appends the turn to the audit store, best-effort.
func (d *Dispatcher) recordTurn(sessionID, query string, rt models.ResponseType, latency time.Duration) {
	if d.audit == nil {
		return
	}
	err := d.audit.AddTurn(models.Turn{
		SessionID: sessionID,
		Query:     query,
		Type:      rt,
		LatencyMS: latency.Milliseconds(),
		Time:      time.Now().Unix(),
	})
	if err != nil {
		slog.Warn("Dispatcher.recordTurn: failed to record turn", "error", err, "session_id", sessionID)
	}
}

// formatHits renders search hits as plain text when no generator is configured.
func formatHits(hits []models.SearchHit) string {
	out := "Relevant documentation:\n"
	for i, h := range hits {
		out += fmt.Sprintf("%d. [%s, page %s] %s\n", i+1, h.Source, h.Page, h.Content)
	}
	return out
}
