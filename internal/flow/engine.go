// Package flow implements the guided troubleshooting state machine for FixPipe.
//
// A flow is an ordered sequence of steps; a session tracks one conversation's
// progress through a flow. StartFlow creates the session and returns the
// first prompt; each ContinueFlow call records an answer and advances exactly
// one step. The terminal step removes the session unconditionally and runs
// the flow's remediation script with all collected answers.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fixpipe/fixpipe/internal/executor"
	"github.com/fixpipe/fixpipe/internal/models"
	"github.com/fixpipe/fixpipe/internal/session"
)

// Humanizer rewrites technical output into user-friendly text. It must not
// fail: implementations fall back to returning the input.
type Humanizer interface {
	Humanize(ctx context.Context, text string) string
}

// Result is the structured outcome of a flow operation.
type Result struct {
	Response string
	Type     models.ResponseType
	Options  []string
}

// Engine drives flows over the session store and executes terminal scripts.
type Engine struct {
	sessions  *session.Store
	runner    *executor.Runner
	humanizer Humanizer // optional
}

// NewEngine creates a flow engine. The humanizer may be nil.
func NewEngine(sessions *session.Store, runner *executor.Runner, humanizer Humanizer) *Engine {
	return &Engine{sessions: sessions, runner: runner, humanizer: humanizer}
}

// StartFlow creates a session at step 0 and returns the first step's prompt.
func (e *Engine) StartFlow(flowDef models.FlowDefinition, sessionID string) Result {
	sess := e.sessions.Create(sessionID, flowDef)
	first := sess.CurrentStep()
	slog.Info("Engine.StartFlow: flow started", "session_id", sessionID, "steps", len(flowDef))
	return Result{
		Response: renderStep(first),
		Type:     models.ResponseTypeFlowQuestion,
		Options:  first.Options,
	}
}

// ContinueFlow records the answer for the current step and either returns
// the next step's prompt or, on the terminal step, removes the session and
// runs the terminal script with the accumulated answers. It returns
// models.ErrExpiredSession when no session exists for the id.
func (e *Engine) ContinueFlow(ctx context.Context, sessionID, answer string) (Result, error) {
	var next models.Step
	var terminal bool
	var script string
	var answers map[string]string

	err := e.sessions.Update(sessionID, func(sess *models.Session) (bool, error) {
		step := sess.CurrentStep()
		sess.Answers[step.Key] = answer

		if sess.IsTerminal() {
			terminal = true
			script = sess.Flow.TerminalScript()
			answers = make(map[string]string, len(sess.Answers))
			for k, v := range sess.Answers {
				answers[k] = v
			}
			// Removal is unconditional: success or failure of the terminal
			// script, the session is gone.
			return true, nil
		}

		sess.StepIndex++
		next = sess.CurrentStep()
		return false, nil
	})
	if err != nil {
		slog.Warn("Engine.ContinueFlow: no active session", "session_id", sessionID)
		return Result{}, err
	}

	if !terminal {
		slog.Debug("Engine.ContinueFlow: advanced to next step", "session_id", sessionID)
		return Result{
			Response: renderStep(next),
			Type:     models.ResponseTypeFlowQuestion,
			Options:  next.Options,
		}, nil
	}

	slog.Info("Engine.ContinueFlow: flow complete", "session_id", sessionID, "script_set", script != "")
	if script == "" {
		return Result{
			Response: "All steps completed. Thanks for the details.",
			Type:     models.ResponseTypeAction,
		}, nil
	}
	return e.runTerminalScript(ctx, sessionID, script, answers), nil
}

// HasSession reports whether an active session exists for the id.
func (e *Engine) HasSession(sessionID string) bool {
	return e.sessions.Exists(sessionID)
}

// runTerminalScript executes the flow's remediation script and maps the
// outcome onto the response contract.
func (e *Engine) runTerminalScript(ctx context.Context, sessionID, script string, answers map[string]string) Result {
	output, err := e.runner.Run(ctx, script, answers)
	if err != nil {
		slog.Error("Engine.runTerminalScript: script failed", "error", err, "session_id", sessionID, "script", script)
		return Result{Response: executor.UserMessage(err), Type: models.ResponseTypeError}
	}
	slog.Debug("Engine.runTerminalScript: script output", "session_id", sessionID, "output", trimForLog(output))
	if e.humanizer != nil {
		output = e.humanizer.Humanize(ctx, output)
	}
	return Result{Response: output, Type: models.ResponseTypeAction}
}

// renderStep formats a step prompt as a markdown heading plus optional hint.
func renderStep(step models.Step) string {
	text := fmt.Sprintf("## %s", step.Question)
	if step.Hint != "" {
		text += "\n" + step.Hint
	}
	return text
}

// trimForLog shortens text for debug logging.
func trimForLog(text string) string {
	const max = 120
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}
