// Package models defines intent catalog structures for FixPipe.
package models

import "errors"

// Intent catalog validation errors. Load-time validation recovers from these
// by skipping the offending record; they are surfaced in logs only.
var (
	ErrIntentMissingTag   = errors.New("intent record missing tag")
	ErrIntentNoPatterns   = errors.New("intent record has no patterns")
	ErrIntentDuplicateTag = errors.New("intent record duplicates an existing tag")
	ErrStepMissingKey     = errors.New("flow step missing answer key")
	ErrStepNoQuestion     = errors.New("flow step missing question")
)

// Step is a single prompt in a guided troubleshooting flow. Script is only
// meaningful on the final step, where it is run with all collected answers.
type Step struct {
	Question string   `json:"question"`
	Hint     string   `json:"hint,omitempty"`
	Options  []string `json:"options,omitempty"`
	Key      string   `json:"key"`
	Script   string   `json:"script,omitempty"`
}

// Validate checks the required fields of a flow step.
func (s *Step) Validate() error {
	if s.Question == "" {
		return ErrStepNoQuestion
	}
	if s.Key == "" {
		return ErrStepMissingKey
	}
	return nil
}

// FlowDefinition is an ordered, non-empty sequence of steps.
type FlowDefinition []Step

// TerminalScript returns the script of the final step, if any.
func (f FlowDefinition) TerminalScript() string {
	if len(f) == 0 {
		return ""
	}
	return f[len(f)-1].Script
}

// Intent is a named category of user request, matched by example patterns
// and resolved to either a remediation script or a guided flow.
type Intent struct {
	Tag      string         `json:"tag"`
	Patterns []string       `json:"patterns"`
	Script   string         `json:"script,omitempty"`
	Flow     FlowDefinition `json:"flow,omitempty"`

	// Centroid is the mean embedding of Patterns, computed once at catalog
	// load and immutable afterward. It is excluded from JSON.
	Centroid []float64 `json:"-"`
}

// Validate checks the required fields of an intent record.
func (i *Intent) Validate() error {
	if i.Tag == "" {
		return ErrIntentMissingTag
	}
	if len(i.Patterns) == 0 {
		return ErrIntentNoPatterns
	}
	for idx := range i.Flow {
		if err := i.Flow[idx].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ClassificationResult is the outcome of classifying a query against the catalog.
type ClassificationResult struct {
	Tag        string         `json:"tag"`
	Confidence float64        `json:"confidence"`
	Script     string         `json:"script,omitempty"`
	Flow       FlowDefinition `json:"flow,omitempty"`
}
