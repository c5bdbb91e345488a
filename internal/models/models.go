// Package models defines the core data structures for FixPipe.
//
// It includes the chat request/response contract, the response type
// enumeration, and shared error variables used across modules.
package models

import "errors"

// ResponseType classifies a dispatcher response.
type ResponseType string

const (
	// ResponseTypeAction indicates a remediation script ran (or was attempted).
	ResponseTypeAction ResponseType = "action"
	// ResponseTypeClarify asks the user for more detail.
	ResponseTypeClarify ResponseType = "clarify"
	// ResponseTypeFlowQuestion prompts the next step of a guided flow.
	ResponseTypeFlowQuestion ResponseType = "flow_question"
	// ResponseTypeKnowledge carries a documentation-backed answer.
	ResponseTypeKnowledge ResponseType = "knowledge"
	// ResponseTypeError reports a failure in user-safe terms.
	ResponseTypeError ResponseType = "error"
)

// IsValidResponseType checks if the given response type is supported.
func IsValidResponseType(rt ResponseType) bool {
	switch rt {
	case ResponseTypeAction, ResponseTypeClarify, ResponseTypeFlowQuestion, ResponseTypeKnowledge, ResponseTypeError:
		return true
	default:
		return false
	}
}

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum allowed length for a chat message
	MaxMessageLength = 4096
	// MaxSessionIDLength defines the maximum allowed length for a session identifier
	MaxSessionIDLength = 128
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessage     = errors.New("message cannot be empty")
	ErrMessageTooLong   = errors.New("message exceeds maximum length")
	ErrSessionIDTooLong = errors.New("session id exceeds maximum length")
	ErrInvalidMode      = errors.New("invalid mode")

	// ErrNoIntentsLoaded is returned when classification is attempted against an empty catalog.
	ErrNoIntentsLoaded = errors.New("no intents loaded")
	// ErrExpiredSession is returned when a flow is continued for an unknown or evicted session.
	ErrExpiredSession = errors.New("session expired or unknown")
	// ErrScriptNotFound is returned when a remediation script path does not exist on disk.
	ErrScriptNotFound = errors.New("script not found")
	// ErrScriptTimeout is returned when a remediation script exceeds its wall-clock timeout.
	ErrScriptTimeout = errors.New("script execution timed out")
)

// Mode selects the dispatcher routing behavior for a chat turn.
type Mode string

const (
	// ModeScript is the default mode: classify and act.
	ModeScript Mode = "script"
	// ModeKB answers from the knowledge base instead of classifying.
	ModeKB Mode = "kb"
)

// ChatRequest is the inbound payload of the /chat endpoint.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Mode      Mode   `json:"mode,omitempty"`
}

// Validate performs validation on a ChatRequest.
func (r *ChatRequest) Validate() error {
	if r.Message == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if len(r.SessionID) > MaxSessionIDLength {
		return ErrSessionIDTooLong
	}
	switch r.Mode {
	case "", ModeScript, ModeKB:
		return nil
	default:
		return ErrInvalidMode
	}
}

// ChatResponse is the outbound payload of the /chat endpoint.
type ChatResponse struct {
	Response  string       `json:"response"`
	Type      ResponseType `json:"type"`
	SessionID string       `json:"session_id"`
	Options   []string     `json:"options,omitempty"`
}

// APIStatus represents the status field of administrative API responses.
type APIStatus string

const (
	// APIStatusOK indicates a successful operation.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates a failed operation.
	APIStatusError APIStatus = "error"
)

// APIResponse is the envelope for administrative endpoints (reload, audit, health).
type APIResponse struct {
	Status  APIStatus   `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: APIStatusError, Message: message}
}
