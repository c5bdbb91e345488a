// Package executor provides user-facing translations of execution errors.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/fixpipe/fixpipe/internal/models"
)

// UserMessage maps an error returned by Runner.Run onto a message safe to
// show the end user, without leaking paths or stderr.
func UserMessage(err error) string {
	var scriptErr *ScriptError
	switch {
	case errors.Is(err, models.ErrScriptNotFound):
		return "The remediation script could not be found."
	case errors.Is(err, models.ErrScriptTimeout):
		return "The remediation took too long and was stopped. Please try again."
	case errors.As(err, &scriptErr):
		return fmt.Sprintf("The remediation script failed (exit code %d). Please contact support if the problem persists.", scriptErr.ExitCode)
	case errors.Is(err, context.Canceled):
		return "The request was canceled before the remediation finished."
	default:
		return "Failed to execute the resolution. Please try again later."
	}
}
