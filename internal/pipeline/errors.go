package pipeline

import (
	"errors"
	"fmt"
)

// Validation and normalization failures.
var (
	ErrEmptyResponse          = errors.New("agent returned an empty response")
	ErrResponseTooLarge       = errors.New("agent response exceeds maximum length")
	ErrHistorianOutputInvalid = errors.New("historian output must contain a non-empty summary and rationale")
	ErrSimilaritySearch       = errors.New("similarity search failed")
	ErrUnknownStage           = errors.New("unknown stage")
)

// ExternalAgentError reports a failed reasoning stage. Err is the provider
// error or one of the validation sentinels above.
type ExternalAgentError struct {
	Stage Stage
	Err   error
}

func (e *ExternalAgentError) Error() string {
	return fmt.Sprintf("%s agent failed: %v", e.Stage, e.Err)
}

func (e *ExternalAgentError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage that failed, if err came from a reasoning stage.
func StageOf(err error) (Stage, bool) {
	var agentErr *ExternalAgentError
	if errors.As(err, &agentErr) {
		return agentErr.Stage, true
	}
	return "", false
}
