// internal/common/errors/handler.go
package errors

import (
	"time"
)

// ErrorHandler normalizes and logs pipeline errors in one place so that node
// failure records carry the same shape everywhere.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Normalize ensures we always have a StandardError.
func (h *ErrorHandler) Normalize(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// RecordNodeFailure logs a workflow-node failure that degraded to an empty
// result. The consultation keeps going, so this is a warning, not an error.
func (h *ErrorHandler) RecordNodeFailure(consultationID, node string, err error) {
	stdErr := h.Normalize(err)
	h.logger.Warn("Workflow node degraded", map[string]interface{}{
		"consultationId": consultationID,
		"node":           node,
		"errorCode":      string(stdErr.Code),
		"message":        stdErr.Message,
		"details":        stdErr.Details,
		"retryable":      stdErr.Retryable,
		"errorCategory":  GetErrorCategory(stdErr.Code),
	})
}

// RecordFatalFailure logs the generation-stage failure that aborts the
// remaining pipeline.
func (h *ErrorHandler) RecordFatalFailure(consultationID, node string, err error) {
	stdErr := h.Normalize(err)
	h.logger.Error("Workflow aborted", map[string]interface{}{
		"consultationId": consultationID,
		"node":           node,
		"errorCode":      string(stdErr.Code),
		"message":        stdErr.Message,
		"details":        stdErr.Details,
		"errorCategory":  GetErrorCategory(stdErr.Code),
	})
}
