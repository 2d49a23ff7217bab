// internal/common/errors/errors_test.go
package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type recordingLogger struct {
	warns  []map[string]interface{}
	errors []map[string]interface{}
}

func (l *recordingLogger) Warn(_ string, fields map[string]interface{}) {
	l.warns = append(l.warns, fields)
}

func (l *recordingLogger) Error(_ string, fields map[string]interface{}) {
	l.errors = append(l.errors, fields)
}

// ==========================
// StandardError Tests
// ==========================

func TestStandardError_ErrorFormat(t *testing.T) {
	err := NewEmptyQuestionError()
	assert.Equal(t, "StandardError[EMPTY_QUESTION]: Question must not be empty", err.Error())
}

func TestConstructors_RetryableFlags(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name      string
		err       *StandardError
		code      ErrorCode
		retryable bool
	}{
		{"empty question", NewEmptyQuestionError(), ErrCodeEmptyQuestion, false},
		{"invalid request", NewInvalidRequestError("missing body"), ErrCodeInvalidRequest, false},
		{"database connection", NewDatabaseConnectionFailedError(cause), ErrCodeDatabaseConnectionFailed, true},
		{"vector search", NewVectorSearchFailedError("federal_ethics_docs", cause), ErrCodeVectorSearchFailed, true},
		{"rerank falls back instead", NewRerankFailedError(cause), ErrCodeRerankFailed, false},
		{"web search degrades instead", NewWebSearchFailedError("penalty_research", cause), ErrCodeWebSearchFailed, false},
		{"plan falls back instead", NewPlanGenerationFailedError(cause), ErrCodePlanGenerationFailed, false},
		{"assessment", NewAssessmentFailedError(cause), ErrCodeAssessmentFailed, true},
		{"notification", NewNotificationSendFailedError("email", cause), ErrCodeNotificationSendFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestConstructors_DetailFormatting(t *testing.T) {
	cause := errors.New("mapping rejected")

	err := NewVectorSearchFailedError("federal_ethics_docs", cause)
	assert.Contains(t, err.Details, "collection: federal_ethics_docs")
	assert.Contains(t, err.Details, "mapping rejected")

	searchErr := NewWebSearchFailedError("penalty_research", cause)
	assert.Contains(t, searchErr.Details, "category: penalty_research")
}

// ==========================
// Retry Policy Tests
// ==========================

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeDatabaseConnectionFailed, 3},
		{ErrCodeElasticsearchConnectionFailed, 3},
		{ErrCodeEmbeddingFailed, 3},
		{ErrCodeAssessmentFailed, 3},
		{ErrCodeHistoryInsertFailed, 3},
		{ErrCodeVectorSearchTimeout, 2},
		{ErrCodeEmbeddingTimeout, 2},
		{ErrCodeLLMTimeout, 1},
		{ErrCodeEmptyQuestion, 0},
		{ErrCodeInvalidStrategy, 0},
		{ErrCodeRerankFailed, 0},
		{ErrCodeWebSearchFailed, 0},
		{ErrCodeAssessmentParseInvalid, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetRetryCount(tt.code))
		})
	}
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeLLMUnavailable))
	assert.True(t, IsRetryableErrorCode(ErrCodeVectorSearchTimeout))
	assert.False(t, IsRetryableErrorCode(ErrCodeEmptyQuestion))
	assert.False(t, IsRetryableErrorCode(ErrCodeWebSearchTimeout))
}

// ==========================
// Category Tests
// ==========================

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrCodeEmptyQuestion, "VALIDATION"},
		{ErrCodeInvalidRequest, "VALIDATION"},
		{ErrCodeDatabaseConnectionFailed, "DATABASE"},
		{ErrCodeHistoryInsertFailed, "DATABASE"},
		{ErrCodeVectorSearchFailed, "KNOWLEDGE_STORE"},
		{ErrCodeCollectionCreateFailed, "KNOWLEDGE_STORE"},
		{ErrCodeBulkIndexFailed, "KNOWLEDGE_STORE"},
		{ErrCodeInvalidStrategy, "RETRIEVAL"},
		{ErrCodeRerankFailed, "RETRIEVAL"},
		{ErrCodeWebSearchFailed, "WEB_SEARCH"},
		{ErrCodeWebSearchTimeout, "WEB_SEARCH"},
		{ErrCodeLLMTimeout, "GENERATION"},
		{ErrCodePlanGenerationFailed, "GENERATION"},
		{ErrCodeAssessmentFailed, "GENERATION"},
		{ErrCodeEmbeddingFailed, "GENERATION"},
		{ErrCodeNotificationSendFailed, "NOTIFICATION"},
		{ErrorCode("SOMETHING_ELSE"), "OTHER"},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorCategory(tt.code))
		})
	}
}

// ==========================
// ErrorHandler Tests
// ==========================

func TestErrorHandler_Normalize_PassesThroughStandardError(t *testing.T) {
	h := NewErrorHandler(&recordingLogger{})
	original := NewAssessmentFailedError(errors.New("backend down"))

	normalized := h.Normalize(original)
	assert.Same(t, original, normalized)
}

func TestErrorHandler_Normalize_WrapsPlainError(t *testing.T) {
	h := NewErrorHandler(&recordingLogger{})

	normalized := h.Normalize(errors.New("something odd"))
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), normalized.Code)
	assert.Equal(t, "something odd", normalized.Details)
	assert.False(t, normalized.Retryable)
}

func TestErrorHandler_RecordNodeFailure_WarnsWithShape(t *testing.T) {
	log := &recordingLogger{}
	h := NewErrorHandler(log)

	h.RecordNodeFailure("consult-1", "search_penalties", NewWebSearchTimeoutError("penalty_research"))

	require.Len(t, log.warns, 1)
	require.Empty(t, log.errors)
	fields := log.warns[0]
	assert.Equal(t, "consult-1", fields["consultationId"])
	assert.Equal(t, "search_penalties", fields["node"])
	assert.Equal(t, "WEB_SEARCH_TIMEOUT", fields["errorCode"])
	assert.Equal(t, "WEB_SEARCH", fields["errorCategory"])
	assert.Equal(t, false, fields["retryable"])
}

func TestErrorHandler_RecordFatalFailure_ErrorsWithCategory(t *testing.T) {
	log := &recordingLogger{}
	h := NewErrorHandler(log)

	h.RecordFatalFailure("consult-1", "assess_violation", NewAssessmentFailedError(errors.New("backend down")))

	require.Len(t, log.errors, 1)
	require.Empty(t, log.warns)
	fields := log.errors[0]
	assert.Equal(t, "assess_violation", fields["node"])
	assert.Equal(t, "ASSESSMENT_FAILED", fields["errorCode"])
	assert.Equal(t, "GENERATION", fields["errorCategory"])
}
