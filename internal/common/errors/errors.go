// Package errors provides standardized error handling for the consultation pipeline.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrCodeEmptyQuestion  ErrorCode = "EMPTY_QUESTION"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeHistoryInsertFailed      ErrorCode = "HISTORY_INSERT_FAILED"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeVectorSearchFailed            ErrorCode = "VECTOR_SEARCH_FAILED"
	ErrCodeVectorSearchTimeout           ErrorCode = "VECTOR_SEARCH_TIMEOUT"
	ErrCodeCollectionCreateFailed        ErrorCode = "COLLECTION_CREATE_FAILED"
	ErrCodeBulkIndexFailed               ErrorCode = "BULK_INDEX_FAILED"

	ErrCodeInvalidStrategy ErrorCode = "INVALID_RETRIEVAL_STRATEGY"
	ErrCodeRerankFailed    ErrorCode = "RERANK_FAILED"

	ErrCodeEmbeddingFailed  ErrorCode = "EMBEDDING_FAILED"
	ErrCodeEmbeddingTimeout ErrorCode = "EMBEDDING_TIMEOUT"

	ErrCodeWebSearchFailed  ErrorCode = "WEB_SEARCH_FAILED"
	ErrCodeWebSearchTimeout ErrorCode = "WEB_SEARCH_TIMEOUT"

	ErrCodeLLMTimeout             ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMUnavailable         ErrorCode = "LLM_UNAVAILABLE"
	ErrCodePlanGenerationFailed   ErrorCode = "PLAN_GENERATION_FAILED"
	ErrCodeAssessmentFailed       ErrorCode = "ASSESSMENT_FAILED"
	ErrCodeAssessmentParseInvalid ErrorCode = "ASSESSMENT_PARSE_INVALID"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidRequestError creates a non-retryable request validation error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Consultation request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmptyQuestionError creates a non-retryable empty question error.
func NewEmptyQuestionError() *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyQuestion,
		Message:   "Question must not be empty",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewHistoryInsertFailedError creates a retryable history insert error.
func NewHistoryInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeHistoryInsertFailed,
		Message:   "Consultation history insert failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewElasticsearchConnectionFailedError creates a retryable Elasticsearch connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeElasticsearchConnectionFailed,
		Message:   "Elasticsearch connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewVectorSearchFailedError creates a retryable vector search error.
func NewVectorSearchFailedError(collection string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeVectorSearchFailed,
		Message:   "Vector search query error",
		Details:   fmt.Sprintf("collection: %s, error: %s", collection, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewVectorSearchTimeoutError creates a retryable vector search timeout error.
func NewVectorSearchTimeoutError(collection string) *StandardError {
	return &StandardError{
		Code:      ErrCodeVectorSearchTimeout,
		Message:   "Vector search timeout",
		Details:   fmt.Sprintf("collection: %s", collection),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCollectionCreateFailedError creates a retryable collection creation error.
func NewCollectionCreateFailedError(collection string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCollectionCreateFailed,
		Message:   "Collection creation failed",
		Details:   fmt.Sprintf("collection: %s, error: %s", collection, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBulkIndexFailedError creates a retryable bulk index error.
func NewBulkIndexFailedError(collection string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBulkIndexFailed,
		Message:   "Passage indexing failed",
		Details:   fmt.Sprintf("collection: %s, error: %s", collection, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStrategyError creates a non-retryable unknown strategy error.
func NewInvalidStrategyError(strategy string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidStrategy,
		Message:   "Unknown retrieval strategy",
		Details:   fmt.Sprintf("strategy: %s", strategy),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRerankFailedError creates a non-retryable (falls back to similarity) rerank error.
func NewRerankFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRerankFailed,
		Message:   "Reranker call failed",
		Details:   err.Error(),
		Retryable: false, // degrade to similarity, don't retry
		Timestamp: time.Now().UTC(),
	}
}

// NewEmbeddingFailedError creates a retryable embedding error.
func NewEmbeddingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmbeddingFailed,
		Message:   "Embedding API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmbeddingTimeoutError creates a retryable embedding timeout error.
func NewEmbeddingTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeEmbeddingTimeout,
		Message:   "Embedding API timeout",
		Details:   "Embedding call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewWebSearchFailedError creates a non-retryable (returns empty) web search error.
func NewWebSearchFailedError(category string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeWebSearchFailed,
		Message:   "Web search API error",
		Details:   fmt.Sprintf("category: %s, error: %s", category, err.Error()),
		Retryable: false, // branch degrades to empty, don't retry
		Timestamp: time.Now().UTC(),
	}
}

// NewWebSearchTimeoutError creates a non-retryable (returns empty) web search timeout error.
func NewWebSearchTimeoutError(category string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWebSearchTimeout,
		Message:   "Web search API timeout",
		Details:   fmt.Sprintf("category: %s", category),
		Retryable: false, // branch degrades to empty, don't retry
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMTimeoutError creates a retryable LLM timeout error.
func NewLLMTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "LLM completion timeout",
		Details:   "Completion call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMUnavailableError creates a retryable LLM availability error.
func NewLLMUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMUnavailable,
		Message:   "LLM backend unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPlanGenerationFailedError creates a non-retryable (falls back to default plan) error.
func NewPlanGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePlanGenerationFailed,
		Message:   "Research plan generation failed",
		Details:   err.Error(),
		Retryable: false, // workflow substitutes the default plan
		Timestamp: time.Now().UTC(),
	}
}

// NewAssessmentFailedError creates a retryable assessment generation error.
func NewAssessmentFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAssessmentFailed,
		Message:   "Assessment generation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAssessmentParseInvalidError creates a non-retryable (falls back to heuristic) parse error.
func NewAssessmentParseInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAssessmentParseInvalid,
		Message:   "Structured assessment output invalid",
		Details:   details,
		Retryable: false, // heuristic fallback covers this
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Retry Policy
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeVectorSearchFailed,
		ErrCodeCollectionCreateFailed,
		ErrCodeBulkIndexFailed,
		ErrCodeHistoryInsertFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeEmbeddingFailed,
		ErrCodeAssessmentFailed,
		ErrCodeLLMUnavailable:
		return 3 // Retryable technical errors

	case ErrCodeVectorSearchTimeout,
		ErrCodeEmbeddingTimeout:
		return 2 // Partial retry for timeouts

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0 // Validation and degrade-to-fallback errors: no retry
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "QUESTION") || strings.Contains(codeStr, "REQUEST"):
		return "VALIDATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "HISTORY"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "VECTOR") ||
		strings.Contains(codeStr, "COLLECTION") || strings.Contains(codeStr, "INDEX"):
		return "KNOWLEDGE_STORE"
	case strings.Contains(codeStr, "STRATEGY") || strings.Contains(codeStr, "RERANK"):
		return "RETRIEVAL"
	case strings.Contains(codeStr, "WEB_SEARCH"):
		return "WEB_SEARCH"
	case strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "PLAN") ||
		strings.Contains(codeStr, "ASSESSMENT") || strings.Contains(codeStr, "EMBEDDING"):
		return "GENERATION"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
