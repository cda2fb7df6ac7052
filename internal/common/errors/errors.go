// Package errors provides standardized error handling for the funding
// engine and its BPMN workflow integration.
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
	// Validation errors: rejected synchronously, never partially applied.
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeSharesUnavailable   ErrorCode = "SHARES_UNAVAILABLE"
	ErrCodeFranchiseNotFound   ErrorCode = "FRANCHISE_NOT_FOUND"
	ErrCodeTransactionNotFound ErrorCode = "TRANSACTION_NOT_FOUND"
	ErrCodeFranchiseNotActive  ErrorCode = "FRANCHISE_NOT_ACTIVE"
	ErrCodeFranchiseNotFunding ErrorCode = "FRANCHISE_NOT_FUNDING"
	ErrCodeTransactionNotApprovable ErrorCode = "TRANSACTION_NOT_APPROVABLE"
	ErrCodeClaimExceedsBalance ErrorCode = "CLAIM_EXCEEDS_BALANCE"

	// Invariant violations: logic defects, fatal for the operation,
	// never worked around by clamping.
	ErrCodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeSupplyInvariantViolated ErrorCode = "SUPPLY_INVARIANT_VIOLATED"
	ErrCodeConservationViolated    ErrorCode = "CONSERVATION_VIOLATED"
	ErrCodeTokensAlreadyIssued     ErrorCode = "TOKENS_ALREADY_ISSUED"

	// External collaborator failures: retried with bounded backoff.
	ErrCodePaymentRailFailed  ErrorCode = "PAYMENT_RAIL_FAILED"
	ErrCodePaymentRailTimeout ErrorCode = "PAYMENT_RAIL_TIMEOUT"
	ErrCodeRefundIncomplete   ErrorCode = "REFUND_INCOMPLETE"

	// Infrastructure.
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
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
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationError creates a non-retryable input validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSharesUnavailableError signals a purchase larger than remaining capacity.
func NewSharesUnavailableError(requested, remaining int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeSharesUnavailable,
		Message:   "Requested shares exceed remaining capacity",
		Details:   fmt.Sprintf("requested: %d, remaining: %d", requested, remaining),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFranchiseNotFoundError creates a non-retryable lookup error.
func NewFranchiseNotFoundError(franchiseID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFranchiseNotFound,
		Message:   "Franchise not found",
		Details:   fmt.Sprintf("franchiseId: %s", franchiseID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransactionNotFoundError creates a non-retryable lookup error.
func NewTransactionNotFoundError(transactionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransactionNotFound,
		Message:   "Financial transaction not found",
		Details:   fmt.Sprintf("transactionId: %s", transactionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFranchiseNotActiveError rejects revenue operations on non-active franchises.
func NewFranchiseNotActiveError(franchiseID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFranchiseNotActive,
		Message:   "Franchise is not active",
		Details:   fmt.Sprintf("franchiseId: %s, status: %s", franchiseID, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFranchiseNotFundingError rejects purchases outside the funding window.
func NewFranchiseNotFundingError(franchiseID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFranchiseNotFunding,
		Message:   "Franchise is not accepting investments",
		Details:   fmt.Sprintf("franchiseId: %s, status: %s", franchiseID, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransactionNotApprovableError rejects approval of a non-pending transaction.
func NewTransactionNotApprovableError(transactionID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransactionNotApprovable,
		Message:   "Transaction is not in a pending state",
		Details:   fmt.Sprintf("transactionId: %s, status: %s", transactionID, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewClaimExceedsBalanceError rejects a dividend claim above the pending balance.
func NewClaimExceedsBalanceError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeClaimExceedsBalance,
		Message:   "Claim exceeds pending dividend balance",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStatusTransitionError marks an illegal campaign transition.
// These indicate a logic defect, not a user mistake.
func NewInvalidStatusTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidStatusTransition,
		Message:   "Invalid campaign status transition",
		Details:   fmt.Sprintf("from: %s, to: %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSupplyInvariantError marks a token issuance that would break the
// supply conservation invariant. Fatal, never clamped.
func NewSupplyInvariantError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSupplyInvariantViolated,
		Message:   "Token supply invariant would be violated",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConservationError marks a ledger total that no longer matches its
// source records.
func NewConservationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConservationViolated,
		Message:   "Ledger conservation invariant violated",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTokensAlreadyIssuedError rejects a second initial issuance.
func NewTokensAlreadyIssuedError(franchiseID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokensAlreadyIssued,
		Message:   "Initial token issuance already performed",
		Details:   fmt.Sprintf("franchiseId: %s", franchiseID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPaymentRailError creates a retryable external transfer error.
func NewPaymentRailError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePaymentRailFailed,
		Message:   "Payment rail transfer failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPaymentRailTimeoutError creates a retryable transfer timeout error.
func NewPaymentRailTimeoutError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePaymentRailTimeout,
		Message:   "Payment rail transfer timed out",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRefundIncompleteError reports a franchise left in funding because not
// every refund reached a terminal state. The sweep retries on its next pass.
func NewRefundIncompleteError(franchiseID string, settled, total int) *StandardError {
	return &StandardError{
		Code:      ErrCodeRefundIncomplete,
		Message:   "Refund batch incomplete, franchise held in funding",
		Details:   fmt.Sprintf("franchiseId: %s, settled: %d of %d", franchiseID, settled, total),
		Retryable: true,
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

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodePaymentRailFailed,
		ErrCodeRefundIncomplete:
		return 3 // Retryable technical errors

	case ErrCodeQueryTimeout,
		ErrCodePaymentRailTimeout:
		return 2 // Partial retry for timeouts

	default:
		return 0 // Validation and invariant errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// IsInvariantViolation reports whether the code marks a logic defect that
// must abort the operation rather than be retried or clamped.
func IsInvariantViolation(code ErrorCode) bool {
	switch code {
	case ErrCodeInvalidStatusTransition,
		ErrCodeSupplyInvariantViolated,
		ErrCodeConservationViolated,
		ErrCodeTokensAlreadyIssued:
		return true
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case IsInvariantViolation(code):
		return "INVARIANT"
	case strings.Contains(codeStr, "PAYMENT") || strings.Contains(codeStr, "REFUND"):
		return "EXTERNAL"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	default:
		return "VALIDATION"
	}
}
