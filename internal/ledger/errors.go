package ledger

import (
	"errors"
	"fmt"
)

// Error is returned by every failing ledger operation.
//
// Errors abort the whole operation: no partial debit, no clock advance.
// Escrow shortfall is NOT an error; it is reported in SettlementResult.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Asset identifies the affected asset, zero for collection-level errors.
	Asset AssetKey

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes ledger errors.
type ErrorCode string

const (
	// ErrCodeClockRegression indicates the supplied time precedes the last settlement.
	ErrCodeClockRegression ErrorCode = "CLOCK_REGRESSION"

	// ErrCodeArithmeticOverflow indicates a product or sum exceeds uint64.
	ErrCodeArithmeticOverflow ErrorCode = "ARITHMETIC_OVERFLOW"

	// ErrCodeInsufficientContribution indicates a withdrawal above the depositor's share.
	ErrCodeInsufficientContribution ErrorCode = "INSUFFICIENT_CONTRIBUTION"

	// ErrCodeInsufficientPayment indicates a foreclosure payment below the deficit.
	ErrCodeInsufficientPayment ErrorCode = "INSUFFICIENT_PAYMENT"

	// ErrCodeForeclosureNotEligible indicates a claim against an active asset.
	ErrCodeForeclosureNotEligible ErrorCode = "FORECLOSURE_NOT_ELIGIBLE"

	// ErrCodeInvalidAmount indicates a zero deposit, withdrawal or payment.
	ErrCodeInvalidAmount ErrorCode = "INVALID_AMOUNT"

	// ErrCodeUnauthorized indicates an authority token that does not match the collection.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// ErrCodeCollectionNotFound indicates an unregistered collection.
	ErrCodeCollectionNotFound ErrorCode = "COLLECTION_NOT_FOUND"

	// ErrCodeCollectionExists indicates a second registration of a collection.
	ErrCodeCollectionExists ErrorCode = "COLLECTION_EXISTS"

	// ErrCodeAssetNotFound indicates an asset that has never received a deposit.
	ErrCodeAssetNotFound ErrorCode = "ASSET_NOT_FOUND"

	// ErrCodeAssetBusy indicates another operation currently holds the asset.
	ErrCodeAssetBusy ErrorCode = "ASSET_BUSY"

	// ErrCodeRequestConflict indicates a reused request ID with different content.
	ErrCodeRequestConflict ErrorCode = "REQUEST_CONFLICT"

	// ErrCodeInvariantViolation indicates a book failed its consistency checks.
	ErrCodeInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Asset.AssetID != "" {
		return fmt.Sprintf("%s: %s (asset=%s)", e.Code, e.Message, e.Asset)
	}
	if e.Asset.CollectionID != "" {
		return fmt.Sprintf("%s: %s (collection=%s)", e.Code, e.Message, e.Asset.CollectionID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not a ledger error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsCode returns true if err is a ledger error with the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// NewClockRegressionError creates an Error for a time earlier than the last settlement.
func NewClockRegressionError(last, now uint64) *Error {
	return &Error{
		Code:    ErrCodeClockRegression,
		Message: fmt.Sprintf("current time %d precedes last settlement %d", now, last),
		Details: map[string]string{
			"last_settlement": fmt.Sprintf("%d", last),
			"now":             fmt.Sprintf("%d", now),
		},
	}
}

// NewOverflowError creates an Error for an operation that exceeds uint64.
func NewOverflowError(expr string) *Error {
	return &Error{
		Code:    ErrCodeArithmeticOverflow,
		Message: fmt.Sprintf("%s overflows uint64", expr),
	}
}

// NewInsufficientContributionError creates an Error for an oversized withdrawal.
func NewInsufficientContributionError(key AssetKey, depositorID string, want, have uint64) *Error {
	return &Error{
		Code:    ErrCodeInsufficientContribution,
		Message: fmt.Sprintf("depositor %s requested %d but contributed %d", depositorID, want, have),
		Asset:   key,
		Details: map[string]string{
			"depositor_id": depositorID,
			"requested":    fmt.Sprintf("%d", want),
			"contributed":  fmt.Sprintf("%d", have),
		},
	}
}

// NewInsufficientPaymentError creates an Error for a payment below the deficit.
func NewInsufficientPaymentError(key AssetKey, payment, deficit uint64) *Error {
	return &Error{
		Code:    ErrCodeInsufficientPayment,
		Message: fmt.Sprintf("payment %d does not cover deficit %d", payment, deficit),
		Asset:   key,
		Details: map[string]string{
			"payment": fmt.Sprintf("%d", payment),
			"deficit": fmt.Sprintf("%d", deficit),
		},
	}
}

// NewNotEligibleError creates an Error for a claim on an active asset.
func NewNotEligibleError(key AssetKey) *Error {
	return &Error{
		Code:    ErrCodeForeclosureNotEligible,
		Message: "asset is not eligible for foreclosure",
		Asset:   key,
	}
}

// NewInvalidAmountError creates an Error for a zero amount.
func NewInvalidAmountError(key AssetKey, op string) *Error {
	return &Error{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("%s amount must be positive", op),
		Asset:   key,
	}
}

// NewUnauthorizedError creates an Error for a mismatched authority token.
func NewUnauthorizedError(collectionID string) *Error {
	return &Error{
		Code:    ErrCodeUnauthorized,
		Message: "authority token does not match collection admin",
		Asset:   AssetKey{CollectionID: collectionID},
	}
}

// NewCollectionNotFoundError creates an Error for an unknown collection.
func NewCollectionNotFoundError(collectionID string) *Error {
	return &Error{
		Code:    ErrCodeCollectionNotFound,
		Message: "collection is not registered",
		Asset:   AssetKey{CollectionID: collectionID},
	}
}

// NewCollectionExistsError creates an Error for a duplicate registration.
func NewCollectionExistsError(collectionID string) *Error {
	return &Error{
		Code:    ErrCodeCollectionExists,
		Message: "collection is already registered",
		Asset:   AssetKey{CollectionID: collectionID},
	}
}

// NewAssetNotFoundError creates an Error for an asset without a ledger.
func NewAssetNotFoundError(key AssetKey) *Error {
	return &Error{
		Code:    ErrCodeAssetNotFound,
		Message: "asset has no escrow ledger",
		Asset:   key,
	}
}

// NewAssetBusyError creates an Error for a concurrent operation on the same asset.
func NewAssetBusyError(key AssetKey) *Error {
	return &Error{
		Code:    ErrCodeAssetBusy,
		Message: "another operation holds the asset",
		Asset:   key,
	}
}

// NewRequestConflictError creates an Error for a request ID reused with different content.
func NewRequestConflictError(requestID string) *Error {
	return &Error{
		Code:    ErrCodeRequestConflict,
		Message: fmt.Sprintf("request %s was already recorded with different content", requestID),
		Details: map[string]string{"request_id": requestID},
	}
}

// NewInvariantError creates an Error for a book that failed CheckInvariants.
func NewInvariantError(key AssetKey, msg string) *Error {
	return &Error{
		Code:    ErrCodeInvariantViolation,
		Message: msg,
		Asset:   key,
	}
}
