package store

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

// ErrCode classifies an Error. Each code maps to an HTTP status code and an
// error type string that the route layer hands to clients.
type ErrCode uint64

const (
	ErrCInternal              ErrCode = iota // 0: Unclassified internal failure.
	ErrCNotFound                             // 1: Document id absent in a collection.
	ErrCReadFailed                           // 2: Collection file could not be read (StoreIOError).
	ErrCWriteFailed                          // 3: Collection file could not be written (StoreIOError).
	ErrCCorruptData                          // 4: Collection file is not a valid JSON array (fatal).
	ErrCValidation                           // 5: Malformed input.
	ErrCAccessDenied                         // 6: Ownership or role mismatch.
	ErrCOrderAlreadyCompleted                // 7: Payment re-attempt on a completed order.
	ErrCInvalidOrderState                    // 8: State transition not allowed.
	ErrCPaymentFailed                        // 9: Payment gateway declined.
	ErrCPaymentInProgress                    // 10: Another payment for the same order is running.
	ErrCInsufficientPoints                   // 11: Loyalty balance too low.
	ErrCUserExists                           // 12: Username already taken.
	ErrCInvalidCredentials                   // 13: Username or password wrong.
)

type codeInfo struct {
	status int
	name   string
}

var codeInfos = map[ErrCode]codeInfo{
	ErrCInternal:              {http.StatusInternalServerError, "INTERNAL_ERROR"},
	ErrCNotFound:              {http.StatusNotFound, "ITEM_NOT_FOUND"},
	ErrCReadFailed:            {http.StatusInternalServerError, "FILE_READ_ERROR"},
	ErrCWriteFailed:           {http.StatusInternalServerError, "FILE_WRITE_ERROR"},
	ErrCCorruptData:           {http.StatusInternalServerError, "JSON_PARSE_ERROR"},
	ErrCValidation:            {http.StatusBadRequest, "VALIDATION_ERROR"},
	ErrCAccessDenied:          {http.StatusForbidden, "ACCESS_DENIED"},
	ErrCOrderAlreadyCompleted: {http.StatusBadRequest, "ORDER_ALREADY_COMPLETED"},
	ErrCInvalidOrderState:     {http.StatusBadRequest, "INVALID_ORDER_STATE"},
	ErrCPaymentFailed:         {http.StatusPaymentRequired, "PAYMENT_FAILED"},
	ErrCPaymentInProgress:     {http.StatusConflict, "PAYMENT_IN_PROGRESS"},
	ErrCInsufficientPoints:    {http.StatusBadRequest, "INSUFFICIENT_POINTS"},
	ErrCUserExists:            {http.StatusConflict, "USER_EXISTS"},
	ErrCInvalidCredentials:    {http.StatusUnauthorized, "INVALID_CREDENTIALS"},
}

// String returns the error type of the code, e.g. ITEM_NOT_FOUND
func (c ErrCode) String() string {
	if info, ok := codeInfos[c]; ok {
		return info.name
	}
	return "UNKNOWN_ERROR"
}

// StatusCode returns the HTTP status code of the code
func (c ErrCode) StatusCode() int {
	if info, ok := codeInfos[c]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the error type returned by the store and by every service built on it.
// Op, Collection and ID carry the context of the failing operation.
type Error struct {
	Code       ErrCode // The error code
	Op         string  // Operation, e.g. "read", "cart.update"
	Collection string  // Collection involved (optional)
	ID         string  // Document id involved (optional)
	Msg        string  // Human readable message
	Err        error   // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Code.String())
	if e.Op != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Op)
		if e.Collection != "" {
			sb.WriteString(" ")
			sb.WriteString(e.Collection)
		}
		if e.ID != "" {
			sb.WriteString("/")
			sb.WriteString(e.ID)
		}
		sb.WriteString(")")
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code that matches the error
func (e *Error) StatusCode() int {
	return e.Code.StatusCode()
}

// Type returns the error type string, e.g. ITEM_NOT_FOUND
func (e *Error) Type() string {
	return e.Code.String()
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrCode, op, msg string) *Error {
	return &Error{Code: code, Op: op, Msg: msg}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrCode, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFound creates an ErrCNotFound error for a document id.
func NotFound(op, collection, id string) *Error {
	return &Error{Code: ErrCNotFound, Op: op, Collection: collection, ID: id, Msg: "document not found"}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// CodeOf returns the code of the first *Error in err's chain and false if there is none.
func CodeOf(err error) (ErrCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return ErrCInternal, false
}

// IsCode reports whether err's chain contains an *Error with the given code.
func IsCode(err error, code ErrCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsNotFound reports whether err is an ErrCNotFound error.
func IsNotFound(err error) bool {
	return IsCode(err, ErrCNotFound)
}
