package realhttp

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Category classifies why a request did not produce a clean, validated
// response. It is a closed set — see the ErrXxx sentinels below — rather
// than an open string so callers can switch over it exhaustively.
type Category int

const (
	// CategoryNone means no error occurred.
	CategoryNone Category = iota
	CategoryInvalidURL
	CategoryMultipartInvalidFile
	CategoryMultipartEncodingFailed
	CategoryMultipartStreamReadFailed
	CategoryJSONEncodingFailed
	CategoryURLEncodingFailed
	CategoryNetwork
	CategoryMissingConnection
	CategoryTimeout
	CategoryInvalidResponse
	CategoryFailedBuildingRequest
	CategoryDecodeFailed
	CategoryEmptyResponse
	CategoryRetryAttemptsReached
	CategoryValidatorFailure
	CategorySessionError
	CategoryCancelled
	CategoryInternal
)

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryInvalidURL:
		return "invalidURL"
	case CategoryMultipartInvalidFile:
		return "multipartInvalidFile"
	case CategoryMultipartEncodingFailed:
		return "multipartEncodingFailed"
	case CategoryMultipartStreamReadFailed:
		return "multipartStreamReadFailed"
	case CategoryJSONEncodingFailed:
		return "jsonEncodingFailed"
	case CategoryURLEncodingFailed:
		return "urlEncodingFailed"
	case CategoryNetwork:
		return "network"
	case CategoryMissingConnection:
		return "missingConnection"
	case CategoryTimeout:
		return "timeout"
	case CategoryInvalidResponse:
		return "invalidResponse"
	case CategoryFailedBuildingRequest:
		return "failedBuildingRequest"
	case CategoryDecodeFailed:
		return "decodeFailed"
	case CategoryEmptyResponse:
		return "emptyResponse"
	case CategoryRetryAttemptsReached:
		return "retryAttemptsReached"
	case CategoryValidatorFailure:
		return "validatorFailure"
	case CategorySessionError:
		return "sessionError"
	case CategoryCancelled:
		return "cancelled"
	case CategoryInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Sentinel errors for category classification via errors.Is. Every *Error
// produced by this package unwraps to exactly one of these.
var (
	ErrInvalidURL               = errors.New("realhttp: invalid URL")
	ErrMultipartInvalidFile     = errors.New("realhttp: multipart part references an invalid file")
	ErrMultipartEncodingFailed  = errors.New("realhttp: multipart encoding failed")
	ErrMultipartStreamReadFailed = errors.New("realhttp: multipart stream read failed")
	ErrJSONEncodingFailed       = errors.New("realhttp: JSON encoding failed")
	ErrURLEncodingFailed        = errors.New("realhttp: URL encoding failed")
	ErrNetwork                  = errors.New("realhttp: network error")
	ErrMissingConnection        = errors.New("realhttp: no network connection")
	ErrTimeout                  = errors.New("realhttp: request timed out")
	ErrInvalidResponse          = errors.New("realhttp: invalid response")
	ErrFailedBuildingRequest    = errors.New("realhttp: failed building request")
	ErrDecodeFailed             = errors.New("realhttp: decoding response failed")
	ErrEmptyResponse            = errors.New("realhttp: empty response body")
	ErrRetryAttemptsReached     = errors.New("realhttp: retry attempts exhausted")
	ErrValidatorFailure         = errors.New("realhttp: validator rejected response")
	ErrSessionError             = errors.New("realhttp: session error")
	ErrCancelled                = errors.New("realhttp: request cancelled")
	ErrInternal                 = errors.New("realhttp: internal error")
)

var sentinelByCategory = map[Category]error{
	CategoryInvalidURL:               ErrInvalidURL,
	CategoryMultipartInvalidFile:     ErrMultipartInvalidFile,
	CategoryMultipartEncodingFailed:  ErrMultipartEncodingFailed,
	CategoryMultipartStreamReadFailed: ErrMultipartStreamReadFailed,
	CategoryJSONEncodingFailed:       ErrJSONEncodingFailed,
	CategoryURLEncodingFailed:        ErrURLEncodingFailed,
	CategoryNetwork:                  ErrNetwork,
	CategoryMissingConnection:        ErrMissingConnection,
	CategoryTimeout:                  ErrTimeout,
	CategoryInvalidResponse:          ErrInvalidResponse,
	CategoryFailedBuildingRequest:    ErrFailedBuildingRequest,
	CategoryDecodeFailed:             ErrDecodeFailed,
	CategoryEmptyResponse:            ErrEmptyResponse,
	CategoryRetryAttemptsReached:     ErrRetryAttemptsReached,
	CategoryValidatorFailure:         ErrValidatorFailure,
	CategorySessionError:             ErrSessionError,
	CategoryCancelled:                ErrCancelled,
	CategoryInternal:                 ErrInternal,
}

// Error is the error type attached to every Response whose error category
// is not CategoryNone. It wraps a sentinel (for errors.Is) and keeps the
// originating cause for diagnostics.
type Error struct {
	Category   Category
	StatusCode int    // 0 when not an HTTP-status-derived error
	Message    string
	Cause      error // original underlying error, if any; may be nil
}

// NewError builds an *Error for the given category, attaching cause as the
// diagnostic-preserving wrapped error. cause may be nil.
func NewError(category Category, message string, cause error) *Error {
	return &Error{Category: category, Message: message, Cause: cause}
}

// NewHTTPError builds an *Error from a response status code, classifying it
// into the correct category via ClassifyStatus.
func NewHTTPError(statusCode int, message string) *Error {
	return &Error{
		Category:   ClassifyStatus(statusCode),
		StatusCode: statusCode,
		Message:    message,
	}
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("realhttp: %s (HTTP %d): %s", e.Category, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("realhttp: %s: %s", e.Category, e.Message)
}

// Unwrap exposes the category's sentinel error so errors.Is(err,
// realhttp.ErrTimeout) works regardless of the concrete *Error instance.
func (e *Error) Unwrap() error {
	if s, ok := sentinelByCategory[e.Category]; ok {
		return s
	}

	return nil
}

// Is lets errors.Is compare two *Error values by category alone, so a
// validator-synthesized *Error compares equal in kind to one produced by
// the data loader.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Category == other.Category
	}

	return false
}

// CombineErrors aggregates zero or more errors (skipping nils) into a single
// error via go.uber.org/multierr, used when multipart part encoding
// accumulates more than one failure before returning.
func CombineErrors(errs ...error) error {
	var combined error
	for _, e := range errs {
		combined = multierr.Append(combined, e)
	}

	return combined
}

// ClassifyStatus maps an HTTP status code to a Category. 2xx codes map to
// CategoryNone — a 2xx status does not by itself imply success (validators
// may still synthesize an error), it only means the transport layer did not
// itself detect a failure.
func ClassifyStatus(code int) Category {
	switch {
	case code >= 200 && code < 300:
		return CategoryNone
	case code == 0:
		return CategoryNone
	default:
		return CategoryInvalidResponse
	}
}

// IsCategory reports whether err's category (if it is or wraps an *Error)
// equals c.
func IsCategory(err error, c Category) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Category == c
	}

	return false
}
