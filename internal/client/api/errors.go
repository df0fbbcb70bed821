package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/imroc/req/v3"
)

var (
	ErrNotFound     = errors.New("api: not found")
	ErrUnauthorized = errors.New("api: unauthorized")
	ErrForbidden    = errors.New("api: forbidden")
)

// Codes mirror the server's handlers/api codes.
const (
	CodeInvalidRequest = "E_INVALID_REQUEST"
	CodeUnauthorized   = "E_UNAUTHORIZED"
	CodeForbidden      = "E_FORBIDDEN"
	CodeNotFound       = "E_NOT_FOUND"
	CodeRateLimited    = "E_RATE_LIMITED"
	CodeInternalError  = "E_INTERNAL_ERROR"
	CodeUnknownError   = "E_UNKNOWN_ERR"
)

type SDKError interface {
	error
	ErrorCode() string
	ErrorMessage() string
}

// APIError is the JSON error body every server route returns.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) ErrorCode() string    { return e.Code }
func (e *APIError) ErrorMessage() string { return e.Message }

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s - %s", e.Status, e.Code, e.Message)
}

// Unwrap lets callers test with errors.Is against the status sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	}
	return nil
}

var _ SDKError = (*APIError)(nil)

func handleAPIError(resp *req.Response, reqErr error, op string) error {
	if reqErr != nil {
		return fmt.Errorf("%s: %w", op, reqErr)
	}
	if !resp.IsErrorState() {
		return nil
	}
	if apiErr, ok := resp.ErrorResult().(*APIError); ok && apiErr.Code != "" {
		apiErr.Status = resp.StatusCode
		return fmt.Errorf("%s: %w", op, apiErr)
	}
	return fmt.Errorf("%s: %w", op, &APIError{Status: resp.StatusCode, Code: CodeUnknownError, Message: resp.Status})
}

// errorFromStream builds an APIError for responses whose body was not read
// by req (streamed downloads).
func errorFromStream(resp *req.Response, op string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}
	if err := jsonUnmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = CodeUnknownError
		apiErr.Message = resp.Status
	}
	return fmt.Errorf("%s: %w", op, apiErr)
}
