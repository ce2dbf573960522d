package userapi

import (
	"errors"
	"fmt"
	"net/http"
)

// RequestError classifies a failed call against the user resource.
type RequestError struct {
	Type       string
	Method     string
	URL        string
	StatusCode int
	Status     string
	Cause      error
}

// Request error types
const (
	ErrorTypeTransport = "transport"
	ErrorTypeServer    = "server"
	ErrorTypeEncode    = "encode"
	ErrorTypeDecode    = "decode"
)

func (e *RequestError) Error() string {
	if e.Type == ErrorTypeServer {
		return fmt.Sprintf("Error Code: %d\nMessage: %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("Error: %v", e.Cause)
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

// NewTransportError creates an error for requests that never got a response
func NewTransportError(method, url string, cause error) *RequestError {
	return &RequestError{
		Type:   ErrorTypeTransport,
		Method: method,
		URL:    url,
		Cause:  cause,
	}
}

// NewServerError creates an error for a non-2xx response
func NewServerError(method, url string, statusCode int) *RequestError {
	return &RequestError{
		Type:       ErrorTypeServer,
		Method:     method,
		URL:        url,
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
	}
}

// NewEncodeError creates an error for a request body that could not be encoded
func NewEncodeError(method, url string, cause error) *RequestError {
	return &RequestError{
		Type:   ErrorTypeEncode,
		Method: method,
		URL:    url,
		Cause:  fmt.Errorf("failed to encode request: %w", cause),
	}
}

// NewDecodeError creates an error for a response body that could not be parsed
func NewDecodeError(method, url string, cause error) *RequestError {
	return &RequestError{
		Type:   ErrorTypeDecode,
		Method: method,
		URL:    url,
		Cause:  fmt.Errorf("failed to decode response: %w", cause),
	}
}

// IsNotFound reports whether err is a 404 from the user resource.
func IsNotFound(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Type == ErrorTypeServer && reqErr.StatusCode == http.StatusNotFound
}
